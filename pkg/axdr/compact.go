package axdr

import (
	dlms "github.com/openmetering/godlms"
)

// TypeDescription declares the element type of a compact-array.
// For a structure element type, Elements lists the member types in
// order; for every other tag Elements is nil.
type TypeDescription struct {
	Tag      byte
	Elements []TypeDescription
}

// CompactArray carries elements of one declared type, serialized
// back to back without per-element tags.
type CompactArray struct {
	Type  TypeDescription
	Items []Data
}

func (td TypeDescription) append(dst []byte) ([]byte, error) {
	if !KnownTag(td.Tag) {
		return nil, dlms.Errorf(dlms.KindInvalidData, "compact-array: unknown element tag 0x%02X", td.Tag)
	}
	dst = append(dst, td.Tag)
	if td.Tag == TagStructure {
		dst = EncodeLength(dst, len(td.Elements))
		var err error
		for _, sub := range td.Elements {
			dst, err = sub.append(dst)
			if err != nil {
				return nil, err
			}
		}
	}
	return dst, nil
}

func decodeTypeDescription(buf []byte) (TypeDescription, int, error) {
	if len(buf) == 0 {
		return TypeDescription{}, 0, dlms.NewError(dlms.KindInvalidData, "compact-array: truncated type description")
	}
	td := TypeDescription{Tag: buf[0]}
	if !KnownTag(td.Tag) {
		return TypeDescription{}, 0, dlms.Errorf(dlms.KindInvalidData, "compact-array: unknown element tag 0x%02X", td.Tag)
	}
	pos := 1
	if td.Tag == TagStructure {
		count, n, err := DecodeLength(buf[pos:])
		if err != nil {
			return TypeDescription{}, 0, err
		}
		pos += n
		for i := 0; i < count; i++ {
			sub, consumed, err := decodeTypeDescription(buf[pos:])
			if err != nil {
				return TypeDescription{}, 0, err
			}
			td.Elements = append(td.Elements, sub)
			pos += consumed
		}
	}
	return td, pos, nil
}

// conforms checks an element against the declared type.
func (td TypeDescription) conforms(d Data) bool {
	if d.Tag != td.Tag {
		return false
	}
	if td.Tag == TagStructure {
		members, ok := d.Value.([]Data)
		if !ok || len(members) != len(td.Elements) {
			return false
		}
		for i, sub := range td.Elements {
			if !sub.conforms(members[i]) {
				return false
			}
		}
	}
	return true
}

func (ca CompactArray) append(dst []byte) ([]byte, error) {
	dst, err := ca.Type.append(dst)
	if err != nil {
		return nil, err
	}
	var contents []byte
	for _, item := range ca.Items {
		if !ca.Type.conforms(item) {
			return nil, dlms.Errorf(dlms.KindInvalidData, "compact-array: element %s does not conform to declared type %s",
				TagName(item.Tag), TagName(ca.Type.Tag))
		}
		contents, err = appendUntagged(contents, item)
		if err != nil {
			return nil, err
		}
	}
	dst = EncodeLength(dst, len(contents))
	return append(dst, contents...), nil
}

// appendUntagged writes the payload of d without its tag; structure
// members recurse, again without tags.
func appendUntagged(dst []byte, d Data) ([]byte, error) {
	if d.Tag == TagStructure {
		members, ok := d.Value.([]Data)
		if !ok {
			return nil, badValue(d)
		}
		var err error
		for _, member := range members {
			dst, err = appendUntagged(dst, member)
			if err != nil {
				return nil, err
			}
		}
		return dst, nil
	}
	return appendPayload(dst, d)
}

func decodeCompactArray(buf []byte) (CompactArray, int, error) {
	td, pos, err := decodeTypeDescription(buf)
	if err != nil {
		return CompactArray{}, 0, err
	}
	length, n, err := DecodeLength(buf[pos:])
	if err != nil {
		return CompactArray{}, 0, err
	}
	pos += n
	if len(buf) < pos+length {
		return CompactArray{}, 0, dlms.NewError(dlms.KindInvalidData, "compact-array: truncated contents")
	}
	contents := buf[pos : pos+length]
	ca := CompactArray{Type: td}
	for off := 0; off < length; {
		item, consumed, err := decodeUntagged(td, contents[off:])
		if err != nil {
			return CompactArray{}, 0, err
		}
		ca.Items = append(ca.Items, item)
		off += consumed
	}
	return ca, pos + length, nil
}

func decodeUntagged(td TypeDescription, buf []byte) (Data, int, error) {
	if td.Tag == TagStructure {
		members := make([]Data, 0, len(td.Elements))
		pos := 0
		for _, sub := range td.Elements {
			member, consumed, err := decodeUntagged(sub, buf[pos:])
			if err != nil {
				return Data{}, 0, err
			}
			members = append(members, member)
			pos += consumed
		}
		return Data{Tag: TagStructure, Value: members}, pos, nil
	}
	return decodePayload(td.Tag, buf)
}
