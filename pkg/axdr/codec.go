package axdr

import (
	"encoding/binary"
	"math"

	dlms "github.com/openmetering/godlms"
)

// Encode serializes one Data value as tag + payload.
func Encode(d Data) ([]byte, error) {
	return Append(nil, d)
}

// Append serializes d onto dst and returns the extended slice.
func Append(dst []byte, d Data) ([]byte, error) {
	if !KnownTag(d.Tag) {
		return nil, dlms.Errorf(dlms.KindInvalidData, "encode: unknown tag 0x%02X", d.Tag)
	}
	dst = append(dst, d.Tag)
	return appendPayload(dst, d)
}

func appendPayload(dst []byte, d Data) ([]byte, error) {
	switch d.Tag {
	case TagNull, TagDontCare:
		return dst, nil

	case TagBoolean:
		v, ok := d.Value.(bool)
		if !ok {
			return nil, badValue(d)
		}
		if v {
			return append(dst, 0x01), nil
		}
		return append(dst, 0x00), nil

	case TagBitString:
		v, ok := d.Value.(BitString)
		if !ok {
			return nil, badValue(d)
		}
		if err := v.Validate(); err != nil {
			return nil, err
		}
		dst = EncodeLength(dst, v.Length)
		return append(dst, v.Bytes...), nil

	case TagInteger8:
		v, ok := d.Value.(int8)
		if !ok {
			return nil, badValue(d)
		}
		return append(dst, byte(v)), nil

	case TagInteger16:
		v, ok := d.Value.(int16)
		if !ok {
			return nil, badValue(d)
		}
		return binary.BigEndian.AppendUint16(dst, uint16(v)), nil

	case TagInteger32:
		v, ok := d.Value.(int32)
		if !ok {
			return nil, badValue(d)
		}
		return binary.BigEndian.AppendUint32(dst, uint32(v)), nil

	case TagInteger64:
		v, ok := d.Value.(int64)
		if !ok {
			return nil, badValue(d)
		}
		return binary.BigEndian.AppendUint64(dst, uint64(v)), nil

	case TagUnsigned8, TagEnum, TagBcd:
		v, ok := d.Value.(uint8)
		if !ok {
			return nil, badValue(d)
		}
		return append(dst, v), nil

	case TagUnsigned16:
		v, ok := d.Value.(uint16)
		if !ok {
			return nil, badValue(d)
		}
		return binary.BigEndian.AppendUint16(dst, v), nil

	case TagUnsigned32:
		v, ok := d.Value.(uint32)
		if !ok {
			return nil, badValue(d)
		}
		return binary.BigEndian.AppendUint32(dst, v), nil

	case TagUnsigned64:
		v, ok := d.Value.(uint64)
		if !ok {
			return nil, badValue(d)
		}
		return binary.BigEndian.AppendUint64(dst, v), nil

	case TagFloat32:
		v, ok := d.Value.(float32)
		if !ok {
			return nil, badValue(d)
		}
		return binary.BigEndian.AppendUint32(dst, math.Float32bits(v)), nil

	case TagFloat64:
		v, ok := d.Value.(float64)
		if !ok {
			return nil, badValue(d)
		}
		return binary.BigEndian.AppendUint64(dst, math.Float64bits(v)), nil

	case TagOctetString:
		v, ok := d.Value.([]byte)
		if !ok {
			return nil, badValue(d)
		}
		dst = EncodeLength(dst, len(v))
		return append(dst, v...), nil

	case TagVisibleString, TagUtf8String:
		v, ok := d.Value.(string)
		if !ok {
			return nil, badValue(d)
		}
		dst = EncodeLength(dst, len(v))
		return append(dst, v...), nil

	case TagDate:
		v, ok := d.Value.(Date)
		if !ok {
			return nil, badValue(d)
		}
		return v.Encode(dst), nil

	case TagTime:
		v, ok := d.Value.(Time)
		if !ok {
			return nil, badValue(d)
		}
		return v.Encode(dst), nil

	case TagDateTime:
		v, ok := d.Value.(DateTime)
		if !ok {
			return nil, badValue(d)
		}
		return v.Encode(dst), nil

	case TagArray, TagStructure:
		items, ok := d.Value.([]Data)
		if !ok {
			return nil, badValue(d)
		}
		dst = EncodeLength(dst, len(items))
		var err error
		for _, item := range items {
			dst, err = Append(dst, item)
			if err != nil {
				return nil, err
			}
		}
		return dst, nil

	case TagCompactArray:
		v, ok := d.Value.(CompactArray)
		if !ok {
			return nil, badValue(d)
		}
		return v.append(dst)

	default:
		return nil, dlms.Errorf(dlms.KindInvalidData, "encode: unknown tag 0x%02X", d.Tag)
	}
}

func badValue(d Data) error {
	return dlms.Errorf(dlms.KindInvalidData, "encode: value %T does not match tag %s", d.Value, TagName(d.Tag))
}

// Decode reads one Data value from buf. It returns the value and the
// number of bytes consumed, so the codec is restartable mid-buffer.
func Decode(buf []byte) (Data, int, error) {
	if len(buf) == 0 {
		return Data{}, 0, dlms.NewError(dlms.KindInvalidData, "decode: empty input")
	}
	tag := buf[0]
	if !KnownTag(tag) {
		return Data{}, 0, dlms.Errorf(dlms.KindInvalidData, "decode: unknown tag 0x%02X", tag)
	}
	d, n, err := decodePayload(tag, buf[1:])
	if err != nil {
		return Data{}, 0, err
	}
	return d, n + 1, nil
}

func decodePayload(tag byte, buf []byte) (Data, int, error) {
	switch tag {
	case TagNull, TagDontCare:
		return Data{Tag: tag}, 0, nil

	case TagBoolean:
		if len(buf) < 1 {
			return Data{}, 0, truncated(tag)
		}
		return Data{Tag: tag, Value: buf[0] != 0}, 1, nil

	case TagBitString:
		bits, n, err := DecodeLength(buf)
		if err != nil {
			return Data{}, 0, err
		}
		byteCount := (bits + 7) / 8
		if len(buf) < n+byteCount {
			return Data{}, 0, truncated(tag)
		}
		bs := BitString{Length: bits, Bytes: append([]byte(nil), buf[n:n+byteCount]...)}
		return Data{Tag: tag, Value: bs}, n + byteCount, nil

	case TagInteger8:
		if len(buf) < 1 {
			return Data{}, 0, truncated(tag)
		}
		return Data{Tag: tag, Value: int8(buf[0])}, 1, nil

	case TagInteger16:
		if len(buf) < 2 {
			return Data{}, 0, truncated(tag)
		}
		return Data{Tag: tag, Value: int16(binary.BigEndian.Uint16(buf))}, 2, nil

	case TagInteger32:
		if len(buf) < 4 {
			return Data{}, 0, truncated(tag)
		}
		return Data{Tag: tag, Value: int32(binary.BigEndian.Uint32(buf))}, 4, nil

	case TagInteger64:
		if len(buf) < 8 {
			return Data{}, 0, truncated(tag)
		}
		return Data{Tag: tag, Value: int64(binary.BigEndian.Uint64(buf))}, 8, nil

	case TagUnsigned8, TagEnum, TagBcd:
		if len(buf) < 1 {
			return Data{}, 0, truncated(tag)
		}
		return Data{Tag: tag, Value: buf[0]}, 1, nil

	case TagUnsigned16:
		if len(buf) < 2 {
			return Data{}, 0, truncated(tag)
		}
		return Data{Tag: tag, Value: binary.BigEndian.Uint16(buf)}, 2, nil

	case TagUnsigned32:
		if len(buf) < 4 {
			return Data{}, 0, truncated(tag)
		}
		return Data{Tag: tag, Value: binary.BigEndian.Uint32(buf)}, 4, nil

	case TagUnsigned64:
		if len(buf) < 8 {
			return Data{}, 0, truncated(tag)
		}
		return Data{Tag: tag, Value: binary.BigEndian.Uint64(buf)}, 8, nil

	case TagFloat32:
		if len(buf) < 4 {
			return Data{}, 0, truncated(tag)
		}
		return Data{Tag: tag, Value: math.Float32frombits(binary.BigEndian.Uint32(buf))}, 4, nil

	case TagFloat64:
		if len(buf) < 8 {
			return Data{}, 0, truncated(tag)
		}
		return Data{Tag: tag, Value: math.Float64frombits(binary.BigEndian.Uint64(buf))}, 8, nil

	case TagOctetString:
		length, n, err := DecodeLength(buf)
		if err != nil {
			return Data{}, 0, err
		}
		if len(buf) < n+length {
			return Data{}, 0, truncated(tag)
		}
		return Data{Tag: tag, Value: append([]byte(nil), buf[n:n+length]...)}, n + length, nil

	case TagVisibleString, TagUtf8String:
		length, n, err := DecodeLength(buf)
		if err != nil {
			return Data{}, 0, err
		}
		if len(buf) < n+length {
			return Data{}, 0, truncated(tag)
		}
		return Data{Tag: tag, Value: string(buf[n : n+length])}, n + length, nil

	case TagDate:
		if len(buf) < 5 {
			return Data{}, 0, truncated(tag)
		}
		v, err := DecodeDate(buf[:5])
		if err != nil {
			return Data{}, 0, err
		}
		return Data{Tag: tag, Value: v}, 5, nil

	case TagTime:
		if len(buf) < 4 {
			return Data{}, 0, truncated(tag)
		}
		v, err := DecodeTime(buf[:4])
		if err != nil {
			return Data{}, 0, err
		}
		return Data{Tag: tag, Value: v}, 4, nil

	case TagDateTime:
		if len(buf) < 12 {
			return Data{}, 0, truncated(tag)
		}
		v, err := DecodeDateTime(buf[:12])
		if err != nil {
			return Data{}, 0, err
		}
		return Data{Tag: tag, Value: v}, 12, nil

	case TagArray, TagStructure:
		count, n, err := DecodeLength(buf)
		if err != nil {
			return Data{}, 0, err
		}
		items := make([]Data, 0, count)
		pos := n
		for i := 0; i < count; i++ {
			item, consumed, err := Decode(buf[pos:])
			if err != nil {
				return Data{}, 0, err
			}
			items = append(items, item)
			pos += consumed
		}
		return Data{Tag: tag, Value: items}, pos, nil

	case TagCompactArray:
		v, n, err := decodeCompactArray(buf)
		if err != nil {
			return Data{}, 0, err
		}
		return Data{Tag: tag, Value: v}, n, nil

	default:
		return Data{}, 0, dlms.Errorf(dlms.KindInvalidData, "decode: unknown tag 0x%02X", tag)
	}
}

func truncated(tag byte) error {
	return dlms.Errorf(dlms.KindInvalidData, "decode: truncated %s", TagName(tag))
}
