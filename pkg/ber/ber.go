// Package ber implements the definite-length subset of the Basic
// Encoding Rules (ITU-T X.690) that the ISO-ACSE layer needs.
package ber

import (
	dlms "github.com/openmetering/godlms"
)

// Class is the tag class from the top two bits of the identifier octet.
type Class byte

const (
	ClassUniversal   Class = 0x00
	ClassApplication Class = 0x40
	ClassContext     Class = 0x80
	ClassPrivate     Class = 0xC0
)

// Tag identifies one TLV: class, primitive/constructed bit and number.
type Tag struct {
	Class       Class
	Constructed bool
	Number      uint32
}

// Node is one decoded TLV. A primitive node carries Value; a
// constructed node carries Children and an empty Value.
type Node struct {
	Tag      Tag
	Value    []byte
	Children []Node
}

// NewPrimitive builds a primitive node.
func NewPrimitive(class Class, number uint32, value []byte) Node {
	return Node{Tag: Tag{Class: class, Number: number}, Value: value}
}

// NewConstructed builds a constructed node from its children.
func NewConstructed(class Class, number uint32, children ...Node) Node {
	return Node{Tag: Tag{Class: class, Constructed: true, Number: number}, Children: children}
}

func appendTag(dst []byte, tag Tag) []byte {
	first := byte(tag.Class)
	if tag.Constructed {
		first |= 0x20
	}
	if tag.Number < 0x1F {
		return append(dst, first|byte(tag.Number))
	}
	dst = append(dst, first|0x1F)
	// Base-128 with continuation bit, most significant group first.
	var groups [5]byte
	i := len(groups)
	for v := tag.Number; ; {
		i--
		groups[i] = byte(v & 0x7F)
		v >>= 7
		if v == 0 {
			break
		}
	}
	for j := i; j < len(groups)-1; j++ {
		dst = append(dst, groups[j]|0x80)
	}
	return append(dst, groups[len(groups)-1])
}

func decodeTag(buf []byte) (Tag, int, error) {
	if len(buf) == 0 {
		return Tag{}, 0, dlms.NewError(dlms.KindAsn1Decoding, "tag: empty input")
	}
	first := buf[0]
	tag := Tag{
		Class:       Class(first & 0xC0),
		Constructed: first&0x20 != 0,
		Number:      uint32(first & 0x1F),
	}
	if tag.Number != 0x1F {
		return tag, 1, nil
	}
	tag.Number = 0
	pos := 1
	for {
		if pos >= len(buf) {
			return Tag{}, 0, dlms.NewError(dlms.KindAsn1Decoding, "tag: truncated extended form")
		}
		if pos > 5 {
			return Tag{}, 0, dlms.NewError(dlms.KindAsn1Decoding, "tag: extended form too long")
		}
		b := buf[pos]
		pos++
		tag.Number = tag.Number<<7 | uint32(b&0x7F)
		if b&0x80 == 0 {
			return tag, pos, nil
		}
	}
}

func appendLength(dst []byte, n int) []byte {
	if n < 0x80 {
		return append(dst, byte(n))
	}
	var tmp [4]byte
	width := 0
	for v := uint32(n); v > 0; v >>= 8 {
		tmp[3-width] = byte(v)
		width++
	}
	dst = append(dst, 0x80|byte(width))
	return append(dst, tmp[4-width:]...)
}

func decodeLength(buf []byte) (int, int, error) {
	if len(buf) == 0 {
		return 0, 0, dlms.NewError(dlms.KindAsn1Decoding, "length: empty input")
	}
	first := buf[0]
	if first&0x80 == 0 {
		return int(first), 1, nil
	}
	if first == 0x80 {
		return 0, 0, dlms.NewError(dlms.KindAsn1Decoding, "length: indefinite form not supported")
	}
	width := int(first & 0x7F)
	if width > 4 {
		return 0, 0, dlms.Errorf(dlms.KindAsn1Decoding, "length: %d length octets", width)
	}
	if len(buf) < 1+width {
		return 0, 0, dlms.NewError(dlms.KindAsn1Decoding, "length: truncated long form")
	}
	n := 0
	for _, b := range buf[1 : 1+width] {
		n = n<<8 | int(b)
	}
	return n, 1 + width, nil
}

// Encode serializes the node, recursing through constructed children.
func (n Node) Encode() ([]byte, error) {
	return n.Append(nil)
}

// Append serializes the node onto dst.
func (n Node) Append(dst []byte) ([]byte, error) {
	var content []byte
	if n.Tag.Constructed {
		if n.Value != nil {
			return nil, dlms.NewError(dlms.KindAsn1Encoding, "constructed node with primitive value")
		}
		var err error
		for _, child := range n.Children {
			content, err = child.Append(content)
			if err != nil {
				return nil, err
			}
		}
	} else {
		if n.Children != nil {
			return nil, dlms.NewError(dlms.KindAsn1Encoding, "primitive node with children")
		}
		content = n.Value
	}
	dst = appendTag(dst, n.Tag)
	dst = appendLength(dst, len(content))
	return append(dst, content...), nil
}

// Decode reads one TLV from buf, recursing through constructed
// contents. It returns the node and the number of bytes consumed.
func Decode(buf []byte) (Node, int, error) {
	tag, tagLen, err := decodeTag(buf)
	if err != nil {
		return Node{}, 0, err
	}
	length, lenLen, err := decodeLength(buf[tagLen:])
	if err != nil {
		return Node{}, 0, err
	}
	start := tagLen + lenLen
	if len(buf) < start+length {
		return Node{}, 0, dlms.NewError(dlms.KindAsn1Decoding, "value: truncated")
	}
	content := buf[start : start+length]
	node := Node{Tag: tag}
	if tag.Constructed {
		for pos := 0; pos < length; {
			child, consumed, err := Decode(content[pos:])
			if err != nil {
				return Node{}, 0, err
			}
			node.Children = append(node.Children, child)
			pos += consumed
		}
	} else {
		node.Value = append([]byte(nil), content...)
	}
	return node, start + length, nil
}

// Find returns the first direct child with the given class and
// number, or false.
func (n Node) Find(class Class, number uint32) (Node, bool) {
	for _, child := range n.Children {
		if child.Tag.Class == class && child.Tag.Number == number {
			return child, true
		}
	}
	return Node{}, false
}
