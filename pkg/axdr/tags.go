package axdr

// A-XDR tag bytes of the COSEM data model.
const (
	TagNull          byte = 0x00
	TagArray         byte = 0x01
	TagStructure     byte = 0x02
	TagBoolean       byte = 0x03
	TagBitString     byte = 0x04
	TagInteger32     byte = 0x05
	TagUnsigned32    byte = 0x06
	TagOctetString   byte = 0x09
	TagVisibleString byte = 0x0A
	TagUtf8String    byte = 0x0C
	TagBcd           byte = 0x0D
	TagInteger8      byte = 0x0F
	TagInteger16     byte = 0x10
	TagUnsigned8     byte = 0x11
	TagUnsigned16    byte = 0x12
	TagCompactArray  byte = 0x13
	TagInteger64     byte = 0x14
	TagUnsigned64    byte = 0x15
	TagEnum          byte = 0x16
	TagFloat32       byte = 0x17
	TagFloat64       byte = 0x18
	TagDateTime      byte = 0x19
	TagDate          byte = 0x1A
	TagTime          byte = 0x1B
	TagDontCare      byte = 0xFF
)

var tagNames = map[byte]string{
	TagNull:          "null-data",
	TagArray:         "array",
	TagStructure:     "structure",
	TagBoolean:       "boolean",
	TagBitString:     "bit-string",
	TagInteger32:     "double-long",
	TagUnsigned32:    "double-long-unsigned",
	TagOctetString:   "octet-string",
	TagVisibleString: "visible-string",
	TagUtf8String:    "utf8-string",
	TagBcd:           "bcd",
	TagInteger8:      "integer",
	TagInteger16:     "long",
	TagUnsigned8:     "unsigned",
	TagUnsigned16:    "long-unsigned",
	TagCompactArray:  "compact-array",
	TagInteger64:     "long64",
	TagUnsigned64:    "long64-unsigned",
	TagEnum:          "enum",
	TagFloat32:       "float32",
	TagFloat64:       "float64",
	TagDateTime:      "date-time",
	TagDate:          "date",
	TagTime:          "time",
	TagDontCare:      "dont-care",
}

// TagName returns the COSEM name of a tag, or "" for an unknown tag.
func TagName(tag byte) string {
	return tagNames[tag]
}

// KnownTag reports whether tag is part of the COSEM data model.
func KnownTag(tag byte) bool {
	_, ok := tagNames[tag]
	return ok
}
