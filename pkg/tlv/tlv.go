package tlv

import "errors"

// Codec errors.
var (
	// ErrMalformedPayload indicates the input could not be decoded:
	// truncated buffer, length prefix past the end of the buffer,
	// missing required tag, or a field exceeding its declared maximum.
	ErrMalformedPayload = errors.New("malformed TLV payload")

	// ErrFieldTooLarge indicates a value exceeds the maximum size the
	// wire format (or a caller-supplied cap) allows. Encoding never
	// silently truncates.
	ErrFieldTooLarge = errors.New("TLV field too large")

	// ErrEndOfContainer is returned by Reader.Next when the current
	// container has no more elements.
	ErrEndOfContainer = errors.New("end of TLV container")

	// ErrTypeMismatch indicates the current element is not of the
	// requested type.
	ErrTypeMismatch = errors.New("TLV element type mismatch")
)

// ElementType identifies the type of a TLV element (low five bits of
// the control byte).
type ElementType uint8

const (
	ElementTypeUInt1          ElementType = 0x04
	ElementTypeUInt2          ElementType = 0x05
	ElementTypeUInt4          ElementType = 0x06
	ElementTypeUInt8          ElementType = 0x07
	ElementTypeBoolFalse      ElementType = 0x08
	ElementTypeBoolTrue       ElementType = 0x09
	ElementTypeUTF8String1    ElementType = 0x0C
	ElementTypeUTF8String2    ElementType = 0x0D
	ElementTypeOctetString1   ElementType = 0x10
	ElementTypeOctetString2   ElementType = 0x11
	ElementTypeNull           ElementType = 0x14
	ElementTypeStruct         ElementType = 0x15
	ElementTypeArray          ElementType = 0x16
	ElementTypeEndOfContainer ElementType = 0x18
)

// IsUInt reports whether the element type is an unsigned integer of
// any width.
func (t ElementType) IsUInt() bool {
	return t >= ElementTypeUInt1 && t <= ElementTypeUInt8
}

// IsOctetString reports whether the element type is an octet string of
// any length-prefix width.
func (t ElementType) IsOctetString() bool {
	return t == ElementTypeOctetString1 || t == ElementTypeOctetString2
}

// IsUTF8String reports whether the element type is a UTF-8 string.
func (t ElementType) IsUTF8String() bool {
	return t == ElementTypeUTF8String1 || t == ElementTypeUTF8String2
}

// IsContainer reports whether the element opens a container.
func (t ElementType) IsContainer() bool {
	return t == ElementTypeStruct || t == ElementTypeArray
}

// Tag control values (high three bits of the control byte).
const (
	tagControlAnonymous uint8 = 0x00
	tagControlContext   uint8 = 0x20
	tagControlMask      uint8 = 0xE0
	elementTypeMask     uint8 = 0x1F
)

// Tag identifies a TLV element. Elements are either anonymous (top
// level values, array members) or carry a context-specific number
// scoped to the enclosing structure.
type Tag struct {
	context bool
	number  uint8
}

// Anonymous returns the anonymous tag.
func Anonymous() Tag {
	return Tag{}
}

// ContextTag returns a context-specific tag with the given number.
func ContextTag(n uint8) Tag {
	return Tag{context: true, number: n}
}

// IsContext reports whether the tag is context-specific.
func (t Tag) IsContext() bool {
	return t.context
}

// Number returns the context tag number. Zero for anonymous tags.
func (t Tag) Number() uint8 {
	return t.number
}

// uintWidth returns the narrowest unsigned integer element type and
// byte width that can hold v.
func uintWidth(v uint64) (ElementType, int) {
	switch {
	case v <= 0xFF:
		return ElementTypeUInt1, 1
	case v <= 0xFFFF:
		return ElementTypeUInt2, 2
	case v <= 0xFFFFFFFF:
		return ElementTypeUInt4, 4
	default:
		return ElementTypeUInt8, 8
	}
}
