package tlv

import (
	"encoding/binary"
	"fmt"
)

// Reader decodes a TLV encoding element by element. Call Next to
// advance to an element, then inspect it with Type and Tag and read
// its value. Readers are not safe for concurrent use.
type Reader struct {
	data []byte
	pos  int

	// Current element, valid after a successful Next.
	typ    ElementType
	tag    Tag
	val    []byte // value bytes for primitives
	uv     uint64 // decoded value for uints
	inside int    // container nesting depth entered via EnterContainer
}

// NewReader creates a reader over the given encoding. The reader does
// not copy data; the caller must not mutate it while reading.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) truncated(what string) error {
	return fmt.Errorf("%w: truncated %s at offset %d", ErrMalformedPayload, what, r.pos)
}

// Next advances to the next element. Returns ErrEndOfContainer at an
// end-of-container marker (without consuming past it for ExitContainer
// bookkeeping) and ErrMalformedPayload on truncated input.
func (r *Reader) Next() error {
	if r.pos >= len(r.data) {
		if r.inside > 0 {
			return r.truncated("container")
		}
		return ErrEndOfContainer
	}
	ctrl := r.data[r.pos]
	et := ElementType(ctrl & elementTypeMask)
	if et == ElementTypeEndOfContainer {
		// Leave the marker for ExitContainer to consume.
		return ErrEndOfContainer
	}
	r.pos++

	switch ctrl & tagControlMask {
	case tagControlAnonymous:
		r.tag = Anonymous()
	case tagControlContext:
		if r.pos >= len(r.data) {
			return r.truncated("context tag")
		}
		r.tag = ContextTag(r.data[r.pos])
		r.pos++
	default:
		return fmt.Errorf("%w: unsupported tag control 0x%02X", ErrMalformedPayload, ctrl&tagControlMask)
	}
	r.typ = et
	r.val = nil
	r.uv = 0

	switch {
	case et.IsUInt():
		width := 1 << (et - ElementTypeUInt1)
		if r.pos+width > len(r.data) {
			return r.truncated("unsigned integer")
		}
		var tmp [8]byte
		copy(tmp[:], r.data[r.pos:r.pos+width])
		r.uv = binary.LittleEndian.Uint64(tmp[:])
		r.pos += width
	case et.IsOctetString() || et.IsUTF8String():
		lenWidth := 1
		if et == ElementTypeOctetString2 || et == ElementTypeUTF8String2 {
			lenWidth = 2
		}
		if r.pos+lenWidth > len(r.data) {
			return r.truncated("length prefix")
		}
		var n int
		if lenWidth == 1 {
			n = int(r.data[r.pos])
		} else {
			n = int(binary.LittleEndian.Uint16(r.data[r.pos:]))
		}
		r.pos += lenWidth
		if r.pos+n > len(r.data) {
			return r.truncated("string value")
		}
		r.val = r.data[r.pos : r.pos+n]
		r.pos += n
	case et == ElementTypeBoolFalse, et == ElementTypeBoolTrue, et == ElementTypeNull:
		// No value bytes.
	case et.IsContainer():
		// Value is read via EnterContainer.
	default:
		return fmt.Errorf("%w: unsupported element type 0x%02X", ErrMalformedPayload, uint8(et))
	}
	return nil
}

// Type returns the type of the current element.
func (r *Reader) Type() ElementType {
	return r.typ
}

// Tag returns the tag of the current element.
func (r *Reader) Tag() Tag {
	return r.tag
}

// Uint returns the current element as an unsigned integer.
func (r *Reader) Uint() (uint64, error) {
	if !r.typ.IsUInt() {
		return 0, fmt.Errorf("%w: element is 0x%02X, want unsigned integer", ErrTypeMismatch, uint8(r.typ))
	}
	return r.uv, nil
}

// Bool returns the current element as a boolean.
func (r *Reader) Bool() (bool, error) {
	switch r.typ {
	case ElementTypeBoolTrue:
		return true, nil
	case ElementTypeBoolFalse:
		return false, nil
	}
	return false, fmt.Errorf("%w: element is 0x%02X, want boolean", ErrTypeMismatch, uint8(r.typ))
}

// Bytes returns the current octet string. max bounds the accepted
// length; a longer value fails with ErrMalformedPayload so that
// oversized fields are rejected at the codec boundary. The returned
// slice is a copy.
func (r *Reader) Bytes(max int) ([]byte, error) {
	if !r.typ.IsOctetString() {
		return nil, fmt.Errorf("%w: element is 0x%02X, want octet string", ErrTypeMismatch, uint8(r.typ))
	}
	if len(r.val) > max {
		return nil, fmt.Errorf("%w: octet string of %d bytes exceeds maximum %d", ErrMalformedPayload, len(r.val), max)
	}
	out := make([]byte, len(r.val))
	copy(out, r.val)
	return out, nil
}

// String returns the current UTF-8 string, bounded by max bytes.
func (r *Reader) String(max int) (string, error) {
	if !r.typ.IsUTF8String() {
		return "", fmt.Errorf("%w: element is 0x%02X, want UTF-8 string", ErrTypeMismatch, uint8(r.typ))
	}
	if len(r.val) > max {
		return "", fmt.Errorf("%w: string of %d bytes exceeds maximum %d", ErrMalformedPayload, len(r.val), max)
	}
	return string(r.val), nil
}

// EnterContainer descends into the current structure or array element.
func (r *Reader) EnterContainer() error {
	if !r.typ.IsContainer() {
		return fmt.Errorf("%w: element is 0x%02X, want container", ErrTypeMismatch, uint8(r.typ))
	}
	r.inside++
	return nil
}

// ExitContainer consumes elements up to and including the current
// container's end marker.
func (r *Reader) ExitContainer() error {
	if r.inside == 0 {
		return fmt.Errorf("%w: not inside a container", ErrMalformedPayload)
	}
	depth := 1
	for depth > 0 {
		if r.pos >= len(r.data) {
			return r.truncated("container")
		}
		ctrl := r.data[r.pos]
		if ElementType(ctrl&elementTypeMask) == ElementTypeEndOfContainer {
			r.pos++
			depth--
			continue
		}
		if err := r.Next(); err != nil {
			return err
		}
		if r.typ.IsContainer() {
			depth++
		}
	}
	r.inside--
	return nil
}
