package tlv

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// maxOctetString is the largest octet string the wire format can carry
// (2-byte length prefix).
const maxOctetString = 0xFFFF

// Writer builds a TLV encoding incrementally. The zero value is ready
// to use. Writers are not safe for concurrent use.
type Writer struct {
	buf   bytes.Buffer
	depth int
	err   error
}

// NewWriter creates a new TLV writer.
func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) control(tag Tag, et ElementType) {
	tc := tagControlAnonymous
	if tag.context {
		tc = tagControlContext
	}
	w.buf.WriteByte(tc | uint8(et))
	if tag.context {
		w.buf.WriteByte(tag.number)
	}
}

// StartStructure opens a structure container.
func (w *Writer) StartStructure(tag Tag) error {
	if w.err != nil {
		return w.err
	}
	w.control(tag, ElementTypeStruct)
	w.depth++
	return nil
}

// StartArray opens an array container. Array members use anonymous tags.
func (w *Writer) StartArray(tag Tag) error {
	if w.err != nil {
		return w.err
	}
	w.control(tag, ElementTypeArray)
	w.depth++
	return nil
}

// EndContainer closes the innermost open container.
func (w *Writer) EndContainer() error {
	if w.err != nil {
		return w.err
	}
	if w.depth == 0 {
		w.err = fmt.Errorf("%w: end of container without open container", ErrMalformedPayload)
		return w.err
	}
	w.buf.WriteByte(uint8(ElementTypeEndOfContainer))
	w.depth--
	return nil
}

// PutUint writes an unsigned integer using the narrowest width that
// fits the value.
func (w *Writer) PutUint(tag Tag, v uint64) error {
	if w.err != nil {
		return w.err
	}
	et, width := uintWidth(v)
	w.control(tag, et)
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.buf.Write(tmp[:width])
	return nil
}

// PutBool writes a boolean.
func (w *Writer) PutBool(tag Tag, v bool) error {
	if w.err != nil {
		return w.err
	}
	et := ElementTypeBoolFalse
	if v {
		et = ElementTypeBoolTrue
	}
	w.control(tag, et)
	return nil
}

// PutBytes writes an octet string. Fails with ErrFieldTooLarge if the
// value exceeds the wire format's 2-byte length prefix; the value is
// never truncated.
func (w *Writer) PutBytes(tag Tag, b []byte) error {
	if w.err != nil {
		return w.err
	}
	if len(b) > maxOctetString {
		w.err = fmt.Errorf("%w: octet string of %d bytes", ErrFieldTooLarge, len(b))
		return w.err
	}
	if len(b) <= 0xFF {
		w.control(tag, ElementTypeOctetString1)
		w.buf.WriteByte(uint8(len(b)))
	} else {
		w.control(tag, ElementTypeOctetString2)
		var l [2]byte
		binary.LittleEndian.PutUint16(l[:], uint16(len(b)))
		w.buf.Write(l[:])
	}
	w.buf.Write(b)
	return nil
}

// PutBytesCapped writes an octet string and additionally enforces a
// caller-supplied maximum. Use for fields with an externally fixed
// size budget.
func (w *Writer) PutBytesCapped(tag Tag, b []byte, max int) error {
	if len(b) > max {
		w.err = fmt.Errorf("%w: %d bytes exceeds cap of %d", ErrFieldTooLarge, len(b), max)
		return w.err
	}
	return w.PutBytes(tag, b)
}

// PutString writes a UTF-8 string.
func (w *Writer) PutString(tag Tag, s string) error {
	if w.err != nil {
		return w.err
	}
	if len(s) > maxOctetString {
		w.err = fmt.Errorf("%w: string of %d bytes", ErrFieldTooLarge, len(s))
		return w.err
	}
	if len(s) <= 0xFF {
		w.control(tag, ElementTypeUTF8String1)
		w.buf.WriteByte(uint8(len(s)))
	} else {
		w.control(tag, ElementTypeUTF8String2)
		var l [2]byte
		binary.LittleEndian.PutUint16(l[:], uint16(len(s)))
		w.buf.Write(l[:])
	}
	w.buf.WriteString(s)
	return nil
}

// Bytes returns the encoded TLV. Fails if any prior write failed or a
// container is still open.
func (w *Writer) Bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	if w.depth != 0 {
		return nil, fmt.Errorf("%w: %d unclosed containers", ErrMalformedPayload, w.depth)
	}
	return w.buf.Bytes(), nil
}
