package tlv

import (
	"bytes"
	"errors"
	"testing"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	t.Run("UintWidths", func(t *testing.T) {
		values := []uint64{0, 1, 0xFF, 0x100, 0xFFFF, 0x10000, 0xFFFFFFFF, 0x100000000, 0xFFFFFFFFFFFFFFFF}
		for _, v := range values {
			w := NewWriter()
			if err := w.PutUint(Anonymous(), v); err != nil {
				t.Fatalf("PutUint(%d) error = %v", v, err)
			}
			data, err := w.Bytes()
			if err != nil {
				t.Fatalf("Bytes() error = %v", err)
			}

			r := NewReader(data)
			if err := r.Next(); err != nil {
				t.Fatalf("Next() error = %v", err)
			}
			got, err := r.Uint()
			if err != nil {
				t.Fatalf("Uint() error = %v", err)
			}
			if got != v {
				t.Errorf("round trip = %d, want %d", got, v)
			}
		}
	})

	t.Run("Structure", func(t *testing.T) {
		nonce := bytes.Repeat([]byte{0xAB}, 32)

		w := NewWriter()
		w.StartStructure(Anonymous())
		w.PutBytes(ContextTag(1), nonce)
		w.PutUint(ContextTag(2), 0xFFF1)
		w.PutBool(ContextTag(3), true)
		w.PutString(ContextTag(4), "panel")
		w.EndContainer()
		data, err := w.Bytes()
		if err != nil {
			t.Fatalf("Bytes() error = %v", err)
		}

		r := NewReader(data)
		if err := r.Next(); err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if r.Type() != ElementTypeStruct {
			t.Fatalf("Type() = 0x%02X, want struct", uint8(r.Type()))
		}
		if err := r.EnterContainer(); err != nil {
			t.Fatalf("EnterContainer() error = %v", err)
		}

		if err := r.Next(); err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if !r.Tag().IsContext() || r.Tag().Number() != 1 {
			t.Errorf("tag = %+v, want context 1", r.Tag())
		}
		got, err := r.Bytes(32)
		if err != nil {
			t.Fatalf("Bytes() error = %v", err)
		}
		if !bytes.Equal(got, nonce) {
			t.Errorf("nonce mismatch")
		}

		if err := r.Next(); err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		v, err := r.Uint()
		if err != nil || v != 0xFFF1 {
			t.Errorf("Uint() = %d, %v, want 0xFFF1", v, err)
		}

		if err := r.Next(); err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		b, err := r.Bool()
		if err != nil || !b {
			t.Errorf("Bool() = %v, %v, want true", b, err)
		}

		if err := r.Next(); err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		s, err := r.String(16)
		if err != nil || s != "panel" {
			t.Errorf("String() = %q, %v, want panel", s, err)
		}

		if err := r.Next(); !errors.Is(err, ErrEndOfContainer) {
			t.Errorf("Next() at end = %v, want ErrEndOfContainer", err)
		}
		if err := r.ExitContainer(); err != nil {
			t.Errorf("ExitContainer() error = %v", err)
		}
	})

	t.Run("NestedStructureSkip", func(t *testing.T) {
		w := NewWriter()
		w.StartStructure(Anonymous())
		w.StartStructure(ContextTag(1))
		w.PutUint(ContextTag(1), 42)
		w.EndContainer()
		w.PutUint(ContextTag(2), 7)
		w.EndContainer()
		data, err := w.Bytes()
		if err != nil {
			t.Fatalf("Bytes() error = %v", err)
		}

		// Enter the outer struct, skip the inner one via ExitContainer
		// after entering it.
		r := NewReader(data)
		r.Next()
		r.EnterContainer()
		r.Next()
		if err := r.EnterContainer(); err != nil {
			t.Fatalf("EnterContainer() error = %v", err)
		}
		if err := r.ExitContainer(); err != nil {
			t.Fatalf("ExitContainer() error = %v", err)
		}
		if err := r.Next(); err != nil {
			t.Fatalf("Next() after skip error = %v", err)
		}
		v, err := r.Uint()
		if err != nil || v != 7 {
			t.Errorf("Uint() = %d, %v, want 7", v, err)
		}
	})
}

func TestWriterBounds(t *testing.T) {
	t.Run("OctetStringTooLarge", func(t *testing.T) {
		w := NewWriter()
		err := w.PutBytes(Anonymous(), make([]byte, maxOctetString+1))
		if !errors.Is(err, ErrFieldTooLarge) {
			t.Errorf("PutBytes() error = %v, want ErrFieldTooLarge", err)
		}
		// The writer stays failed: Bytes must not return a truncated
		// encoding.
		if _, err := w.Bytes(); !errors.Is(err, ErrFieldTooLarge) {
			t.Errorf("Bytes() after failed write = %v, want ErrFieldTooLarge", err)
		}
	})

	t.Run("CappedWrite", func(t *testing.T) {
		w := NewWriter()
		if err := w.PutBytesCapped(ContextTag(1), make([]byte, 64), 64); err != nil {
			t.Errorf("PutBytesCapped(64, cap 64) error = %v", err)
		}

		w = NewWriter()
		err := w.PutBytesCapped(ContextTag(1), make([]byte, 65), 64)
		if !errors.Is(err, ErrFieldTooLarge) {
			t.Errorf("PutBytesCapped(65, cap 64) error = %v, want ErrFieldTooLarge", err)
		}
	})

	t.Run("UnbalancedContainer", func(t *testing.T) {
		w := NewWriter()
		w.StartStructure(Anonymous())
		if _, err := w.Bytes(); !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("Bytes() with open container = %v, want ErrMalformedPayload", err)
		}
	})
}

func TestReaderMalformed(t *testing.T) {
	valid := func() []byte {
		w := NewWriter()
		w.StartStructure(Anonymous())
		w.PutBytes(ContextTag(0), bytes.Repeat([]byte{1}, 32))
		w.EndContainer()
		data, _ := w.Bytes()
		return data
	}()

	t.Run("TruncatedEverywhere", func(t *testing.T) {
		// Every proper prefix must decode to an error, never panic.
		for i := 0; i < len(valid); i++ {
			r := NewReader(valid[:i])
			var err error
			for err == nil {
				err = r.Next()
				if err == nil && r.Type().IsContainer() {
					err = r.EnterContainer()
				}
			}
			if errors.Is(err, ErrEndOfContainer) && i > 0 {
				// An inner end marker cannot appear in a strict prefix
				// of this encoding before the final byte.
				t.Errorf("prefix %d: unexpected clean end of container", i)
			}
		}
	})

	t.Run("LengthPastEnd", func(t *testing.T) {
		// Octet string claiming 200 bytes with only 2 present.
		data := []byte{uint8(tagControlContext) | uint8(ElementTypeOctetString1), 0x00, 200, 0x01, 0x02}
		r := NewReader(data)
		if err := r.Next(); !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("Next() = %v, want ErrMalformedPayload", err)
		}
	})

	t.Run("OversizedField", func(t *testing.T) {
		r := NewReader(valid)
		r.Next()
		r.EnterContainer()
		r.Next()
		if _, err := r.Bytes(16); !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("Bytes(16) on 32-byte value = %v, want ErrMalformedPayload", err)
		}
	})

	t.Run("UnknownElementType", func(t *testing.T) {
		r := NewReader([]byte{0x1F})
		if err := r.Next(); !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("Next() = %v, want ErrMalformedPayload", err)
		}
	})

	t.Run("TypeMismatch", func(t *testing.T) {
		w := NewWriter()
		w.PutUint(Anonymous(), 5)
		data, _ := w.Bytes()

		r := NewReader(data)
		r.Next()
		if _, err := r.Bytes(8); !errors.Is(err, ErrTypeMismatch) {
			t.Errorf("Bytes() on uint = %v, want ErrTypeMismatch", err)
		}
	})
}
