package wire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/smartpanel-home/panel-go/pkg/tlv"
)

func TestNormalizeTLV(t *testing.T) {
	nonce := bytes.Repeat([]byte{0x5A}, 32)

	w := tlv.NewWriter()
	w.StartStructure(tlv.Anonymous())
	w.PutBytes(tlv.ContextTag(0), nonce)
	w.PutUint(tlv.ContextTag(1), 0xFFF1)
	w.EndContainer()
	data, err := w.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}

	fv, err := Normalize(data)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if fv.Kind != FieldKindMap {
		t.Fatalf("Kind = %d, want map", fv.Kind)
	}

	b, ok := fv.BytesField(0, 0)
	if !ok || !bytes.Equal(b, nonce) {
		t.Errorf("BytesField(0) = %v, %v", b, ok)
	}
	v, ok := fv.UintField(1, 1)
	if !ok || v != 0xFFF1 {
		t.Errorf("UintField(1) = %d, %v, want 0xFFF1", v, ok)
	}
}

func TestNormalizeCBORMap(t *testing.T) {
	// The shape a CBOR decode of {0: bstr, 1: uint} produces.
	raw := map[any]any{
		uint64(0): []byte{0xDE, 0xAD},
		uint64(1): uint64(7),
	}

	fv, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	b, ok := fv.BytesField(0, 0)
	if !ok || !bytes.Equal(b, []byte{0xDE, 0xAD}) {
		t.Errorf("BytesField(0) = %v, %v", b, ok)
	}
	v, ok := fv.UintField(1, 1)
	if !ok || v != 7 {
		t.Errorf("UintField(1) = %d, %v, want 7", v, ok)
	}
}

func TestNormalizePositionalRecord(t *testing.T) {
	raw := []any{[]byte{0x01}, uint64(2)}

	fv, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if fv.Kind != FieldKindList {
		t.Fatalf("Kind = %d, want list", fv.Kind)
	}

	// Tag lookup falls back to position for record-shaped payloads.
	b, ok := fv.BytesField(9, 0)
	if !ok || !bytes.Equal(b, []byte{0x01}) {
		t.Errorf("BytesField(pos 0) = %v, %v", b, ok)
	}
	v, ok := fv.UintField(9, 1)
	if !ok || v != 2 {
		t.Errorf("UintField(pos 1) = %d, %v, want 2", v, ok)
	}
}

func TestNormalizeRejectsBadShapes(t *testing.T) {
	cases := []any{
		"not a payload",
		map[any]any{"str": uint64(1)},
		map[any]any{uint64(300): uint64(1)},
		[]byte{0x04, 0x01}, // TLV uint, not a structure
		[]byte{0x15},       // truncated structure
	}
	for _, c := range cases {
		if _, err := Normalize(c); !errors.Is(err, tlv.ErrMalformedPayload) {
			t.Errorf("Normalize(%v) error = %v, want ErrMalformedPayload", c, err)
		}
	}
}

func TestNormalizeNil(t *testing.T) {
	fv, err := Normalize(nil)
	if err != nil {
		t.Fatalf("Normalize(nil) error = %v", err)
	}
	if fv.Kind != FieldKindMap || len(fv.Map) != 0 {
		t.Errorf("Normalize(nil) = %+v, want empty map", fv)
	}
}
