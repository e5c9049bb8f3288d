package wire

import (
	"errors"
	"fmt"

	"github.com/smartpanel-home/panel-go/pkg/tlv"
)

// FieldKind discriminates the FieldValue union.
type FieldKind uint8

const (
	// FieldKindAbsent is the zero value; no field present.
	FieldKindAbsent FieldKind = iota

	// FieldKindMap is a tagged map of nested field values.
	FieldKindMap

	// FieldKindList is a positionally-typed record.
	FieldKindList

	// FieldKindBytes is an octet string.
	FieldKindBytes

	// FieldKindUInt is an unsigned integer.
	FieldKindUInt

	// FieldKindBool is a boolean.
	FieldKindBool
)

// FieldValue is the normalized representation of command fields.
// Upstream encoders deliver fields either as raw TLV bytes or as an
// already-decoded tagged map; Normalize folds both into this union so
// handlers never branch on the transport representation.
type FieldValue struct {
	Kind  FieldKind
	Map   map[uint8]FieldValue
	List  []FieldValue
	Bytes []byte
	UInt  uint64
	Bool  bool
}

// Field looks up a nested value by context tag, falling back to the
// positional index for record-shaped payloads.
func (v FieldValue) Field(tag uint8, pos int) (FieldValue, bool) {
	switch v.Kind {
	case FieldKindMap:
		fv, ok := v.Map[tag]
		return fv, ok
	case FieldKindList:
		if pos >= 0 && pos < len(v.List) {
			return v.List[pos], true
		}
	}
	return FieldValue{}, false
}

// BytesField returns the octet-string field at (tag, pos).
func (v FieldValue) BytesField(tag uint8, pos int) ([]byte, bool) {
	fv, ok := v.Field(tag, pos)
	if !ok || fv.Kind != FieldKindBytes {
		return nil, false
	}
	return fv.Bytes, true
}

// UintField returns the unsigned-integer field at (tag, pos).
func (v FieldValue) UintField(tag uint8, pos int) (uint64, bool) {
	fv, ok := v.Field(tag, pos)
	if !ok || fv.Kind != FieldKindUInt {
		return 0, false
	}
	return fv.UInt, true
}

// Normalize converts the raw Fields of a CommandRequest into a
// FieldValue. Accepted shapes:
//
//   - nil: an empty map
//   - []byte: a TLV-encoded anonymous structure
//   - map (CBOR-decoded, integer keys): tagged map
//   - slice (CBOR-decoded array): positional record
//
// Any other shape, and any decode failure, yields
// tlv.ErrMalformedPayload.
func Normalize(fields any) (FieldValue, error) {
	switch f := fields.(type) {
	case nil:
		return FieldValue{Kind: FieldKindMap, Map: map[uint8]FieldValue{}}, nil
	case []byte:
		return normalizeTLV(f)
	case map[any]any:
		return normalizeMap(f)
	case map[uint64]any:
		m := make(map[any]any, len(f))
		for k, v := range f {
			m[k] = v
		}
		return normalizeMap(m)
	case []any:
		return normalizeList(f)
	default:
		return FieldValue{}, fmt.Errorf("%w: unsupported field shape %T", tlv.ErrMalformedPayload, fields)
	}
}

// normalizeTLV decodes a TLV anonymous structure into a tagged map.
func normalizeTLV(data []byte) (FieldValue, error) {
	r := tlv.NewReader(data)
	if err := r.Next(); err != nil {
		return FieldValue{}, fmt.Errorf("%w: empty field payload", tlv.ErrMalformedPayload)
	}
	if r.Type() != tlv.ElementTypeStruct {
		return FieldValue{}, fmt.Errorf("%w: field payload is not a structure", tlv.ErrMalformedPayload)
	}
	if err := r.EnterContainer(); err != nil {
		return FieldValue{}, err
	}
	return normalizeTLVStruct(r)
}

func normalizeTLVStruct(r *tlv.Reader) (FieldValue, error) {
	out := FieldValue{Kind: FieldKindMap, Map: map[uint8]FieldValue{}}
	for {
		err := r.Next()
		if errors.Is(err, tlv.ErrEndOfContainer) {
			break
		}
		if err != nil {
			return FieldValue{}, err
		}
		tag := r.Tag()
		if !tag.IsContext() {
			continue
		}

		var fv FieldValue
		switch {
		case r.Type().IsUInt():
			v, err := r.Uint()
			if err != nil {
				return FieldValue{}, err
			}
			fv = FieldValue{Kind: FieldKindUInt, UInt: v}
		case r.Type().IsOctetString():
			b, err := r.Bytes(int(^uint16(0)))
			if err != nil {
				return FieldValue{}, err
			}
			fv = FieldValue{Kind: FieldKindBytes, Bytes: b}
		case r.Type() == tlv.ElementTypeBoolTrue, r.Type() == tlv.ElementTypeBoolFalse:
			b, err := r.Bool()
			if err != nil {
				return FieldValue{}, err
			}
			fv = FieldValue{Kind: FieldKindBool, Bool: b}
		case r.Type() == tlv.ElementTypeStruct:
			if err := r.EnterContainer(); err != nil {
				return FieldValue{}, err
			}
			nested, err := normalizeTLVStruct(r)
			if err != nil {
				return FieldValue{}, err
			}
			if err := r.ExitContainer(); err != nil {
				return FieldValue{}, err
			}
			out.Map[tag.Number()] = nested
			continue
		default:
			// Skip element types commands never use.
			continue
		}
		out.Map[tag.Number()] = fv
	}
	return out, nil
}

// normalizeMap converts a CBOR-decoded map with integer keys.
func normalizeMap(m map[any]any) (FieldValue, error) {
	out := FieldValue{Kind: FieldKindMap, Map: make(map[uint8]FieldValue, len(m))}
	for k, v := range m {
		var tag uint8
		switch key := k.(type) {
		case uint64:
			if key > 0xFF {
				return FieldValue{}, fmt.Errorf("%w: field tag %d out of range", tlv.ErrMalformedPayload, key)
			}
			tag = uint8(key)
		case int64:
			if key < 0 || key > 0xFF {
				return FieldValue{}, fmt.Errorf("%w: field tag %d out of range", tlv.ErrMalformedPayload, key)
			}
			tag = uint8(key)
		default:
			return FieldValue{}, fmt.Errorf("%w: non-integer field tag %T", tlv.ErrMalformedPayload, k)
		}
		fv, err := normalizeValue(v)
		if err != nil {
			return FieldValue{}, err
		}
		out.Map[tag] = fv
	}
	return out, nil
}

func normalizeList(l []any) (FieldValue, error) {
	out := FieldValue{Kind: FieldKindList, List: make([]FieldValue, 0, len(l))}
	for _, v := range l {
		fv, err := normalizeValue(v)
		if err != nil {
			return FieldValue{}, err
		}
		out.List = append(out.List, fv)
	}
	return out, nil
}

func normalizeValue(v any) (FieldValue, error) {
	switch val := v.(type) {
	case []byte:
		return FieldValue{Kind: FieldKindBytes, Bytes: val}, nil
	case uint64:
		return FieldValue{Kind: FieldKindUInt, UInt: val}, nil
	case int64:
		if val < 0 {
			return FieldValue{}, fmt.Errorf("%w: negative field value %d", tlv.ErrMalformedPayload, val)
		}
		return FieldValue{Kind: FieldKindUInt, UInt: uint64(val)}, nil
	case int:
		// Convenience for requests constructed in-process.
		if val < 0 {
			return FieldValue{}, fmt.Errorf("%w: negative field value %d", tlv.ErrMalformedPayload, val)
		}
		return FieldValue{Kind: FieldKindUInt, UInt: uint64(val)}, nil
	case bool:
		return FieldValue{Kind: FieldKindBool, Bool: val}, nil
	case map[any]any:
		return normalizeMap(val)
	case []any:
		return normalizeList(val)
	default:
		return FieldValue{}, fmt.Errorf("%w: unsupported field value %T", tlv.ErrMalformedPayload, v)
	}
}
