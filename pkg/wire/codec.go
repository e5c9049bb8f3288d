package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Envelope CBOR modes. Encoding is deterministic (canonical sort, no
// indefinite lengths) so the same envelope always serializes to the
// same bytes; decoding tolerates duplicate keys and unknown fields
// from newer peers.
var (
	encMode = mustEncMode()
	decMode = mustDecMode()
)

func mustEncMode() cbor.EncMode {
	em, err := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: encoder mode: %v", err))
	}
	return em
}

func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("wire: decoder mode: %v", err))
	}
	return dm
}

// Marshal encodes a value with the envelope encoder mode.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes envelope bytes into a value.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// EncodeRequest serializes a command request envelope.
func EncodeRequest(req *CommandRequest) ([]byte, error) {
	return Marshal(req)
}

// DecodeRequest parses a command request envelope.
func DecodeRequest(data []byte) (*CommandRequest, error) {
	var req CommandRequest
	if err := Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	return &req, nil
}

// EncodeResponse serializes a command response envelope.
func EncodeResponse(resp *CommandResponse) ([]byte, error) {
	return Marshal(resp)
}

// DecodeResponse parses a command response envelope.
func DecodeResponse(data []byte) (*CommandResponse, error) {
	var resp CommandResponse
	if err := Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}
