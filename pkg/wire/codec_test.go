package wire

import (
	"bytes"
	"testing"
)

func TestRequestRoundTrip(t *testing.T) {
	req := &CommandRequest{
		EndpointID: 0,
		ClusterID:  OperationalCredentialsClusterID,
		CommandID:  CmdAttestationRequest,
		Fields:     []byte{0x15, 0x18},
	}

	data, err := EncodeRequest(req)
	if err != nil {
		t.Fatalf("EncodeRequest() error = %v", err)
	}

	got, err := DecodeRequest(data)
	if err != nil {
		t.Fatalf("DecodeRequest() error = %v", err)
	}
	if got.ClusterID != OperationalCredentialsClusterID {
		t.Errorf("ClusterID = 0x%04X, want 0x003E", got.ClusterID)
	}
	if got.CommandID != CmdAttestationRequest {
		t.Errorf("CommandID = %d, want %d", got.CommandID, CmdAttestationRequest)
	}
	fields, ok := got.Fields.([]byte)
	if !ok || !bytes.Equal(fields, []byte{0x15, 0x18}) {
		t.Errorf("Fields = %v, want raw TLV bytes", got.Fields)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	resp := &CommandResponse{
		Path: CommandPath{
			EndpointID: 0,
			ClusterID:  OperationalCredentialsClusterID,
			CommandID:  CmdNOCResponse,
		},
		Status:  StatusSuccess,
		Payload: []byte{0x15, 0x24, 0x00, 0x00, 0x18},
	}

	data, err := EncodeResponse(resp)
	if err != nil {
		t.Fatalf("EncodeResponse() error = %v", err)
	}

	got, err := DecodeResponse(data)
	if err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	if !got.IsSuccess() {
		t.Errorf("Status = %v, want success", got.Status)
	}
	if got.Path.CommandID != CmdNOCResponse {
		t.Errorf("Path.CommandID = %d, want NOCResponse", got.Path.CommandID)
	}
}

func TestDecodeRequestMalformed(t *testing.T) {
	if _, err := DecodeRequest([]byte{0xFF, 0xFF}); err == nil {
		t.Error("DecodeRequest(garbage) succeeded, want error")
	}
}

func TestStatusStrings(t *testing.T) {
	cases := map[Status]string{
		StatusSuccess:          "SUCCESS",
		StatusOutOfOrder:       "OUT_OF_ORDER",
		StatusCapacityExceeded: "CAPACITY_EXCEEDED",
		StatusFailSafeExpired:  "FAILSAFE_EXPIRED",
		Status(200):            "UNKNOWN",
	}
	for s, want := range cases {
		if s.String() != want {
			t.Errorf("Status(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
	if !StatusCapacityExceeded.IsTerminal() {
		t.Error("CapacityExceeded should be terminal")
	}
	if StatusOutOfOrder.IsTerminal() {
		t.Error("OutOfOrder should not be terminal")
	}
}
