package wire

import "fmt"

// OperationalCredentialsClusterID is the cluster served by the
// commissioning engine.
const OperationalCredentialsClusterID uint32 = 0x003E

// Operational Credentials command ids.
const (
	CmdAttestationRequest       uint8 = 0x00
	CmdAttestationResponse      uint8 = 0x01
	CmdCertificateChainRequest  uint8 = 0x02
	CmdCertificateChainResponse uint8 = 0x03
	CmdCSRRequest               uint8 = 0x04
	CmdCSRResponse              uint8 = 0x05
	CmdAddNOC                   uint8 = 0x06
	CmdNOCResponse              uint8 = 0x08
	CmdAddTrustedRootCert       uint8 = 0x0B
	CmdRemoveFabric             uint8 = 0x0A
)

// CertificateChainType identifies which attestation certificate a
// CertificateChainRequest asks for.
type CertificateChainType uint8

const (
	// CertificateChainTypeDAC requests the device attestation (leaf)
	// certificate.
	CertificateChainTypeDAC CertificateChainType = 1

	// CertificateChainTypePAI requests the product attestation
	// intermediate certificate.
	CertificateChainTypePAI CertificateChainType = 2
)

// IsValid reports whether the chain type is DAC or PAI.
func (t CertificateChainType) IsValid() bool {
	return t == CertificateChainTypeDAC || t == CertificateChainTypePAI
}

// String returns the chain type name.
func (t CertificateChainType) String() string {
	switch t {
	case CertificateChainTypeDAC:
		return "DAC"
	case CertificateChainTypePAI:
		return "PAI"
	default:
		return "UNKNOWN"
	}
}

// CommandPath identifies a command instance on the data model.
type CommandPath struct {
	EndpointID uint16 `cbor:"1,keyasint"`
	ClusterID  uint32 `cbor:"2,keyasint"`
	CommandID  uint8  `cbor:"3,keyasint"`
}

// String returns the path in endpoint/cluster/command form.
func (p CommandPath) String() string {
	return fmt.Sprintf("%d/0x%04X/0x%02X", p.EndpointID, p.ClusterID, p.CommandID)
}

// CommandRequest is a decoded command invocation handed over by the
// transport layer. Fields holds the raw payload in whichever shape the
// upstream encoder produced; see Normalize.
//
// CBOR encoding:
//
//	{
//	  1: endpointId,   // uint16
//	  2: clusterId,    // uint32
//	  3: commandId,    // uint8
//	  4: fields        // bstr (TLV) or map
//	}
type CommandRequest struct {
	EndpointID uint16 `cbor:"1,keyasint"`
	ClusterID  uint32 `cbor:"2,keyasint"`
	CommandID  uint8  `cbor:"3,keyasint"`
	Fields     any    `cbor:"4,keyasint,omitempty"`
}

// Path returns the command path of the request.
func (r *CommandRequest) Path() CommandPath {
	return CommandPath{EndpointID: r.EndpointID, ClusterID: r.ClusterID, CommandID: r.CommandID}
}

// CommandResponse is a structured command result to be wire-framed by
// the transport layer.
//
// CBOR encoding:
//
//	{
//	  1: path,     // CommandPath
//	  2: status,   // uint8
//	  3: payload   // bstr: TLV-encoded response fields
//	}
type CommandResponse struct {
	Path    CommandPath `cbor:"1,keyasint"`
	Status  Status      `cbor:"2,keyasint"`
	Payload []byte      `cbor:"3,keyasint,omitempty"`
}

// IsSuccess returns true if the response carries a success status.
func (r *CommandResponse) IsSuccess() bool {
	return r.Status.IsSuccess()
}
