package commissioning

import "errors"

// Phase is the state of a commissioning attempt. Committed and Aborted
// are terminal.
type Phase uint8

const (
	// PhaseIdle is a fresh session before any command.
	PhaseIdle Phase = iota

	// PhaseChainSent means at least one attestation certificate has
	// been served.
	PhaseChainSent

	// PhaseAttestationSent means a signed attestation response has
	// been produced.
	PhaseAttestationSent

	// PhaseCSRSent means an operational key was generated and a signed
	// CSR response produced.
	PhaseCSRSent

	// PhaseRootInstalled means the commissioner's trusted root is held
	// in the session, pending commit.
	PhaseRootInstalled

	// PhaseCommitted means the fabric was durably persisted. Terminal.
	PhaseCommitted

	// PhaseAborted means the attempt failed, timed out, or was
	// explicitly abandoned. Terminal.
	PhaseAborted
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseChainSent:
		return "ChainSent"
	case PhaseAttestationSent:
		return "AttestationSent"
	case PhaseCSRSent:
		return "CSRSent"
	case PhaseRootInstalled:
		return "RootInstalled"
	case PhaseCommitted:
		return "Committed"
	case PhaseAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the phase ends the attempt.
func (p Phase) Terminal() bool {
	return p == PhaseCommitted || p == PhaseAborted
}

// CertificateType selects which attestation certificate a chain
// request fetches.
type CertificateType uint8

const (
	// CertificateTypeDAC requests the device attestation certificate.
	CertificateTypeDAC CertificateType = 1

	// CertificateTypePAI requests the product attestation
	// intermediate.
	CertificateTypePAI CertificateType = 2
)

// Session errors. The dispatcher maps these to wire status codes.
var (
	// ErrOutOfOrder rejects a command whose phase precondition does
	// not hold. The session stays in its current phase so a
	// commissioner may retry correctly.
	ErrOutOfOrder = errors.New("command out of order")

	// ErrFailSafeExpired reports that the fail-safe window elapsed
	// while the command was in flight. Terminal.
	ErrFailSafeExpired = errors.New("fail-safe window expired")

	// ErrInvalidNOC rejects an empty or undecodable operational
	// certificate.
	ErrInvalidNOC = errors.New("invalid operational certificate")

	// ErrInvalidRootCert rejects an empty, oversized, or undecodable
	// trusted root certificate.
	ErrInvalidRootCert = errors.New("invalid root certificate")

	// ErrUnknownCertificateType rejects a chain request for anything
	// other than DAC or PAI.
	ErrUnknownCertificateType = errors.New("unknown certificate type")
)
