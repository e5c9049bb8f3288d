package wire

// Status represents a command response status code.
type Status uint8

const (
	// StatusSuccess indicates the command completed successfully.
	StatusSuccess Status = 0

	// StatusMalformedPayload indicates the command fields could not be
	// decoded. The command is rejected; the session stays alive.
	StatusMalformedPayload Status = 1

	// StatusInvalidNonce indicates an attestation or CSR nonce of the
	// wrong length.
	StatusInvalidNonce Status = 2

	// StatusInvalidNOC indicates the supplied operational certificate
	// value was empty or not structurally decodable.
	StatusInvalidNOC Status = 3

	// StatusDeclarationTooLarge indicates the certification declaration
	// exceeds its fixed wire budget. This is a configuration defect on
	// the device, not a commissioner error.
	StatusDeclarationTooLarge Status = 4

	// StatusOutOfOrder indicates a command arrived in a phase that does
	// not permit it. The session stays in its current phase so the
	// commissioner may retry in the right order.
	StatusOutOfOrder Status = 5

	// StatusCapacityExceeded indicates the fabric table is full.
	// Terminal for the commissioning attempt.
	StatusCapacityExceeded Status = 6

	// StatusFailSafeExpired indicates the fail-safe window elapsed
	// before the attempt completed. Terminal.
	StatusFailSafeExpired Status = 7

	// StatusNotFound indicates the referenced fabric does not exist.
	StatusNotFound Status = 8

	// StatusUnsupportedCommand indicates an unknown command id.
	StatusUnsupportedCommand Status = 9

	// StatusUnsupportedCluster indicates a cluster this engine does not
	// serve.
	StatusUnsupportedCluster Status = 10

	// StatusInternalError indicates an unrecoverable device-side
	// failure, such as the durable store failing to write. The whole
	// session aborts.
	StatusInternalError Status = 255
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusMalformedPayload:
		return "MALFORMED_PAYLOAD"
	case StatusInvalidNonce:
		return "INVALID_NONCE"
	case StatusInvalidNOC:
		return "INVALID_NOC"
	case StatusDeclarationTooLarge:
		return "DECLARATION_TOO_LARGE"
	case StatusOutOfOrder:
		return "OUT_OF_ORDER"
	case StatusCapacityExceeded:
		return "CAPACITY_EXCEEDED"
	case StatusFailSafeExpired:
		return "FAILSAFE_EXPIRED"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusUnsupportedCommand:
		return "UNSUPPORTED_COMMAND"
	case StatusUnsupportedCluster:
		return "UNSUPPORTED_CLUSTER"
	case StatusInternalError:
		return "INTERNAL_ERROR"
	default:
		return "UNKNOWN"
	}
}

// IsSuccess returns true for StatusSuccess.
func (s Status) IsSuccess() bool {
	return s == StatusSuccess
}

// IsTerminal returns true if the status aborts the whole commissioning
// attempt rather than just rejecting one command.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCapacityExceeded, StatusFailSafeExpired, StatusInternalError:
		return true
	}
	return false
}
