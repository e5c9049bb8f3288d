// Package tlv implements the tag-length-value encoding used for all
// commissioning payloads: certification declarations, attestation
// elements, CSR elements and command fields.
//
// # Element Format
//
// Every element starts with a control byte: the upper three bits select
// the tag form (anonymous or context-specific), the lower five bits the
// element type. Context tags are a single byte (0-255). Unsigned
// integers use the smallest width that fits (1, 2, 4 or 8 bytes).
// Octet and UTF-8 strings carry a 1- or 2-byte length prefix.
// Structures nest via a start element and a shared end-of-container
// marker.
//
// # Bounds
//
// Several fields in this protocol have externally fixed size caps
// (the certification declaration must encode to 64 bytes or fewer
// because the transport reserves a fixed field width). The codec never
// truncates: writing a value that exceeds a cap fails with
// ErrFieldTooLarge, and reading a value larger than the caller's
// declared maximum fails with ErrMalformedPayload. Malformed input
// (truncated buffers, length prefixes running past the end of the
// buffer) always yields ErrMalformedPayload, never a panic.
package tlv
