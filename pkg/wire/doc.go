// Package wire defines the command envelope exchanged with the
// transport layer and the field-value model commissioning handlers
// consume.
//
// The transport delivers an already-decrypted command invocation:
// endpoint, cluster, command id, and the command fields. The outer
// envelope is CBOR (RFC 8949) with integer keys; the inner command
// fields arrive either as raw TLV bytes or as an already-decoded
// tagged map, depending on the encoder used upstream. Normalize turns
// both shapes into the same FieldValue union so handlers never branch
// on representation.
//
// Responses are either a CommandResponse (command path plus encoded
// payload) or a bare Status for accept/reject-only commands.
package wire
