// Package discovery implements commissioning discovery: mDNS
// advertising of the commissionable and operational services, the
// onboarding QR payload, and the manual pairing code.
//
// A device waiting to be commissioned advertises _matterc._udp with
// its discriminator and vendor/product identifiers in TXT records.
// Once commissioned it advertises _matter._tcp under an instance name
// derived from the fabric's compressed identifier and its node id.
//
// The QR payload and the 11-digit manual pairing code encode the same
// onboarding material (discriminator and setup passcode) for
// commissioners that cannot scan codes.
package discovery
