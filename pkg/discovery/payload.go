package discovery

import (
	"fmt"
	"strings"
)

// Onboarding payload constants.
const (
	// qrPrefix starts every QR payload.
	qrPrefix = "MT:"

	// qrVersion is the packed payload version.
	qrVersion = 0

	// qrPayloadBits is the packed bit width: version(3) + vid(16) +
	// pid(16) + custom flow(2) + discovery capabilities(8) +
	// discriminator(12) + passcode(27) + padding(4).
	qrPayloadBits = 88

	// DiscoveryCapabilitiesIP advertises on-network discovery.
	DiscoveryCapabilitiesIP = 0x04

	// manualCodeLength is the digit count of a manual pairing code
	// including the check digit.
	manualCodeLength = 11
)

// base38Alphabet is the QR payload character set.
const base38Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ-."

// OnboardingPayload is the material a commissioner needs to find and
// pair the device.
type OnboardingPayload struct {
	VendorID      uint16
	ProductID     uint16
	Discriminator uint16
	Passcode      uint32

	// CustomFlow is the commissioning flow indicator (0 = standard).
	CustomFlow uint8

	// DiscoveryCapabilities is the supported-transport bitmap. Zero
	// selects DiscoveryCapabilitiesIP.
	DiscoveryCapabilities uint8
}

// Validate checks the payload fields.
func (p *OnboardingPayload) Validate() error {
	if p.Discriminator > MaxDiscriminator {
		return fmt.Errorf("%w: %d", ErrInvalidDiscriminator, p.Discriminator)
	}
	if !ValidPasscode(p.Passcode) {
		return fmt.Errorf("%w: %d", ErrInvalidPasscode, p.Passcode)
	}
	return nil
}

// QRCode packs the payload into the MT: base38 QR string.
func (p *OnboardingPayload) QRCode() (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	caps := p.DiscoveryCapabilities
	if caps == 0 {
		caps = DiscoveryCapabilitiesIP
	}

	var packed [qrPayloadBits / 8]byte
	pos := 0
	putBits := func(value uint64, width int) {
		for i := 0; i < width; i++ {
			if value&(1<<uint(i)) != 0 {
				packed[pos/8] |= 1 << uint(pos%8)
			}
			pos++
		}
	}
	putBits(qrVersion, 3)
	putBits(uint64(p.VendorID), 16)
	putBits(uint64(p.ProductID), 16)
	putBits(uint64(p.CustomFlow), 2)
	putBits(uint64(caps), 8)
	putBits(uint64(p.Discriminator), 12)
	putBits(uint64(p.Passcode), 27)

	return qrPrefix + base38Encode(packed[:]), nil
}

// ParseQRCode unpacks an MT: QR string.
func ParseQRCode(code string) (*OnboardingPayload, error) {
	if !strings.HasPrefix(code, qrPrefix) {
		return nil, fmt.Errorf("%w: missing %q prefix", ErrInvalidPayload, qrPrefix)
	}
	packed, err := base38Decode(code[len(qrPrefix):])
	if err != nil {
		return nil, err
	}
	if len(packed) != qrPayloadBits/8 {
		return nil, fmt.Errorf("%w: packed length %d", ErrInvalidPayload, len(packed))
	}

	pos := 0
	getBits := func(width int) uint64 {
		var v uint64
		for i := 0; i < width; i++ {
			if packed[pos/8]&(1<<uint(pos%8)) != 0 {
				v |= 1 << uint(i)
			}
			pos++
		}
		return v
	}
	if version := getBits(3); version != qrVersion {
		return nil, fmt.Errorf("%w: version %d", ErrInvalidPayload, version)
	}

	p := &OnboardingPayload{
		VendorID:  uint16(getBits(16)),
		ProductID: uint16(getBits(16)),
	}
	p.CustomFlow = uint8(getBits(2))
	p.DiscoveryCapabilities = uint8(getBits(8))
	p.Discriminator = uint16(getBits(12))
	p.Passcode = uint32(getBits(27))

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// base38Encode encodes bytes in 3-byte groups of 5 characters, with a
// 2-byte tail as 4 characters and a 1-byte tail as 2.
func base38Encode(data []byte) string {
	var out strings.Builder
	for i := 0; i < len(data); i += 3 {
		rest := len(data) - i
		var value uint32
		var chars int
		switch {
		case rest >= 3:
			value = uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16
			chars = 5
		case rest == 2:
			value = uint32(data[i]) | uint32(data[i+1])<<8
			chars = 4
		default:
			value = uint32(data[i])
			chars = 2
		}
		for c := 0; c < chars; c++ {
			out.WriteByte(base38Alphabet[value%38])
			value /= 38
		}
	}
	return out.String()
}

// base38Decode reverses base38Encode.
func base38Decode(s string) ([]byte, error) {
	var out []byte
	for i := 0; i < len(s); {
		rest := len(s) - i
		var chars, n int
		switch {
		case rest >= 5:
			chars, n = 5, 3
		case rest == 4:
			chars, n = 4, 2
		case rest == 2:
			chars, n = 2, 1
		default:
			return nil, fmt.Errorf("%w: trailing %d characters", ErrInvalidPayload, rest)
		}

		var value uint32
		for c := chars - 1; c >= 0; c-- {
			idx := strings.IndexByte(base38Alphabet, s[i+c])
			if idx < 0 {
				return nil, fmt.Errorf("%w: character %q", ErrInvalidPayload, s[i+c])
			}
			value = value*38 + uint32(idx)
		}
		for b := 0; b < n; b++ {
			out = append(out, byte(value>>(8*b)))
		}
		i += chars
	}
	return out, nil
}

// ManualPairingCode returns the 11-digit manual pairing code for
// devices without a scannable QR: one version/discriminator digit,
// five digits mixing the discriminator's upper bits with the passcode
// low bits, four passcode digits, and a Verhoeff check digit.
func (p *OnboardingPayload) ManualPairingCode() (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	d1 := (p.Discriminator >> 10) & 0x3
	group2 := (uint32(p.Discriminator&0x300) << 6) | (p.Passcode & 0x3FFF)
	group3 := p.Passcode >> 14

	body := fmt.Sprintf("%d%05d%04d", d1, group2, group3)
	return body + string('0'+verhoeffCheckDigit(body)), nil
}

// FormatManualCode groups an 11-digit code as XXXX-XXX-XXXX for
// display.
func FormatManualCode(code string) string {
	if len(code) != manualCodeLength {
		return code
	}
	return code[0:4] + "-" + code[4:7] + "-" + code[7:11]
}

// ValidateManualCode checks the length, digits, and Verhoeff check
// digit of a manual pairing code. Separators are ignored.
func ValidateManualCode(code string) error {
	clean := strings.Map(func(r rune) rune {
		if r == '-' || r == ' ' {
			return -1
		}
		return r
	}, code)
	if len(clean) != manualCodeLength {
		return fmt.Errorf("%w: %d digits", ErrInvalidPayload, len(clean))
	}
	for _, r := range clean {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: non-digit %q", ErrInvalidPayload, r)
		}
	}
	if !verhoeffValid(clean) {
		return fmt.Errorf("%w: check digit mismatch", ErrInvalidPayload)
	}
	return nil
}

// Verhoeff dihedral group tables.
var verhoeffD = [10][10]byte{
	{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
	{1, 2, 3, 4, 0, 6, 7, 8, 9, 5},
	{2, 3, 4, 0, 1, 7, 8, 9, 5, 6},
	{3, 4, 0, 1, 2, 8, 9, 5, 6, 7},
	{4, 0, 1, 2, 3, 9, 5, 6, 7, 8},
	{5, 9, 8, 7, 6, 0, 4, 3, 2, 1},
	{6, 5, 9, 8, 7, 1, 0, 4, 3, 2},
	{7, 6, 5, 9, 8, 2, 1, 0, 4, 3},
	{8, 7, 6, 5, 9, 3, 2, 1, 0, 4},
	{9, 8, 7, 6, 5, 4, 3, 2, 1, 0},
}

var verhoeffP = [8][10]byte{
	{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
	{1, 5, 7, 6, 2, 8, 3, 0, 9, 4},
	{5, 8, 0, 3, 7, 9, 6, 1, 4, 2},
	{8, 9, 1, 6, 0, 4, 3, 5, 2, 7},
	{9, 4, 5, 3, 1, 2, 6, 8, 7, 0},
	{4, 2, 8, 6, 5, 7, 3, 9, 0, 1},
	{2, 7, 9, 3, 8, 0, 6, 4, 1, 5},
	{7, 0, 4, 6, 9, 1, 3, 2, 5, 8},
}

var verhoeffInv = [10]byte{0, 4, 3, 2, 1, 5, 6, 7, 8, 9}

// verhoeffCheckDigit computes the check digit for a digit string.
func verhoeffCheckDigit(digits string) byte {
	var c byte
	for i := len(digits) - 1; i >= 0; i-- {
		pos := len(digits) - i
		c = verhoeffD[c][verhoeffP[pos%8][digits[i]-'0']]
	}
	return verhoeffInv[c]
}

// verhoeffValid checks a digit string whose last digit is the check
// digit.
func verhoeffValid(digits string) bool {
	var c byte
	for i := len(digits) - 1; i >= 0; i-- {
		pos := len(digits) - 1 - i
		c = verhoeffD[c][verhoeffP[pos%8][digits[i]-'0']]
	}
	return c == 0
}
