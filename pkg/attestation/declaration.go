package attestation

import (
	"errors"
	"fmt"

	"github.com/smartpanel-home/panel-go/pkg/tlv"
)

// DeclarationMaxSize is the hard budget for an encoded certification
// declaration. The transport reserves a fixed field width; a larger
// declaration cannot be framed.
const DeclarationMaxSize = 64

// ErrDeclarationTooLarge indicates the declaration does not fit its
// wire budget. This is a build-time configuration defect, not a
// commissioner error.
var ErrDeclarationTooLarge = errors.New("certification declaration exceeds wire budget")

// CertificationType classifies the device's certification status.
type CertificationType uint8

const (
	// CertificationTypeDevelopment marks test-grade, self-issued
	// credentials.
	CertificationTypeDevelopment CertificationType = 0

	// CertificationTypeProvisional marks devices pending certification.
	CertificationTypeProvisional CertificationType = 1

	// CertificationTypeProduction marks fully certified devices.
	CertificationTypeProduction CertificationType = 2
)

// String returns the certification type name.
func (t CertificationType) String() string {
	switch t {
	case CertificationTypeDevelopment:
		return "DEVELOPMENT"
	case CertificationTypeProvisional:
		return "PROVISIONAL"
	case CertificationTypeProduction:
		return "PRODUCTION"
	default:
		return "UNKNOWN"
	}
}

// Declaration is the device's certification declaration. Immutable
// once constructed.
type Declaration struct {
	FormatVersion       uint8
	VendorID            uint16
	ProductIDs          []uint16
	DeviceTypeID        uint32
	CertificateID       string
	SecurityLevel       uint8
	SecurityInformation uint16
	VersionNumber       uint16
	CertificationType   CertificationType
}

// Declaration TLV context tags.
const (
	declTagFormatVersion   = 0
	declTagVendorID        = 1
	declTagProductIDs      = 2
	declTagDeviceTypeID    = 3
	declTagCertificateID   = 4
	declTagSecurityLevel   = 5
	declTagSecurityInfo    = 6
	declTagVersionNumber   = 7
	declTagCertificateType = 8
)

// maxCertificateID bounds the certificate id string; anything longer
// cannot fit the declaration budget anyway.
const maxCertificateID = 19

// Encode serializes the declaration to TLV. Fails with
// ErrDeclarationTooLarge if the result exceeds DeclarationMaxSize;
// the output is never truncated.
func (d *Declaration) Encode() ([]byte, error) {
	if len(d.CertificateID) > maxCertificateID {
		return nil, fmt.Errorf("%w: certificate id of %d chars", ErrDeclarationTooLarge, len(d.CertificateID))
	}

	w := tlv.NewWriter()
	w.StartStructure(tlv.Anonymous())
	w.PutUint(tlv.ContextTag(declTagFormatVersion), uint64(d.FormatVersion))
	w.PutUint(tlv.ContextTag(declTagVendorID), uint64(d.VendorID))
	w.StartArray(tlv.ContextTag(declTagProductIDs))
	for _, pid := range d.ProductIDs {
		w.PutUint(tlv.Anonymous(), uint64(pid))
	}
	w.EndContainer()
	w.PutUint(tlv.ContextTag(declTagDeviceTypeID), uint64(d.DeviceTypeID))
	w.PutString(tlv.ContextTag(declTagCertificateID), d.CertificateID)
	w.PutUint(tlv.ContextTag(declTagSecurityLevel), uint64(d.SecurityLevel))
	w.PutUint(tlv.ContextTag(declTagSecurityInfo), uint64(d.SecurityInformation))
	w.PutUint(tlv.ContextTag(declTagVersionNumber), uint64(d.VersionNumber))
	w.PutUint(tlv.ContextTag(declTagCertificateType), uint64(d.CertificationType))
	w.EndContainer()

	data, err := w.Bytes()
	if err != nil {
		return nil, err
	}
	if len(data) > DeclarationMaxSize {
		return nil, fmt.Errorf("%w: %d bytes, budget %d", ErrDeclarationTooLarge, len(data), DeclarationMaxSize)
	}
	return data, nil
}

// DecodeDeclaration parses a TLV certification declaration.
func DecodeDeclaration(data []byte) (*Declaration, error) {
	if len(data) > DeclarationMaxSize {
		return nil, fmt.Errorf("%w: %d bytes", tlv.ErrMalformedPayload, len(data))
	}

	r := tlv.NewReader(data)
	if err := r.Next(); err != nil {
		return nil, err
	}
	if r.Type() != tlv.ElementTypeStruct {
		return nil, fmt.Errorf("%w: declaration is not a structure", tlv.ErrMalformedPayload)
	}
	if err := r.EnterContainer(); err != nil {
		return nil, err
	}

	d := &Declaration{}
	for {
		err := r.Next()
		if errors.Is(err, tlv.ErrEndOfContainer) {
			break
		}
		if err != nil {
			return nil, err
		}
		if !r.Tag().IsContext() {
			continue
		}

		switch r.Tag().Number() {
		case declTagFormatVersion:
			v, err := r.Uint()
			if err != nil {
				return nil, err
			}
			d.FormatVersion = uint8(v)
		case declTagVendorID:
			v, err := r.Uint()
			if err != nil {
				return nil, err
			}
			d.VendorID = uint16(v)
		case declTagProductIDs:
			if err := r.EnterContainer(); err != nil {
				return nil, err
			}
			for {
				err := r.Next()
				if errors.Is(err, tlv.ErrEndOfContainer) {
					break
				}
				if err != nil {
					return nil, err
				}
				v, err := r.Uint()
				if err != nil {
					return nil, err
				}
				d.ProductIDs = append(d.ProductIDs, uint16(v))
			}
			if err := r.ExitContainer(); err != nil {
				return nil, err
			}
		case declTagDeviceTypeID:
			v, err := r.Uint()
			if err != nil {
				return nil, err
			}
			d.DeviceTypeID = uint32(v)
		case declTagCertificateID:
			s, err := r.String(maxCertificateID)
			if err != nil {
				return nil, err
			}
			d.CertificateID = s
		case declTagSecurityLevel:
			v, err := r.Uint()
			if err != nil {
				return nil, err
			}
			d.SecurityLevel = uint8(v)
		case declTagSecurityInfo:
			v, err := r.Uint()
			if err != nil {
				return nil, err
			}
			d.SecurityInformation = uint16(v)
		case declTagVersionNumber:
			v, err := r.Uint()
			if err != nil {
				return nil, err
			}
			d.VersionNumber = uint16(v)
		case declTagCertificateType:
			v, err := r.Uint()
			if err != nil {
				return nil, err
			}
			d.CertificationType = CertificationType(v)
		}
	}
	return d, nil
}
