package discovery

import "fmt"

// EncodeCommissionableTXT builds the TXT records for a commissionable
// advertisement. Keys follow the commissioning discovery conventions:
// D (discriminator), VP (vendor+product), DT (device type), DN (name),
// CM (commissioning mode), PH (pairing hint).
func EncodeCommissionableTXT(info *CommissionableInfo) []string {
	txt := []string{
		fmt.Sprintf("D=%d", info.Discriminator),
		fmt.Sprintf("VP=%d+%d", info.VendorID, info.ProductID),
		"CM=1",
	}
	if info.DeviceType != 0 {
		txt = append(txt, fmt.Sprintf("DT=%d", info.DeviceType))
	}
	if info.DeviceName != "" {
		txt = append(txt, fmt.Sprintf("DN=%s", info.DeviceName))
	}
	if info.PairingHint != 0 {
		txt = append(txt, fmt.Sprintf("PH=%d", info.PairingHint))
	}
	return txt
}

// CommissionableInstanceName returns the instance name for a
// commissionable advertisement.
func CommissionableInstanceName(discriminator uint16) string {
	return fmt.Sprintf("PANEL-%04d", discriminator)
}
