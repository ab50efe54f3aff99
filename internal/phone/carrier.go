package phone

// Carrier names returned by DetectCarrier.
const (
	CarrierSafaricom = "Safaricom"
	CarrierAirtel    = "Airtel"
	CarrierTelkom    = "Telkom"
	CarrierUnknown   = "Unknown Carrier"
)

// carrierRanges maps three-digit Kenyan mobile prefixes to carriers.
var carrierRanges = []struct {
	lo, hi  string
	carrier string
}{
	{"701", "729", CarrierSafaricom},
	{"730", "739", CarrierAirtel},
	{"750", "756", CarrierAirtel},
	{"770", "777", CarrierTelkom},
}

// DetectCarrier resolves the mobile network for a canonical +254 number.
// Non-canonical numbers and unassigned prefixes map to CarrierUnknown.
func DetectCarrier(p string) string {
	if !Validate(p) {
		return CarrierUnknown
	}
	prefix := p[4:7]
	for _, r := range carrierRanges {
		if prefix >= r.lo && prefix <= r.hi {
			return r.carrier
		}
	}
	return CarrierUnknown
}
