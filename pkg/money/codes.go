package money

// Code represents a ledger currency code.
type Code string

// Supported ledger currencies
const (
	RUB Code = "RUB" // Russian ruble
	PV  Code = "PV"  // Personal volume points
	VWC Code = "VWC" // Internal bonus coin
)

// Decimals is the number of fractional digits every supported currency carries.
const Decimals = 2

// IsValid reports whether c is one of the supported ledger currencies.
func (c Code) IsValid() bool {
	switch c {
	case RUB, PV, VWC:
		return true
	}
	return false
}

// String returns the string representation of the currency code.
func (c Code) String() string {
	return string(c)
}

// Codes returns all supported currency codes.
func Codes() []Code {
	return []Code{RUB, PV, VWC}
}
