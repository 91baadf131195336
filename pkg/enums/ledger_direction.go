package enums

import "fmt"

// LedgerDirection marks whether an entry debits or credits the user from the
// shop's perspective.
type LedgerDirection string

const (
	LedgerDirectionDebit  LedgerDirection = "debit"
	LedgerDirectionCredit LedgerDirection = "credit"
)

var validLedgerDirections = []LedgerDirection{
	LedgerDirectionDebit,
	LedgerDirectionCredit,
}

// String implements fmt.Stringer.
func (d LedgerDirection) String() string {
	return string(d)
}

// IsValid reports whether the value is a known LedgerDirection.
func (d LedgerDirection) IsValid() bool {
	for _, candidate := range validLedgerDirections {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseLedgerDirection converts raw input into a LedgerDirection.
func ParseLedgerDirection(value string) (LedgerDirection, error) {
	for _, candidate := range validLedgerDirections {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger direction %q", value)
}
