package enums

import "fmt"

// ReferenceType names the record a ledger entry points back at.
type ReferenceType string

const (
	ReferenceTypeTransaction ReferenceType = "transaction"
	ReferenceTypePayment     ReferenceType = "payment"
	ReferenceTypeExpense     ReferenceType = "expense"
	ReferenceTypeBalance     ReferenceType = "balance"
)

var validReferenceTypes = []ReferenceType{
	ReferenceTypeTransaction,
	ReferenceTypePayment,
	ReferenceTypeExpense,
	ReferenceTypeBalance,
}

// String implements fmt.Stringer.
func (r ReferenceType) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReferenceType.
func (r ReferenceType) IsValid() bool {
	for _, candidate := range validReferenceTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReferenceType converts raw input into a ReferenceType.
func ParseReferenceType(value string) (ReferenceType, error) {
	for _, candidate := range validReferenceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reference type %q", value)
}
