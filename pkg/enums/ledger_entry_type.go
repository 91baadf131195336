package enums

import "fmt"

// LedgerEntryType classifies the originating event of a ledger entry.
type LedgerEntryType string

const (
	LedgerEntryTypeTransactionCreated LedgerEntryType = "transaction_created"
	LedgerEntryTypePaymentApplied     LedgerEntryType = "payment_applied"
	LedgerEntryTypePaymentUnallocated LedgerEntryType = "payment_unallocated"
	LedgerEntryTypeExpenseCreated     LedgerEntryType = "expense_created"
	LedgerEntryTypeExpenseSettled     LedgerEntryType = "expense_settled"
	LedgerEntryTypeBalanceCorrected   LedgerEntryType = "balance_corrected"
)

var validLedgerEntryTypes = []LedgerEntryType{
	LedgerEntryTypeTransactionCreated,
	LedgerEntryTypePaymentApplied,
	LedgerEntryTypePaymentUnallocated,
	LedgerEntryTypeExpenseCreated,
	LedgerEntryTypeExpenseSettled,
	LedgerEntryTypeBalanceCorrected,
}

// String implements fmt.Stringer.
func (t LedgerEntryType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known LedgerEntryType.
func (t LedgerEntryType) IsValid() bool {
	for _, candidate := range validLedgerEntryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLedgerEntryType converts raw input into a LedgerEntryType.
func ParseLedgerEntryType(value string) (LedgerEntryType, error) {
	for _, candidate := range validLedgerEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry type %q", value)
}
