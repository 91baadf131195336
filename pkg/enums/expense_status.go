package enums

import "fmt"

// ExpenseStatus tracks whether an expense has been fully consumed by payments.
type ExpenseStatus string

const (
	ExpenseStatusPending ExpenseStatus = "pending"
	ExpenseStatusSettled ExpenseStatus = "settled"
)

var validExpenseStatuses = []ExpenseStatus{
	ExpenseStatusPending,
	ExpenseStatusSettled,
}

// String implements fmt.Stringer.
func (e ExpenseStatus) String() string {
	return string(e)
}

// IsValid reports whether the value is a known ExpenseStatus.
func (e ExpenseStatus) IsValid() bool {
	for _, candidate := range validExpenseStatuses {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseExpenseStatus converts raw input into an ExpenseStatus.
func ParseExpenseStatus(value string) (ExpenseStatus, error) {
	for _, candidate := range validExpenseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid expense status %q", value)
}
