package enums

import "fmt"

// ShiftStatus maps to the shift_status enum in Postgres.
// Lifecycle is linear: open -> closed -> reconciled.
type ShiftStatus string

const (
	ShiftStatusOpen       ShiftStatus = "open"
	ShiftStatusClosed     ShiftStatus = "closed"
	ShiftStatusReconciled ShiftStatus = "reconciled"
)

var validShiftStatuses = []ShiftStatus{
	ShiftStatusOpen,
	ShiftStatusClosed,
	ShiftStatusReconciled,
}

// IsValid reports whether the value matches the canonical shift_status enum.
func (s ShiftStatus) IsValid() bool {
	for _, candidate := range validShiftStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo enforces the linear shift lifecycle.
func (s ShiftStatus) CanTransitionTo(next ShiftStatus) bool {
	switch s {
	case ShiftStatusOpen:
		return next == ShiftStatusClosed
	case ShiftStatusClosed:
		return next == ShiftStatusReconciled
	default:
		return false
	}
}

// ParseShiftStatus converts raw input into ShiftStatus.
func ParseShiftStatus(value string) (ShiftStatus, error) {
	for _, candidate := range validShiftStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shift status %q", value)
}
