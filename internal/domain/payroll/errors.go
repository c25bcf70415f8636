package payroll

import "errors"

var (
	ErrInvalidInput           = errors.New("invalid payroll input")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrNotFound               = errors.New("payroll record not found")
	ErrDraftNotFound          = errors.New("payroll draft not found")
	ErrInvalidTransition      = errors.New("invalid payroll status transition")
	ErrConcurrentModification = errors.New("payroll record was modified concurrently")
	ErrDuplicateRecord        = errors.New("payroll record already exists for employee and pay period")
)
