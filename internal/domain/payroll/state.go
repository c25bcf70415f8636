package payroll

import "fmt"

// Event is an input to the payment status state machine.
type Event string

const (
	EventDraftProcessed  Event = "draft_processed"
	EventEmployeeApprove Event = "employee_approved"
	EventEmployeeReject  Event = "employee_rejected"
	EventFinanceApprove  Event = "finance_approved"
	EventFinanceReject   Event = "finance_rejected"
)

type transitionKey struct {
	from  PaymentStatus
	event Event
}

var transitions = map[transitionKey]PaymentStatus{
	{StatusDraft, EventDraftProcessed}:                    StatusPendingEmployeeApproval,
	{StatusPendingEmployeeApproval, EventEmployeeApprove}: StatusEmployeeApproved,
	{StatusPendingEmployeeApproval, EventEmployeeReject}:  StatusPendingEmployeeApproval,
	{StatusEmployeeApproved, EventFinanceApprove}:         StatusFinanceApproved,
	{StatusEmployeeApproved, EventFinanceReject}:          StatusRejected,
}

// Transition is the only place a payment status is allowed to change.
func Transition(from PaymentStatus, event Event) (PaymentStatus, error) {
	to, ok := transitions[transitionKey{from: from, event: event}]
	if !ok {
		return from, fmt.Errorf("%w: %s on %q", ErrInvalidTransition, event, from)
	}
	return to, nil
}

func IsTerminal(status PaymentStatus) bool {
	return status == StatusFinanceApproved || status == StatusRejected
}

func ParseDecision(raw string) (ApprovalStatus, error) {
	switch ApprovalStatus(raw) {
	case ApprovalApproved, ApprovalRejected:
		return ApprovalStatus(raw), nil
	}
	return "", fmt.Errorf("%w: decision must be %q or %q", ErrInvalidInput, ApprovalApproved, ApprovalRejected)
}

func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	switch s := PaymentStatus(raw); s {
	case StatusDraft, StatusProcessed, StatusPendingEmployeeApproval, StatusEmployeeApproved,
		StatusPendingFinanceApproval, StatusFinanceApproved, StatusRejected, StatusFailed:
		return s, nil
	}
	return "", fmt.Errorf("%w: unknown payment status %q", ErrInvalidInput, raw)
}

func employeeEvent(decision ApprovalStatus) Event {
	if decision == ApprovalApproved {
		return EventEmployeeApprove
	}
	return EventEmployeeReject
}

func financeEvent(decision ApprovalStatus) Event {
	if decision == ApprovalApproved {
		return EventFinanceApprove
	}
	return EventFinanceReject
}
