package payroll

import "time"

type PaymentStatus string

const (
	StatusDraft                   PaymentStatus = "Draft"
	StatusProcessed               PaymentStatus = "Processed"
	StatusPendingEmployeeApproval PaymentStatus = "Pending Employee Approval"
	StatusEmployeeApproved        PaymentStatus = "Employee Approved"
	StatusPendingFinanceApproval  PaymentStatus = "Pending Finance Approval"
	StatusFinanceApproved         PaymentStatus = "Finance Approved"
	StatusRejected                PaymentStatus = "Rejected"
	// StatusFailed has no producing transition yet; reserved for payment execution.
	StatusFailed PaymentStatus = "Failed"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "Pending"
	ApprovalApproved ApprovalStatus = "Approved"
	ApprovalRejected ApprovalStatus = "Rejected"
)

type DraftStatus string

const (
	DraftStatusDraft DraftStatus = "Draft"
	DraftStatusReady DraftStatus = "Ready for Processing"
)

const (
	PersonalExemption  = 300.0
	DependentExemption = 150.0

	SocialSecurityRate      = 0.08
	PensionContributionRate = 0.05

	GratuityDaysFirstFiveYears = 21
	GratuityDaysAfterFiveYears = 30
	GratuityTaxRate            = 0.10
	GratuityTaxExemption       = 1000.0

	DaysPerYear  = 365
	DaysPerMonth = 30

	DefaultPayDateOffset = 7 * 24 * time.Hour

	CurrencyCode = "SSP"
)

const (
	EventDraftsCreated        = "PAYROLL_DRAFTS_CREATED"
	EventDraftReady           = "PAYROLL_DRAFT_READY"
	EventProcessed            = "PAYROLL_PROCESSED"
	EventEmployeeApproval     = "PAYROLL_EMPLOYEE_APPROVAL"
	EventFinanceApproval      = "PAYROLL_FINANCE_APPROVAL"
	EventFinanceBatchApproved = "PAYROLL_FINANCE_BATCH_APPROVED"
	EventUnauthorizedAttempt  = "UNAUTHORIZED_ACCESS_ATTEMPT"

	AuditDomain = "payroll"
)

// DefaultTaxBrackets is the progressive personal income tax table in SSP.
// FixedAmount carries the cumulative tax of every lower bracket.
var DefaultTaxBrackets = []TaxBracket{
	{Min: 0, Max: 500, Rate: 0, FixedAmount: 0},
	{Min: 500, Max: 2000, Rate: 0.10, FixedAmount: 0},
	{Min: 2000, Max: 5000, Rate: 0.15, FixedAmount: 150},
	{Min: 5000, Max: 10000, Rate: 0.20, FixedAmount: 600},
	{Min: 10000, Max: Unbounded, Rate: 0.25, FixedAmount: 1600},
}
