package payroll

import (
	"math"
	"time"
)

// Unbounded marks the open upper end of the last tax bracket.
const Unbounded = math.MaxFloat64

type TaxBracket struct {
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Rate        float64 `json:"rate"`
	FixedAmount float64 `json:"fixedAmount"`
}

func (b TaxBracket) IsUnbounded() bool {
	return b.Max >= Unbounded
}

type Exemptions struct {
	Personal   int `json:"personal" validate:"gte=0"`
	Dependents int `json:"dependents" validate:"gte=0"`
}

type TaxCalculation struct {
	GrossSalary                float64    `json:"grossSalary"`
	TaxableIncome              float64    `json:"taxableIncome"`
	PersonalIncomeTax          float64    `json:"personalIncomeTax"`
	SocialSecurityContribution float64    `json:"socialSecurityContribution"`
	PensionContribution        float64    `json:"pensionContribution"`
	TotalDeductions            float64    `json:"totalDeductions"`
	NetSalary                  float64    `json:"netSalary"`
	TaxBracketUsed             string     `json:"taxBracketUsed"`
	Exemptions                 Exemptions `json:"exemptions"`
}

// Allowances are the shared payment components of a draft.
type Allowances struct {
	Transport        float64 `json:"transport" validate:"gte=0"`
	Medical          float64 `json:"medical" validate:"gte=0"`
	Housing          float64 `json:"housing" validate:"gte=0"`
	PerformanceBonus float64 `json:"performanceBonus" validate:"gte=0"`
	Overtime         float64 `json:"overtime" validate:"gte=0"`
	Other            float64 `json:"other" validate:"gte=0"`
}

// DeductionConfig rates are percentages (15 means 15%).
type DeductionConfig struct {
	TaxRate            float64 `json:"taxRate" validate:"gte=0,lte=100"`
	SocialSecurityRate float64 `json:"socialSecurityRate" validate:"gte=0,lte=100"`
	PensionRate        float64 `json:"pensionRate" validate:"gte=0,lte=100"`
	OtherDeductions    float64 `json:"otherDeductions" validate:"gte=0"`
}

type SelectedEmployee struct {
	EmployeeID  string  `json:"employeeId" validate:"required"`
	Name        string  `json:"name" validate:"required"`
	Department  string  `json:"department"`
	Position    string  `json:"position"`
	BaseSalary  float64 `json:"baseSalary" validate:"gte=0"`
	BankAccount string  `json:"bankAccount,omitempty"`
}

type Draft struct {
	ID                string             `json:"id"`
	PayPeriod         string             `json:"payPeriod"`
	Employees         []SelectedEmployee `json:"employees"`
	PaymentComponents Allowances         `json:"paymentComponents"`
	Deductions        DeductionConfig    `json:"deductions"`
	Status            DraftStatus        `json:"status"`
	CreatedBy         string             `json:"createdBy"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

type DraftPay struct {
	GrossPay                float64 `json:"grossPay"`
	TaxDeduction            float64 `json:"taxDeduction"`
	SocialSecurityDeduction float64 `json:"socialSecurityDeduction"`
	PensionDeduction        float64 `json:"pensionDeduction"`
	OtherDeductions         float64 `json:"otherDeductions"`
	TotalDeductions         float64 `json:"totalDeductions"`
	NetPay                  float64 `json:"netPay"`
}

type Approval struct {
	Status     ApprovalStatus `json:"status"`
	Date       *time.Time     `json:"date,omitempty"`
	Notes      string         `json:"notes,omitempty"`
	ApprovedBy string         `json:"approvedBy,omitempty"`
}

type Record struct {
	ID               string        `json:"id"`
	DraftID          string        `json:"draftId,omitempty"`
	EmployeeID       string        `json:"employeeId"`
	Name             string        `json:"name"`
	Department       string        `json:"department"`
	Position         string        `json:"position"`
	PayPeriod        string        `json:"payPeriod"`
	BaseSalary       float64       `json:"baseSalary"`
	Allowances       float64       `json:"allowances"`
	Overtime         float64       `json:"overtime"`
	GrossPay         float64       `json:"grossPay"`
	Taxes            float64       `json:"taxes"`
	SocialSecurity   float64       `json:"socialSecurity"`
	Pension          float64       `json:"pension"`
	OtherDeductions  float64       `json:"otherDeductions"`
	NetPay           float64       `json:"netPay"`
	BankAccount      string        `json:"bankAccount,omitempty"`
	PayDate          *time.Time    `json:"payDate,omitempty"`
	PaymentStatus    PaymentStatus `json:"paymentStatus"`
	EmployeeApproval Approval      `json:"employeeApproval"`
	FinanceApproval  Approval      `json:"financeApproval"`
	ProcessedBy      string        `json:"processedBy,omitempty"`
	Version          int           `json:"version"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

type RecordFilter struct {
	Status     PaymentStatus
	PayPeriod  string
	EmployeeID string
}

func (f RecordFilter) Matches(r Record) bool {
	if f.Status != "" && r.PaymentStatus != f.Status {
		return false
	}
	if f.PayPeriod != "" && r.PayPeriod != f.PayPeriod {
		return false
	}
	if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
		return false
	}
	return true
}

type EndOfServiceInput struct {
	ServiceStart     time.Time `json:"serviceStart"`
	ServiceEnd       time.Time `json:"serviceEnd"`
	LastBasicSalary  float64   `json:"lastBasicSalary"`
	AccruedLeaveDays float64   `json:"accruedLeaveDays"`
	NoticePeriodDays float64   `json:"noticePeriodDays"`
}

type EndOfServiceCalculation struct {
	ServiceStart         time.Time `json:"serviceStart"`
	ServiceEnd           time.Time `json:"serviceEnd"`
	TotalDays            int       `json:"totalDays"`
	YearsOfService       int       `json:"yearsOfService"`
	MonthsOfService      int       `json:"monthsOfService"`
	LastBasicSalary      float64   `json:"lastBasicSalary"`
	DailySalary          float64   `json:"dailySalary"`
	GratuityDays         int       `json:"gratuityDays"`
	GratuityAmount       float64   `json:"gratuityAmount"`
	LeaveEncashment      float64   `json:"leaveEncashment"`
	NoticePay            float64   `json:"noticePay"`
	SeverancePay         float64   `json:"severancePay"`
	TotalEndOfServicePay float64   `json:"totalEndOfServicePay"`
	TaxOnGratuity        float64   `json:"taxOnGratuity"`
	NetEndOfServicePay   float64   `json:"netEndOfServicePay"`
}

// BatchResult splits the requested ids by outcome. Conflicted ids lost the
// optimistic-lock race twice and are safe to resubmit.
type BatchResult struct {
	Updated    []Record `json:"updated"`
	Skipped    []string `json:"skipped"`
	Conflicted []string `json:"conflicted"`
}
