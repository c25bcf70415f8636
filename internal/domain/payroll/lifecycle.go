package payroll

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"hrpay/internal/domain/auth"
)

var validate = validator.New()

type DraftInput struct {
	PayPeriod         string             `json:"payPeriod" validate:"required,max=32"`
	Employees         []SelectedEmployee `json:"employees" validate:"required,min=1,dive"`
	PaymentComponents Allowances         `json:"paymentComponents"`
	Deductions        DeductionConfig    `json:"deductions"`
}

type ProcessResult struct {
	Records   []Record `json:"records"`
	Processed []string `json:"processed"`
	Skipped   []string `json:"skipped"`
}

// Lifecycle creates drafts and turns ready drafts into payroll records.
type Lifecycle struct {
	repo  Repository
	guard guard
	cfg   settings
}

func NewLifecycle(repo Repository, perms PermissionChecker, auditLog AuditLogger, opts ...Option) *Lifecycle {
	cfg := newSettings(opts)
	return &Lifecycle{
		repo:  repo,
		guard: guard{perms: perms, audit: auditLog, logger: cfg.logger, now: cfg.now},
		cfg:   cfg,
	}
}

func (l *Lifecycle) CreateDraft(ctx context.Context, actor auth.Actor, in DraftInput) (Draft, error) {
	if err := l.guard.require(ctx, actor, auth.CapPayrollManage, "create payroll draft", ""); err != nil {
		return Draft{}, err
	}
	in.PayPeriod = strings.TrimSpace(in.PayPeriod)
	if err := validate.Struct(in); err != nil {
		return Draft{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	seen := make(map[string]bool, len(in.Employees))
	for _, emp := range in.Employees {
		if seen[emp.EmployeeID] {
			return Draft{}, fmt.Errorf("%w: employee %s selected twice", ErrInvalidInput, emp.EmployeeID)
		}
		seen[emp.EmployeeID] = true
		if _, err := ComputeDraftPay(emp.BaseSalary, in.PaymentComponents, in.Deductions); err != nil {
			return Draft{}, err
		}
	}

	now := l.cfg.now()
	draft := Draft{
		ID:                l.cfg.newID(),
		PayPeriod:         in.PayPeriod,
		Employees:         append([]SelectedEmployee(nil), in.Employees...),
		PaymentComponents: in.PaymentComponents,
		Deductions:        in.Deductions,
		Status:            DraftStatusDraft,
		CreatedBy:         actor.Label(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := l.repo.CreateDraft(ctx, draft); err != nil {
		return Draft{}, fmt.Errorf("create draft: %w", err)
	}

	l.guard.record(ctx, actor, EventDraftsCreated, draft.ID, map[string]any{
		"payPeriod": draft.PayPeriod,
		"employees": len(draft.Employees),
	})
	return draft, nil
}

// MarkDraftReady is idempotent for drafts that are already ready.
func (l *Lifecycle) MarkDraftReady(ctx context.Context, actor auth.Actor, draftID string) (Draft, error) {
	if err := l.guard.require(ctx, actor, auth.CapPayrollManage, "mark payroll draft ready", draftID); err != nil {
		return Draft{}, err
	}
	draft, err := l.repo.GetDraft(ctx, draftID)
	if err != nil {
		return Draft{}, err
	}
	if draft.Status == DraftStatusReady {
		return draft, nil
	}
	draft.Status = DraftStatusReady
	draft.UpdatedAt = l.cfg.now()
	if err := l.repo.SaveDraft(ctx, draft); err != nil {
		return Draft{}, fmt.Errorf("save draft: %w", err)
	}
	l.guard.record(ctx, actor, EventDraftReady, draft.ID, map[string]any{"payPeriod": draft.PayPeriod})
	return draft, nil
}

func (l *Lifecycle) GetDraft(ctx context.Context, draftID string) (Draft, error) {
	return l.repo.GetDraft(ctx, draftID)
}

func (l *Lifecycle) ListDrafts(ctx context.Context) ([]Draft, error) {
	return l.repo.ListDrafts(ctx)
}

func (l *Lifecycle) GetRecord(ctx context.Context, recordID string) (Record, error) {
	return l.repo.GetRecord(ctx, recordID)
}

func (l *Lifecycle) ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error) {
	return l.repo.ListRecords(ctx, filter)
}

// MaterializeDraft builds one Draft-status record per employee from the
// draft's shared components and deduction rates. Ids and timestamps are left
// to the caller.
func MaterializeDraft(draft Draft, employees []SelectedEmployee) ([]Record, error) {
	records := make([]Record, 0, len(employees))
	for _, emp := range employees {
		pay, err := ComputeDraftPay(emp.BaseSalary, draft.PaymentComponents, draft.Deductions)
		if err != nil {
			return nil, fmt.Errorf("employee %s: %w", emp.EmployeeID, err)
		}
		records = append(records, Record{
			DraftID:         draft.ID,
			EmployeeID:      emp.EmployeeID,
			Name:            emp.Name,
			Department:      emp.Department,
			Position:        emp.Position,
			PayPeriod:       draft.PayPeriod,
			BaseSalary:      money(dec(emp.BaseSalary)),
			Allowances:      money(allowanceTotal(draft.PaymentComponents)),
			Overtime:        money(dec(draft.PaymentComponents.Overtime)),
			GrossPay:        pay.GrossPay,
			Taxes:           pay.TaxDeduction,
			SocialSecurity:  pay.SocialSecurityDeduction,
			Pension:         pay.PensionDeduction,
			OtherDeductions: pay.OtherDeductions,
			NetPay:          pay.NetPay,
			BankAccount:     emp.BankAccount,
			PaymentStatus:   StatusDraft,
		})
	}
	return records, nil
}

// ProcessDrafts converts ready drafts into records awaiting employee
// approval. An empty id list processes every ready draft. Drafts that are
// missing or not ready are reported as skipped. Each draft is converted
// atomically; the first failure stops the run and the drafts converted so far
// are returned with the error.
func (l *Lifecycle) ProcessDrafts(ctx context.Context, actor auth.Actor, draftIDs []string) (ProcessResult, error) {
	result := ProcessResult{Records: []Record{}, Processed: []string{}, Skipped: []string{}}
	if err := l.guard.require(ctx, actor, auth.CapPayrollManage, "process payroll drafts", ""); err != nil {
		return result, err
	}

	drafts, err := l.selectDrafts(ctx, draftIDs, &result)
	if err != nil {
		return result, err
	}

	for _, draft := range drafts {
		if draft.Status != DraftStatusReady {
			result.Skipped = append(result.Skipped, draft.ID)
			continue
		}
		records, err := l.prepareRecords(draft, actor)
		if err != nil {
			return result, err
		}
		if err := l.repo.ConvertDraft(ctx, draft.ID, records); err != nil {
			return result, fmt.Errorf("process draft %s: %w", draft.ID, err)
		}
		result.Records = append(result.Records, records...)
		result.Processed = append(result.Processed, draft.ID)

		l.cfg.logger.Info("payroll draft processed",
			zap.String("draftId", draft.ID),
			zap.String("payPeriod", draft.PayPeriod),
			zap.Int("records", len(records)),
		)
		l.guard.record(ctx, actor, EventProcessed, draft.ID, map[string]any{
			"payPeriod": draft.PayPeriod,
			"records":   len(records),
		})
	}
	return result, nil
}

func (l *Lifecycle) selectDrafts(ctx context.Context, draftIDs []string, result *ProcessResult) ([]Draft, error) {
	if len(draftIDs) == 0 {
		drafts, err := l.repo.ListDrafts(ctx)
		if err != nil {
			return nil, fmt.Errorf("list drafts: %w", err)
		}
		return drafts, nil
	}
	var drafts []Draft
	seen := map[string]bool{}
	for _, id := range draftIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		draft, err := l.repo.GetDraft(ctx, id)
		if errors.Is(err, ErrDraftNotFound) {
			result.Skipped = append(result.Skipped, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, draft)
	}
	return drafts, nil
}

func (l *Lifecycle) prepareRecords(draft Draft, actor auth.Actor) ([]Record, error) {
	records, err := MaterializeDraft(draft, draft.Employees)
	if err != nil {
		return nil, err
	}
	now := l.cfg.now()
	payDate := now.Add(l.cfg.payDateOffset)
	for i := range records {
		to, err := Transition(records[i].PaymentStatus, EventDraftProcessed)
		if err != nil {
			return nil, err
		}
		rec := &records[i]
		rec.ID = l.cfg.newID()
		rec.PaymentStatus = to
		rec.EmployeeApproval = Approval{Status: ApprovalPending}
		if rec.BankAccount == "" {
			rec.BankAccount = bankPlaceholder(rec.EmployeeID)
		}
		rec.PayDate = &payDate
		rec.ProcessedBy = actor.Label()
		rec.Version = 1
		rec.CreatedAt = now
		rec.UpdatedAt = now
	}
	return records, nil
}

// bankPlaceholder masks all but the last four characters of the employee id.
func bankPlaceholder(employeeID string) string {
	runes := []rune(employeeID)
	if len(runes) > 4 {
		runes = runes[len(runes)-4:]
	}
	return "****" + string(runes)
}
