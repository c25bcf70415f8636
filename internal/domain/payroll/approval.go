package payroll

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"hrpay/internal/domain/auth"
)

// Coordinator applies employee and finance decisions to processed records.
type Coordinator struct {
	repo  Repository
	guard guard
	cfg   settings
}

func NewCoordinator(repo Repository, perms PermissionChecker, auditLog AuditLogger, opts ...Option) *Coordinator {
	cfg := newSettings(opts)
	return &Coordinator{
		repo:  repo,
		guard: guard{perms: perms, audit: auditLog, logger: cfg.logger, now: cfg.now},
		cfg:   cfg,
	}
}

func (c *Coordinator) EmployeeApprove(ctx context.Context, actor auth.Actor, recordID string, decision ApprovalStatus, notes string) (Record, error) {
	if _, err := ParseDecision(string(decision)); err != nil {
		return Record{}, err
	}
	rec, err := c.repo.GetRecord(ctx, recordID)
	if err != nil {
		return Record{}, err
	}
	if c.cfg.ownershipCheck && actor.EmployeeID != rec.EmployeeID {
		ok, err := c.guard.can(ctx, actor, auth.CapPayrollManage)
		if err != nil {
			return Record{}, err
		}
		if !ok {
			return Record{}, c.guard.deny(ctx, actor, auth.CapPayrollManage, "approve another employee's payroll", recordID)
		}
	}
	if rec.EmployeeApproval.Status == decision {
		return rec, nil
	}

	from := rec.PaymentStatus
	to, err := Transition(from, employeeEvent(decision))
	if err != nil {
		return Record{}, err
	}
	now := c.cfg.now()
	rec.PaymentStatus = to
	rec.EmployeeApproval = Approval{Status: decision, Date: &now, Notes: notes, ApprovedBy: actor.Label()}
	if decision == ApprovalApproved {
		rec.FinanceApproval = Approval{Status: ApprovalPending}
	}
	rec.UpdatedAt = now

	saved, err := c.repo.SaveRecord(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	c.guard.record(ctx, actor, EventEmployeeApproval, saved.ID, map[string]any{
		"decision": string(decision),
		"from":     string(from),
		"to":       string(to),
		"notes":    notes,
	})
	return saved, nil
}

func (c *Coordinator) FinanceApprove(ctx context.Context, actor auth.Actor, recordID string, decision ApprovalStatus, notes string) (Record, error) {
	if _, err := ParseDecision(string(decision)); err != nil {
		return Record{}, err
	}
	if err := c.guard.require(ctx, actor, auth.CapFinanceApprove, "finance approval", recordID); err != nil {
		return Record{}, err
	}
	rec, err := c.repo.GetRecord(ctx, recordID)
	if err != nil {
		return Record{}, err
	}
	if rec.FinanceApproval.Status == decision {
		return rec, nil
	}

	from := rec.PaymentStatus
	updated, err := c.applyFinance(rec, actor, decision, notes)
	if err != nil {
		return Record{}, err
	}
	saved, err := c.repo.SaveRecord(ctx, updated)
	if err != nil {
		return Record{}, err
	}
	c.guard.record(ctx, actor, EventFinanceApproval, saved.ID, map[string]any{
		"decision": string(decision),
		"from":     string(from),
		"to":       string(saved.PaymentStatus),
		"notes":    notes,
	})
	return saved, nil
}

// BatchFinanceApprove checks permission once, then updates each eligible
// record on its own. Missing and ineligible ids are reported as skipped, so a
// repeated batch updates nothing.
func (c *Coordinator) BatchFinanceApprove(ctx context.Context, actor auth.Actor, recordIDs []string, decision ApprovalStatus, notes string) (BatchResult, error) {
	result := BatchResult{Updated: []Record{}, Skipped: []string{}, Conflicted: []string{}}
	if _, err := ParseDecision(string(decision)); err != nil {
		return result, err
	}
	if len(recordIDs) == 0 {
		return result, fmt.Errorf("%w: no record ids given", ErrInvalidInput)
	}
	if err := c.guard.require(ctx, actor, auth.CapFinanceApprove, "batch finance approval", ""); err != nil {
		return result, err
	}

	seen := map[string]bool{}
	for _, id := range recordIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		saved, outcome, err := c.batchOne(ctx, actor, id, decision, notes)
		if err != nil {
			return result, err
		}
		switch outcome {
		case batchUpdated:
			result.Updated = append(result.Updated, saved)
		case batchConflicted:
			result.Conflicted = append(result.Conflicted, id)
		default:
			result.Skipped = append(result.Skipped, id)
		}
	}

	if len(result.Updated) > 0 {
		ids := make([]string, 0, len(result.Updated))
		for _, rec := range result.Updated {
			ids = append(ids, rec.ID)
		}
		c.guard.record(ctx, actor, EventFinanceBatchApproved, "", map[string]any{
			"decision":   string(decision),
			"recordIds":  ids,
			"skipped":    result.Skipped,
			"conflicted": result.Conflicted,
			"notes":      notes,
		})
	}
	return result, nil
}

type batchOutcome int

const (
	batchSkipped batchOutcome = iota
	batchUpdated
	batchConflicted
)

// batchOne retries once after losing an optimistic-lock race.
func (c *Coordinator) batchOne(ctx context.Context, actor auth.Actor, id string, decision ApprovalStatus, notes string) (Record, batchOutcome, error) {
	for attempt := 0; attempt < 2; attempt++ {
		rec, err := c.repo.GetRecord(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return Record{}, batchSkipped, nil
		}
		if err != nil {
			return Record{}, batchSkipped, err
		}
		if rec.PaymentStatus != StatusEmployeeApproved {
			return Record{}, batchSkipped, nil
		}
		updated, err := c.applyFinance(rec, actor, decision, notes)
		if err != nil {
			return Record{}, batchSkipped, nil
		}
		saved, err := c.repo.SaveRecord(ctx, updated)
		if errors.Is(err, ErrConcurrentModification) {
			c.cfg.logger.Info("batch finance approval lost a concurrent update", zap.String("recordId", id), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return Record{}, batchSkipped, err
		}
		return saved, batchUpdated, nil
	}
	return Record{}, batchConflicted, nil
}

func (c *Coordinator) applyFinance(rec Record, actor auth.Actor, decision ApprovalStatus, notes string) (Record, error) {
	to, err := Transition(rec.PaymentStatus, financeEvent(decision))
	if err != nil {
		return Record{}, err
	}
	now := c.cfg.now()
	rec.PaymentStatus = to
	rec.FinanceApproval = Approval{Status: decision, Date: &now, Notes: notes, ApprovedBy: actor.Label()}
	rec.UpdatedAt = now
	return rec, nil
}
