package payroll

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hrpay/internal/domain/audit"
	"hrpay/internal/domain/auth"
)

var (
	hrActor      = auth.Actor{UserID: "u-hr", EmployeeID: "EMP-0001", Email: "hr@bank.test", Role: auth.RoleHR}
	financeActor = auth.Actor{UserID: "u-fin", EmployeeID: "EMP-0002", Email: "finance@bank.test", Role: auth.RoleFinance}
	aliceActor   = auth.Actor{UserID: "u-alice", EmployeeID: "EMP-1001", Email: "alice@bank.test", Role: auth.RoleEmployee}
	bobActor     = auth.Actor{UserID: "u-bob", EmployeeID: "EMP-1002", Email: "bob@bank.test", Role: auth.RoleEmployee}
)

type fakePermissions struct {
	hasPermissionFn func(ctx context.Context, actor auth.Actor, capability string) (bool, error)
}

func (f fakePermissions) HasPermission(ctx context.Context, actor auth.Actor, capability string) (bool, error) {
	return f.hasPermissionFn(ctx, actor, capability)
}

type failingAudit struct{}

func (failingAudit) Record(context.Context, audit.Event) error {
	return errors.New("audit sink unavailable")
}

// racingRepo lets a test change the stored record between a read and a save.
type racingRepo struct {
	Repository
	beforeSave func(rec Record)
}

func (r *racingRepo) SaveRecord(ctx context.Context, rec Record) (Record, error) {
	if r.beforeSave != nil {
		r.beforeSave(rec)
	}
	return r.Repository.SaveRecord(ctx, rec)
}

type fixture struct {
	store     *MemoryStore
	audit     *audit.Memory
	lifecycle *Lifecycle
	approvals *Coordinator
	now       time.Time
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	enforcer, err := auth.NewEnforcer(auth.RolePermissions)
	require.NoError(t, err)
	return newFixtureWith(t, enforcer, NewMemoryStore(), opts...)
}

func newFixtureWith(t *testing.T, perms PermissionChecker, repo Repository, opts ...Option) *fixture {
	t.Helper()
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	base := []Option{
		WithClock(func() time.Time { return now }),
		WithIDGenerator(sequentialIDs("id")),
	}
	opts = append(base, opts...)

	store, _ := repo.(*MemoryStore)
	auditLog := audit.NewMemory()
	return &fixture{
		store:     store,
		audit:     auditLog,
		lifecycle: NewLifecycle(repo, perms, auditLog, opts...),
		approvals: NewCoordinator(repo, perms, auditLog, opts...),
		now:       now,
	}
}

func sampleDraftInput(period string, employees ...SelectedEmployee) DraftInput {
	return DraftInput{
		PayPeriod:         period,
		Employees:         employees,
		PaymentComponents: Allowances{Transport: 200, Medical: 100, Housing: 300},
		Deductions:        DeductionConfig{TaxRate: 15, SocialSecurityRate: 5, PensionRate: 3},
	}
}

func alice() SelectedEmployee {
	return SelectedEmployee{EmployeeID: "EMP-1001", Name: "Alice Deng", Department: "Operations", Position: "Teller", BaseSalary: 3000}
}

func bob() SelectedEmployee {
	return SelectedEmployee{EmployeeID: "EMP-1002", Name: "Bob Lado", Department: "Credit", Position: "Analyst", BaseSalary: 4000, BankAccount: "ACC-777"}
}

// processed runs the draft workflow and returns the resulting records keyed by
// employee id.
func (f *fixture) processed(t *testing.T, period string, employees ...SelectedEmployee) map[string]Record {
	t.Helper()
	ctx := context.Background()
	draft, err := f.lifecycle.CreateDraft(ctx, hrActor, sampleDraftInput(period, employees...))
	require.NoError(t, err)
	_, err = f.lifecycle.MarkDraftReady(ctx, hrActor, draft.ID)
	require.NoError(t, err)
	res, err := f.lifecycle.ProcessDrafts(ctx, hrActor, []string{draft.ID})
	require.NoError(t, err)

	out := map[string]Record{}
	for _, rec := range res.Records {
		out[rec.EmployeeID] = rec
	}
	return out
}

func (f *fixture) eventsOfType(eventType string) []audit.Event {
	var out []audit.Event
	for _, evt := range f.audit.Events() {
		if evt.Type == eventType {
			out = append(out, evt)
		}
	}
	return out
}
