package payroll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// Store is the Postgres repository.
type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const draftColumns = `id, pay_period, employees, payment_components, deductions, status, created_by, created_at, updated_at`

func (s *Store) CreateDraft(ctx context.Context, draft Draft) error {
	employees, components, deductions, err := encodeDraft(draft)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
    INSERT INTO payroll_drafts (`+draftColumns+`)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
  `, draft.ID, draft.PayPeriod, employees, components, deductions, string(draft.Status), draft.CreatedBy, draft.CreatedAt, draft.UpdatedAt)
	return err
}

func (s *Store) GetDraft(ctx context.Context, draftID string) (Draft, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+draftColumns+` FROM payroll_drafts WHERE id = $1`, draftID)
	draft, err := scanDraft(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Draft{}, fmt.Errorf("%w: %s", ErrDraftNotFound, draftID)
	}
	return draft, err
}

func (s *Store) ListDrafts(ctx context.Context) ([]Draft, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+draftColumns+` FROM payroll_drafts ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drafts []Draft
	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, draft)
	}
	return drafts, rows.Err()
}

func (s *Store) SaveDraft(ctx context.Context, draft Draft) error {
	employees, components, deductions, err := encodeDraft(draft)
	if err != nil {
		return err
	}
	tag, err := s.DB.Exec(ctx, `
    UPDATE payroll_drafts
    SET pay_period = $2, employees = $3, payment_components = $4, deductions = $5, status = $6, updated_at = $7
    WHERE id = $1
  `, draft.ID, draft.PayPeriod, employees, components, deductions, string(draft.Status), draft.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrDraftNotFound, draft.ID)
	}
	return nil
}

func (s *Store) ConvertDraft(ctx context.Context, draftID string, records []Record) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, rec := range records {
		if err := insertRecord(ctx, tx, rec); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				return fmt.Errorf("%w: employee %s period %s", ErrDuplicateRecord, rec.EmployeeID, rec.PayPeriod)
			}
			return err
		}
	}
	tag, err := tx.Exec(ctx, `DELETE FROM payroll_drafts WHERE id = $1`, draftID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrDraftNotFound, draftID)
	}
	return tx.Commit(ctx)
}

const recordColumns = `id, draft_id, employee_id, name, department, position, pay_period,
    base_salary, allowances, overtime, gross_pay, taxes, social_security, pension, other_deductions, net_pay,
    bank_account, pay_date, payment_status, employee_approval, finance_approval, processed_by, version,
    created_at, updated_at`

func insertRecord(ctx context.Context, tx pgx.Tx, rec Record) error {
	employeeApproval, financeApproval, err := encodeApprovals(rec)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
    INSERT INTO payroll_records (`+recordColumns+`)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)
  `, rec.ID, rec.DraftID, rec.EmployeeID, rec.Name, rec.Department, rec.Position, rec.PayPeriod,
		rec.BaseSalary, rec.Allowances, rec.Overtime, rec.GrossPay, rec.Taxes, rec.SocialSecurity, rec.Pension, rec.OtherDeductions, rec.NetPay,
		rec.BankAccount, rec.PayDate, string(rec.PaymentStatus), employeeApproval, financeApproval, rec.ProcessedBy, rec.Version,
		rec.CreatedAt, rec.UpdatedAt)
	return err
}

func (s *Store) GetRecord(ctx context.Context, recordID string) (Record, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+recordColumns+` FROM payroll_records WHERE id = $1`, recordID)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, recordID)
	}
	return rec, err
}

func (s *Store) ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM payroll_records WHERE 1=1`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND payment_status = $%d", len(args))
	}
	if filter.PayPeriod != "" {
		args = append(args, filter.PayPeriod)
		query += fmt.Sprintf(" AND pay_period = $%d", len(args))
	}
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		query += fmt.Sprintf(" AND employee_id = $%d", len(args))
	}
	query += " ORDER BY pay_period DESC, name, id"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveRecord only rewrites the mutable lifecycle columns.
func (s *Store) SaveRecord(ctx context.Context, rec Record) (Record, error) {
	employeeApproval, financeApproval, err := encodeApprovals(rec)
	if err != nil {
		return Record{}, err
	}
	var version int
	err = s.DB.QueryRow(ctx, `
    UPDATE payroll_records
    SET payment_status = $3, employee_approval = $4, finance_approval = $5, bank_account = $6, pay_date = $7,
        updated_at = $8, version = version + 1
    WHERE id = $1 AND version = $2
    RETURNING version
  `, rec.ID, rec.Version, string(rec.PaymentStatus), employeeApproval, financeApproval, rec.BankAccount, rec.PayDate, rec.UpdatedAt).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := s.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payroll_records WHERE id = $1)`, rec.ID).Scan(&exists); err != nil {
			return Record{}, err
		}
		if !exists {
			return Record{}, fmt.Errorf("%w: %s", ErrNotFound, rec.ID)
		}
		return Record{}, fmt.Errorf("%w: %s", ErrConcurrentModification, rec.ID)
	}
	if err != nil {
		return Record{}, err
	}
	rec.Version = version
	return rec, nil
}

func encodeDraft(draft Draft) ([]byte, []byte, []byte, error) {
	employees, err := json.Marshal(draft.Employees)
	if err != nil {
		return nil, nil, nil, err
	}
	components, err := json.Marshal(draft.PaymentComponents)
	if err != nil {
		return nil, nil, nil, err
	}
	deductions, err := json.Marshal(draft.Deductions)
	if err != nil {
		return nil, nil, nil, err
	}
	return employees, components, deductions, nil
}

func encodeApprovals(rec Record) ([]byte, []byte, error) {
	employee, err := json.Marshal(rec.EmployeeApproval)
	if err != nil {
		return nil, nil, err
	}
	finance, err := json.Marshal(rec.FinanceApproval)
	if err != nil {
		return nil, nil, err
	}
	return employee, finance, nil
}

func scanDraft(row pgx.Row) (Draft, error) {
	var draft Draft
	var status string
	var employees, components, deductions []byte
	if err := row.Scan(&draft.ID, &draft.PayPeriod, &employees, &components, &deductions, &status, &draft.CreatedBy, &draft.CreatedAt, &draft.UpdatedAt); err != nil {
		return Draft{}, err
	}
	draft.Status = DraftStatus(status)
	if err := json.Unmarshal(employees, &draft.Employees); err != nil {
		return Draft{}, err
	}
	if err := json.Unmarshal(components, &draft.PaymentComponents); err != nil {
		return Draft{}, err
	}
	if err := json.Unmarshal(deductions, &draft.Deductions); err != nil {
		return Draft{}, err
	}
	return draft, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	var status string
	var employeeApproval, financeApproval []byte
	var payDate *time.Time
	if err := row.Scan(&rec.ID, &rec.DraftID, &rec.EmployeeID, &rec.Name, &rec.Department, &rec.Position, &rec.PayPeriod,
		&rec.BaseSalary, &rec.Allowances, &rec.Overtime, &rec.GrossPay, &rec.Taxes, &rec.SocialSecurity, &rec.Pension, &rec.OtherDeductions, &rec.NetPay,
		&rec.BankAccount, &payDate, &status, &employeeApproval, &financeApproval, &rec.ProcessedBy, &rec.Version,
		&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	rec.PayDate = payDate
	rec.PaymentStatus = PaymentStatus(status)
	if err := decodeApproval(employeeApproval, &rec.EmployeeApproval); err != nil {
		return Record{}, err
	}
	if err := decodeApproval(financeApproval, &rec.FinanceApproval); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func decodeApproval(raw []byte, out *Approval) error {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
