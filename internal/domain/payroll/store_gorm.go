package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type draftRow struct {
	ID                string             `gorm:"primaryKey;type:varchar(64)"`
	PayPeriod         string             `gorm:"not null;index"`
	Employees         []SelectedEmployee `gorm:"type:text;serializer:json"`
	PaymentComponents Allowances         `gorm:"type:text;serializer:json"`
	Deductions        DeductionConfig    `gorm:"type:text;serializer:json"`
	Status            string             `gorm:"type:varchar(32);not null"`
	CreatedBy         string
	CreatedAt         time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime:false"`
}

func (draftRow) TableName() string {
	return "payroll_drafts"
}

type recordRow struct {
	ID               string `gorm:"primaryKey;type:varchar(64)"`
	DraftID          string `gorm:"index"`
	EmployeeID       string `gorm:"not null;uniqueIndex:idx_payroll_employee_period"`
	Name             string
	Department       string
	Position         string
	PayPeriod        string `gorm:"not null;uniqueIndex:idx_payroll_employee_period"`
	BaseSalary       float64
	Allowances       float64
	Overtime         float64
	GrossPay         float64
	Taxes            float64
	SocialSecurity   float64
	Pension          float64
	OtherDeductions  float64
	NetPay           float64
	BankAccount      string
	PayDate          *time.Time
	PaymentStatus    string   `gorm:"type:varchar(32);not null;index"`
	EmployeeApproval Approval `gorm:"type:text;serializer:json"`
	FinanceApproval  Approval `gorm:"type:text;serializer:json"`
	ProcessedBy      string
	Version          int       `gorm:"not null"`
	CreatedAt        time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime:false"`
}

func (recordRow) TableName() string {
	return "payroll_records"
}

// GormStore is the embedded SQLite repository used for local runs.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&draftRow{}, &recordRow{}); err != nil {
		return nil, fmt.Errorf("auto-migrate payroll tables: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) CreateDraft(ctx context.Context, draft Draft) error {
	row := toDraftRow(draft)
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *GormStore) GetDraft(ctx context.Context, draftID string) (Draft, error) {
	var row draftRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", draftID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Draft{}, fmt.Errorf("%w: %s", ErrDraftNotFound, draftID)
	}
	if err != nil {
		return Draft{}, err
	}
	return row.toDraft(), nil
}

func (s *GormStore) ListDrafts(ctx context.Context) ([]Draft, error) {
	var rows []draftRow
	if err := s.db.WithContext(ctx).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	drafts := make([]Draft, 0, len(rows))
	for _, row := range rows {
		drafts = append(drafts, row.toDraft())
	}
	return drafts, nil
}

func (s *GormStore) SaveDraft(ctx context.Context, draft Draft) error {
	row := toDraftRow(draft)
	res := s.db.WithContext(ctx).Model(&draftRow{}).Where("id = ?", draft.ID).
		Select("pay_period", "employees", "payment_components", "deductions", "status", "updated_at").
		Updates(&row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrDraftNotFound, draft.ID)
	}
	return nil
}

func (s *GormStore) ConvertDraft(ctx context.Context, draftID string, records []Record) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rec := range records {
			var existing int64
			if err := tx.Model(&recordRow{}).
				Where("employee_id = ? AND pay_period = ?", rec.EmployeeID, rec.PayPeriod).
				Count(&existing).Error; err != nil {
				return err
			}
			if existing > 0 {
				return fmt.Errorf("%w: employee %s period %s", ErrDuplicateRecord, rec.EmployeeID, rec.PayPeriod)
			}
			row := toRecordRow(rec)
			if err := tx.Create(&row).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return fmt.Errorf("%w: employee %s period %s", ErrDuplicateRecord, rec.EmployeeID, rec.PayPeriod)
				}
				return err
			}
		}
		res := tx.Delete(&draftRow{}, "id = ?", draftID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrDraftNotFound, draftID)
		}
		return nil
	})
}

func (s *GormStore) GetRecord(ctx context.Context, recordID string) (Record, error) {
	var row recordRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", recordID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, recordID)
	}
	if err != nil {
		return Record{}, err
	}
	return row.toRecord(), nil
}

func (s *GormStore) ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error) {
	query := s.db.WithContext(ctx).Model(&recordRow{})
	if filter.Status != "" {
		query = query.Where("payment_status = ?", string(filter.Status))
	}
	if filter.PayPeriod != "" {
		query = query.Where("pay_period = ?", filter.PayPeriod)
	}
	if filter.EmployeeID != "" {
		query = query.Where("employee_id = ?", filter.EmployeeID)
	}
	var rows []recordRow
	if err := query.Order("pay_period DESC, name, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toRecord())
	}
	return records, nil
}

func (s *GormStore) SaveRecord(ctx context.Context, rec Record) (Record, error) {
	row := toRecordRow(rec)
	row.Version = rec.Version + 1
	res := s.db.WithContext(ctx).Model(&recordRow{}).
		Where("id = ? AND version = ?", rec.ID, rec.Version).
		Select("payment_status", "employee_approval", "finance_approval", "bank_account", "pay_date", "updated_at", "version").
		Updates(&row)
	if res.Error != nil {
		return Record{}, res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&recordRow{}).Where("id = ?", rec.ID).Count(&count).Error; err != nil {
			return Record{}, err
		}
		if count == 0 {
			return Record{}, fmt.Errorf("%w: %s", ErrNotFound, rec.ID)
		}
		return Record{}, fmt.Errorf("%w: %s", ErrConcurrentModification, rec.ID)
	}
	rec.Version++
	return rec, nil
}

func toDraftRow(d Draft) draftRow {
	return draftRow{
		ID:                d.ID,
		PayPeriod:         d.PayPeriod,
		Employees:         d.Employees,
		PaymentComponents: d.PaymentComponents,
		Deductions:        d.Deductions,
		Status:            string(d.Status),
		CreatedBy:         d.CreatedBy,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

func (r draftRow) toDraft() Draft {
	return Draft{
		ID:                r.ID,
		PayPeriod:         r.PayPeriod,
		Employees:         r.Employees,
		PaymentComponents: r.PaymentComponents,
		Deductions:        r.Deductions,
		Status:            DraftStatus(r.Status),
		CreatedBy:         r.CreatedBy,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func toRecordRow(rec Record) recordRow {
	return recordRow{
		ID:               rec.ID,
		DraftID:          rec.DraftID,
		EmployeeID:       rec.EmployeeID,
		Name:             rec.Name,
		Department:       rec.Department,
		Position:         rec.Position,
		PayPeriod:        rec.PayPeriod,
		BaseSalary:       rec.BaseSalary,
		Allowances:       rec.Allowances,
		Overtime:         rec.Overtime,
		GrossPay:         rec.GrossPay,
		Taxes:            rec.Taxes,
		SocialSecurity:   rec.SocialSecurity,
		Pension:          rec.Pension,
		OtherDeductions:  rec.OtherDeductions,
		NetPay:           rec.NetPay,
		BankAccount:      rec.BankAccount,
		PayDate:          rec.PayDate,
		PaymentStatus:    string(rec.PaymentStatus),
		EmployeeApproval: rec.EmployeeApproval,
		FinanceApproval:  rec.FinanceApproval,
		ProcessedBy:      rec.ProcessedBy,
		Version:          rec.Version,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}
}

func (r recordRow) toRecord() Record {
	return Record{
		ID:               r.ID,
		DraftID:          r.DraftID,
		EmployeeID:       r.EmployeeID,
		Name:             r.Name,
		Department:       r.Department,
		Position:         r.Position,
		PayPeriod:        r.PayPeriod,
		BaseSalary:       r.BaseSalary,
		Allowances:       r.Allowances,
		Overtime:         r.Overtime,
		GrossPay:         r.GrossPay,
		Taxes:            r.Taxes,
		SocialSecurity:   r.SocialSecurity,
		Pension:          r.Pension,
		OtherDeductions:  r.OtherDeductions,
		NetPay:           r.NetPay,
		BankAccount:      r.BankAccount,
		PayDate:          r.PayDate,
		PaymentStatus:    PaymentStatus(r.PaymentStatus),
		EmployeeApproval: r.EmployeeApproval,
		FinanceApproval:  r.FinanceApproval,
		ProcessedBy:      r.ProcessedBy,
		Version:          r.Version,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}
