package payroll

import "context"

// Repository persists drafts and records. SaveRecord treats rec.Version as the
// version the caller read; a mismatch with the stored row yields
// ErrConcurrentModification and a successful save bumps Version by one.
type Repository interface {
	CreateDraft(ctx context.Context, draft Draft) error
	GetDraft(ctx context.Context, draftID string) (Draft, error)
	ListDrafts(ctx context.Context) ([]Draft, error)
	SaveDraft(ctx context.Context, draft Draft) error
	// ConvertDraft inserts records and removes the draft in one unit.
	ConvertDraft(ctx context.Context, draftID string, records []Record) error

	GetRecord(ctx context.Context, recordID string) (Record, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]Record, error)
	SaveRecord(ctx context.Context, rec Record) (Record, error)
}
