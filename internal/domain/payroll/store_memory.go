package payroll

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type MemoryStore struct {
	mu      sync.RWMutex
	drafts  map[string]Draft
	records map[string]Record
	// employee id + pay period -> record id
	periods map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		drafts:  map[string]Draft{},
		records: map[string]Record{},
		periods: map[string]string{},
	}
}

func periodKey(employeeID, payPeriod string) string {
	return employeeID + "|" + payPeriod
}

func (s *MemoryStore) CreateDraft(_ context.Context, draft Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.drafts[draft.ID]; ok {
		return fmt.Errorf("%w: draft %s already exists", ErrInvalidInput, draft.ID)
	}
	s.drafts[draft.ID] = cloneDraft(draft)
	return nil
}

func (s *MemoryStore) GetDraft(_ context.Context, draftID string) (Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	draft, ok := s.drafts[draftID]
	if !ok {
		return Draft{}, fmt.Errorf("%w: %s", ErrDraftNotFound, draftID)
	}
	return cloneDraft(draft), nil
}

func (s *MemoryStore) ListDrafts(_ context.Context) ([]Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Draft, 0, len(s.drafts))
	for _, d := range s.drafts {
		out = append(out, cloneDraft(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) SaveDraft(_ context.Context, draft Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.drafts[draft.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrDraftNotFound, draft.ID)
	}
	s.drafts[draft.ID] = cloneDraft(draft)
	return nil
}

func (s *MemoryStore) ConvertDraft(_ context.Context, draftID string, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.drafts[draftID]; !ok {
		return fmt.Errorf("%w: %s", ErrDraftNotFound, draftID)
	}
	seen := map[string]bool{}
	for _, rec := range records {
		key := periodKey(rec.EmployeeID, rec.PayPeriod)
		if _, taken := s.periods[key]; taken || seen[key] {
			return fmt.Errorf("%w: employee %s period %s", ErrDuplicateRecord, rec.EmployeeID, rec.PayPeriod)
		}
		seen[key] = true
	}
	for _, rec := range records {
		s.records[rec.ID] = rec
		s.periods[periodKey(rec.EmployeeID, rec.PayPeriod)] = rec.ID
	}
	delete(s.drafts, draftID)
	return nil
}

func (s *MemoryStore) GetRecord(_ context.Context, recordID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[recordID]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, recordID)
	}
	return rec, nil
}

func (s *MemoryStore) ListRecords(_ context.Context, filter RecordFilter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, rec := range s.records {
		if filter.Matches(rec) {
			out = append(out, rec)
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *MemoryStore) SaveRecord(_ context.Context, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[rec.ID]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, rec.ID)
	}
	if current.Version != rec.Version {
		return Record{}, fmt.Errorf("%w: %s expected version %d, found %d", ErrConcurrentModification, rec.ID, rec.Version, current.Version)
	}
	rec.Version++
	s.records[rec.ID] = rec
	return rec, nil
}

func cloneDraft(d Draft) Draft {
	d.Employees = append([]SelectedEmployee(nil), d.Employees...)
	return d
}

func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].PayPeriod != records[j].PayPeriod {
			return records[i].PayPeriod > records[j].PayPeriod
		}
		if records[i].Name != records[j].Name {
			return records[i].Name < records[j].Name
		}
		return records[i].ID < records[j].ID
	})
}
