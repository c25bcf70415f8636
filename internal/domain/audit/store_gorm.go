package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type eventRow struct {
	ID        string `gorm:"primaryKey"`
	EventType string `gorm:"index;not null"`
	Domain    string `gorm:"index;not null"`
	ActorID   string `gorm:"column:actor_user_id;index"`
	EntityID  string
	RequestID string
	Payload   map[string]any `gorm:"type:text;serializer:json"`
	CreatedAt time.Time      `gorm:"index;autoCreateTime:false"`
}

func (eventRow) TableName() string {
	return "audit_events"
}

// GormStore keeps audit events in the embedded sqlite database.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&eventRow{}); err != nil {
		return nil, err
	}
	return &GormStore{DB: db}, nil
}

func (s *GormStore) Record(ctx context.Context, evt Event) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}
	row := eventRow{
		ID:        evt.ID,
		EventType: evt.Type,
		Domain:    evt.Domain,
		ActorID:   evt.ActorID,
		EntityID:  evt.EntityID,
		RequestID: evt.RequestID,
		Payload:   evt.Payload,
		CreatedAt: evt.CreatedAt,
	}
	return s.DB.WithContext(ctx).Create(&row).Error
}

func (s *GormStore) Count(ctx context.Context, filter Filter) (int, error) {
	var total int64
	if err := s.scoped(ctx, filter).Model(&eventRow{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return int(total), nil
}

func (s *GormStore) List(ctx context.Context, filter Filter, limit, offset int) ([]Event, error) {
	var rows []eventRow
	q := s.scoped(ctx, filter).Order("created_at DESC").Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(rows))
	for _, row := range rows {
		out = append(out, Event{
			ID:        row.ID,
			Type:      row.EventType,
			Domain:    row.Domain,
			ActorID:   row.ActorID,
			EntityID:  row.EntityID,
			RequestID: row.RequestID,
			Payload:   row.Payload,
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

func (s *GormStore) scoped(ctx context.Context, filter Filter) *gorm.DB {
	q := s.DB.WithContext(ctx)
	if filter.Type != "" {
		q = q.Where("event_type = ?", filter.Type)
	}
	if filter.Domain != "" {
		q = q.Where("domain = ?", filter.Domain)
	}
	if filter.ActorUser != "" {
		q = q.Where("actor_user_id = ?", filter.ActorUser)
	}
	return q
}
