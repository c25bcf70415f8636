package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) Record(ctx context.Context, evt Event) error {
	var payloadJSON []byte
	if evt.Payload != nil {
		payload, err := json.Marshal(evt.Payload)
		if err != nil {
			return err
		}
		payloadJSON = payload
	}

	_, err := s.DB.Exec(ctx, `
    INSERT INTO audit_events (event_type, domain, actor_user_id, entity_id, request_id, payload_json, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,COALESCE($7, now()))
  `, evt.Type, evt.Domain, evt.ActorID, evt.EntityID, evt.RequestID, payloadJSON, nullTime(evt))
	return err
}

func (s *Store) Count(ctx context.Context, filter Filter) (int, error) {
	query, args := s.buildBaseQuery("SELECT COUNT(1)", filter)
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) List(ctx context.Context, filter Filter, limit, offset int) ([]Event, error) {
	query, args := s.buildBaseQuery("SELECT id::text, event_type, domain, actor_user_id, entity_id, request_id, payload_json, created_at", filter)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var evt Event
		var payload []byte
		if err := rows.Scan(&evt.ID, &evt.Type, &evt.Domain, &evt.ActorID, &evt.EntityID, &evt.RequestID, &payload, &evt.CreatedAt); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &evt.Payload); err != nil {
				return nil, err
			}
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func (s *Store) buildBaseQuery(prefix string, filter Filter) (string, []any) {
	query := prefix + " FROM audit_events WHERE 1=1"
	var args []any
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND event_type = $%d", len(args))
	}
	if filter.Domain != "" {
		args = append(args, filter.Domain)
		query += fmt.Sprintf(" AND domain = $%d", len(args))
	}
	if filter.ActorUser != "" {
		args = append(args, filter.ActorUser)
		query += fmt.Sprintf(" AND actor_user_id = $%d", len(args))
	}
	return query, args
}

func nullTime(evt Event) any {
	if evt.CreatedAt.IsZero() {
		return nil
	}
	return evt.CreatedAt
}
