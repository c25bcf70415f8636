package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hrpay/internal/domain/audit"
	"hrpay/internal/domain/auth"
	"hrpay/internal/requestctx"
)

type PermissionChecker interface {
	HasPermission(ctx context.Context, actor auth.Actor, capability string) (bool, error)
}

type AuditLogger interface {
	Record(ctx context.Context, evt audit.Event) error
}

type settings struct {
	now            func() time.Time
	newID          func() string
	logger         *zap.Logger
	payDateOffset  time.Duration
	ownershipCheck bool
}

type Option func(*settings)

func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *settings) { s.newID = newID }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithPayDateOffset(offset time.Duration) Option {
	return func(s *settings) { s.payDateOffset = offset }
}

// WithOwnershipCheck controls whether employee approval is restricted to the
// record's own employee. Holders of payroll.manage are always allowed.
func WithOwnershipCheck(enabled bool) Option {
	return func(s *settings) { s.ownershipCheck = enabled }
}

func newSettings(opts []Option) settings {
	s := settings{
		now:            func() time.Time { return time.Now().UTC() },
		newID:          uuid.NewString,
		logger:         zap.NewNop(),
		payDateOffset:  DefaultPayDateOffset,
		ownershipCheck: true,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// guard owns the permission and audit collaborators shared by the lifecycle
// and approval services.
type guard struct {
	perms  PermissionChecker
	audit  AuditLogger
	logger *zap.Logger
	now    func() time.Time
}

func (g guard) can(ctx context.Context, actor auth.Actor, capability string) (bool, error) {
	if g.perms == nil {
		return false, nil
	}
	ok, err := g.perms.HasPermission(ctx, actor, capability)
	if err != nil {
		return false, fmt.Errorf("check permission %s: %w", capability, err)
	}
	return ok, nil
}

// require passes when the actor holds the capability; otherwise it records one
// unauthorized attempt and returns ErrPermissionDenied.
func (g guard) require(ctx context.Context, actor auth.Actor, capability, action, entityID string) error {
	ok, err := g.can(ctx, actor, capability)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return g.deny(ctx, actor, capability, action, entityID)
}

func (g guard) deny(ctx context.Context, actor auth.Actor, capability, action, entityID string) error {
	g.record(ctx, actor, EventUnauthorizedAttempt, entityID, map[string]any{
		"action":     action,
		"capability": capability,
		"role":       actor.Role,
	})
	return fmt.Errorf("%w: %s requires %s", ErrPermissionDenied, action, capability)
}

// record never fails the calling operation; a sink error is logged.
func (g guard) record(ctx context.Context, actor auth.Actor, eventType, entityID string, payload map[string]any) {
	if g.audit == nil {
		return
	}
	evt := audit.Event{
		Type:      eventType,
		Domain:    AuditDomain,
		ActorID:   actor.UserID,
		EntityID:  entityID,
		RequestID: requestctx.GetRequestID(ctx),
		Payload:   payload,
		CreatedAt: g.now(),
	}
	if err := g.audit.Record(ctx, evt); err != nil {
		requestctx.Logger(ctx, g.logger).Warn("audit record failed",
			zap.String("type", eventType),
			zap.String("entityId", entityID),
			zap.Error(err),
		)
	}
}
