package audit

import (
	"context"

	"go.uber.org/zap"
)

type ZapSink struct {
	logger *zap.Logger
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapSink{logger: logger.Named("audit")}
}

func (s *ZapSink) Record(_ context.Context, evt Event) error {
	s.logger.Info("audit event",
		zap.String("type", evt.Type),
		zap.String("domain", evt.Domain),
		zap.String("actorId", evt.ActorID),
		zap.String("entityId", evt.EntityID),
		zap.String("requestId", evt.RequestID),
		zap.Any("payload", evt.Payload),
		zap.Time("createdAt", evt.CreatedAt),
	)
	return nil
}
