package audithandler

import (
	"encoding/csv"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"hrpay/internal/domain/audit"
	"hrpay/internal/domain/auth"
	"hrpay/internal/requestctx"
	"hrpay/internal/transport/http/api"
	"hrpay/internal/transport/http/middleware"
	"hrpay/internal/transport/http/shared"
)

const exportLimit = 10000

type Handler struct {
	Reader audit.Reader
	Perms  middleware.PermissionChecker
	Logger *zap.Logger
}

func NewHandler(reader audit.Reader, perms middleware.PermissionChecker, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Reader: reader, Perms: perms, Logger: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/audit", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.CapPayrollManage, h.Perms))
		r.Get("/events", h.handleListEvents)
		r.Get("/events/export", h.handleExportEvents)
	})
}

func filterFrom(r *http.Request) audit.Filter {
	q := r.URL.Query()
	return audit.Filter{
		Type:      q.Get("type"),
		Domain:    q.Get("domain"),
		ActorUser: q.Get("actorUserId"),
	}
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 100, 500)
	filter := filterFrom(r)

	total, err := h.Reader.Count(r.Context(), filter)
	if err != nil {
		requestctx.Logger(r.Context(), h.Logger).Error("audit count failed", zap.Error(err))
		api.Fail(w, http.StatusInternalServerError, "audit_list_failed", "failed to list audit events", requestID)
		return
	}
	events, err := h.Reader.List(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		requestctx.Logger(r.Context(), h.Logger).Error("audit list failed", zap.Error(err))
		api.Fail(w, http.StatusInternalServerError, "audit_list_failed", "failed to list audit events", requestID)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}

	api.SuccessWithTotal(w, events, total, requestID)
}

func (h *Handler) handleExportEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Reader.List(r.Context(), filterFrom(r), exportLimit, 0)
	if err != nil {
		h.Logger.Error("audit export failed", zap.Error(err))
		api.Fail(w, http.StatusInternalServerError, "audit_export_failed", "failed to export audit events", middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=audit-events.csv")
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "type", "domain", "actor_user_id", "entity_id", "request_id", "created_at"}); err != nil {
		h.Logger.Warn("audit export header failed", zap.Error(err))
	}
	for _, evt := range events {
		row := []string{evt.ID, evt.Type, evt.Domain, evt.ActorID, evt.EntityID, evt.RequestID, evt.CreatedAt.UTC().Format(time.RFC3339)}
		if err := writer.Write(row); err != nil {
			h.Logger.Warn("audit export row failed", zap.Error(err))
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		h.Logger.Warn("audit export flush failed", zap.Error(err))
	}
}
