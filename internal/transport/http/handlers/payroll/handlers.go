package payrollhandler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/payroll"
	"hrpay/internal/requestctx"
	"hrpay/internal/transport/http/api"
	"hrpay/internal/transport/http/middleware"
)

type Handler struct {
	Lifecycle *payroll.Lifecycle
	Approvals *payroll.Coordinator
	Perms     middleware.PermissionChecker
	Logger    *zap.Logger
	// Idempotent wraps the approval endpoints when set.
	Idempotent func(http.Handler) http.Handler
}

func NewHandler(lifecycle *payroll.Lifecycle, approvals *payroll.Coordinator, perms middleware.PermissionChecker, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Lifecycle: lifecycle, Approvals: approvals, Perms: perms, Logger: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	idempotent := h.Idempotent
	if idempotent == nil {
		idempotent = func(next http.Handler) http.Handler { return next }
	}
	view := middleware.RequirePermission(auth.CapPayrollView, h.Perms)

	r.Route("/payroll", func(r chi.Router) {
		r.Use(middleware.RequireActor)

		r.With(view).Post("/tax/calculate", h.handleCalculateTax)
		r.With(view).Post("/end-of-service", h.handleEndOfService)

		// payroll.manage is enforced and audited by the lifecycle service.
		r.With(view).Get("/drafts", h.handleListDrafts)
		r.Post("/drafts", h.handleCreateDraft)
		r.Post("/drafts/process", h.handleProcessDrafts)
		r.With(view).Get("/drafts/{draftID}", h.handleGetDraft)
		r.Post("/drafts/{draftID}/ready", h.handleMarkDraftReady)

		r.With(view).Get("/records", h.handleListRecords)
		r.With(idempotent).Post("/records/finance-approval/batch", h.handleBatchFinanceApproval)
		r.With(view).Get("/records/{recordID}", h.handleGetRecord)
		r.With(view).Get("/records/{recordID}/payslip", h.handlePayslip)
		r.With(idempotent).Post("/records/{recordID}/employee-approval", h.handleEmployeeApproval)
		r.With(idempotent).Post("/records/{recordID}/finance-approval", h.handleFinanceApproval)
	})
}

// writeError is the single place domain errors become HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, payroll.ErrInvalidInput):
		api.Fail(w, http.StatusBadRequest, "invalid_input", err.Error(), requestID)
	case errors.Is(err, payroll.ErrPermissionDenied):
		api.Fail(w, http.StatusForbidden, "forbidden", err.Error(), requestID)
	case errors.Is(err, payroll.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "record_not_found", "payroll record not found", requestID)
	case errors.Is(err, payroll.ErrDraftNotFound):
		api.Fail(w, http.StatusNotFound, "draft_not_found", "payroll draft not found", requestID)
	case errors.Is(err, payroll.ErrInvalidTransition):
		api.Fail(w, http.StatusConflict, "invalid_transition", err.Error(), requestID)
	case errors.Is(err, payroll.ErrConcurrentModification):
		api.Fail(w, http.StatusConflict, "concurrent_modification", "record was modified concurrently, retry the request", requestID)
	case errors.Is(err, payroll.ErrDuplicateRecord):
		api.Fail(w, http.StatusConflict, "duplicate_record", err.Error(), requestID)
	default:
		requestctx.Logger(r.Context(), h.Logger).Error("payroll request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", requestID)
	}
}

// seesAllRecords reports whether the actor may read other employees' pay.
func (h *Handler) seesAllRecords(r *http.Request, actor auth.Actor) (bool, error) {
	for _, capability := range []string{auth.CapPayrollManage, auth.CapFinanceApprove} {
		ok, err := h.Perms.HasPermission(r.Context(), actor, capability)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func actorFrom(r *http.Request) auth.Actor {
	actor, _ := auth.ActorFrom(r.Context())
	return actor
}
