package reportshandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"hrpay/internal/domain/auth"
	"hrpay/internal/domain/reports"
	"hrpay/internal/requestctx"
	"hrpay/internal/transport/http/api"
	"hrpay/internal/transport/http/middleware"
)

type Handler struct {
	Service *reports.Service
	Perms   middleware.PermissionChecker
	Logger  *zap.Logger
}

func NewHandler(service *reports.Service, perms middleware.PermissionChecker, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Service: service, Perms: perms, Logger: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireAnyPermission(h.Perms, auth.CapPayrollManage, auth.CapFinanceApprove)).
		Get("/reports/payroll-summary", h.handlePayrollSummary)
}

func (h *Handler) handlePayrollSummary(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	summaries, err := h.Service.PayrollSummary(r.Context(), r.URL.Query().Get("payPeriod"))
	if err != nil {
		requestctx.Logger(r.Context(), h.Logger).Error("payroll summary failed", zap.Error(err))
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to build payroll summary", requestID)
		return
	}
	api.Success(w, summaries, requestID)
}
