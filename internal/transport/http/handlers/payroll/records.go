package payrollhandler

import (
	"bytes"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"hrpay/internal/domain/payroll"
	"hrpay/internal/transport/http/api"
	"hrpay/internal/transport/http/middleware"
	"hrpay/internal/transport/http/shared"
)

type approvalRequest struct {
	Decision string `json:"decision" validate:"required,oneof=Approved Rejected"`
	Notes    string `json:"notes" validate:"max=1000"`
}

type batchApprovalRequest struct {
	RecordIDs []string `json:"recordIds" validate:"required,min=1,max=500,dive,required"`
	Decision  string   `json:"decision" validate:"required,oneof=Approved Rejected"`
	Notes     string   `json:"notes" validate:"max=1000"`
}

func (h *Handler) handleListRecords(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := payroll.RecordFilter{
		PayPeriod:  query.Get("payPeriod"),
		EmployeeID: query.Get("employeeId"),
	}
	if raw := query.Get("status"); raw != "" {
		status, err := payroll.ParsePaymentStatus(raw)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		filter.Status = status
	}

	actor := actorFrom(r)
	all, err := h.seesAllRecords(r, actor)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !all {
		// An actor without a linked employee owns no records.
		if actor.EmployeeID == "" {
			api.SuccessWithTotal(w, []payroll.Record{}, 0, middleware.GetRequestID(r.Context()))
			return
		}
		filter.EmployeeID = actor.EmployeeID
	}

	records, err := h.Lifecycle.ListRecords(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if records == nil {
		records = []payroll.Record{}
	}
	page := shared.ParsePagination(r, 100, 500)
	api.SuccessWithTotal(w, shared.Window(records, page), len(records), middleware.GetRequestID(r.Context()))
}

// loadVisibleRecord fetches a record the actor is allowed to read. Records
// outside the actor's scope are reported as missing so record ids cannot be enumerated.
func (h *Handler) loadVisibleRecord(w http.ResponseWriter, r *http.Request) (payroll.Record, bool) {
	rec, err := h.Lifecycle.GetRecord(r.Context(), chi.URLParam(r, "recordID"))
	if err != nil {
		h.writeError(w, r, err)
		return payroll.Record{}, false
	}
	actor := actorFrom(r)
	if actor.EmployeeID != "" && actor.EmployeeID == rec.EmployeeID {
		return rec, true
	}
	all, err := h.seesAllRecords(r, actor)
	if err != nil {
		h.writeError(w, r, err)
		return payroll.Record{}, false
	}
	if !all {
		h.writeError(w, r, payroll.ErrNotFound)
		return payroll.Record{}, false
	}
	return rec, true
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadVisibleRecord(w, r)
	if !ok {
		return
	}
	api.Success(w, rec, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePayslip(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadVisibleRecord(w, r)
	if !ok {
		return
	}
	filename := "payslip-" + rec.EmployeeID + "-" + rec.PayPeriod

	switch format := r.URL.Query().Get("format"); format {
	case "", "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", "attachment; filename="+filename+".txt")
		_, _ = w.Write([]byte(payroll.RenderPayslipText(rec)))
	case "pdf":
		var buf bytes.Buffer
		if err := payroll.WritePayslipPDF(&buf, rec); err != nil {
			h.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", "attachment; filename="+filename+".pdf")
		if _, err := w.Write(buf.Bytes()); err != nil {
			h.Logger.Warn("payslip write failed", zap.Error(err))
		}
	default:
		api.Fail(w, http.StatusBadRequest, "invalid_format", "format must be text or pdf", middleware.GetRequestID(r.Context()))
	}
}

func (h *Handler) handleEmployeeApproval(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var req approvalRequest
	if !shared.DecodeAndValidate(w, r, &req, requestID) {
		return
	}
	rec, err := h.Approvals.EmployeeApprove(r.Context(), actorFrom(r), chi.URLParam(r, "recordID"), payroll.ApprovalStatus(req.Decision), req.Notes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.Success(w, rec, requestID)
}

func (h *Handler) handleFinanceApproval(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var req approvalRequest
	if !shared.DecodeAndValidate(w, r, &req, requestID) {
		return
	}
	rec, err := h.Approvals.FinanceApprove(r.Context(), actorFrom(r), chi.URLParam(r, "recordID"), payroll.ApprovalStatus(req.Decision), req.Notes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.Success(w, rec, requestID)
}

func (h *Handler) handleBatchFinanceApproval(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var req batchApprovalRequest
	if !shared.DecodeAndValidate(w, r, &req, requestID) {
		return
	}
	result, err := h.Approvals.BatchFinanceApprove(r.Context(), actorFrom(r), req.RecordIDs, payroll.ApprovalStatus(req.Decision), req.Notes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.Success(w, result, requestID)
}
