package payrollhandler

import (
	"net/http"
	"time"

	"hrpay/internal/domain/payroll"
	"hrpay/internal/transport/http/api"
	"hrpay/internal/transport/http/middleware"
	"hrpay/internal/transport/http/shared"
)

type taxRequest struct {
	GrossSalary float64            `json:"grossSalary" validate:"gte=0"`
	Exemptions  payroll.Exemptions `json:"exemptions"`
}

type endOfServiceRequest struct {
	ServiceStart     string  `json:"serviceStart" validate:"required,datetime=2006-01-02"`
	ServiceEnd       string  `json:"serviceEnd" validate:"required,datetime=2006-01-02"`
	LastBasicSalary  float64 `json:"lastBasicSalary" validate:"gte=0"`
	AccruedLeaveDays float64 `json:"accruedLeaveDays" validate:"gte=0"`
	NoticePeriodDays float64 `json:"noticePeriodDays" validate:"gte=0"`
}

func (h *Handler) handleCalculateTax(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var req taxRequest
	if !shared.DecodeAndValidate(w, r, &req, requestID) {
		return
	}
	calc, err := payroll.ComputeTax(req.GrossSalary, req.Exemptions)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.Success(w, calc, requestID)
}

func (h *Handler) handleEndOfService(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var req endOfServiceRequest
	if !shared.DecodeAndValidate(w, r, &req, requestID) {
		return
	}
	start, _ := time.Parse(time.DateOnly, req.ServiceStart)
	end, _ := time.Parse(time.DateOnly, req.ServiceEnd)

	calc, err := payroll.ComputeEndOfService(payroll.EndOfServiceInput{
		ServiceStart:     start,
		ServiceEnd:       end,
		LastBasicSalary:  req.LastBasicSalary,
		AccruedLeaveDays: req.AccruedLeaveDays,
		NoticePeriodDays: req.NoticePeriodDays,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.Success(w, calc, requestID)
}
