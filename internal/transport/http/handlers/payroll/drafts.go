package payrollhandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrpay/internal/domain/payroll"
	"hrpay/internal/transport/http/api"
	"hrpay/internal/transport/http/middleware"
	"hrpay/internal/transport/http/shared"
)

type processRequest struct {
	DraftIDs []string `json:"draftIds" validate:"dive,required"`
}

func (h *Handler) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	drafts, err := h.Lifecycle.ListDrafts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if drafts == nil {
		drafts = []payroll.Draft{}
	}
	api.Success(w, drafts, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var req payroll.DraftInput
	if !shared.DecodeAndValidate(w, r, &req, requestID) {
		return
	}
	draft, err := h.Lifecycle.CreateDraft(r.Context(), actorFrom(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.Created(w, draft, requestID)
}

func (h *Handler) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := h.Lifecycle.GetDraft(r.Context(), chi.URLParam(r, "draftID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.Success(w, draft, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMarkDraftReady(w http.ResponseWriter, r *http.Request) {
	draft, err := h.Lifecycle.MarkDraftReady(r.Context(), actorFrom(r), chi.URLParam(r, "draftID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.Success(w, draft, middleware.GetRequestID(r.Context()))
}

// handleProcessDrafts reports converted records even when a later draft
// failed, so the caller can see what was persisted.
func (h *Handler) handleProcessDrafts(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var req processRequest
	if !shared.DecodeAndValidate(w, r, &req, requestID) {
		return
	}
	result, err := h.Lifecycle.ProcessDrafts(r.Context(), actorFrom(r), req.DraftIDs)
	if err != nil {
		if len(result.Processed) > 0 {
			api.WriteJSON(w, http.StatusConflict, api.Envelope{
				Success:   false,
				Data:      result,
				Error:     &api.Error{Code: "partially_processed", Message: err.Error()},
				RequestID: requestID,
			})
			return
		}
		h.writeError(w, r, err)
		return
	}
	api.Success(w, result, requestID)
}
