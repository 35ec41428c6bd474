package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-ai/inkwell/internal/approval"
	"github.com/inkwell-ai/inkwell/pkg/types"
)

// RespondApprovalRequest is the body for POST /approval/{requestID}/respond.
type RespondApprovalRequest struct {
	UserID   string `json:"userID"`
	Approved bool   `json:"approved"`
	Feedback string `json:"feedback,omitempty"`
}

// respondApproval handles the notification sink's decision callback.
func (s *Server) respondApproval(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	var req RespondApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	resolution, err := s.approvals.Respond(requestID, req.UserID, req.Approved, req.Feedback)
	if err != nil {
		switch {
		case errors.Is(err, approval.ErrNotFound):
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "approval request not found")
		case errors.Is(err, approval.ErrExpired):
			writeError(w, http.StatusGone, ErrCodeExpired, "approval request expired")
		case errors.Is(err, approval.ErrAlreadyResolved):
			writeError(w, http.StatusConflict, ErrCodeAlreadyResolved, "approval request already resolved")
		default:
			writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, resolution)
}

// listPendingApprovals handles GET /approval/pending.
func (s *Server) listPendingApprovals(w http.ResponseWriter, r *http.Request) {
	reqs := s.approvals.PendingRequests()
	if reqs == nil {
		reqs = []types.ApprovalRequest{}
	}
	writeJSON(w, http.StatusOK, reqs)
}

// getApproval handles GET /approval/{requestID}.
func (s *Server) getApproval(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	req, err := s.approvals.Get(r.Context(), requestID)
	if err != nil {
		if errors.Is(err, approval.ErrNotFound) {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "approval request not found")
			return
		}
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, req)
}
