package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-ai/inkwell/internal/document"
	"github.com/inkwell-ai/inkwell/pkg/types"
)

// CreateDocumentRequest is the body for POST /document.
type CreateDocumentRequest struct {
	ID      string `json:"id,omitempty"`
	Content string `json:"content"`
	ActorID string `json:"actorID"`
}

// createDocument handles POST /document.
func (s *Server) createDocument(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	state, err := s.documents.Create(r.Context(), req.ID, req.Content, req.ActorID)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

// getDocument handles GET /document/{docID}.
func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	state, err := s.documents.GetState(r.Context(), docID)
	if err != nil {
		if errors.Is(err, document.ErrDocumentNotFound) {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// submitChange handles POST /document/{docID}/change: a collaborator edit
// routed through conflict resolution and apply.
func (s *Server) submitChange(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")

	var change types.DocumentChange
	if err := json.NewDecoder(r.Body).Decode(&change); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}
	change.DocumentID = docID
	if change.Source == "" {
		change.Source = types.SourceHuman
	}
	if change.Timestamp.IsZero() {
		change.Timestamp = time.Now()
	}
	if change.ActorID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "actorID is required")
		return
	}

	state, err := s.documents.Apply(r.Context(), change)
	if err != nil {
		switch {
		case errors.Is(err, document.ErrConflictUnresolvable):
			writeErrorWithDetails(w, http.StatusConflict, ErrCodeConflictUnresolvable,
				"change could not be merged; refetch current state and resubmit",
				map[string]any{"documentID": docID, "position": change.Position})
		case errors.Is(err, document.ErrDocumentNotFound):
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "document not found")
		default:
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// RevertRequest is the body for POST /document/{docID}/revert.
type RevertRequest struct {
	Version int64  `json:"version"`
	ActorID string `json:"actorID"`
}

// revertDocument handles POST /document/{docID}/revert.
func (s *Server) revertDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")

	var req RevertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	state, err := s.documents.RevertToVersion(r.Context(), docID, req.Version, req.ActorID)
	if err != nil {
		if errors.Is(err, document.ErrDocumentNotFound) {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "document not found")
			return
		}
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// listSnapshots handles GET /document/{docID}/snapshots.
func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	snaps, err := s.documents.ListSnapshots(r.Context(), docID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	if snaps == nil {
		snaps = []types.DocumentSnapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}
