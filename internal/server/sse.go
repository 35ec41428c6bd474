package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/inkwell-ai/inkwell/internal/event"
)

// StreamEvent is the wire envelope for streamed events.
type StreamEvent struct {
	Type       event.EventType `json:"type"`
	Properties any             `json:"properties"`
}

const (
	// sseHeartbeatInterval is the interval for SSE heartbeat comments.
	sseHeartbeatInterval = 30 * time.Second
)

// sseWriter wraps http.ResponseWriter for SSE.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	return &sseWriter{w: w, flusher: flusher, rc: http.NewResponseController(w)}, nil
}

func (s *sseWriter) writeEvent(data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: message\ndata: %s\n\n", payload); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil {
		s.flusher.Flush()
	}
	return nil
}

func (s *sseWriter) writeHeartbeat() {
	fmt.Fprintf(s.w, ": heartbeat\n\n")
	s.flusher.Flush()
}

// documentEvents handles GET /event?documentID=: the per-document stream a
// presentation surface subscribes to. Document change events arrive in the
// order Apply produced them.
func (s *Server) documentEvents(w http.ResponseWriter, r *http.Request) {
	docID := r.URL.Query().Get("documentID")
	if docID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "documentID required")
		return
	}
	s.streamEvents(w, r, func(e event.Event) bool {
		return eventDocumentID(e) == docID
	})
}

// globalEvents handles GET /global/event: every event, unfiltered.
func (s *Server) globalEvents(w http.ResponseWriter, r *http.Request) {
	s.streamEvents(w, r, func(event.Event) bool { return true })
}

// streamEvents runs one SSE connection until the client disconnects.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request, keep func(event.Event) bool) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
	sse.flusher.Flush()

	if err := sse.writeEvent(StreamEvent{Type: "server.connected", Properties: map[string]any{}}); err != nil {
		return
	}

	events := make(chan event.Event, 16)
	unsub := s.bus.SubscribeAll(func(e event.Event) {
		if !keep(e) {
			return
		}
		select {
		case events <- e:
		default:
			s.log.Warn().Str("eventType", string(e.Type)).Msg("SSE event dropped: channel full")
		}
	})
	defer unsub()

	ticker := time.NewTicker(sseHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-events:
			if err := sse.writeEvent(StreamEvent{Type: e.Type, Properties: e.Data}); err != nil {
				return
			}
		case <-ticker.C:
			sse.writeHeartbeat()
		}
	}
}

// eventDocumentID extracts the document id an event pertains to, or "".
func eventDocumentID(e event.Event) string {
	switch d := e.Data.(type) {
	case event.DocumentCreatedData:
		if d.State != nil {
			return d.State.ID
		}
	case event.DocumentChangeAppliedData:
		return d.DocumentID
	case event.DocumentRevertedData:
		return d.DocumentID
	case event.ApprovalRequestedData:
		return d.DocumentID
	}
	return ""
}
