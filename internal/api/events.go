package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rendis/flowlens/internal/logging"
	"github.com/rendis/flowlens/internal/streaming"
)

// handleEvents streams change events for one workflow as server-sent events
// until the client disconnects or the hub closes.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetWorkflow(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}

	events, cancel, err := s.events.Subscribe(r.Context(), streaming.Filter{WorkflowID: id})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	defer cancel()

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func (s *Server) publish(r *http.Request, workflowID, eventType string, payload any) {
	err := s.events.Publish(r.Context(), streaming.Event{
		WorkflowID: workflowID,
		Type:       eventType,
		Payload:    payload,
	})
	if err != nil {
		logging.LogWith(r.Context(), s.logger).Debug("event dropped", "type", eventType, "error", err)
	}
}
