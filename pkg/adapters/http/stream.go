package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/topolab/internal/logging"
	"github.com/aretw0/topolab/pkg/domain"
	"github.com/aretw0/topolab/pkg/ports"
	"github.com/go-chi/chi/v5"
)

// StreamManager handles active SSE connections, one set of subscribers per project.
// It is an EventPublisher: the controller publishes into it and the
// notification handler drains it.
type StreamManager struct {
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // ProjectID -> Set of Channels
}

var _ ports.EventPublisher = (*StreamManager)(nil)

// NewStreamManager creates an empty manager. A nil logger discards.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		logger:      logger,
		subscribers: make(map[string]map[chan<- string]struct{}),
	}
}

// Subscribe registers a listener for a project. The returned func unregisters it.
func (sm *StreamManager) Subscribe(projectID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[projectID]; !ok {
		sm.subscribers[projectID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[projectID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[projectID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, projectID)
			}
		}
	}
}

// Broadcast sends msg to every listener of a project. Slow listeners miss it.
func (sm *StreamManager) Broadcast(projectID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[projectID] {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("SSE: Client buffer full, dropping message", "project_id", projectID)
		}
	}
}

// Publish broadcasts the event as JSON to the listeners of its project.
func (sm *StreamManager) Publish(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	sm.Broadcast(event.ProjectID, string(data))
	return nil
}

// SubscribeEvents handles GET /v2/projects/{project_id}/notifications (SSE).
// The optional "actions" query parameter filters by action prefix, e.g. "node,link".
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.Logger.Error("SubscribeEvents: Streaming not supported")
		return
	}
	if _, ok := s.project(w, r); !ok {
		return
	}
	projectID := chi.URLParam(r, "project_id")

	var filters []string
	if v := r.URL.Query().Get("actions"); v != "" {
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				filters = append(filters, f)
			}
		}
	}

	ch, cancel := s.Streams.Subscribe(projectID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.Logger.Info("SSE: Subscribing to project notifications", "project_id", projectID)

	for {
		select {
		case <-r.Context().Done():
			s.Logger.Info("SSE Client Disconnected", "project_id", projectID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(filters) > 0 && !matches(msg, filters) {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func matches(msg string, filters []string) bool {
	var event domain.Event
	if err := json.Unmarshal([]byte(msg), &event); err != nil {
		return true
	}
	for _, f := range filters {
		if strings.HasPrefix(string(event.Action), f) {
			return true
		}
	}
	return false
}
