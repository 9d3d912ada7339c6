package testutils

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aretw0/topolab/pkg/compute"
	"github.com/go-chi/chi/v5"
)

// Agent is a compute agent served over HTTP for end-to-end tests. It accepts
// every call, hands out console and UDP ports, and records the requests.
type Agent struct {
	Server *httptest.Server

	mu       sync.Mutex
	requests []string
	next     int
}

// NewAgent starts an Agent that is shut down with the test.
func NewAgent(t *testing.T) *Agent {
	t.Helper()
	a := &Agent{next: 5000}

	r := chi.NewRouter()
	r.Route(compute.APIPrefix, func(r chi.Router) {
		r.Use(a.record)
		r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"version": "2.2.0"})
		})
		r.Post("/projects/{project_id}/{node_type}/nodes", func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			body["console"] = a.port()
			writeJSON(w, http.StatusCreated, body)
		})
		r.Post("/projects/{project_id}/ports/udp", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusCreated, map[string]any{"udp_port": a.port()})
		})
		r.HandleFunc("/*", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{})
		})
	})

	a.Server = httptest.NewServer(r)
	t.Cleanup(a.Server.Close)
	return a
}

// Connection returns the descriptor a compute proxy needs to reach the agent.
func (a *Agent) Connection() compute.Connection {
	host, port, _ := net.SplitHostPort(strings.TrimPrefix(a.Server.URL, "http://"))
	p, _ := strconv.Atoi(port)
	return compute.Connection{Protocol: "http", Host: host, Port: p}
}

// Requests lists the received requests as "METHOD path", path relative to the API prefix.
func (a *Agent) Requests() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.requests...)
}

func (a *Agent) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.requests = append(a.requests, r.Method+" "+strings.TrimPrefix(r.URL.Path, compute.APIPrefix))
		a.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (a *Agent) port() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next++
	return a.next
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
