package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/aretw0/topolab/internal/logging"
	"github.com/aretw0/topolab/pkg/archive"
	"github.com/aretw0/topolab/pkg/compute"
	"github.com/aretw0/topolab/pkg/domain"
	"github.com/aretw0/topolab/pkg/topology"
	"github.com/go-chi/chi/v5"
)

// Controller is the part of the topolab controller exposed over HTTP.
type Controller interface {
	AddCompute(ctx context.Context, id string, conn compute.Connection) (*compute.Compute, error)
	Compute(id string) (*compute.Compute, error)
	Computes() []*compute.Compute
	CreateProject(ctx context.Context, name string) (*topology.Project, error)
	Project(ctx context.Context, id string) (*topology.Project, error)
	Projects(ctx context.Context) ([]domain.ProjectRecord, error)
	OpenProject(ctx context.Context, id string) (*topology.Project, error)
	CloseProject(ctx context.Context, id string) (*topology.Project, error)
	DeleteProject(ctx context.Context, id string) error
	ExportProject(ctx context.Context, id string, includeImages bool) (*archive.Stream, error)
	ImportProject(ctx context.Context, r io.ReaderAt, size int64, name string) (*topology.Project, *archive.Result, error)
}

// Server serves the REST API of a controller.
type Server struct {
	Controller Controller
	Streams    *StreamManager
	Logger     *slog.Logger
	Version    string
}

// Option configures the handler.
type Option func(*Server)

// WithStreams shares a StreamManager with the controller, which publishes into it.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// WithVersion sets the version reported by GET /v2/version.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.Version = v
	}
}

// NewHandler creates the HTTP handler for the controller.
func NewHandler(ctl Controller, opts ...Option) http.Handler {
	s := &Server{Controller: ctl, Version: domain.Version}
	for _, opt := range opts {
		opt(s)
	}
	if s.Logger == nil {
		s.Logger = logging.NewNop()
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.Logger)
	}

	r := chi.NewRouter()
	r.Route("/v2", func(r chi.Router) {
		r.Get("/version", s.GetVersion)

		r.Get("/computes", s.ListComputes)
		r.Post("/computes", s.CreateCompute)
		r.Get("/computes/{compute_id}", s.GetCompute)

		r.Get("/projects", s.ListProjects)
		r.Post("/projects", s.CreateProject)
		r.Route("/projects/{project_id}", func(r chi.Router) {
			r.Get("/", s.GetProject)
			r.Delete("/", s.DeleteProject)
			r.Post("/open", s.OpenProject)
			r.Post("/close", s.CloseProject)
			r.Get("/notifications", s.SubscribeEvents)
			r.Get("/export", s.ExportProject)
			r.Post("/import", s.ImportProject)

			r.Get("/nodes", s.ListNodes)
			r.Post("/nodes", s.CreateNode)
			r.Post("/nodes/{node_id}/start", s.StartNode)
			r.Post("/nodes/{node_id}/stop", s.StopNode)
			r.Delete("/nodes/{node_id}", s.DeleteNode)

			r.Get("/links", s.ListLinks)
			r.Post("/links", s.CreateLink)
			r.Delete("/links/{link_id}", s.DeleteLink)
		})
	})
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetVersion handles GET /v2/version.
func (s *Server) GetVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"version": s.Version, "local": true})
}

// -- Computes --

type computeRequest struct {
	ComputeID string `json:"compute_id"`
	Protocol  string `json:"protocol"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	User      string `json:"user"`
	Password  string `json:"password"`
}

// ListComputes handles GET /v2/computes.
func (s *Server) ListComputes(w http.ResponseWriter, r *http.Request) {
	list := s.Controller.Computes()
	out := make([]any, 0, len(list))
	for _, c := range list {
		out = append(out, c.WireBody())
	}
	s.writeJSON(w, http.StatusOK, out)
}

// CreateCompute handles POST /v2/computes.
func (s *Server) CreateCompute(w http.ResponseWriter, r *http.Request) {
	var body computeRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.ComputeID == "" || body.Host == "" {
		s.writeMessage(w, http.StatusBadRequest, "compute_id and host are required")
		return
	}
	c, err := s.Controller.AddCompute(r.Context(), body.ComputeID, compute.Connection{
		Protocol: body.Protocol,
		Host:     body.Host,
		Port:     body.Port,
		User:     body.User,
		Password: body.Password,
	})
	if err != nil {
		s.writeError(w, "CreateCompute", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, c.WireBody())
}

// GetCompute handles GET /v2/computes/{compute_id}.
func (s *Server) GetCompute(w http.ResponseWriter, r *http.Request) {
	c, err := s.Controller.Compute(chi.URLParam(r, "compute_id"))
	if err != nil {
		s.writeError(w, "GetCompute", err)
		return
	}
	s.writeJSON(w, http.StatusOK, c.WireBody())
}

// -- Projects --

// ListProjects handles GET /v2/projects.
func (s *Server) ListProjects(w http.ResponseWriter, r *http.Request) {
	list, err := s.Controller.Projects(r.Context())
	if err != nil {
		s.writeError(w, "ListProjects", err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

// CreateProject handles POST /v2/projects.
func (s *Server) CreateProject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	p, err := s.Controller.CreateProject(r.Context(), body.Name)
	if err != nil {
		s.writeError(w, "CreateProject", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, p.WireBody())
}

// GetProject handles GET /v2/projects/{project_id}.
func (s *Server) GetProject(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, p.WireBody())
}

// DeleteProject handles DELETE /v2/projects/{project_id}.
func (s *Server) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.Controller.DeleteProject(r.Context(), chi.URLParam(r, "project_id")); err != nil {
		s.writeError(w, "DeleteProject", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// OpenProject handles POST /v2/projects/{project_id}/open.
func (s *Server) OpenProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.Controller.OpenProject(r.Context(), chi.URLParam(r, "project_id"))
	if err != nil {
		s.writeError(w, "OpenProject", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, p.WireBody())
}

// CloseProject handles POST /v2/projects/{project_id}/close.
func (s *Server) CloseProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.Controller.CloseProject(r.Context(), chi.URLParam(r, "project_id"))
	if err != nil {
		s.writeError(w, "CloseProject", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, p.WireBody())
}

// ExportProject handles GET /v2/projects/{project_id}/export. The archive is
// streamed chunk by chunk; every refusal happens before the first byte.
func (s *Server) ExportProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "project_id")
	includeImages := r.URL.Query().Get("include_images") == "yes"

	stream, err := s.Controller.ExportProject(r.Context(), id, includeImages)
	if err != nil {
		s.writeError(w, "ExportProject", err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "application/gns3project")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".gns3project"))
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for {
		if r.Context().Err() != nil {
			s.Logger.Info("Export aborted by client", "project_id", id)
			return
		}
		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			// Headers are already sent; the client sees a truncated archive.
			s.Logger.Error("Export failed", "project_id", id, "err", err)
			return
		}
		if _, err := w.Write(chunk); err != nil {
			s.Logger.Warn("Export write failed", "project_id", id, "err", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// ImportProject handles POST /v2/projects/{project_id}/import. The request body
// is the archive; it is spooled to a temporary file since zip needs random access.
func (s *Server) ImportProject(w http.ResponseWriter, r *http.Request) {
	tmp, err := os.CreateTemp("", "topolab-import-*.zip")
	if err != nil {
		s.writeError(w, "ImportProject", fmt.Errorf("failed to spool archive: %w", err))
		return
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	size, err := io.Copy(tmp, r.Body)
	if err != nil {
		s.writeMessage(w, http.StatusBadRequest, "failed to read archive: "+err.Error())
		return
	}

	p, res, err := s.Controller.ImportProject(r.Context(), tmp, size, r.URL.Query().Get("name"))
	if err != nil {
		s.writeError(w, "ImportProject", err)
		return
	}
	body := map[string]any{
		"project_id":     p.ID(),
		"name":           p.Name(),
		"path":           p.Path(),
		"status":         p.Status(),
		"missing_images": res.MissingImages,
	}
	s.writeJSON(w, http.StatusCreated, body)
}

// -- Nodes --

type nodeRequest struct {
	NodeID     string         `json:"node_id"`
	Name       string         `json:"name"`
	NodeType   string         `json:"node_type"`
	ComputeID  string         `json:"compute_id"`
	Properties map[string]any `json:"properties"`
}

// ListNodes handles GET /v2/projects/{project_id}/nodes.
func (s *Server) ListNodes(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, p.Dump().Topology.Nodes)
}

// CreateNode handles POST /v2/projects/{project_id}/nodes.
func (s *Server) CreateNode(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}
	var body nodeRequest
	if !s.decode(w, r, &body) {
		return
	}
	t, err := domain.ParseNodeType(body.NodeType)
	if err != nil {
		s.writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := s.Controller.Compute(body.ComputeID)
	if err != nil {
		s.writeError(w, "CreateNode", err)
		return
	}
	n, err := p.AddNode(r.Context(), c, body.Name, body.NodeID, t, body.Properties)
	if err != nil {
		s.writeError(w, "CreateNode", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, n.Record())
}

// StartNode handles POST /v2/projects/{project_id}/nodes/{node_id}/start.
func (s *Server) StartNode(w http.ResponseWriter, r *http.Request) {
	s.nodeAction(w, r, "StartNode", (*topology.Project).StartNode)
}

// StopNode handles POST /v2/projects/{project_id}/nodes/{node_id}/stop.
func (s *Server) StopNode(w http.ResponseWriter, r *http.Request) {
	s.nodeAction(w, r, "StopNode", (*topology.Project).StopNode)
}

func (s *Server) nodeAction(w http.ResponseWriter, r *http.Request, op string, fn func(*topology.Project, context.Context, *topology.Node) error) {
	p, n, ok := s.node(w, r)
	if !ok {
		return
	}
	if err := fn(p, r.Context(), n); err != nil {
		s.writeError(w, op, err)
		return
	}
	s.writeJSON(w, http.StatusOK, n.Record())
}

// DeleteNode handles DELETE /v2/projects/{project_id}/nodes/{node_id}.
func (s *Server) DeleteNode(w http.ResponseWriter, r *http.Request) {
	p, n, ok := s.node(w, r)
	if !ok {
		return
	}
	if err := p.RemoveNode(r.Context(), n); err != nil {
		s.writeError(w, "DeleteNode", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -- Links --

// ListLinks handles GET /v2/projects/{project_id}/links.
func (s *Server) ListLinks(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, p.Dump().Topology.Links)
}

// CreateLink handles POST /v2/projects/{project_id}/links.
func (s *Server) CreateLink(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}
	var body domain.LinkRecord
	if !s.decode(w, r, &body) {
		return
	}
	if len(body.Nodes) != 2 {
		s.writeMessage(w, http.StatusBadRequest, "a link needs exactly two nodes")
		return
	}
	var ends [2]topology.Endpoint
	for i, rec := range body.Nodes {
		n, err := p.Node(rec.NodeID)
		if err != nil {
			s.writeError(w, "CreateLink", err)
			return
		}
		ends[i] = topology.Endpoint{Node: n, Adapter: rec.AdapterNumber, Port: rec.PortNumber}
	}
	l, err := p.AddLink(r.Context(), ends[0], ends[1])
	if err != nil {
		s.writeError(w, "CreateLink", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, l.Record())
}

// DeleteLink handles DELETE /v2/projects/{project_id}/links/{link_id}.
func (s *Server) DeleteLink(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}
	l, err := p.Link(chi.URLParam(r, "link_id"))
	if err != nil {
		s.writeError(w, "DeleteLink", err)
		return
	}
	if err := p.RemoveLink(r.Context(), l); err != nil {
		s.writeError(w, "DeleteLink", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -- Helpers --

func (s *Server) project(w http.ResponseWriter, r *http.Request) (*topology.Project, bool) {
	p, err := s.Controller.Project(r.Context(), chi.URLParam(r, "project_id"))
	if err != nil {
		s.writeError(w, "GetProject", err)
		return nil, false
	}
	return p, true
}

func (s *Server) node(w http.ResponseWriter, r *http.Request) (*topology.Project, *topology.Node, bool) {
	p, ok := s.project(w, r)
	if !ok {
		return nil, nil, false
	}
	n, err := p.Node(chi.URLParam(r, "node_id"))
	if err != nil {
		s.writeError(w, "GetNode", err)
		return nil, nil, false
	}
	return p, n, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeMessage(w, http.StatusBadRequest, "Invalid request body")
		s.Logger.Warn("Invalid request body", "path", r.URL.Path, "err", err)
		return false
	}
	return true
}

// StatusOf maps a controller error to an HTTP status code.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrProjectNotFound),
		errors.Is(err, domain.ErrNodeNotFound),
		errors.Is(err, domain.ErrLinkNotFound),
		errors.Is(err, domain.ErrComputeNotFound):
		return http.StatusNotFound
	}
	switch domain.KindOf(err) {
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindConnection:
		return http.StatusServiceUnavailable
	case domain.KindBackendCommand:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	status := StatusOf(err)
	if status >= 500 {
		s.Logger.Error(op+" failed", "err", err)
	} else {
		s.Logger.Debug(op+" refused", "status", status, "err", err)
	}
	s.writeMessage(w, status, err.Error())
}

func (s *Server) writeMessage(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]any{"status": status, "message": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("Response encode failed", "err", err)
	}
}
