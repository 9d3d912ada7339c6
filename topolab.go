package topolab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/topolab/internal/logging"
	"github.com/aretw0/topolab/pkg/adapters/memory"
	"github.com/aretw0/topolab/pkg/archive"
	"github.com/aretw0/topolab/pkg/compute"
	"github.com/aretw0/topolab/pkg/domain"
	"github.com/aretw0/topolab/pkg/persistence/middleware"
	"github.com/aretw0/topolab/pkg/ports"
	"github.com/aretw0/topolab/pkg/session"
	"github.com/aretw0/topolab/pkg/topology"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Version is the controller version reported to clients and written in descriptors.
const Version = domain.Version

// lockTTL bounds how long a project stays locked if its holder disappears.
const lockTTL = 2 * time.Minute

// Controller is the high-level entry point: it owns the compute registry and
// the projects, persists the project registry and fans out notifications.
type Controller struct {
	computes   *compute.Registry
	store      ports.ProjectStore
	publishers []ports.EventPublisher
	locker     ports.Locker
	sessions   *session.Manager
	images     ports.ImageStore
	logger     *slog.Logger
	metrics    prometheus.Registerer
	policy     topology.TransportPolicy

	projectsPath string
	local        bool
	httpClient   *http.Client

	mu       sync.RWMutex
	projects map[string]*topology.Project
}

// Option configures the Controller.
type Option func(*Controller)

// WithStore sets the project registry backend (default: in memory).
func WithStore(s ports.ProjectStore) Option {
	return func(c *Controller) {
		c.store = s
	}
}

// WithPublisher adds notification sinks. Every topology change is published to each of them.
func WithPublisher(p ...ports.EventPublisher) Option {
	return func(c *Controller) {
		c.publishers = append(c.publishers, p...)
	}
}

// WithLocker adds a distributed lock serializing open, close, export and
// delete of the same project across controllers sharing a registry.
// Without it, operations are serialized within this process only.
func WithLocker(l ports.Locker) Option {
	return func(c *Controller) {
		c.locker = l
	}
}

// WithImages sets the image store directories used by export and import.
func WithImages(images ports.ImageStore) Option {
	return func(c *Controller) {
		c.images = images
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithProjectsPath sets the directory holding one sub-directory per project.
func WithProjectsPath(path string) Option {
	return func(c *Controller) {
		c.projectsPath = path
	}
}

// WithLocal declares this controller as running the local compute.
func WithLocal(local bool) Option {
	return func(c *Controller) {
		c.local = local
	}
}

// WithMetrics registers the compute proxy collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Controller) {
		c.metrics = reg
	}
}

// WithTransportPolicy replaces the UDP tunnel used for cross-compute links.
func WithTransportPolicy(policy topology.TransportPolicy) Option {
	return func(c *Controller) {
		c.policy = policy
	}
}

// WithComputeClient sets the HTTP client used by every compute proxy.
func WithComputeClient(client *http.Client) Option {
	return func(c *Controller) {
		c.httpClient = client
	}
}

// New creates a controller. Without options it keeps its registry in memory
// and stores projects under ./projects.
func New(opts ...Option) *Controller {
	c := &Controller{
		projectsPath: "projects",
		projects:     make(map[string]*topology.Project),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.NewNop()
	}
	if c.store == nil {
		c.store = memory.NewStore()
	}
	sessionOpts := []session.Option{session.WithLogger(c.logger), session.WithTTL(lockTTL)}
	if c.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(c.locker))
	}
	c.sessions = session.NewManager(sessionOpts...)
	storeMiddleware := []middleware.Middleware{middleware.NewLoggingMiddleware(c.logger)}
	if c.metrics != nil {
		storeMiddleware = append(storeMiddleware, middleware.NewMetricsMiddleware(c.metrics))
	}
	c.store = middleware.Chain(c.store, storeMiddleware...)

	computeOpts := []compute.Option{
		compute.WithLogger(c.logger),
		compute.WithLocal(c.local),
	}
	if c.metrics != nil {
		computeOpts = append(computeOpts, compute.WithMetrics(compute.NewMetrics(c.metrics)))
	}
	if c.httpClient != nil {
		computeOpts = append(computeOpts, compute.WithHTTPClient(c.httpClient))
	}
	c.computes = compute.NewRegistry(computeOpts...)
	return c
}

// AddCompute registers a compute agent and tries to reach it. An unreachable
// agent is still registered; it is reported as disconnected until it answers.
func (c *Controller) AddCompute(ctx context.Context, id string, conn compute.Connection) (*compute.Compute, error) {
	cp, err := c.computes.Create(id, conn)
	if err != nil {
		return nil, err
	}
	if err := cp.Connect(ctx); err != nil {
		c.logger.Warn("Compute unreachable", "compute_id", id, "err", err)
	}
	return cp, nil
}

// Compute returns a registered compute.
func (c *Controller) Compute(id string) (*compute.Compute, error) {
	return c.computes.Get(id)
}

// Computes lists the registered computes sorted by ID.
func (c *Controller) Computes() []*compute.Compute {
	return c.computes.List()
}

// CreateProject creates an opened, empty project in its own directory.
func (c *Controller) CreateProject(ctx context.Context, name string) (*topology.Project, error) {
	id := uuid.NewString()
	dir := filepath.Join(c.projectsPath, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, domain.ArchiveError("create project directory", err)
	}

	p, err := topology.New(name, dir, c.projectOptions(id)...)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	if err := p.Commit(); err != nil {
		return nil, err
	}
	if err := c.store.Save(ctx, p.Record()); err != nil {
		return nil, fmt.Errorf("failed to register project %s: %w", id, err)
	}

	c.track(p)
	c.logger.Info("Project created", "project_id", id, "name", name)
	return p, nil
}

// Project returns a project by ID. A project known only to the registry is
// rebuilt, closed, from its descriptor.
func (c *Controller) Project(ctx context.Context, id string) (*topology.Project, error) {
	c.mu.RLock()
	p, ok := c.projects[id]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	rec, err := c.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.LoadProject(ctx, filepath.Join(rec.Path, rec.Name+domain.DescriptorExt))
}

// Projects lists the registry entries, with the live status of loaded projects.
func (c *Controller) Projects(ctx context.Context) ([]domain.ProjectRecord, error) {
	records, err := c.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i, rec := range records {
		if p, ok := c.projects[rec.ProjectID]; ok {
			records[i] = p.Record()
		}
	}
	return records, nil
}

// OpenProject loads a project on its computes and recreates its topology.
func (c *Controller) OpenProject(ctx context.Context, id string) (*topology.Project, error) {
	p, err := c.Project(ctx, id)
	if err != nil {
		return nil, err
	}
	err = c.withLock(ctx, id, func() error {
		if err := p.Open(ctx); err != nil {
			return err
		}
		return c.persist(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CloseProject unloads a project from its computes and keeps its descriptor.
func (c *Controller) CloseProject(ctx context.Context, id string) (*topology.Project, error) {
	p, err := c.Project(ctx, id)
	if err != nil {
		return nil, err
	}
	err = c.withLock(ctx, id, func() error {
		if err := p.Close(ctx); err != nil {
			return err
		}
		return c.persist(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProject closes a project, removes its directory and forgets it.
func (c *Controller) DeleteProject(ctx context.Context, id string) error {
	p, err := c.Project(ctx, id)
	if err != nil {
		return err
	}
	err = c.withLock(ctx, id, func() error {
		if p.Status() == domain.ProjectOpened {
			if err := p.Close(ctx); err != nil {
				return err
			}
		}
		if err := os.RemoveAll(p.Path()); err != nil {
			return domain.ArchiveError("delete project directory", err)
		}
		return c.store.Delete(ctx, id)
	})
	if err != nil && !errors.Is(err, domain.ErrProjectNotFound) {
		return err
	}

	c.mu.Lock()
	delete(c.projects, id)
	c.mu.Unlock()
	c.logger.Info("Project deleted", "project_id", id)
	return nil
}

// ExportProject commits the project descriptor and prepares its archive.
// The caller must consume or Close the returned stream.
func (c *Controller) ExportProject(ctx context.Context, id string, includeImages bool) (*archive.Stream, error) {
	p, err := c.Project(ctx, id)
	if err != nil {
		return nil, err
	}
	var s *archive.Stream
	err = c.withLock(ctx, id, func() error {
		if err := archive.Check(p); err != nil {
			return err
		}
		if err := p.Commit(); err != nil {
			return err
		}
		s, err = archive.Export(ctx, p, archive.Options{
			IncludeImages: includeImages,
			Images:        c.images,
			Logger:        c.logger,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ImportProject unpacks an archive into a new project directory and registers
// the result as a closed project. name overrides the archived project name.
func (c *Controller) ImportProject(ctx context.Context, r io.ReaderAt, size int64, name string) (*topology.Project, *archive.Result, error) {
	dest := filepath.Join(c.projectsPath, uuid.NewString())
	res, err := archive.Import(ctx, r, size, dest, archive.Options{
		Images: c.images,
		Name:   name,
		Logger: c.logger,
	})
	if err != nil {
		_ = os.RemoveAll(dest)
		return nil, nil, err
	}
	p, err := c.LoadProject(ctx, res.Descriptor)
	if err != nil {
		_ = os.RemoveAll(dest)
		return nil, res, err
	}
	return p, res, nil
}

// LoadProject rebuilds a closed project from a descriptor on disk. Every compute
// the descriptor names must already be registered, except the local one which
// is registered from the descriptor entry.
func (c *Controller) LoadProject(ctx context.Context, descriptorPath string) (*topology.Project, error) {
	data, err := os.ReadFile(descriptorPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", descriptorPath, domain.ErrProjectNotFound)
		}
		return nil, domain.ArchiveError("read descriptor", err)
	}
	var desc domain.Topology
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, domain.ArchiveError("parse descriptor", err)
	}
	if desc.ProjectID == "" {
		desc.ProjectID = uuid.NewString()
	}

	c.mu.RLock()
	existing, ok := c.projects[desc.ProjectID]
	c.mu.RUnlock()
	if ok {
		return existing, nil
	}

	p, err := topology.Load(&desc, filepath.Dir(descriptorPath), c.resolver(desc.Topology.Computes), c.projectOptions(desc.ProjectID)...)
	if err != nil {
		return nil, err
	}
	if err := c.store.Save(ctx, p.Record()); err != nil {
		return nil, fmt.Errorf("failed to register project %s: %w", p.ID(), err)
	}
	c.track(p)
	c.logger.Info("Project loaded", "project_id", p.ID(), "name", p.Name(), "path", p.Path())
	return p, nil
}

// resolver maps descriptor compute IDs to registered proxies. The local
// compute is created on demand from the descriptor.
func (c *Controller) resolver(records []domain.ComputeRecord) topology.ComputeResolver {
	return func(id string) (ports.ComputeClient, error) {
		cp, err := c.computes.Get(id)
		if err == nil {
			return cp, nil
		}
		if id != compute.LocalID {
			return nil, err
		}
		idx := slices.IndexFunc(records, func(r domain.ComputeRecord) bool { return r.ComputeID == id })
		if idx < 0 {
			return nil, err
		}
		r := records[idx]
		return c.computes.GetOrCreate(id, compute.Connection{Protocol: r.Protocol, Host: r.Host, Port: r.Port, User: r.User})
	}
}

func (c *Controller) projectOptions(id string) []topology.Option {
	opts := []topology.Option{
		topology.WithID(id),
		topology.WithLogger(c.logger),
		topology.WithHooks(topology.Hooks{OnNodeEvent: c.onEvent}),
	}
	if c.policy != nil {
		opts = append(opts, topology.WithTransportPolicy(c.policy))
	}
	return opts
}

func (c *Controller) track(p *topology.Project) {
	c.mu.Lock()
	c.projects[p.ID()] = p
	c.mu.Unlock()
}

// onEvent keeps the descriptor on disk in step with the topology and forwards
// the event to every publisher. Publish failures are logged only.
func (c *Controller) onEvent(ctx context.Context, event domain.Event) {
	c.mu.RLock()
	p, ok := c.projects[event.ProjectID]
	c.mu.RUnlock()
	if ok {
		if err := p.Commit(); err != nil {
			c.logger.Error("Failed to commit topology", "project_id", event.ProjectID, "err", err)
		}
	}
	for _, pub := range c.publishers {
		if err := pub.Publish(ctx, event); err != nil {
			c.logger.Warn("Failed to publish event", "project_id", event.ProjectID, "action", event.Action, "err", err)
		}
	}
}

func (c *Controller) persist(ctx context.Context, p *topology.Project) error {
	if err := p.Commit(); err != nil {
		return err
	}
	if err := c.store.Save(ctx, p.Record()); err != nil {
		return fmt.Errorf("failed to register project %s: %w", p.ID(), err)
	}
	return nil
}

func (c *Controller) withLock(ctx context.Context, id string, fn func() error) error {
	return c.sessions.WithLock(ctx, "project:"+id, func(context.Context) error {
		return fn()
	})
}
