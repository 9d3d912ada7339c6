package topology

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"sync"

	"github.com/aretw0/topolab/internal/logging"
	"github.com/aretw0/topolab/pkg/domain"
	"github.com/aretw0/topolab/pkg/nio"
	"github.com/aretw0/topolab/pkg/ports"
	"github.com/google/uuid"
)

// Hooks are invoked after every acknowledged change of a project.
type Hooks struct {
	OnNodeEvent func(ctx context.Context, event domain.Event)
}

// Project is the topology aggregate: nodes, links and the computes they run on.
//
// Every mutation is a remote call first and a local state change second. The
// lock is held only around local bookkeeping, never across a remote call.
type Project struct {
	id     string
	name   string
	path   string
	policy TransportPolicy
	hooks  Hooks
	logger *slog.Logger

	mu        sync.RWMutex
	status    domain.ProjectStatus
	computes  map[string]ports.ComputeClient // computes the project is loaded on
	nodes     map[string]*Node
	nodeOrder []string
	links     map[string]*Link
	linkOrder []string
	reserved  map[string]struct{} // node IDs whose creation is in flight
	busy      map[string]string   // endpoint key -> link ID

	// Topology loaded from a descriptor and not yet created on the computes.
	pendingNodes []pendingNode
	pendingLinks []domain.LinkRecord
}

type pendingNode struct {
	record  domain.NodeRecord
	compute ports.ComputeClient
}

// Option configures a Project.
type Option func(*Project)

// WithID fixes the project identifier instead of generating one.
func WithID(id string) Option {
	return func(p *Project) {
		p.id = id
	}
}

// WithTransportPolicy replaces the UDPTunnel policy used for cross-compute links.
func WithTransportPolicy(policy TransportPolicy) Option {
	return func(p *Project) {
		p.policy = policy
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(h Hooks) Option {
	return func(p *Project) {
		p.hooks = h
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Project) {
		p.logger = logger
	}
}

// New creates an empty, opened project stored under path.
func New(name, path string, opts ...Option) (*Project, error) {
	p, err := newProject(name, path, opts...)
	if err != nil {
		return nil, err
	}
	p.status = domain.ProjectOpened
	return p, nil
}

func newProject(name, path string, opts ...Option) (*Project, error) {
	if name == "" {
		return nil, domain.ConfigurationError("new project", "project name is required")
	}
	p := &Project{
		name:     name,
		path:     path,
		policy:   UDPTunnel{},
		logger:   logging.NewNop(),
		status:   domain.ProjectClosed,
		computes: make(map[string]ports.ComputeClient),
		nodes:    make(map[string]*Node),
		links:    make(map[string]*Link),
		reserved: make(map[string]struct{}),
		busy:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.id == "" {
		p.id = uuid.NewString()
	}
	return p, nil
}

func (p *Project) ID() string   { return p.id }
func (p *Project) Name() string { return p.name }
func (p *Project) Path() string { return p.path }

func (p *Project) Status() domain.ProjectStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// WireBody is the project as sent to computes on creation.
func (p *Project) WireBody() any {
	return map[string]any{
		"project_id": p.id,
		"name":       p.name,
		"path":       p.path,
		"status":     string(p.Status()),
	}
}

// Record returns the registry entry of the project.
func (p *Project) Record() domain.ProjectRecord {
	return domain.ProjectRecord{ProjectID: p.id, Name: p.name, Path: p.path, Status: p.Status()}
}

// Node returns the node with the given ID.
func (p *Project) Node(id string) (*Node, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n, ok := p.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}
	return n, nil
}

// Nodes returns the live nodes in creation order.
func (p *Project) Nodes() []*Node {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Node, 0, len(p.nodeOrder))
	for _, id := range p.nodeOrder {
		out = append(out, p.nodes[id])
	}
	return out
}

// Link returns the link with the given ID.
func (p *Project) Link(id string) (*Link, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	l, ok := p.links[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrLinkNotFound, id)
	}
	return l, nil
}

// Links returns the live links in creation order.
func (p *Project) Links() []*Link {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Link, 0, len(p.linkOrder))
	for _, id := range p.linkOrder {
		out = append(out, p.links[id])
	}
	return out
}

// AddNode creates a node of type t on compute c. An empty nodeID gets a fresh one.
func (p *Project) AddNode(ctx context.Context, c ports.ComputeClient, name, nodeID string, t domain.NodeType, properties map[string]any) (*Node, error) {
	if err := p.requireOpened("add node"); err != nil {
		return nil, err
	}
	return p.createNode(ctx, c, name, nodeID, t, properties)
}

func (p *Project) createNode(ctx context.Context, c ports.ComputeClient, name, nodeID string, t domain.NodeType, properties map[string]any) (*Node, error) {
	if nodeID == "" {
		nodeID = uuid.NewString()
	}
	if _, err := domain.DecodeProperties(t, properties); err != nil {
		return nil, fmt.Errorf("invalid properties for node %q: %w", name, err)
	}

	p.mu.Lock()
	_, exists := p.nodes[nodeID]
	_, inFlight := p.reserved[nodeID]
	if exists || inFlight {
		p.mu.Unlock()
		return nil, domain.ConflictError("add node", "node %s already exists", nodeID)
	}
	p.reserved[nodeID] = struct{}{}
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.reserved, nodeID)
		p.mu.Unlock()
	}()

	if err := p.ensureOnCompute(ctx, c); err != nil {
		return nil, err
	}

	resp, err := c.Call(ctx, http.MethodPost, nodesPath(p.id, t), map[string]any{
		"node_id":    nodeID,
		"name":       name,
		"node_type":  t.String(),
		"properties": properties,
	})
	if err != nil {
		return nil, err
	}

	n := &Node{
		id:         nodeID,
		name:       name,
		nodeType:   t,
		compute:    c,
		properties: maps.Clone(properties),
		status:     domain.NodeStopped,
	}
	if console, ok := intField(resp.JSON(), "console"); ok {
		n.console = console
	}

	p.mu.Lock()
	p.nodes[nodeID] = n
	p.nodeOrder = append(p.nodeOrder, nodeID)
	p.mu.Unlock()

	p.logger.Info("Node created", "project_id", p.id, "node_id", nodeID, "type", t, "compute_id", c.ID())
	p.emit(ctx, domain.ActionNodeCreated, n.Record())
	return n, nil
}

// StartNode starts n. The status flips only once the compute acknowledged.
func (p *Project) StartNode(ctx context.Context, n *Node) error {
	return p.transition(ctx, n, "start", domain.NodeStarted, domain.ActionNodeStarted)
}

// StopNode stops n. The status flips only once the compute acknowledged.
func (p *Project) StopNode(ctx context.Context, n *Node) error {
	return p.transition(ctx, n, "stop", domain.NodeStopped, domain.ActionNodeStopped)
}

func (p *Project) transition(ctx context.Context, n *Node, verb string, to domain.NodeStatus, action domain.Action) error {
	if err := p.requireOpened(verb + " node"); err != nil {
		return err
	}
	if err := p.owns(n); err != nil {
		return err
	}
	if _, err := n.compute.Call(ctx, http.MethodPost, n.path(p.id)+"/"+verb, map[string]any{}); err != nil {
		return err
	}
	n.setStatus(to)
	p.logger.Info("Node "+string(to), "project_id", p.id, "node_id", n.id)
	p.emit(ctx, action, n.Record())
	return nil
}

// RemoveNode deletes n on its compute, then unwires and drops every link
// touching it. Peer ports of those links are released on their own computes.
// On failure the node keeps its prior status.
func (p *Project) RemoveNode(ctx context.Context, n *Node) error {
	if err := p.requireOpened("remove node"); err != nil {
		return err
	}
	if err := p.owns(n); err != nil {
		return err
	}
	if _, err := n.compute.Call(ctx, http.MethodDelete, n.path(p.id), nil); err != nil {
		return err
	}

	var dropped []*Link
	p.mu.Lock()
	delete(p.nodes, n.id)
	p.nodeOrder = slices.DeleteFunc(p.nodeOrder, func(id string) bool { return id == n.id })
	for _, id := range p.linkOrder {
		if l := p.links[id]; l.Touches(n.id) {
			dropped = append(dropped, l)
		}
	}
	for _, l := range dropped {
		p.forgetLink(l)
	}
	p.mu.Unlock()

	// The node is gone on its compute, so peers are released best effort.
	for _, l := range dropped {
		if err := p.unwire(ctx, l, n); err != nil {
			p.logger.Warn("Failed to release peer of dropped link", "project_id", p.id, "link_id", l.id, "err", err)
		}
	}

	p.logger.Info("Node deleted", "project_id", p.id, "node_id", n.id, "links_dropped", len(dropped))
	p.emit(ctx, domain.ActionNodeDeleted, n.Record())
	for _, l := range dropped {
		p.emit(ctx, domain.ActionLinkDeleted, l.Record())
	}
	return nil
}

// AddLink wires a to b. Nodes on the same compute are bridged by that compute;
// nodes on different computes get one NIO per side from the transport policy.
func (p *Project) AddLink(ctx context.Context, a, b Endpoint) (*Link, error) {
	if err := p.requireOpened("add link"); err != nil {
		return nil, err
	}
	return p.createLink(ctx, uuid.NewString(), a, b)
}

func (p *Project) createLink(ctx context.Context, linkID string, a, b Endpoint) (*Link, error) {
	if a.Node == nil || b.Node == nil {
		return nil, domain.ConflictError("add link", "link needs two endpoints")
	}
	if err := p.owns(a.Node); err != nil {
		return nil, err
	}
	if err := p.owns(b.Node); err != nil {
		return nil, err
	}
	if a.key() == b.key() {
		return nil, domain.ConflictError("add link", "cannot link port %d/%d of node %s to itself", a.Adapter, a.Port, a.Node.id)
	}

	p.mu.Lock()
	for _, e := range []Endpoint{a, b} {
		if _, used := p.busy[e.key()]; used {
			p.mu.Unlock()
			return nil, domain.ConflictError("add link", "port %d/%d of node %s is already in use", e.Adapter, e.Port, e.Node.id)
		}
	}
	p.busy[a.key()] = linkID
	p.busy[b.key()] = linkID
	p.mu.Unlock()

	l := &Link{id: linkID, endpoints: [2]Endpoint{a, b}}
	if err := p.bind(ctx, l); err != nil {
		p.mu.Lock()
		delete(p.busy, a.key())
		delete(p.busy, b.key())
		p.mu.Unlock()
		return nil, err
	}

	p.mu.Lock()
	p.links[linkID] = l
	p.linkOrder = append(p.linkOrder, linkID)
	p.mu.Unlock()

	p.logger.Info("Link created", "project_id", p.id, "link_id", linkID, "local", l.Local())
	p.emit(ctx, domain.ActionLinkCreated, l.Record())
	return l, nil
}

func (p *Project) bind(ctx context.Context, l *Link) error {
	a, b := l.endpoints[0], l.endpoints[1]
	if sameCompute(a, b) {
		_, err := a.Node.compute.Call(ctx, http.MethodPost, fmt.Sprintf("/projects/%s/links", p.id), map[string]any{
			"link_id": l.id,
			"nodes":   []domain.EndpointRecord{a.record(), b.record()},
		})
		return err
	}

	sideA, sideB, err := p.policy.Bind(ctx, p.id, a.Node.compute, b.Node.compute)
	if err != nil {
		return err
	}
	if _, err := a.Node.compute.Call(ctx, http.MethodPost, a.nioPath(p.id), sideA); err != nil {
		return err
	}
	if _, err := b.Node.compute.Call(ctx, http.MethodPost, b.nioPath(p.id), sideB); err != nil {
		// Undo side A so no half-wired port is left behind.
		if _, derr := a.Node.compute.Call(ctx, http.MethodDelete, a.nioPath(p.id), nil); derr != nil {
			p.logger.Warn("Failed to release NIO after link failure", "project_id", p.id, "link_id", l.id, "err", derr)
		}
		return err
	}
	l.sides = [2]nio.Spec{sideA, sideB}
	return nil
}

// RemoveLink tears down each side of l. If any side fails the link is kept and
// the joined errors are returned.
func (p *Project) RemoveLink(ctx context.Context, l *Link) error {
	if err := p.requireOpened("remove link"); err != nil {
		return err
	}
	p.mu.RLock()
	owned := p.links[l.id] == l
	p.mu.RUnlock()
	if !owned {
		return fmt.Errorf("%w: %s", domain.ErrLinkNotFound, l.id)
	}

	if err := p.unwire(ctx, l, nil); err != nil {
		return err
	}

	p.mu.Lock()
	p.forgetLink(l)
	p.mu.Unlock()

	p.logger.Info("Link deleted", "project_id", p.id, "link_id", l.id)
	p.emit(ctx, domain.ActionLinkDeleted, l.Record())
	return nil
}

// unwire releases l on the computes. Endpoints belonging to gone are skipped
// since their node was already deleted.
func (p *Project) unwire(ctx context.Context, l *Link, gone *Node) error {
	if l.Local() {
		c := l.endpoints[0].Node.compute
		_, err := c.Call(ctx, http.MethodDelete, fmt.Sprintf("/projects/%s/links/%s", p.id, l.id), nil)
		return err
	}
	var errs []error
	for _, e := range l.endpoints {
		if gone != nil && e.Node == gone {
			continue
		}
		if _, err := e.Node.compute.Call(ctx, http.MethodDelete, e.nioPath(p.id), nil); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// forgetLink drops l from local state. Callers hold p.mu.
func (p *Project) forgetLink(l *Link) {
	delete(p.links, l.id)
	p.linkOrder = slices.DeleteFunc(p.linkOrder, func(id string) bool { return id == l.id })
	for _, e := range l.endpoints {
		if p.busy[e.key()] == l.id {
			delete(p.busy, e.key())
		}
	}
}

// ensureOnCompute creates the project on c the first time one of its nodes lands there.
func (p *Project) ensureOnCompute(ctx context.Context, c ports.ComputeClient) error {
	p.mu.RLock()
	_, ok := p.computes[c.ID()]
	p.mu.RUnlock()
	if ok {
		return nil
	}
	if _, err := c.Call(ctx, http.MethodPost, "/projects", p); err != nil {
		return err
	}
	p.mu.Lock()
	p.computes[c.ID()] = c
	p.mu.Unlock()
	return nil
}

func (p *Project) requireOpened(op string) error {
	if p.Status() != domain.ProjectOpened {
		return domain.ConflictError(op, "project %s is closed", p.id)
	}
	return nil
}

func (p *Project) owns(n *Node) error {
	if n == nil {
		return domain.ErrNodeNotFound
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.nodes[n.id] != n {
		return fmt.Errorf("%w: %s", domain.ErrNodeNotFound, n.id)
	}
	return nil
}

func (p *Project) emit(ctx context.Context, action domain.Action, payload any) {
	if p.hooks.OnNodeEvent != nil {
		p.hooks.OnNodeEvent(ctx, domain.NewEvent(action, p.id, payload))
	}
}
