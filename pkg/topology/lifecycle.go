package topology

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/topolab/internal/fsutil"
	"github.com/aretw0/topolab/pkg/domain"
	"github.com/aretw0/topolab/pkg/ports"
	"golang.org/x/sync/errgroup"
)

// ComputeResolver maps a compute ID found in a descriptor to a live proxy.
type ComputeResolver func(computeID string) (ports.ComputeClient, error)

// Load builds a closed project from a topology descriptor. Nothing is sent to
// the computes until Open.
func Load(desc *domain.Topology, path string, resolve ComputeResolver, opts ...Option) (*Project, error) {
	if desc == nil {
		return nil, domain.ConfigurationError("load project", "descriptor is empty")
	}
	p, err := newProject(desc.Name, path, append([]Option{WithID(desc.ProjectID)}, opts...)...)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(desc.Topology.Nodes))
	for _, rec := range desc.Topology.Nodes {
		if known[rec.NodeID] {
			return nil, domain.ConflictError("load project", "node %s appears twice", rec.NodeID)
		}
		c, err := resolve(rec.ComputeID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve compute %q of node %s: %w", rec.ComputeID, rec.NodeID, err)
		}
		known[rec.NodeID] = true
		p.pendingNodes = append(p.pendingNodes, pendingNode{record: rec, compute: c})
	}
	for _, rec := range desc.Topology.Links {
		if len(rec.Nodes) != 2 {
			return nil, domain.ConfigurationError("load project", "link %s must have two endpoints", rec.LinkID)
		}
		for _, ep := range rec.Nodes {
			if !known[ep.NodeID] {
				return nil, domain.ConfigurationError("load project", "link %s references unknown node %s", rec.LinkID, ep.NodeID)
			}
		}
		p.pendingLinks = append(p.pendingLinks, rec)
	}
	return p, nil
}

// Open loads the project on every compute it references, then recreates the
// nodes and links of a loaded descriptor. Opening an opened project with
// nothing pending is a no-op.
func (p *Project) Open(ctx context.Context) error {
	p.mu.RLock()
	pendingNodes := slices.Clone(p.pendingNodes)
	pendingLinks := slices.Clone(p.pendingLinks)
	alreadyOpen := p.status == domain.ProjectOpened
	p.mu.RUnlock()

	if alreadyOpen && len(pendingNodes) == 0 && len(pendingLinks) == 0 {
		return nil
	}

	// Computes are independent; create the project on all of them at once.
	seen := make(map[string]bool)
	g, gctx := errgroup.WithContext(ctx)
	for _, pn := range pendingNodes {
		c := pn.compute
		if seen[c.ID()] {
			continue
		}
		seen[c.ID()] = true
		g.Go(func() error { return p.ensureOnCompute(gctx, c) })
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to open project %s: %w", p.id, err)
	}

	p.mu.Lock()
	p.status = domain.ProjectOpened
	p.mu.Unlock()

	for _, pn := range pendingNodes {
		rec := pn.record
		if _, err := p.createNode(ctx, pn.compute, rec.Name, rec.NodeID, rec.NodeType, rec.Properties); err != nil {
			return fmt.Errorf("failed to restore node %s: %w", rec.NodeID, err)
		}
		p.mu.Lock()
		p.pendingNodes = slices.DeleteFunc(p.pendingNodes, func(x pendingNode) bool { return x.record.NodeID == rec.NodeID })
		p.mu.Unlock()
	}

	for _, rec := range pendingLinks {
		a, err := p.endpointOf(rec.Nodes[0])
		if err != nil {
			return err
		}
		b, err := p.endpointOf(rec.Nodes[1])
		if err != nil {
			return err
		}
		if _, err := p.createLink(ctx, rec.LinkID, a, b); err != nil {
			return fmt.Errorf("failed to restore link %s: %w", rec.LinkID, err)
		}
		p.mu.Lock()
		p.pendingLinks = slices.DeleteFunc(p.pendingLinks, func(x domain.LinkRecord) bool { return x.LinkID == rec.LinkID })
		p.mu.Unlock()
	}

	p.logger.Info("Project opened", "project_id", p.id, "nodes", len(pendingNodes), "links", len(pendingLinks))
	p.emit(ctx, domain.ActionProjectOpened, p.Record())
	return nil
}

func (p *Project) endpointOf(rec domain.EndpointRecord) (Endpoint, error) {
	n, err := p.Node(rec.NodeID)
	if err != nil {
		return Endpoint{}, err
	}
	return Endpoint{Node: n, Adapter: rec.AdapterNumber, Port: rec.PortNumber}, nil
}

// Close unloads the project from every compute. The topology is kept in memory
// as pending records so a later Open recreates it.
func (p *Project) Close(ctx context.Context) error {
	p.mu.RLock()
	computes := make([]ports.ComputeClient, 0, len(p.computes))
	for _, c := range p.computes {
		computes = append(computes, c)
	}
	p.mu.RUnlock()

	path := fmt.Sprintf("/projects/%s/close", p.id)
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range computes {
		g.Go(func() error {
			_, err := c.Call(gctx, http.MethodPost, path, map[string]any{})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to close project %s: %w", p.id, err)
	}

	p.mu.Lock()
	var pendingNodes []pendingNode
	for _, id := range p.nodeOrder {
		n := p.nodes[id]
		rec := n.Record()
		rec.Status = domain.NodeStopped
		pendingNodes = append(pendingNodes, pendingNode{record: rec, compute: n.compute})
	}
	var pendingLinks []domain.LinkRecord
	for _, id := range p.linkOrder {
		pendingLinks = append(pendingLinks, p.links[id].Record())
	}
	p.pendingNodes = append(pendingNodes, p.pendingNodes...)
	p.pendingLinks = append(pendingLinks, p.pendingLinks...)
	p.nodes = make(map[string]*Node)
	p.nodeOrder = nil
	p.links = make(map[string]*Link)
	p.linkOrder = nil
	p.busy = make(map[string]string)
	p.computes = make(map[string]ports.ComputeClient)
	p.status = domain.ProjectClosed
	p.mu.Unlock()

	p.logger.Info("Project closed", "project_id", p.id)
	p.emit(ctx, domain.ActionProjectClosed, p.Record())
	return nil
}

// Dump builds the topology descriptor of the project, including topology that
// is loaded but not yet recreated on the computes.
func (p *Project) Dump() *domain.Topology {
	p.mu.RLock()
	defer p.mu.RUnlock()

	desc := &domain.Topology{
		ProjectID: p.id,
		Name:      p.name,
		Revision:  domain.DescriptorRevision,
		Type:      "topology",
		Version:   domain.Version,
		Topology: domain.TopologyBody{
			Computes: []domain.ComputeRecord{},
			Nodes:    []domain.NodeRecord{},
			Links:    []domain.LinkRecord{},
		},
	}

	computes := make(map[string]ports.ComputeClient)
	for _, id := range p.nodeOrder {
		n := p.nodes[id]
		computes[n.compute.ID()] = n.compute
		desc.Topology.Nodes = append(desc.Topology.Nodes, n.Record())
	}
	for _, pn := range p.pendingNodes {
		computes[pn.compute.ID()] = pn.compute
		desc.Topology.Nodes = append(desc.Topology.Nodes, pn.record)
	}
	for _, id := range p.linkOrder {
		desc.Topology.Links = append(desc.Topology.Links, p.links[id].Record())
	}
	desc.Topology.Links = append(desc.Topology.Links, p.pendingLinks...)

	for _, c := range computes {
		desc.Topology.Computes = append(desc.Topology.Computes, computeRecord(c))
	}
	slices.SortFunc(desc.Topology.Computes, func(a, b domain.ComputeRecord) int {
		return strings.Compare(a.ComputeID, b.ComputeID)
	})
	return desc
}

// DescriptorPath is where Commit writes the descriptor: <path>/<name>.gns3.
func (p *Project) DescriptorPath() string {
	return filepath.Join(p.path, p.name+domain.DescriptorExt)
}

// Commit writes the current descriptor into the project directory atomically.
func (p *Project) Commit() error {
	if p.path == "" {
		return domain.ConfigurationError("commit project", "project %s has no directory", p.id)
	}
	data, err := json.MarshalIndent(p.Dump(), "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal topology: %w", err)
	}
	if err := fsutil.WriteFileAtomic(p.DescriptorPath(), data, 0644); err != nil {
		return domain.ArchiveError("commit project", err)
	}
	p.logger.Debug("Topology committed", "project_id", p.id, "path", p.DescriptorPath())
	return nil
}

func computeRecord(c ports.ComputeClient) domain.ComputeRecord {
	if r, ok := c.(interface{ Record() domain.ComputeRecord }); ok {
		return r.Record()
	}
	return domain.ComputeRecord{ComputeID: c.ID(), Host: c.Host()}
}
