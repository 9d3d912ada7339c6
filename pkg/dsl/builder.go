package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/topolab/pkg/domain"
	"github.com/google/uuid"
)

// Builder manages the topology construction.
type Builder struct {
	id       string
	name     string
	computes []*ComputeBuilder
	nodes    []*NodeBuilder
	byID     map[string]*NodeBuilder
	links    []domain.LinkRecord
}

// New creates a new topology builder for a project named name.
func New(name string) *Builder {
	return &Builder{
		name: name,
		byID: make(map[string]*NodeBuilder),
	}
}

// ID fixes the project ID. Without it, Build assigns a fresh one.
func (b *Builder) ID(id string) *Builder {
	b.id = id
	return b
}

// Compute declares a compute. Declaring the same ID twice returns the same builder.
func (b *Builder) Compute(id string) *ComputeBuilder {
	for _, cb := range b.computes {
		if cb.record.ComputeID == id {
			return cb
		}
	}
	cb := &ComputeBuilder{record: domain.ComputeRecord{ComputeID: id, Protocol: "http"}}
	b.computes = append(b.computes, cb)
	return cb
}

// Add creates a new node in the topology.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.byID[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		record: domain.NodeRecord{NodeID: id, Name: id, Properties: map[string]any{}},
	}
	b.byID[id] = nb
	b.nodes = append(b.nodes, nb)
	return nb
}

// Link wires adapter/port of node a to adapter/port of node b.
func (b *Builder) Link(a string, aAdapter, aPort int, z string, zAdapter, zPort int) *Builder {
	b.links = append(b.links, domain.LinkRecord{
		LinkID: uuid.NewString(),
		Nodes: []domain.EndpointRecord{
			{NodeID: a, AdapterNumber: aAdapter, PortNumber: aPort},
			{NodeID: z, AdapterNumber: zAdapter, PortNumber: zPort},
		},
	})
	return b
}

// Build compiles the topology descriptor. It reports every node without a
// type or compute, every link to an unknown node and every port used twice.
func (b *Builder) Build() (*domain.Topology, error) {
	desc := &domain.Topology{
		ProjectID: b.id,
		Name:      b.name,
		Revision:  domain.DescriptorRevision,
		Type:      "topology",
		Version:   domain.Version,
		Topology: domain.TopologyBody{
			Computes: []domain.ComputeRecord{},
			Nodes:    make([]domain.NodeRecord, 0, len(b.nodes)),
			Links:    make([]domain.LinkRecord, 0, len(b.links)),
		},
	}
	if desc.ProjectID == "" {
		desc.ProjectID = uuid.NewString()
	}

	var errs []error
	if b.name == "" {
		errs = append(errs, errors.New("project name is required"))
	}

	declared := make(map[string]bool, len(b.computes))
	for _, cb := range b.computes {
		declared[cb.record.ComputeID] = true
		desc.Topology.Computes = append(desc.Topology.Computes, cb.record)
	}
	for _, nb := range b.nodes {
		rec := nb.record
		if rec.NodeType == domain.NodeTypeUnknown {
			errs = append(errs, fmt.Errorf("node %s: type is required", rec.NodeID))
		} else if _, err := domain.DecodeProperties(rec.NodeType, rec.Properties); err != nil {
			errs = append(errs, fmt.Errorf("node %s: %w", rec.NodeID, err))
		}
		switch {
		case rec.ComputeID == "":
			errs = append(errs, fmt.Errorf("node %s: compute is required", rec.NodeID))
		case !declared[rec.ComputeID]:
			// Undeclared computes are added with their ID only.
			declared[rec.ComputeID] = true
			desc.Topology.Computes = append(desc.Topology.Computes, domain.ComputeRecord{ComputeID: rec.ComputeID})
		}
		desc.Topology.Nodes = append(desc.Topology.Nodes, rec)
	}

	used := make(map[domain.EndpointRecord]string)
	for _, l := range b.links {
		for _, ep := range l.Nodes {
			if _, ok := b.byID[ep.NodeID]; !ok {
				errs = append(errs, fmt.Errorf("link %s: unknown node %s", l.LinkID, ep.NodeID))
				continue
			}
			if other, busy := used[ep]; busy {
				errs = append(errs, fmt.Errorf("link %s: port %d/%d of %s already used by link %s", l.LinkID, ep.AdapterNumber, ep.PortNumber, ep.NodeID, other))
				continue
			}
			used[ep] = l.LinkID
		}
		desc.Topology.Links = append(desc.Topology.Links, l)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("failed to build topology %q: %w", b.name, err)
	}
	return desc, nil
}
