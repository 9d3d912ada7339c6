package topology

import (
	"fmt"

	"github.com/aretw0/topolab/pkg/domain"
	"github.com/aretw0/topolab/pkg/nio"
)

// Endpoint is one port of a node: the adapter and port numbers on that node.
type Endpoint struct {
	Node    *Node
	Adapter int
	Port    int
}

func (e Endpoint) key() string {
	return fmt.Sprintf("%s/%d/%d", e.Node.ID(), e.Adapter, e.Port)
}

func (e Endpoint) record() domain.EndpointRecord {
	return domain.EndpointRecord{NodeID: e.Node.ID(), AdapterNumber: e.Adapter, PortNumber: e.Port}
}

// nioPath is where a NIO is attached to or detached from this endpoint.
func (e Endpoint) nioPath(projectID string) string {
	return fmt.Sprintf("%s/adapters/%d/ports/%d/nio", e.Node.path(projectID), e.Adapter, e.Port)
}

// Link wires two endpoints together.
//
// When both nodes share a compute the compute bridges them itself and sides is
// nil. Otherwise sides holds the NIO each endpoint was bound to.
type Link struct {
	id        string
	endpoints [2]Endpoint
	sides     [2]nio.Spec
}

func (l *Link) ID() string { return l.id }

// Endpoints returns both sides of the link.
func (l *Link) Endpoints() [2]Endpoint { return l.endpoints }

// Local reports whether both endpoints live on the same compute.
func (l *Link) Local() bool {
	return l.sides[0] == nil && l.sides[1] == nil
}

// NIO returns the binding of side i (0 or 1), or nil for a local link.
func (l *Link) NIO(i int) nio.Spec { return l.sides[i] }

// Touches reports whether the link uses a port of node.
func (l *Link) Touches(nodeID string) bool {
	return l.endpoints[0].Node.ID() == nodeID || l.endpoints[1].Node.ID() == nodeID
}

func (l *Link) Record() domain.LinkRecord {
	return domain.LinkRecord{
		LinkID: l.id,
		Nodes:  []domain.EndpointRecord{l.endpoints[0].record(), l.endpoints[1].record()},
	}
}

func sameCompute(a, b Endpoint) bool {
	return a.Node.Compute().ID() == b.Node.Compute().ID()
}
