package topology

import (
	"fmt"
	"maps"
	"sync"

	"github.com/aretw0/topolab/pkg/domain"
	"github.com/aretw0/topolab/pkg/ports"
)

// Node is one emulated device placed on a compute.
// Its status only changes after the owning compute acknowledged the transition.
type Node struct {
	id         string
	name       string
	nodeType   domain.NodeType
	compute    ports.ComputeClient
	properties map[string]any

	mu      sync.RWMutex
	console int
	status  domain.NodeStatus
}

func (n *Node) ID() string                   { return n.id }
func (n *Node) Name() string                 { return n.name }
func (n *Node) Type() domain.NodeType        { return n.nodeType }
func (n *Node) Compute() ports.ComputeClient { return n.compute }

// Properties returns a copy of the backend properties.
func (n *Node) Properties() map[string]any {
	return maps.Clone(n.properties)
}

// Console returns the console port assigned by the compute.
func (n *Node) Console() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.console
}

func (n *Node) Status() domain.NodeStatus {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}

func (n *Node) setStatus(s domain.NodeStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = s
}

// Record returns the descriptor view of the node.
func (n *Node) Record() domain.NodeRecord {
	n.mu.RLock()
	defer n.mu.RUnlock()
	props := maps.Clone(n.properties)
	if props == nil {
		props = map[string]any{}
	}
	return domain.NodeRecord{
		NodeID:     n.id,
		Name:       n.name,
		NodeType:   n.nodeType,
		ComputeID:  n.compute.ID(),
		Console:    n.console,
		Status:     n.status,
		Properties: props,
	}
}

// path is the node's resource path on its compute.
func (n *Node) path(projectID string) string {
	return fmt.Sprintf("/projects/%s/%s/nodes/%s", projectID, n.nodeType, n.id)
}

// nodesPath is the collection path new nodes of type t are created under.
func nodesPath(projectID string, t domain.NodeType) string {
	return fmt.Sprintf("/projects/%s/%s/nodes", projectID, t)
}

// intField reads a JSON number from a decoded response body.
func intField(body map[string]any, key string) (int, bool) {
	switch v := body[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}
