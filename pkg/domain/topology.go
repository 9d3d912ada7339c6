package domain

// NodeStatus is the lifecycle status of a node as acknowledged by its compute.
type NodeStatus string

const (
	NodeStopped NodeStatus = "stopped"
	NodeStarted NodeStatus = "started"
)

// ProjectStatus reports whether a project is loaded on its computes.
type ProjectStatus string

const (
	ProjectOpened ProjectStatus = "opened"
	ProjectClosed ProjectStatus = "closed"
)

// DescriptorName is the canonical name of the topology descriptor inside an archive.
const DescriptorName = "project.gns3"

// DescriptorExt is the extension of topology descriptor files in a project directory.
const DescriptorExt = ".gns3"

// DescriptorRevision is the descriptor format revision written by this controller.
const DescriptorRevision = 5

// Topology is the on-disk topology descriptor of a project.
type Topology struct {
	ProjectID string       `json:"project_id"`
	Name      string       `json:"name"`
	Revision  int          `json:"revision"`
	Type      string       `json:"type"`
	Version   string       `json:"version,omitempty"`
	Topology  TopologyBody `json:"topology"`
}

// TopologyBody holds the graph itself.
type TopologyBody struct {
	Computes []ComputeRecord `json:"computes"`
	Nodes    []NodeRecord    `json:"nodes"`
	Links    []LinkRecord    `json:"links"`
}

// ComputeRecord is the descriptor view of a compute; credentials are never written.
type ComputeRecord struct {
	ComputeID string `json:"compute_id"`
	Protocol  string `json:"protocol"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	User      string `json:"user,omitempty"`
}

// NodeRecord is the descriptor view of a node.
type NodeRecord struct {
	NodeID     string         `json:"node_id"`
	Name       string         `json:"name"`
	NodeType   NodeType       `json:"node_type"`
	ComputeID  string         `json:"compute_id"`
	Console    int            `json:"console,omitempty"`
	Status     NodeStatus     `json:"status,omitempty"`
	Properties map[string]any `json:"properties"`
}

// LinkRecord is the descriptor view of a link.
type LinkRecord struct {
	LinkID string           `json:"link_id"`
	Nodes  []EndpointRecord `json:"nodes"`
}

// EndpointRecord is one side of a link.
type EndpointRecord struct {
	NodeID        string `json:"node_id"`
	AdapterNumber int    `json:"adapter_number"`
	PortNumber    int    `json:"port_number"`
}

// ProjectRecord is the registry entry persisted by a ProjectStore.
type ProjectRecord struct {
	ProjectID string        `json:"project_id"`
	Name      string        `json:"name"`
	Path      string        `json:"path"`
	Status    ProjectStatus `json:"status"`
}
