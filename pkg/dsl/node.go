package dsl

import "github.com/aretw0/topolab/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	record domain.NodeRecord
}

// Name sets the display name (default: the node ID).
func (n *NodeBuilder) Name(name string) *NodeBuilder {
	n.record.Name = name
	return n
}

// Type sets the emulator backend of the node.
func (n *NodeBuilder) Type(t domain.NodeType) *NodeBuilder {
	n.record.NodeType = t
	return n
}

// On places the node on a compute.
func (n *NodeBuilder) On(computeID string) *NodeBuilder {
	n.record.ComputeID = computeID
	return n
}

// Set adds a backend property, e.g. Set("image", "c7200.image").
func (n *NodeBuilder) Set(key string, value any) *NodeBuilder {
	n.record.Properties[key] = value
	return n
}

// Console records the console port.
func (n *NodeBuilder) Console(port int) *NodeBuilder {
	n.record.Console = port
	return n
}

// Started records the node as running.
func (n *NodeBuilder) Started() *NodeBuilder {
	n.record.Status = domain.NodeStarted
	return n
}

// Build returns the underlying descriptor entry.
func (n *NodeBuilder) Build() domain.NodeRecord {
	return n.record
}

// ComputeBuilder provides a fluent API for describing a compute.
type ComputeBuilder struct {
	record domain.ComputeRecord
}

// At sets where the compute listens.
func (c *ComputeBuilder) At(host string, port int) *ComputeBuilder {
	c.record.Host = host
	c.record.Port = port
	return c
}

// Protocol sets http or https (default: http).
func (c *ComputeBuilder) Protocol(protocol string) *ComputeBuilder {
	c.record.Protocol = protocol
	return c
}

// User sets the user name sent to the compute.
func (c *ComputeBuilder) User(user string) *ComputeBuilder {
	c.record.User = user
	return c
}
