package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/topolab/pkg/domain"
)

// Summary describes a topology as markdown: its computes, nodes and links.
func Summary(desc *domain.Topology) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", desc.Name)
	fmt.Fprintf(&sb, "Project `%s`, revision %d", desc.ProjectID, desc.Revision)
	if desc.Version != "" {
		fmt.Fprintf(&sb, ", written by %s", desc.Version)
	}
	sb.WriteString(".\n\n")

	if len(desc.Topology.Computes) > 0 {
		sb.WriteString("## Computes\n\n| ID | Endpoint |\n|---|---|\n")
		for _, c := range desc.Topology.Computes {
			protocol := c.Protocol
			if protocol == "" {
				protocol = "http"
			}
			fmt.Fprintf(&sb, "| %s | %s://%s:%d |\n", c.ComputeID, protocol, c.Host, c.Port)
		}
		sb.WriteString("\n")
	}

	names := make(map[string]string, len(desc.Topology.Nodes))
	fmt.Fprintf(&sb, "## Nodes (%d)\n\n", len(desc.Topology.Nodes))
	if len(desc.Topology.Nodes) > 0 {
		sb.WriteString("| Name | Type | Compute | Console | Status |\n|---|---|---|---|---|\n")
		for _, n := range desc.Topology.Nodes {
			names[n.NodeID] = n.Name
			console := "-"
			if n.Console != 0 {
				console = fmt.Sprint(n.Console)
			}
			status := string(n.Status)
			if status == "" {
				status = string(domain.NodeStopped)
			}
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n", n.Name, n.NodeType, n.ComputeID, console, status)
		}
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "## Links (%d)\n\n", len(desc.Topology.Links))
	for _, l := range desc.Topology.Links {
		if len(l.Nodes) != 2 {
			continue
		}
		a, b := l.Nodes[0], l.Nodes[1]
		fmt.Fprintf(&sb, "- %s %d/%d ↔ %s %d/%d\n",
			nameOr(names, a.NodeID), a.AdapterNumber, a.PortNumber,
			nameOr(names, b.NodeID), b.AdapterNumber, b.PortNumber)
	}
	return sb.String()
}

func nameOr(names map[string]string, id string) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return id
}
