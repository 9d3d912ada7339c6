package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/topolab/pkg/domain"
)

// GenerateMermaid produces a Mermaid flowchart of a topology descriptor.
// Node shapes follow the emulator family:
// - Switches and hubs: [[Subroutine]]
// - Cloud and NAT: ((Circle))
// - Routers (Dynamips, IOU): {{Hexagon}}
// - Default: [Rectangle]
// Nodes are grouped by compute, and started nodes are highlighted.
func GenerateMermaid(desc *domain.Topology) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	byCompute := make(map[string][]domain.NodeRecord)
	var order []string
	for _, n := range desc.Topology.Nodes {
		if _, ok := byCompute[n.ComputeID]; !ok {
			order = append(order, n.ComputeID)
		}
		byCompute[n.ComputeID] = append(byCompute[n.ComputeID], n)
	}

	for _, computeID := range order {
		fmt.Fprintf(&sb, "    subgraph %s[\"%s\"]\n", sanitizeMermaidID("compute_"+computeID), computeID)
		for _, n := range byCompute[computeID] {
			opener, closer := shape(n.NodeType)
			fmt.Fprintf(&sb, "        %s%s\"%s <br/> %s\"%s\n", sanitizeMermaidID(n.NodeID), opener, quote(n.Name), n.NodeType, closer)
		}
		sb.WriteString("    end\n")
	}

	for _, l := range desc.Topology.Links {
		if len(l.Nodes) != 2 {
			continue
		}
		a, b := l.Nodes[0], l.Nodes[1]
		fmt.Fprintf(&sb, "    %s -- \"%d/%d - %d/%d\" --- %s\n",
			sanitizeMermaidID(a.NodeID), a.AdapterNumber, a.PortNumber, b.AdapterNumber, b.PortNumber,
			sanitizeMermaidID(b.NodeID))
	}

	var started []string
	for _, n := range desc.Topology.Nodes {
		if n.Status == domain.NodeStarted {
			started = append(started, sanitizeMermaidID(n.NodeID))
		}
	}
	if len(started) > 0 {
		sb.WriteString("\n    %% Status Styles\n")
		// Force black text (color:#000) for contrast on any theme
		sb.WriteString("    classDef started fill:#c8e6c9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		fmt.Fprintf(&sb, "    class %s started;\n", strings.Join(started, ","))
	}

	return sb.String()
}

func shape(t domain.NodeType) (string, string) {
	switch t {
	case domain.NodeTypeEthernetSwitch, domain.NodeTypeEthernetHub:
		return "[[", "]]"
	case domain.NodeTypeCloud, domain.NodeTypeNAT:
		return "((", "))"
	case domain.NodeTypeDynamips, domain.NodeTypeIOU:
		return "{{", "}}"
	default:
		return "[", "]"
	}
}

func quote(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
