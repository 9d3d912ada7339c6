package domain

import (
	"reflect"
	"sort"
)

// TopologyDiff represents the changes between two descriptors of a project.
// It is designed to be serialized to JSON for partial updates on the client.
type TopologyDiff struct {
	// ProjectID is always present to identify the target.
	ProjectID string `json:"project_id"`

	// Name changed?
	Name *string `json:"name,omitempty"`

	// Nodes lists added, removed and changed nodes by ID.
	Nodes *RecordDelta `json:"nodes,omitempty"`

	// Links lists added, removed and rewired links by ID.
	Links *RecordDelta `json:"links,omitempty"`
}

// RecordDelta groups record IDs by kind of change. Each list is sorted.
type RecordDelta struct {
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
	Changed []string `json:"changed,omitempty"`
}

// Diff calculates the difference between oldDesc and newDesc.
// If oldDesc is nil, it returns a diff representing the entire newDesc (initial load).
// It returns nil when nothing changed.
func Diff(oldDesc, newDesc *Topology) *TopologyDiff {
	if newDesc == nil {
		return nil
	}
	if oldDesc == nil {
		oldDesc = &Topology{}
	}

	diff := &TopologyDiff{ProjectID: newDesc.ProjectID}
	if oldDesc.Name != newDesc.Name {
		diff.Name = &newDesc.Name
	}

	oldNodes := make(map[string]any, len(oldDesc.Topology.Nodes))
	for _, n := range oldDesc.Topology.Nodes {
		oldNodes[n.NodeID] = n
	}
	newNodes := make(map[string]any, len(newDesc.Topology.Nodes))
	for _, n := range newDesc.Topology.Nodes {
		newNodes[n.NodeID] = n
	}
	diff.Nodes = diffRecords(oldNodes, newNodes)

	oldLinks := make(map[string]any, len(oldDesc.Topology.Links))
	for _, l := range oldDesc.Topology.Links {
		oldLinks[l.LinkID] = l
	}
	newLinks := make(map[string]any, len(newDesc.Topology.Links))
	for _, l := range newDesc.Topology.Links {
		newLinks[l.LinkID] = l
	}
	diff.Links = diffRecords(oldLinks, newLinks)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffRecords(old, new map[string]any) *RecordDelta {
	delta := &RecordDelta{}

	// Check for Added or Modified
	for id, newVal := range new {
		oldVal, exists := old[id]
		if !exists {
			delta.Added = append(delta.Added, id)
		} else if !reflect.DeepEqual(oldVal, newVal) {
			delta.Changed = append(delta.Changed, id)
		}
	}

	// Check for Deletions
	for id := range old {
		if _, exists := new[id]; !exists {
			delta.Removed = append(delta.Removed, id)
		}
	}

	if len(delta.Added)+len(delta.Removed)+len(delta.Changed) == 0 {
		return nil
	}
	sort.Strings(delta.Added)
	sort.Strings(delta.Removed)
	sort.Strings(delta.Changed)
	return delta
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *TopologyDiff) IsEmpty() bool {
	return d.Name == nil && d.Nodes == nil && d.Links == nil
}
