package domain

import (
	"encoding/json"
	"fmt"
)

// NodeType identifies the emulator backend of a node.
// The set is closed: ParseNodeType rejects any other tag.
type NodeType int

const (
	NodeTypeUnknown NodeType = iota
	NodeTypeVPCS
	NodeTypeDynamips
	NodeTypeIOU
	NodeTypeQemu
	NodeTypeVirtualBox
	NodeTypeVMware
	NodeTypeDocker
	NodeTypeCloud
	NodeTypeEthernetSwitch
	NodeTypeEthernetHub
	NodeTypeNAT
)

var nodeTypeNames = map[NodeType]string{
	NodeTypeVPCS:           "vpcs",
	NodeTypeDynamips:       "dynamips",
	NodeTypeIOU:            "iou",
	NodeTypeQemu:           "qemu",
	NodeTypeVirtualBox:     "virtualbox",
	NodeTypeVMware:         "vmware",
	NodeTypeDocker:         "docker",
	NodeTypeCloud:          "cloud",
	NodeTypeEthernetSwitch: "ethernet_switch",
	NodeTypeEthernetHub:    "ethernet_hub",
	NodeTypeNAT:            "nat",
}

// NodeTypes lists every supported node type.
func NodeTypes() []NodeType {
	return []NodeType{
		NodeTypeVPCS, NodeTypeDynamips, NodeTypeIOU, NodeTypeQemu, NodeTypeVirtualBox,
		NodeTypeVMware, NodeTypeDocker, NodeTypeCloud, NodeTypeEthernetSwitch,
		NodeTypeEthernetHub, NodeTypeNAT,
	}
}

// ParseNodeType maps a wire tag such as "dynamips" to its NodeType.
func ParseNodeType(s string) (NodeType, error) {
	for t, name := range nodeTypeNames {
		if name == s {
			return t, nil
		}
	}
	return NodeTypeUnknown, fmt.Errorf("unsupported node type %q", s)
}

func (t NodeType) String() string {
	if name, ok := nodeTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Portable reports whether projects holding this node type may be exported.
// VM-manager backends reference host-local machines that cannot travel in an archive.
func (t NodeType) Portable() bool {
	switch t {
	case NodeTypeVirtualBox, NodeTypeVMware, NodeTypeCloud:
		return false
	default:
		return true
	}
}

// ImageStore returns the name of the image store holding this backend's images,
// or "" when the backend has no image files.
func (t NodeType) ImageStore() string {
	switch t {
	case NodeTypeDynamips:
		return "IOS"
	case NodeTypeIOU:
		return "IOU"
	case NodeTypeQemu:
		return "QEMU"
	default:
		return ""
	}
}

func (t NodeType) MarshalJSON() ([]byte, error) {
	if t == NodeTypeUnknown {
		return nil, fmt.Errorf("cannot marshal unknown node type")
	}
	return json.Marshal(t.String())
}

func (t *NodeType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseNodeType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
