package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Properties is the typed view of a node's opaque backend properties.
// Each backend carries only its own parameter set.
type Properties interface {
	// Images returns the property keys naming image files, mapped to their current value.
	// Empty values are omitted.
	Images() map[string]string
}

// DynamipsProperties are the Cisco IOS router settings.
type DynamipsProperties struct {
	Platform string `mapstructure:"platform"`
	Image    string `mapstructure:"image"`
	RAM      int    `mapstructure:"ram"`
	NVRAM    int    `mapstructure:"nvram"`
	IdlePC   string `mapstructure:"idlepc"`
}

func (p *DynamipsProperties) Images() map[string]string {
	return nonEmpty(map[string]string{"image": p.Image})
}

// IOUProperties are the IOS-on-Unix settings.
type IOUProperties struct {
	Path          string `mapstructure:"path"`
	Ethernet      int    `mapstructure:"ethernet_adapters"`
	Serial        int    `mapstructure:"serial_adapters"`
	StartupConfig string `mapstructure:"startup_config"`
}

func (p *IOUProperties) Images() map[string]string {
	return nonEmpty(map[string]string{"path": p.Path})
}

// QemuProperties are the Qemu VM settings.
type QemuProperties struct {
	HdaDiskImage string `mapstructure:"hda_disk_image"`
	HdbDiskImage string `mapstructure:"hdb_disk_image"`
	HdcDiskImage string `mapstructure:"hdc_disk_image"`
	HddDiskImage string `mapstructure:"hdd_disk_image"`
	CdromImage   string `mapstructure:"cdrom_image"`
	Initrd       string `mapstructure:"initrd"`
	KernelImage  string `mapstructure:"kernel_image"`
	RAM          int    `mapstructure:"ram"`
	Adapters     int    `mapstructure:"adapters"`
}

func (p *QemuProperties) Images() map[string]string {
	return nonEmpty(map[string]string{
		"hda_disk_image": p.HdaDiskImage,
		"hdb_disk_image": p.HdbDiskImage,
		"hdc_disk_image": p.HdcDiskImage,
		"hdd_disk_image": p.HddDiskImage,
		"cdrom_image":    p.CdromImage,
		"initrd":         p.Initrd,
		"kernel_image":   p.KernelImage,
	})
}

// VPCSProperties are the virtual PC simulator settings.
type VPCSProperties struct {
	StartupScript string `mapstructure:"startup_script"`
}

func (p *VPCSProperties) Images() map[string]string { return nil }

// DockerProperties reference a container image by registry name, not by file.
type DockerProperties struct {
	Image    string `mapstructure:"image"`
	Adapters int    `mapstructure:"adapters"`
}

func (p *DockerProperties) Images() map[string]string { return nil }

// VMProperties cover host-local VM managers (VirtualBox, VMware).
type VMProperties struct {
	VMName  string `mapstructure:"vmname"`
	VMXPath string `mapstructure:"vmx_path"`
}

func (p *VMProperties) Images() map[string]string { return nil }

// BuiltinProperties cover the controller-side builtins (switch, hub, cloud, nat).
type BuiltinProperties struct {
	Ports []map[string]any `mapstructure:"ports_mapping"`
}

func (p *BuiltinProperties) Images() map[string]string { return nil }

// DecodeProperties decodes the opaque property map of a node into its typed variant.
// Unknown keys are ignored; a type mismatch on a known key is an error.
func DecodeProperties(t NodeType, raw map[string]any) (Properties, error) {
	var out Properties
	switch t {
	case NodeTypeDynamips:
		out = &DynamipsProperties{}
	case NodeTypeIOU:
		out = &IOUProperties{}
	case NodeTypeQemu:
		out = &QemuProperties{}
	case NodeTypeVPCS:
		out = &VPCSProperties{}
	case NodeTypeDocker:
		out = &DockerProperties{}
	case NodeTypeVirtualBox, NodeTypeVMware:
		out = &VMProperties{}
	case NodeTypeCloud, NodeTypeEthernetSwitch, NodeTypeEthernetHub, NodeTypeNAT:
		out = &BuiltinProperties{}
	default:
		return nil, fmt.Errorf("unsupported node type %q", t)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create property decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode %s properties: %w", t, err)
	}
	return out, nil
}

func nonEmpty(m map[string]string) map[string]string {
	for k, v := range m {
		if v == "" {
			delete(m, k)
		}
	}
	return m
}
