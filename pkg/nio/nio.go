package nio

import (
	"fmt"
)

// Kind is the transport variant of a NIO.
type Kind int

const (
	KindNull Kind = iota
	KindUDP
	KindTAP
	KindEthernet
	KindVDE
	KindMulticast
	KindUnix
)

// prefix is the stem of NIO names on the hypervisor, e.g. "nio_vde" -> "nio_vde3".
func (k Kind) prefix() string {
	switch k {
	case KindNull:
		return "nio_null"
	case KindUDP:
		return "nio_udp"
	case KindTAP:
		return "nio_tap"
	case KindEthernet:
		return "nio_gen_eth"
	case KindVDE:
		return "nio_vde"
	case KindMulticast:
		return "nio_mcast"
	case KindUnix:
		return "nio_unix"
	default:
		panic(fmt.Sprintf("nio: unknown kind %d", int(k)))
	}
}

func (k Kind) String() string { return k.prefix() }

// Spec is what a compute agent needs to attach a NIO to a node port: the
// variant and its parameters.
type Spec interface {
	Kind() Kind
	// WireBody is the representation sent to compute agents.
	WireBody() any
}

// NIO is a network-interface bridging object bound to one backend session.
// Values are immutable once created.
type NIO interface {
	Spec
	ID() int
	Name() string
	Session() string
}

type base struct {
	id      int
	kind    Kind
	session string
}

func (b base) ID() int         { return b.id }
func (b base) Kind() Kind      { return b.kind }
func (b base) Session() string { return b.session }
func (b base) Name() string    { return fmt.Sprintf("%s%d", b.kind.prefix(), b.id) }

// Null discards all traffic.
type Null struct{ base }

func (n *Null) WireBody() any { return map[string]any{"type": "nio_null"} }

// UDP tunnels frames to a remote UDP endpoint.
type UDP struct {
	base
	lport int
	rhost string
	rport int
}

func (n *UDP) LocalPort() int     { return n.lport }
func (n *UDP) RemoteHost() string { return n.rhost }
func (n *UDP) RemotePort() int    { return n.rport }

func (n *UDP) WireBody() any {
	return map[string]any{"type": "nio_udp", "lport": n.lport, "rhost": n.rhost, "rport": n.rport}
}

// TAP attaches to a host TAP device.
type TAP struct {
	base
	device string
}

func (n *TAP) Device() string { return n.device }

func (n *TAP) WireBody() any {
	return map[string]any{"type": "nio_tap", "tap_device": n.device}
}

// Ethernet attaches to a host Ethernet interface.
type Ethernet struct {
	base
	device string
}

func (n *Ethernet) Device() string { return n.device }

func (n *Ethernet) WireBody() any {
	return map[string]any{"type": "nio_generic_ethernet", "ethernet_device": n.device}
}

// VDE attaches to a Virtual Distributed Ethernet switch.
type VDE struct {
	base
	controlFile string
	localFile   string
}

// ControlFile returns the VDE switch control socket path.
func (n *VDE) ControlFile() string { return n.controlFile }

// LocalFile returns the local socket path.
func (n *VDE) LocalFile() string { return n.localFile }

func (n *VDE) WireBody() any {
	return map[string]any{"type": "nio_vde", "control_file": n.controlFile, "local_file": n.localFile}
}

// Multicast joins a multicast group.
type Multicast struct {
	base
	group string
	port  int
}

func (n *Multicast) Group() string { return n.group }
func (n *Multicast) Port() int     { return n.port }

func (n *Multicast) WireBody() any {
	return map[string]any{"type": "nio_mcast", "mgroup": n.group, "mport": n.port}
}

// Unix tunnels frames over a pair of unix datagram sockets.
type Unix struct {
	base
	local  string
	remote string
}

func (n *Unix) LocalFile() string  { return n.local }
func (n *Unix) RemoteFile() string { return n.remote }

func (n *Unix) WireBody() any {
	return map[string]any{"type": "nio_unix", "local_file": n.local, "remote_file": n.remote}
}
