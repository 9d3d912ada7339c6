package nio

// The constructors below build detached NIOs: a Spec for a port that a compute
// agent binds itself, with no hypervisor session and no identifier.

// NullBinding discards the port's traffic.
func NullBinding() *Null {
	return &Null{base: base{kind: KindNull}}
}

// UDPBinding tunnels the port to rhost:rport, receiving on lport.
func UDPBinding(lport int, rhost string, rport int) *UDP {
	return &UDP{base: base{kind: KindUDP}, lport: lport, rhost: rhost, rport: rport}
}

// TAPBinding attaches the port to a host TAP device.
func TAPBinding(device string) *TAP {
	return &TAP{base: base{kind: KindTAP}, device: device}
}

// EthernetBinding attaches the port to a host Ethernet interface.
func EthernetBinding(device string) *Ethernet {
	return &Ethernet{base: base{kind: KindEthernet}, device: device}
}
