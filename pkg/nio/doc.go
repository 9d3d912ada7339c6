/*
Package nio creates network-interface bridging objects (NIOs) on emulator backends.

A NIO attaches an emulated port to a concrete transport: a UDP tunnel, a TAP or
Ethernet device, a VDE switch, a multicast group, a unix socket pair, or nothing.
Each construction sends exactly one command on the owning session's control
channel and blocks until it is acknowledged or rejected.

Identifiers come from the session's Allocator, never from package state, so two
sessions cannot collide and tests need no reset hook.
*/
package nio
