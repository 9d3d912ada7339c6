/*
Package topology holds the project aggregate: the nodes placed on computes, the
links between their ports, and the descriptor that persists them.

Every change goes to the owning compute first. Local state (node status, link
table) moves only after the compute acknowledged, so a failed call leaves the
project exactly as it was. Links between nodes on different computes are wired
through a TransportPolicy, which returns one nio.Spec binding per side;
UDPTunnel is the default. Removing a node releases the peer side of every link
that touched it.

A project is either opened (live on its computes) or closed. Load builds a
closed project from a descriptor; Open recreates its nodes and links remotely.
*/
package topology
