/*
Package domain contains the core types of the topolab controller.

It defines the vocabulary shared by every other package: the closed set of node
backends, their typed properties, the on-disk topology descriptor, notifications and
the single typed error used across the core. The package is kept free of I/O.

# Key Entities

  - NodeType: the emulator backend of a node (closed enumeration).
  - Properties: the typed, per-backend view of a node's opaque property map.
  - Topology: the JSON descriptor persisted in a project directory and in archives.
  - Error: the typed failure carrying one Kind (configuration, connection, conflict,
    backend command, archive).
  - TopologyDiff: the node and link changes between two descriptors.
*/
package domain
