/*
Package ports defines the driven ports (interfaces) of the topolab controller.

These interfaces decouple the topology core from transports and persistence, so
the same core runs against real compute agents, fakes in tests, or alternative stores.

# Key Interfaces

  - ComputeClient: typed RPC access to one compute agent.
  - ProjectStore: persistence of the project registry (memory, files, Redis, Badger).
  - EventPublisher: delivery of project notifications (e.g. NATS).
  - ImageStore: lookup of local image directories by store name.
  - Locker: a lock shared by controller replicas, expiring after a TTL.
*/
package ports
