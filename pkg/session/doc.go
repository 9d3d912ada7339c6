/*
Package session serializes the long-running operations of a project.

Opening, closing, exporting and deleting a project must not interleave. The
Manager keeps one reference-counted local lock per key and, when controller
replicas share a project registry, also takes a distributed lock through a
ports.Locker such as the Redis adapter.
*/
package session
