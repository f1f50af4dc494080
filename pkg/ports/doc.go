/*
Package ports defines the driven ports (interfaces) for the session core.

These interfaces decouple the manager and monitor from external
implementations, allowing the core to work with different host stores and
alert consumers.

# Key Interfaces

  - SessionStore: Responsible for persisting, enumerating and indexing session Records.
  - DistributedLocker: Provides per-user advisory locking for atomic session admission.
  - EventSink: Receives monitor lifecycle events and alerts.
*/
package ports
