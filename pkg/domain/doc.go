/*
Package domain holds the core types of the session lifecycle system:
the session Record wire shape, stats snapshots, the monitor's rolling
Metrics, Alert events, and the sentinel errors shared across components.

The store is the single source of truth for session existence; everything
in this package is either a value persisted there (Record) or a transient
view reconstructed from it (StatsSnapshot, Metrics, Alert).
*/
package domain
