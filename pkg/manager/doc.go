/*
Package manager implements session lifecycle management over a shared
key-value store.

The Manager owns CRUD over session records plus the operations that need
whole-keyspace awareness: per-user counting, per-user bulk invalidation,
concurrency-limit eviction, stats, and expiry cleanup. All authoritative
state lives in the store; the manager keeps no mutable shared state of its
own, so a single instance is safe to use from the request path and from
background schedules at the same time.

Cleanup, stats and invalidation walk the keyspace and must stay off the
request hot path; run them from the monitor's schedule or an explicit
admin trigger.
*/
package manager
