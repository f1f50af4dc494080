/*
Package monitor provides the supervisory loop over the session manager.

It schedules periodic cleanup and metrics refreshes, detects anomalies in
the session population, and raises rate-limited alerts. The monitor is
never part of the request path and only mutates session state by
delegating to the manager.
*/
package monitor
