// Package api exposes a read-only HTTP status surface next to the interactive
// loop: completed records from the results store, memory recall, Prometheus
// metrics and a liveness check. It never mutates agent state.
package api
