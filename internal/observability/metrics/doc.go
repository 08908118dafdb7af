// Package metrics exposes Prometheus counters for the agent loop: executed
// tasks, tool calls, completion backend calls and the pending queue length.
package metrics
