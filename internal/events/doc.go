// Package events publishes agent lifecycle events (tasks generated, task
// completed, objective changed) to external consumers. Publishing is
// advisory: the agent loop logs failures and keeps going.
package events
