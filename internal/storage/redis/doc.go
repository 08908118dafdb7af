// Package redis stores completed task records as a Redis list. Each save
// replaces the list atomically with MULTI/EXEC so readers never observe a
// partially written history.
package redis
