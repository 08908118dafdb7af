// Package memory stores completed task/result pairs as embedded vectors and
// answers similarity queries over them. Store combines an embedding.Embedder
// with an Index backend: Local keeps entries in process, Chromem persists
// them with chromem-go, and Qdrant talks to a remote Qdrant collection.
// Entries are write-once; nothing in the agent loop edits or deletes them.
package memory
