// Package storage persists the ordered list of completed task records.
//
// Every backend follows the same contract: Load returns the full history at
// startup and Save rewrites the full history after each completed task,
// returning only once the write is durable. FileStore writes a JSON file;
// the mysql and redis subpackages provide shared backends with the same
// semantics.
package storage
