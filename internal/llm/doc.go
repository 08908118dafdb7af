// Package llm defines the completion backend used by the agent loop: a
// stateless prompt-in, text-out client. Provider adapters live in the
// subpackages (an OpenAI-compatible HTTP client and a bridge to a local
// model script), and Scripted provides a deterministic double for tests.
package llm
