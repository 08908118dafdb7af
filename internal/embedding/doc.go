// Package embedding turns task and result text into fixed-length vectors
// for the memory store. The default Hashing embedder runs offline; the
// openai subpackage calls a hosted embeddings endpoint.
package embedding
