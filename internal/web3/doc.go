// Package web3 defines the read-only chain access used by the agent's
// blockchain tools: a snapshot of the connected network and a small set of
// account queries. Implementations live in subpackages such as ethereum.
package web3
