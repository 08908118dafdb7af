package web3

import "context"

// ChainSnapshot represents summarized network metadata.
type ChainSnapshot struct {
	ChainID     string
	BlockNumber string
	Notes       string
}

// String renders the snapshot the way chain tools report it.
func (s ChainSnapshot) String() string {
	out := "chain_id=" + s.ChainID + " block=" + s.BlockNumber
	if s.Notes != "" {
		out += " (" + s.Notes + ")"
	}
	return out
}

// Reader is the read-only view of a chain that agent tools rely on. Values
// are hex quantities as returned by the JSON-RPC API.
type Reader interface {
	FetchChainSnapshot(ctx context.Context) (ChainSnapshot, error)
	ExecuteAction(ctx context.Context, action, address string) (string, error)
	Close()
}
