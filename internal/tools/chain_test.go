package tools

import (
	"context"
	"errors"
	"testing"

	"AutoAgent/internal/llm"
	"AutoAgent/internal/web3"
	"AutoAgent/internal/web3/ethereum"
)

type stubChain struct {
	actions []string
	err     error
}

func (s *stubChain) FetchChainSnapshot(context.Context) (web3.ChainSnapshot, error) {
	return web3.ChainSnapshot{ChainID: "0x1", BlockNumber: "0x10"}, s.err
}

func (s *stubChain) ExecuteAction(_ context.Context, action, address string) (string, error) {
	s.actions = append(s.actions, action+":"+address)
	if s.err != nil {
		return "", s.err
	}
	return "0x2a", nil
}

func (s *stubChain) Close() {}

func TestChainTools(t *testing.T) {
	chain := &stubChain{}
	registry, err := NewRegistry(chainTools(chain)...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	if out := registry.Dispatch(ctx, "eth_chain_snapshot", ""); out.Failed || out.Output != "chain_id=0x1 block=0x10" {
		t.Fatalf("unexpected snapshot %+v", out)
	}
	if out := registry.Dispatch(ctx, "eth_balance", " 0xabc "); out.Failed || out.Output != "eth_getBalance(0xabc) = 0x2a" {
		t.Fatalf("unexpected balance %+v", out)
	}
	if out := registry.Dispatch(ctx, "eth_nonce", "0xabc"); out.Failed {
		t.Fatalf("unexpected nonce failure %+v", out)
	}
	if len(chain.actions) != 2 || chain.actions[1] != ethereum.ActionGetTransactionCount+":0xabc" {
		t.Fatalf("unexpected actions %v", chain.actions)
	}

	chain.err = errors.New("rpc down")
	if out := registry.Dispatch(ctx, "eth_balance", "0xabc"); !out.Failed || out.Output != "rpc down" {
		t.Fatalf("expected failure, got %+v", out)
	}
}

func TestChainToolsWithoutReader(t *testing.T) {
	registry, _ := NewRegistry(chainTools(nil)...)
	if registry.Len() != 1 {
		t.Fatalf("expected only keccak256_hasher, got %d tools", registry.Len())
	}
	out := registry.Dispatch(context.Background(), "keccak256_hasher", "")
	if out.Output != "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470" {
		t.Fatalf("unexpected digest %q", out.Output)
	}
}

func TestSummarizeTool(t *testing.T) {
	registry, _ := NewRegistry(summarizeTool(nil))
	if out := registry.Dispatch(context.Background(), "summarize_text", "text"); !out.Failed {
		t.Fatalf("expected failure without backend")
	}
}

func TestSummarizeToolUsesBackend(t *testing.T) {
	client := llm.NewScripted("short version")
	registry, _ := NewRegistry(summarizeTool(client))
	out := registry.Dispatch(context.Background(), "summarize_text", "a very long text")
	if out.Failed || out.Output != "short version" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if prompts := client.Prompts(); len(prompts) != 1 || prompts[0] != SummaryPrompt("a very long text") {
		t.Fatalf("unexpected prompts %q", prompts)
	}
}
