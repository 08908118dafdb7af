package tools

import (
	"context"
	"fmt"
	"strings"

	"AutoAgent/internal/web3"
	"AutoAgent/internal/web3/ethereum"

	"github.com/ethereum/go-ethereum/crypto"
)

// chainTools 仅在配置了链读取器时注册；keccak256_hasher 不依赖网络，总是可用。
func chainTools(reader web3.Reader) []Tool {
	list := []Tool{
		{Name: "keccak256_hasher", Description: "Hex Keccak-256 digest of text.", Run: keccak256},
	}
	if reader == nil {
		return list
	}
	return append(list,
		Tool{Name: "eth_chain_snapshot", Description: "Chain id and latest block of the configured network.", Run: func(ctx context.Context, _ string) (string, error) {
			snapshot, err := reader.FetchChainSnapshot(ctx)
			if err != nil {
				return "", err
			}
			return snapshot.String(), nil
		}},
		Tool{Name: "eth_balance", Description: "Balance in wei (hex) of an address.", Run: chainAction(reader, ethereum.ActionGetBalance)},
		Tool{Name: "eth_nonce", Description: "Pending transaction count (hex) of an address.", Run: chainAction(reader, ethereum.ActionGetTransactionCount)},
	)
}

func chainAction(reader web3.Reader, action string) Func {
	return func(ctx context.Context, arg string) (string, error) {
		value, err := reader.ExecuteAction(ctx, action, arg)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s(%s) = %s", action, strings.TrimSpace(arg), value), nil
	}
}

func keccak256(_ context.Context, arg string) (string, error) {
	return crypto.Keccak256Hash([]byte(arg)).Hex(), nil
}
