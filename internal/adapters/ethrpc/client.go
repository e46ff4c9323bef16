// Package ethrpc talks to a node's JSON-RPC endpoint through ethclient.
package ethrpc

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"

	"github.com/eleven-am/poanet/internal/domain"
	"github.com/eleven-am/poanet/internal/ports"
)

// backend is the subset of *ethclient.Client used here.
type backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	Close()
}

type Dialer struct{}

func NewDialer() *Dialer {
	return &Dialer{}
}

func (d *Dialer) Dial(ctx context.Context, url string) (ports.ChainClient, error) {
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Client{url: url, backend: c}, nil
}

type Client struct {
	url     string
	backend backend
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber on %s: %w", c.url, err)
	}
	return n, nil
}

// Transfer sends a plain value transfer signed with privateKey and returns
// the transaction hash. It does not wait for inclusion.
func (c *Client) Transfer(ctx context.Context, privateKey, to string, wei *big.Int) (string, error) {
	if !common.IsHexAddress(to) {
		return "", domain.NewValidationError("recipient", "not a 20-byte hex address", to)
	}
	if wei == nil || wei.Sign() <= 0 {
		return "", domain.NewValidationError("amount", "must be positive", fmt.Sprint(wei))
	}
	key, err := crypto.HexToECDSA(domain.StripHexPrefix(strings.TrimSpace(privateKey)))
	if err != nil {
		return "", domain.NewValidationError("private key", err.Error(), "")
	}
	from := crypto.PubkeyToAddress(key.PublicKey)

	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return "", fmt.Errorf("eth_chainId: %w", err)
	}
	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("pending nonce for %s: %w", from.Hex(), err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("suggest gas price: %w", err)
	}

	recipient := common.HexToAddress(to)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &recipient,
		Value:    new(big.Int).Set(wei),
		Gas:      params.TxGas,
		GasPrice: gasPrice,
	})
	signed, err := types.SignTx(tx, types.NewEIP155Signer(chainID), key)
	if err != nil {
		return "", fmt.Errorf("sign transfer: %w", err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send transfer: %w", err)
	}
	return signed.Hash().Hex(), nil
}

func (c *Client) Close() {
	c.backend.Close()
}
