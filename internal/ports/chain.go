package ports

import (
	"context"
	"math/big"
)

type ChainClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	// Transfer signs a value transfer with privateKey and submits it.
	Transfer(ctx context.Context, privateKey, to string, wei *big.Int) (string, error)
	Close()
}

type ChainDialer interface {
	Dial(ctx context.Context, url string) (ChainClient, error)
}
