package fakes

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/eleven-am/poanet/internal/ports"
)

type Transfer struct {
	URL        string
	PrivateKey string
	To         string
	Wei        *big.Int
}

// Chain hands out clients whose block height advances by one per query.
type Chain struct {
	mu sync.Mutex

	DialErr     error
	BlockErr    error
	TransferErr error
	// Hang makes BlockNumber block until its context ends.
	Hang bool

	height    uint64
	dialed    []string
	transfers []Transfer
	open      int
}

func NewChain() *Chain {
	return &Chain{}
}

func (c *Chain) Dial(ctx context.Context, url string) (ports.ChainClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.DialErr != nil {
		return nil, c.DialErr
	}
	c.dialed = append(c.dialed, url)
	c.open++
	return &chainClient{chain: c, url: url}, nil
}

// SetHang changes Hang while clients may be polling.
func (c *Chain) SetHang(hang bool) {
	c.mu.Lock()
	c.Hang = hang
	c.mu.Unlock()
}

// SetBlockErr changes BlockErr while clients may be polling.
func (c *Chain) SetBlockErr(err error) {
	c.mu.Lock()
	c.BlockErr = err
	c.mu.Unlock()
}

func (c *Chain) Dialed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.dialed...)
}

func (c *Chain) Transfers() []Transfer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Transfer(nil), c.transfers...)
}

func (c *Chain) OpenClients() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

type chainClient struct {
	chain  *Chain
	url    string
	closed bool
}

func (cc *chainClient) BlockNumber(ctx context.Context) (uint64, error) {
	cc.chain.mu.Lock()
	hang := cc.chain.Hang
	cc.chain.mu.Unlock()
	if hang {
		<-ctx.Done()
		return 0, ctx.Err()
	}

	cc.chain.mu.Lock()
	defer cc.chain.mu.Unlock()
	if cc.closed {
		return 0, errors.New("client closed")
	}
	if cc.chain.BlockErr != nil {
		return 0, cc.chain.BlockErr
	}
	cc.chain.height++
	return cc.chain.height, nil
}

func (cc *chainClient) Transfer(ctx context.Context, privateKey, to string, wei *big.Int) (string, error) {
	cc.chain.mu.Lock()
	defer cc.chain.mu.Unlock()
	if cc.chain.TransferErr != nil {
		return "", cc.chain.TransferErr
	}
	cc.chain.transfers = append(cc.chain.transfers, Transfer{URL: cc.url, PrivateKey: privateKey, To: to, Wei: wei})
	return fmt.Sprintf("0x%064x", len(cc.chain.transfers)), nil
}

func (cc *chainClient) Close() {
	cc.chain.mu.Lock()
	defer cc.chain.mu.Unlock()
	if !cc.closed {
		cc.closed = true
		cc.chain.open--
	}
}
