// Package genesis builds the proof-of-authority genesis document shared by
// every node of a cluster.
package genesis

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-hclog"

	"github.com/eleven-am/poanet/internal/domain"
)

const (
	vanityHexLength    = 64
	signatureHexLength = 130
	addressHexLength   = 40

	DefaultGasLimit   = "0x1fffffffffffff"
	DefaultDifficulty = "0x1"
)

type Account struct {
	Address string
	// Balance is a hex wei amount. Empty or malformed values fall back to
	// domain.DefaultBalanceWei.
	Balance string
}

type Params struct {
	ChainID     uint64
	BlockPeriod uint64
	EpochLength uint64
	// EmptyBlocks controls whether sealers produce blocks without
	// transactions. Nil means true.
	EmptyBlocks *bool
	Validators  []string
	Accounts    []Account
}

type CliqueConfig struct {
	BlockPeriodSeconds uint64 `json:"blockperiodseconds"`
	EpochLength        uint64 `json:"epochlength"`
	CreateEmptyBlocks  bool   `json:"createemptyblocks"`
}

type ChainConfig struct {
	ChainID             uint64       `json:"chainId"`
	HomesteadBlock      uint64       `json:"homesteadBlock"`
	EIP150Block         uint64       `json:"eip150Block"`
	EIP155Block         uint64       `json:"eip155Block"`
	EIP158Block         uint64       `json:"eip158Block"`
	ByzantiumBlock      uint64       `json:"byzantiumBlock"`
	ConstantinopleBlock uint64       `json:"constantinopleBlock"`
	PetersburgBlock     uint64       `json:"petersburgBlock"`
	IstanbulBlock       uint64       `json:"istanbulBlock"`
	MuirGlacierBlock    uint64       `json:"muirGlacierBlock"`
	BerlinBlock         uint64       `json:"berlinBlock"`
	LondonBlock         uint64       `json:"londonBlock"`
	ShanghaiTime        uint64       `json:"shanghaiTime"`
	CancunTime          uint64       `json:"cancunTime"`
	Clique              CliqueConfig `json:"clique"`
}

type Allocation struct {
	Balance string `json:"balance"`
}

type Document struct {
	Config     ChainConfig           `json:"config"`
	Nonce      string                `json:"nonce"`
	Timestamp  string                `json:"timestamp"`
	ExtraData  string                `json:"extraData"`
	GasLimit   string                `json:"gasLimit"`
	Difficulty string                `json:"difficulty"`
	MixHash    string                `json:"mixHash"`
	Coinbase   string                `json:"coinbase"`
	Alloc      map[string]Allocation `json:"alloc"`
}

type Generator struct {
	logger hclog.Logger
}

func NewGenerator(logger hclog.Logger) *Generator {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Generator{logger: logger.Named("genesis")}
}

func (g *Generator) Generate(p Params) (*Document, error) {
	if p.ChainID == 0 {
		return nil, domain.NewValidationError("chain id", "must be a positive integer", "0")
	}
	if p.BlockPeriod < 1 {
		return nil, domain.NewValidationError("block period", "must be at least 1 second", fmt.Sprint(p.BlockPeriod))
	}
	epoch := p.EpochLength
	if epoch == 0 {
		epoch = domain.DefaultEpochLength
	}
	emptyBlocks := true
	if p.EmptyBlocks != nil {
		emptyBlocks = *p.EmptyBlocks
	}

	extraData, err := ExtraData(p.Validators)
	if err != nil {
		return nil, err
	}

	alloc, err := g.allocations(p.Accounts)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Config: ChainConfig{
			ChainID: p.ChainID,
			Clique: CliqueConfig{
				BlockPeriodSeconds: p.BlockPeriod,
				EpochLength:        epoch,
				CreateEmptyBlocks:  emptyBlocks,
			},
		},
		Nonce:      "0x0",
		Timestamp:  "0x0",
		ExtraData:  extraData,
		GasLimit:   DefaultGasLimit,
		Difficulty: DefaultDifficulty,
		MixHash:    "0x" + strings.Repeat("0", 64),
		Coinbase:   "0x" + strings.Repeat("0", addressHexLength),
		Alloc:      alloc,
	}

	g.logger.Debug("genesis generated",
		"chain_id", p.ChainID,
		"validators", len(p.Validators),
		"accounts", len(alloc),
	)
	return doc, nil
}

// ExtraData encodes the initial signer set: 32 zero bytes of vanity, each
// signer address in order, then 65 zero bytes of seal.
func ExtraData(validators []string) (string, error) {
	if len(validators) == 0 {
		return "", domain.NewValidationError("validators", "at least one validator address is required", "")
	}
	var b strings.Builder
	b.Grow(2 + vanityHexLength + addressHexLength*len(validators) + signatureHexLength)
	b.WriteString("0x")
	b.WriteString(strings.Repeat("0", vanityHexLength))
	for _, v := range validators {
		addr, err := normalizeAddress("validator address", v)
		if err != nil {
			return "", err
		}
		b.WriteString(addr)
	}
	b.WriteString(strings.Repeat("0", signatureHexLength))
	return b.String(), nil
}

func (g *Generator) allocations(accounts []Account) (map[string]Allocation, error) {
	alloc := make(map[string]Allocation, len(accounts))
	for _, acc := range accounts {
		addr, err := normalizeAddress("account address", acc.Address)
		if err != nil {
			return nil, err
		}
		if _, dup := alloc[addr]; dup {
			return nil, domain.NewValidationError("account address", "duplicate address", acc.Address)
		}
		alloc[addr] = Allocation{Balance: g.balance(addr, acc.Balance)}
	}
	return alloc, nil
}

func (g *Generator) balance(addr, raw string) string {
	if strings.TrimSpace(raw) == "" {
		return domain.DefaultBalanceWei
	}
	value, ok := new(big.Int).SetString(domain.StripHexPrefix(strings.ToLower(strings.TrimSpace(raw))), 16)
	if !ok || value.Sign() < 0 {
		g.logger.Warn("unparseable balance, using default", "address", addr, "balance", raw)
		return domain.DefaultBalanceWei
	}
	return "0x" + value.Text(16)
}

func normalizeAddress(field, addr string) (string, error) {
	trimmed := strings.TrimSpace(addr)
	if !strings.HasPrefix(trimmed, "0x") && !strings.HasPrefix(trimmed, "0X") {
		trimmed = "0x" + trimmed
	}
	if !common.IsHexAddress(trimmed) {
		return "", domain.NewValidationError(field, "must be a 20-byte hex address", addr)
	}
	return strings.ToLower(trimmed[2:]), nil
}
