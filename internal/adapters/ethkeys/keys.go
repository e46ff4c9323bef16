// Package ethkeys implements node identities on secp256k1 keys.
package ethkeys

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/eleven-am/poanet/internal/domain"
)

type Generator struct{}

func New() *Generator {
	return &Generator{}
}

func (g *Generator) Generate() (domain.NodeIdentity, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return domain.NodeIdentity{}, fmt.Errorf("generate key: %w", err)
	}
	return identityOf(key), nil
}

// FromSeed derives a deterministic identity whose private key is the
// keccak256 digest of seed.
func (g *Generator) FromSeed(seed string) (domain.NodeIdentity, error) {
	if seed == "" {
		return domain.NodeIdentity{}, domain.NewValidationError("seed", "must not be empty", seed)
	}
	key, err := crypto.ToECDSA(crypto.Keccak256([]byte(seed)))
	if err != nil {
		return domain.NodeIdentity{}, domain.NewValidationError("seed", err.Error(), seed)
	}
	return identityOf(key), nil
}

func (g *Generator) FromPrivateKey(privateKey string) (domain.NodeIdentity, error) {
	key, err := crypto.HexToECDSA(domain.StripHexPrefix(strings.TrimSpace(privateKey)))
	if err != nil {
		return domain.NodeIdentity{}, domain.NewValidationError("private key", err.Error(), "")
	}
	return identityOf(key), nil
}

// identityOf renders key as hex. The public key omits the 0x04
// uncompressed-point marker, matching what the chain client writes to key.pub.
func identityOf(key *ecdsa.PrivateKey) domain.NodeIdentity {
	pub := crypto.FromECDSAPub(&key.PublicKey)
	return domain.NodeIdentity{
		Address:    strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex()),
		PublicKey:  "0x" + hex.EncodeToString(pub[1:]),
		PrivateKey: "0x" + hex.EncodeToString(crypto.FromECDSA(key)),
	}
}
