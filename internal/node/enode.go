package node

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/p2p/enode"

	"github.com/eleven-am/poanet/internal/domain"
)

// EnodeURL reads the node's public key from inside its container and
// composes the peer address other nodes bootstrap from.
func (n *Node) EnodeURL(ctx context.Context) (string, error) {
	if current := n.Status(); current != domain.NodeRunning {
		return "", n.invalidState("get enode url", current, domain.NodeRunning)
	}
	id := n.ContainerID()
	if id == "" {
		return "", fmt.Errorf("node %s: %w", n.Name(), domain.ErrContainerNotAssociated)
	}

	keyPath := filepath.ToSlash(filepath.Join(domain.ContainerDataDir, domain.PublicKeyFile))
	out, err := n.runtime.Exec(ctx, id, []string{"cat", keyPath})
	if err != nil {
		return "", err
	}
	return EnodeURL(out, n.cfg.Spec.IP)
}

// EnodeURL builds an enode:// URL from a hex public key (64 bytes, with or
// without the 0x04 marker) and an IPv4 address, using the fixed p2p port.
func EnodeURL(publicKey, ip string) (string, error) {
	raw, err := hex.DecodeString(domain.StripHexPrefix(strings.TrimSpace(publicKey)))
	if err != nil {
		return "", fmt.Errorf("decode public key: %w", err)
	}
	if len(raw) == 64 {
		raw = append([]byte{0x04}, raw...)
	}
	pub, err := crypto.UnmarshalPubkey(raw)
	if err != nil {
		return "", fmt.Errorf("parse public key: %w", err)
	}
	addr := net.ParseIP(ip)
	if addr == nil {
		return "", domain.NewValidationError("ip", "not an IPv4 address", ip)
	}
	return enode.NewV4(pub, addr, domain.P2PPort, domain.P2PPort).URLv4(), nil
}
