package validation

import (
	"errors"
	"testing"

	"github.com/eleven-am/poanet/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateClusterName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "devnet", false},
		{"with separators", "dev_net.1-a", false},
		{"starts with digit", "1net", false},
		{"empty", "", true},
		{"starts with dash", "-net", true},
		{"contains slash", "dev/net", true},
		{"contains space", "dev net", true},
		{"max length", string(make64('a')), false},
		{"too long", string(make64('a')) + "b", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateClusterName(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, domain.IsValidation(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func make64(c byte) []byte {
	b := make([]byte, 64)
	for i := range b {
		b[i] = c
	}
	return b
}

func TestValidateSubnet(t *testing.T) {
	tests := []struct {
		cidr       string
		wantErr    bool
		wantReason string
	}{
		{"172.20.0.0/16", false, ""},
		{"10.0.0.0/8", false, ""},
		{"192.168.10.0/24", false, ""},
		{"172.16.0.0/12", false, ""},
		{"172.20.0.0/31", true, "prefix length"},
		{"10.0.0.0/7", true, "prefix length"},
		{"8.8.8.0/24", true, "not a private range"},
		{"172.32.0.0/16", true, "not a private range"},
		{"172.16.0.0/11", true, "not a private range"},
		{"172.20.0.0", true, "CIDR"},
		{"172.20.0.300/24", true, "out of range"},
		{"172.20.0/24", true, "dotted"},
	}

	for _, tc := range tests {
		t.Run(tc.cidr, func(t *testing.T) {
			_, err := ValidateSubnet(tc.cidr)
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantReason)

			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, "subnet", verr.Field)
		})
	}
}

func TestParseSubnet_ClearsHostBits(t *testing.T) {
	subnet, err := ParseSubnet("172.20.5.9/16")
	require.NoError(t, err)
	assert.Equal(t, "172.20.0.0/16", subnet.String())
	assert.Equal(t, "172.20.0.1", subnet.Gateway())
}

func TestValidateNodeIP(t *testing.T) {
	subnet, err := ValidateSubnet("172.20.0.0/24")
	require.NoError(t, err)

	tests := []struct {
		ip         string
		wantReason string
	}{
		{"172.20.0.10", ""},
		{"172.20.0.1", ""},
		{"172.20.0.254", ""},
		{"172.20.0.0", ReasonNetworkAddress},
		{"172.20.0.255", ReasonBroadcastAddress},
		{"172.21.0.10", ReasonOutsideSubnet},
		{"172.20.0", "dotted"},
		{"172.20.0.010", "malformed octet"},
		{"172.20.0.+1", "malformed octet"},
		{" 172.20.0.10 ", "malformed octet"},
		{"172.20.0.1e1", "malformed octet"},
	}

	for _, tc := range tests {
		t.Run(tc.ip, func(t *testing.T) {
			err := ValidateNodeIP(tc.ip, subnet)
			if tc.wantReason == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, domain.IsValidation(err))
			assert.Contains(t, err.Error(), tc.wantReason)
		})
	}
}

func TestValidateNodeIP_EveryHostInSmallSubnet(t *testing.T) {
	subnet, err := ValidateSubnet("10.1.2.0/28")
	require.NoError(t, err)

	for host := uint32(1); host < 15; host++ {
		ip := FormatIPv4(subnet.Base + host)
		assert.NoError(t, ValidateNodeIP(ip, subnet), ip)
	}
	assert.ErrorContains(t, ValidateNodeIP(FormatIPv4(subnet.NetworkAddress()), subnet), ReasonNetworkAddress)
	assert.ErrorContains(t, ValidateNodeIP(FormatIPv4(subnet.BroadcastAddress()), subnet), ReasonBroadcastAddress)
	assert.ErrorContains(t, ValidateNodeIP(FormatIPv4(subnet.BroadcastAddress()+1), subnet), ReasonOutsideSubnet)
}

func TestSubnetOverlaps(t *testing.T) {
	a, _ := ParseSubnet("172.20.0.0/16")
	b, _ := ParseSubnet("172.20.5.0/24")
	c, _ := ParseSubnet("172.21.0.0/16")

	assert.True(t, a.Overlaps(b))
	assert.True(t, b.Overlaps(a))
	assert.False(t, a.Overlaps(c))
}

func TestValidateRPCPort(t *testing.T) {
	warnings, err := ValidateRPCPort(8545)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	warnings, err = ValidateRPCPort(80)
	require.NoError(t, err)
	assert.Len(t, warnings, 2)

	warnings, err = ValidateRPCPort(8080)
	require.NoError(t, err)
	assert.Len(t, warnings, 1)

	_, err = ValidateRPCPort(0)
	assert.True(t, domain.IsValidation(err))

	_, err = ValidateRPCPort(65536)
	assert.True(t, domain.IsValidation(err))
}

func TestValidateNodes(t *testing.T) {
	subnet, err := ValidateSubnet("172.20.0.0/16")
	require.NoError(t, err)

	base := func() []domain.NodeSpec {
		return []domain.NodeSpec{
			{Name: "v1", IP: "172.20.0.10", Validator: true, RPC: true, RPCPort: 8545},
			{Name: "v2", IP: "172.20.0.11", Validator: true},
			{Name: "r1", IP: "172.20.0.12", RPC: true, RPCPort: 8546},
		}
	}

	t.Run("valid", func(t *testing.T) {
		_, err := ValidateNodes(base(), subnet)
		assert.NoError(t, err)
	})

	t.Run("duplicate name", func(t *testing.T) {
		nodes := base()
		nodes[2].Name = "v1"
		_, err := ValidateNodes(nodes, subnet)
		kind, ok := domain.ConflictKindOf(err)
		require.True(t, ok)
		assert.Equal(t, domain.ConflictDuplicateName, kind)
	})

	t.Run("duplicate ip", func(t *testing.T) {
		nodes := base()
		nodes[1].IP = "172.20.0.10"
		_, err := ValidateNodes(nodes, subnet)
		kind, ok := domain.ConflictKindOf(err)
		require.True(t, ok)
		assert.Equal(t, domain.ConflictDuplicateIP, kind)
		assert.Contains(t, err.Error(), "v1")
	})

	t.Run("non-canonical spellings of one address", func(t *testing.T) {
		for _, ip := range []string{"172.20.0.010", " 172.20.0.10 ", "172.20.0.+10"} {
			nodes := base()
			nodes[1].IP = ip
			_, err := ValidateNodes(nodes, subnet)
			require.Error(t, err, ip)
			assert.True(t, domain.IsValidation(err), ip)
		}
	})

	t.Run("duplicate rpc port", func(t *testing.T) {
		nodes := base()
		nodes[2].RPCPort = 8545
		_, err := ValidateNodes(nodes, subnet)
		kind, ok := domain.ConflictKindOf(err)
		require.True(t, ok)
		assert.Equal(t, domain.ConflictDuplicatePort, kind)
	})

	t.Run("no validator", func(t *testing.T) {
		nodes := base()
		nodes[0].Validator = false
		nodes[1].Validator = false
		_, err := ValidateNodes(nodes, subnet)
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
		assert.Contains(t, err.Error(), "validator")
	})

	t.Run("ip outside subnet", func(t *testing.T) {
		nodes := base()
		nodes[1].IP = "10.0.0.1"
		_, err := ValidateNodes(nodes, subnet)
		assert.ErrorContains(t, err, ReasonOutsideSubnet)
	})

	t.Run("rpc port without rpc", func(t *testing.T) {
		nodes := base()
		nodes[1].RPCPort = 9000
		_, err := ValidateNodes(nodes, subnet)
		assert.True(t, domain.IsValidation(err))
	})
}

func TestSameIP(t *testing.T) {
	assert.True(t, SameIP("172.20.0.10", "172.20.0.10"))
	assert.False(t, SameIP("172.20.0.10", "172.20.0.11"))
	assert.False(t, SameIP("172.20.0.10", "172.20.0.010"))
}
