package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/eleven-am/poanet/internal/domain"
)

const (
	MinPrefixLength = 8
	MaxPrefixLength = 30
)

// Subnet is an IPv4 network in 32-bit integer form.
type Subnet struct {
	Base   uint32
	Mask   uint32
	Prefix int
}

var privateRanges = []Subnet{
	{Base: 10 << 24, Prefix: 8, Mask: maskFor(8)},
	{Base: 172<<24 | 16<<16, Prefix: 12, Mask: maskFor(12)},
	{Base: 192<<24 | 168<<16, Prefix: 16, Mask: maskFor(16)},
}

func maskFor(prefix int) uint32 {
	if prefix <= 0 {
		return 0
	}
	return ^uint32(0) << (32 - prefix)
}

// ParseSubnet parses CIDR notation. Host bits in the address are cleared.
func ParseSubnet(cidr string) (Subnet, error) {
	addr, prefixText, ok := strings.Cut(strings.TrimSpace(cidr), "/")
	if !ok {
		return Subnet{}, domain.NewValidationError("subnet", "expected CIDR notation a.b.c.d/prefix", cidr)
	}
	prefix, err := strconv.Atoi(prefixText)
	if err != nil {
		return Subnet{}, domain.NewValidationError("subnet", "prefix length is not a number", cidr)
	}
	if prefix < MinPrefixLength || prefix > MaxPrefixLength {
		return Subnet{}, domain.NewValidationError("subnet",
			fmt.Sprintf("prefix length must be between %d and %d", MinPrefixLength, MaxPrefixLength), cidr)
	}
	ip, err := ParseIPv4(addr)
	if err != nil {
		return Subnet{}, domain.NewValidationError("subnet", err.Error(), cidr)
	}
	mask := maskFor(prefix)
	return Subnet{Base: ip & mask, Mask: mask, Prefix: prefix}, nil
}

func (s Subnet) String() string {
	return FormatIPv4(s.Base) + "/" + strconv.Itoa(s.Prefix)
}

func (s Subnet) Contains(ip uint32) bool {
	return ip&s.Mask == s.Base&s.Mask
}

func (s Subnet) NetworkAddress() uint32 {
	return s.Base
}

func (s Subnet) BroadcastAddress() uint32 {
	return s.Base | ^s.Mask
}

// Gateway is the first host address, the runtime default for bridge networks.
func (s Subnet) Gateway() string {
	return FormatIPv4(s.Base + 1)
}

func (s Subnet) Overlaps(other Subnet) bool {
	return s.Contains(other.Base) || other.Contains(s.Base)
}

func (s Subnet) IsPrivate() bool {
	for _, r := range privateRanges {
		if s.Prefix >= r.Prefix && s.Base&r.Mask == r.Base {
			return true
		}
	}
	return false
}

func ValidateSubnet(cidr string) (Subnet, error) {
	subnet, err := ParseSubnet(cidr)
	if err != nil {
		return Subnet{}, err
	}
	if !subnet.IsPrivate() {
		return Subnet{}, domain.NewValidationError("subnet",
			"not a private range (10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16)", cidr)
	}
	return subnet, nil
}

// ParseIPv4 accepts only the canonical dotted-decimal form: four octets of
// plain digits without signs, spaces or leading zeros.
func ParseIPv4(text string) (uint32, error) {
	parts := strings.Split(text, ".")
	if len(parts) != 4 {
		return 0, fmt.Errorf("not a dotted IPv4 address")
	}
	var ip uint32
	for _, part := range parts {
		if !canonicalOctet(part) {
			return 0, fmt.Errorf("malformed octet %q", part)
		}
		octet, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("malformed octet %q", part)
		}
		if octet > 255 {
			return 0, fmt.Errorf("octet %d out of range 0-255", octet)
		}
		ip = ip<<8 | uint32(octet)
	}
	return ip, nil
}

func canonicalOctet(part string) bool {
	if part == "" || len(part) > 3 {
		return false
	}
	if len(part) > 1 && part[0] == '0' {
		return false
	}
	for i := 0; i < len(part); i++ {
		if part[i] < '0' || part[i] > '9' {
			return false
		}
	}
	return true
}

// SameIP reports whether a and b parse to the same address.
func SameIP(a, b string) bool {
	x, errA := ParseIPv4(a)
	y, errB := ParseIPv4(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return x == y
}

func FormatIPv4(ip uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d", ip>>24, ip>>16&0xff, ip>>8&0xff, ip&0xff)
}
