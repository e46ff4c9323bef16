package validation

import "github.com/eleven-am/poanet/internal/domain"

const (
	ReasonOutsideSubnet    = "outside subnet"
	ReasonNetworkAddress   = "network address"
	ReasonBroadcastAddress = "broadcast address"
)

func ValidateIPSyntax(ip string) error {
	if _, err := ParseIPv4(ip); err != nil {
		return domain.NewValidationError("ip", err.Error(), ip)
	}
	return nil
}

func ValidateNodeIP(ip string, subnet Subnet) error {
	addr, err := ParseIPv4(ip)
	if err != nil {
		return domain.NewValidationError("ip", err.Error(), ip)
	}
	if addr&subnet.Mask != subnet.Base&subnet.Mask {
		return domain.NewValidationError("ip", ReasonOutsideSubnet+" "+subnet.String(), ip)
	}
	host := addr &^ subnet.Mask
	if host == 0 {
		return domain.NewValidationError("ip", ReasonNetworkAddress+" of "+subnet.String(), ip)
	}
	if host == ^subnet.Mask {
		return domain.NewValidationError("ip", ReasonBroadcastAddress+" of "+subnet.String(), ip)
	}
	return nil
}
