package validation

import (
	"fmt"

	"github.com/eleven-am/poanet/internal/domain"
)

// ValidateNodeSpec checks a single node in isolation. The subnet check is
// skipped when subnet is nil.
func ValidateNodeSpec(spec domain.NodeSpec, subnet *Subnet) ([]string, error) {
	if err := ValidateNodeName(spec.Name); err != nil {
		return nil, err
	}
	if subnet != nil {
		if err := ValidateNodeIP(spec.IP, *subnet); err != nil {
			return nil, err
		}
	} else if err := ValidateIPSyntax(spec.IP); err != nil {
		return nil, err
	}
	if spec.RPCPort != 0 {
		if !spec.RPC {
			return nil, domain.NewValidationError("rpc port", "set on a node with rpc disabled", fmt.Sprint(spec.RPCPort))
		}
		return ValidateRPCPort(spec.RPCPort)
	}
	return nil, nil
}

// ValidateNodes runs every per-node rule plus the cross-node uniqueness rules
// and requires at least one validator.
func ValidateNodes(nodes []domain.NodeSpec, subnet Subnet) ([]string, error) {
	var warnings []string
	names := make(map[string]struct{}, len(nodes))
	ips := make(map[uint32]string, len(nodes))
	ports := make(map[int]string, len(nodes))
	validators := 0

	for _, spec := range nodes {
		w, err := ValidateNodeSpec(spec, &subnet)
		if err != nil {
			return warnings, err
		}
		warnings = append(warnings, w...)

		if _, dup := names[spec.Name]; dup {
			return warnings, &domain.ConflictError{Kind: domain.ConflictDuplicateName, Subject: spec.Name}
		}
		names[spec.Name] = struct{}{}

		addr, _ := ParseIPv4(spec.IP)
		if owner, dup := ips[addr]; dup {
			return warnings, &domain.ConflictError{Kind: domain.ConflictDuplicateIP, Subject: spec.IP, With: owner}
		}
		ips[addr] = spec.Name

		if spec.HasRPCPort() {
			if owner, dup := ports[spec.RPCPort]; dup {
				return warnings, &domain.ConflictError{
					Kind:    domain.ConflictDuplicatePort,
					Subject: fmt.Sprint(spec.RPCPort),
					With:    owner,
				}
			}
			ports[spec.RPCPort] = spec.Name
		}

		if spec.Validator {
			validators++
		}
	}

	if validators == 0 {
		return warnings, domain.NewValidationError("nodes", "at least one validator is required", "")
	}
	return warnings, nil
}
