package validation

import (
	"fmt"

	"github.com/eleven-am/poanet/internal/domain"
)

var wellKnownPorts = map[int]string{
	22:    "ssh",
	25:    "smtp",
	53:    "dns",
	80:    "http",
	443:   "https",
	3306:  "mysql",
	5432:  "postgres",
	6379:  "redis",
	8080:  "http-alt",
	27017: "mongodb",
	30303: "devp2p",
}

// ValidateRPCPort fails for ports outside 1-65535 and returns non-fatal
// warnings for privileged or commonly used ports.
func ValidateRPCPort(port int) ([]string, error) {
	if port < 1 || port > 65535 {
		return nil, domain.NewValidationError("rpc port", "must be between 1 and 65535", fmt.Sprint(port))
	}
	var warnings []string
	if port < 1024 {
		warnings = append(warnings, fmt.Sprintf("rpc port %d is privileged and may require elevated permissions", port))
	}
	if service, ok := wellKnownPorts[port]; ok {
		warnings = append(warnings, fmt.Sprintf("rpc port %d is commonly used by %s", port, service))
	}
	return warnings, nil
}
