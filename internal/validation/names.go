package validation

import (
	"fmt"

	"github.com/eleven-am/poanet/internal/domain"
)

const MaxClusterNameLength = 64

func ValidateClusterName(name string) error {
	if err := validateToken("cluster name", name); err != nil {
		return err
	}
	if len(name) > MaxClusterNameLength {
		return domain.NewValidationError("cluster name",
			fmt.Sprintf("must be at most %d characters", MaxClusterNameLength), name)
	}
	return nil
}

func ValidateNodeName(name string) error {
	return validateToken("node name", name)
}

func validateToken(field, value string) error {
	if value == "" {
		return domain.NewValidationError(field, "must not be empty", value)
	}
	if !isAlphanumeric(value[0]) {
		return domain.NewValidationError(field, "must start with a letter or digit", value)
	}
	for i := 1; i < len(value); i++ {
		c := value[i]
		if isAlphanumeric(c) || c == '_' || c == '.' || c == '-' {
			continue
		}
		return domain.NewValidationError(field,
			fmt.Sprintf("invalid character %q at position %d", c, i), value)
	}
	return nil
}

func isAlphanumeric(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func ValidateChainID(id uint64) error {
	if id == 0 {
		return domain.NewValidationError("chain id", "must be a positive integer", "0")
	}
	return nil
}

func ValidateBlockPeriod(seconds uint64) error {
	if seconds < 1 {
		return domain.NewValidationError("block period", "must be at least 1 second", fmt.Sprint(seconds))
	}
	return nil
}
