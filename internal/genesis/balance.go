package genesis

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
)

// EtherToWei converts a decimal ether amount such as "1.5" to wei.
func EtherToWei(amount string) (*big.Int, error) {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return nil, fmt.Errorf("empty amount")
	}
	r, ok := new(big.Rat).SetString(trimmed)
	if !ok {
		return nil, fmt.Errorf("%q is not a decimal number", amount)
	}
	if r.Sign() < 0 {
		return nil, fmt.Errorf("%q is negative", amount)
	}
	r.Mul(r, new(big.Rat).SetInt(big.NewInt(params.Ether)))
	if !r.IsInt() {
		return nil, fmt.Errorf("%q has more precision than 1 wei", amount)
	}
	return new(big.Int).Set(r.Num()), nil
}

func EtherToWeiHex(amount string) (string, error) {
	wei, err := EtherToWei(amount)
	if err != nil {
		return "", err
	}
	return "0x" + wei.Text(16), nil
}
