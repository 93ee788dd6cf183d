package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
)

// ParseEther converts a decimal ether amount such as "1" or "0.05" into wei.
func ParseEther(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	r, ok := new(big.Rat).SetString(amount)
	if !ok {
		return nil, fmt.Errorf("chain: invalid ether amount %q", amount)
	}
	if r.Sign() < 0 {
		return nil, fmt.Errorf("chain: negative ether amount %q", amount)
	}
	r.Mul(r, new(big.Rat).SetInt64(params.Ether))
	if !r.IsInt() {
		return nil, fmt.Errorf("chain: ether amount %q has more than 18 decimals", amount)
	}
	return new(big.Int).Set(r.Num()), nil
}
