package entities

import (
	"math/big"
	"strings"
)

// TokenDecimals is the fixed-point precision of lottery token amounts
const TokenDecimals = 18

const displayDecimals = 4

var (
	tokenUnit    = new(big.Int).Exp(big.NewInt(10), big.NewInt(TokenDecimals), nil)
	displayScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(TokenDecimals-displayDecimals), nil)
)

// FormatTokenAmount renders base units as whole tokens with thousands separators
// and up to four truncated decimals, e.g. 1234500000000000000000 -> "1,234.5"
func FormatTokenAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	abs := new(big.Int).Abs(amount)
	whole, rem := new(big.Int).QuoRem(abs, tokenUnit, new(big.Int))

	var b strings.Builder
	if amount.Sign() < 0 {
		b.WriteByte('-')
	}
	digits := whole.String()
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}

	frac := new(big.Int).Quo(rem, displayScale).String()
	frac = strings.Repeat("0", displayDecimals-len(frac)) + frac
	frac = strings.TrimRight(frac, "0")
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}
