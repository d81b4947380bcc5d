package chain

import "github.com/shopspring/decimal"

// Sui and SBETS coins both carry 9 decimal places on chain.
const coinDecimals = 9

var mistPerToken = decimal.New(1, coinDecimals)

// ToMIST converts a token-unit amount to base units, truncating sub-MIST
// precision. Token amounts elsewhere in the system are floats; all base-unit
// arithmetic stays behind this boundary.
func ToMIST(amount float64) uint64 {
	mist := decimal.NewFromFloat(amount).Mul(mistPerToken).Truncate(0)
	if mist.Sign() <= 0 {
		return 0
	}
	return mist.BigInt().Uint64()
}

// FromMIST converts base units back to token units.
func FromMIST(mist uint64) float64 {
	f, _ := decimal.NewFromUint64(mist).Div(mistPerToken).Float64()
	return f
}
