package venue

import "github.com/shopspring/decimal"

// SatsPerBTC is the number of satoshis in one bitcoin.
const SatsPerBTC = 100_000_000

var satsPerBTC = decimal.NewFromInt(SatsPerBTC)

// SatsToBTC converts satoshis to bitcoin.
func SatsToBTC(sats int64) decimal.Decimal {
	return decimal.NewFromInt(sats).Div(satsPerBTC)
}

// BTCToSats converts bitcoin to satoshis, truncating sub-satoshi amounts.
func BTCToSats(btc decimal.Decimal) int64 {
	return btc.Mul(satsPerBTC).IntPart()
}

// StakeSats converts a stake quoted in USD to satoshis at btcUSD dollars per
// bitcoin. It reports false when no positive price is known.
func StakeSats(stakeUSD, btcUSD decimal.Decimal) (int64, bool) {
	if !btcUSD.IsPositive() {
		return 0, false
	}
	return BTCToSats(stakeUSD.Div(btcUSD)), true
}

// EstimateLNFee returns a rough Lightning routing fee in satoshis: 5 sats per
// million routed, never less than 1.
func EstimateLNFee(amountSats int64) int64 {
	fee := amountSats / 1_000_000 * 5
	if fee < 1 {
		return 1
	}
	return fee
}
