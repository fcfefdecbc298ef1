package quote

import (
	"github.com/solswap/router/internal/id"
)

// Worst-case sponsor cost model for the sponsor-paying provider. The sponsor
// fronts destination-side gas and rent; the fee charged to the user must keep
// the sponsor net non-negative even when the fill fails once and retries, the
// price drifts, or a token account has to be created.

// CostInputs are the auxiliary reads feeding the estimate. Each read is
// best-effort at the call site: a failed read arrives here as the
// conservative value (account absent, default gas), never as an error.
type CostInputs struct {
	// DestValueUSD is the USD value of the quoted destination amount.
	DestValueUSD float64
	// SolPriceUSD is the SOL/USD price used for lamport conversions.
	SolPriceUSD float64
	// GasLamports is the current per-transaction gas proxy.
	GasLamports uint64
	// AccountExists reports whether the destination token account already
	// exists for the address that would pay rent.
	AccountExists bool
	// PayerIsUser is true when the user themself pays rent, in which case the
	// sponsor carries no rent exposure.
	PayerIsUser bool
	// TransferFeeBps is non-zero for fee-on-transfer tokens; the proportional
	// loss lands on the sponsor.
	TransferFeeBps int64
}

// CostBreakdown itemizes the worst-case sponsor outlay in USD.
type CostBreakdown struct {
	BaseGasUSD     float64 `json:"base_gas_usd"`
	RentUSD        float64 `json:"rent_usd"`
	DriftUSD       float64 `json:"drift_usd"`
	RetryUSD       float64 `json:"retry_usd"`
	TransferFeeUSD float64 `json:"transfer_fee_usd"`
}

func (b CostBreakdown) TotalUSD() float64 {
	return b.BaseGasUSD + b.RentUSD + b.DriftUSD + b.RetryUSD + b.TransferFeeUSD
}

// EstimateWorstCaseSponsorCost computes the five cost terms.
func EstimateWorstCaseSponsorCost(in CostInputs) CostBreakdown {
	gas := in.GasLamports
	if gas == 0 {
		gas = DefaultSignatureLamports
	}
	lamportsUSD := func(lamports uint64) float64 {
		return in.SolPriceUSD * float64(lamports) / LamportsPerSOL
	}

	breakdown := CostBreakdown{
		BaseGasUSD: lamportsUSD(gas),
		DriftUSD:   PriceDriftBuffer * in.DestValueUSD,
		RetryUSD:   FailureRetryMultiplier * lamportsUSD(gas),
	}
	if !in.AccountExists && !in.PayerIsUser {
		breakdown.RentUSD = lamportsUSD(TokenAccountRentLamports)
	}
	if in.TransferFeeBps > 0 {
		breakdown.TransferFeeUSD = in.DestValueUSD * float64(in.TransferFeeBps) / 10_000
	}
	return breakdown
}

// FeeChoice is the currency and amount the user is charged to cover the
// sponsor's worst case.
type FeeChoice struct {
	Token     id.Token
	Amount    string
	AmountUSD float64
	// Native marks the fallback to the origin-chain gas token.
	Native bool
	// BalanceCovers reports whether the user's known balance covers Amount.
	// When false the quote still carries this fee; eligibility rejects it
	// downstream instead of this routine throwing.
	BalanceCovers bool
}

// SelectUserFee picks how much to charge and in which currency. Preference
// order: the destination stablecoin when the user's known balance covers the
// worst case with a 20% margin, otherwise the native gas token with an extra
// 10% buffer converted at the SOL/USD price.
func SelectUserFee(worstCaseUSD float64, destToken id.Token, nativeToken id.Token, solPriceUSD float64, stableBalance, nativeBalance string) FeeChoice {
	requiredUSD := worstCaseUSD * (1 + SponsorFeeMargin)

	if id.IsStableSymbol(destToken.Symbol) {
		// Stablecoins are treated as $1 for fee sizing.
		amount := id.USDToBase(requiredUSD, destToken.Decimals, 1)
		if stableBalance != "" && id.CmpBase(stableBalance, amount) >= 0 {
			return FeeChoice{Token: destToken, Amount: amount, AmountUSD: requiredUSD, BalanceCovers: true}
		}
	}

	nativeUSD := requiredUSD * (1 + NativeFeeBuffer)
	amount := id.USDToBase(nativeUSD, nativeToken.Decimals, solPriceUSD)
	covers := nativeBalance != "" && id.CmpBase(nativeBalance, amount) >= 0
	return FeeChoice{Token: nativeToken, Amount: amount, AmountUSD: nativeUSD, Native: true, BalanceCovers: covers}
}
