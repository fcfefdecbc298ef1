package quote

// Calibrated business constants. Their values come from the product side and
// are preserved exactly; tuning them is a business decision, not an
// engineering one. Config may override where it makes sense to operate with
// different margins, but defaults stay as shipped.
const (
	// SponsorFeeMargin is the margin applied on top of the worst-case sponsor
	// cost when charging the user (20%).
	SponsorFeeMargin = 0.20

	// NativeFeeBuffer is the extra buffer applied when the fee falls back to
	// the native gas token (10%).
	NativeFeeBuffer = 0.10

	// PriceDriftBuffer is the fixed share of destination USD value reserved
	// for price movement between quote and fill (2%).
	PriceDriftBuffer = 0.02

	// FailureRetryMultiplier models one failed-and-retried fill attempt.
	FailureRetryMultiplier = 2

	// TieBreakNetUSDPct is the closeness threshold on net USD value under
	// which two quotes are economically indistinguishable (0.1%).
	TieBreakNetUSDPct = 0.001

	// TieBreakReceiveBps is the fallback closeness threshold on raw effective
	// receive when USD figures are absent (10 basis points).
	TieBreakReceiveBps = 10

	// EligibilityToleranceUSD absorbs float noise from upstream USD
	// conversions in the sponsor solvency gate.
	EligibilityToleranceUSD = 0.01
)

// Solana cost model inputs used by the worst-case estimator.
const (
	// DefaultSignatureLamports is the flat per-signature fee.
	DefaultSignatureLamports = 5_000

	// TokenAccountRentLamports is the rent-exempt minimum for an SPL token
	// account the sponsor may have to create.
	TokenAccountRentLamports = 2_039_280

	LamportsPerSOL = 1_000_000_000
)
