package quote

import (
	"strings"

	"github.com/solswap/router/internal/id"
	"github.com/solswap/router/internal/model"
)

// Pure quote arithmetic. Everything here is a function of its inputs only;
// raw amounts stay on big.Int via the id helpers and USD figures are
// comparison values, never settled amounts.

// CostToUser is the amount deducted from the quoted output, in destination
// token units. Fee line items denominated in any other currency are settled
// out-of-band (typically on the origin chain) and are never folded in.
func CostToUser(q model.NormalizedQuote, req model.SwapRequest) string {
	dest := req.DestToken
	cost := "0"
	if q.FeePayer == model.FeePayerUser && sameCurrency(q.FeeCurrency, dest) {
		cost = id.AddBase(cost, q.Fees)
	}
	if q.UserFee != "" && sameCurrency(q.UserFeeCurrency, dest) {
		cost = id.AddBase(cost, q.UserFee)
	}
	return cost
}

// EffectiveReceive is what the user actually nets on the destination chain:
// max(0, expectedOut - costToUser).
func EffectiveReceive(q model.NormalizedQuote, req model.SwapRequest) string {
	return id.SubClamped(q.ExpectedOut, CostToUser(q, req))
}

// HasUSD reports whether the quote carries USD-comparable figures.
func HasUSD(q model.NormalizedQuote) bool {
	return q.UserReceivesUSD > 0
}

// NetUSD is the net USD value to the user: receives - pays - origin gas.
// Only meaningful when HasUSD holds.
func NetUSD(q model.NormalizedQuote) float64 {
	return q.UserReceivesUSD - q.UserPaysUSD - OriginGasUSD(q)
}

// OriginGasUSD converts the lamports the user pays on the origin chain into
// USD for ranking. Zero when the quote is gasless or no SOL price is known.
func OriginGasUSD(q model.NormalizedQuote) float64 {
	if q.Gasless || q.SolanaCostToUser == "" || q.SolPriceUSD <= 0 {
		return 0
	}
	return id.BaseToUSD(q.SolanaCostToUser, 9, q.SolPriceUSD)
}

// sameCurrency matches a quote fee currency against the destination token.
// Currencies may arrive as a symbol or an address depending on the provider.
func sameCurrency(currency string, dest id.Token) bool {
	if currency == "" {
		return false
	}
	if id.SameAddress(currency, dest.Address) {
		return true
	}
	return dest.Symbol != "" && strings.EqualFold(currency, dest.Symbol)
}
