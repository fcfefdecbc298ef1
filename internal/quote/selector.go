package quote

import (
	"math"
	"math/big"
	"sort"
	"strings"

	"github.com/solswap/router/internal/id"
	"github.com/solswap/router/internal/model"
)

// Ranking is the ordered outcome of one selection round.
type Ranking struct {
	Quotes         []model.NormalizedQuote
	TieBreakFired  bool
	TieBreakReason string
}

// SortByBest ranks quotes best-first. Pure: identical inputs always produce
// identical output, regardless of input order.
func SortByBest(quotes []model.NormalizedQuote, req model.SwapRequest) []model.NormalizedQuote {
	return Rank(quotes, req).Quotes
}

// Rank sorts by the economic primary key, then applies provider-preference
// tie-breaks to the top of the list.
//
// exact_in: net USD value to the user descending; ties by raw effective
// receive, then raw expected out. exact_out: cost to user ascending. The
// final key is the provider tag so ordering is total.
func Rank(quotes []model.NormalizedQuote, req model.SwapRequest) Ranking {
	ordered := make([]model.NormalizedQuote, len(quotes))
	copy(ordered, quotes)

	sort.Slice(ordered, func(i, j int) bool {
		return less(ordered[i], ordered[j], req)
	})

	ranking := Ranking{Quotes: ordered}
	if len(ordered) < 2 {
		return ranking
	}

	// (a) Prefer gasless execution when economically indistinguishable: a
	// sponsor-paying runner-up within the closeness threshold of a user-pays
	// leader is promoted.
	if ordered[1].Provider == model.ProviderRelay && ordered[0].Provider == model.ProviderDebridge &&
		withinThreshold(ordered[0], ordered[1], req) {
		ordered[0], ordered[1] = ordered[1], ordered[0]
		ranking.TieBreakFired = true
		ranking.TieBreakReason = "sponsor-paying provider within closeness threshold of user-pays leader"
		return ranking
	}

	// (b) On same-chain same-asset-class routes the specialist wins ties.
	if req.SameChain() && sameAssetClass(req.OriginToken, req.DestToken) {
		for idx := 1; idx < len(ordered); idx++ {
			if ordered[idx].Provider != model.ProviderUltra {
				continue
			}
			if withinThreshold(ordered[0], ordered[idx], req) {
				promoted := ordered[idx]
				copy(ordered[1:idx+1], ordered[:idx])
				ordered[0] = promoted
				ranking.TieBreakFired = true
				ranking.TieBreakReason = "same-chain specialist within closeness threshold on same-asset-class route"
			}
			break
		}
	}
	return ranking
}

func less(a, b model.NormalizedQuote, req model.SwapRequest) bool {
	if req.Direction == model.DirectionExactOut {
		if c := id.CmpBase(CostToUser(a, req), CostToUser(b, req)); c != 0 {
			return c < 0
		}
	} else {
		if HasUSD(a) && HasUSD(b) {
			na, nb := NetUSD(a), NetUSD(b)
			if na != nb {
				return na > nb
			}
		}
		if c := id.CmpBase(EffectiveReceive(a, req), EffectiveReceive(b, req)); c != 0 {
			return c > 0
		}
		if c := id.CmpBase(a.ExpectedOut, b.ExpectedOut); c != 0 {
			return c > 0
		}
	}
	return a.Provider < b.Provider
}

// withinThreshold reports whether two quotes are economically
// indistinguishable: within 0.1% of each other in net USD value, or, absent
// USD data on either side, within 10 basis points of effective receive.
func withinThreshold(a, b model.NormalizedQuote, req model.SwapRequest) bool {
	if HasUSD(a) && HasUSD(b) {
		na, nb := NetUSD(a), NetUSD(b)
		ref := math.Max(math.Abs(na), math.Abs(nb))
		if ref == 0 {
			return na == nb
		}
		return math.Abs(na-nb) <= TieBreakNetUSDPct*ref
	}

	ra := id.MustBase(EffectiveReceive(a, req))
	rb := id.MustBase(EffectiveReceive(b, req))
	ref := new(big.Int).Set(ra)
	if rb.Cmp(ref) > 0 {
		ref.Set(rb)
	}
	if ref.Sign() == 0 {
		return ra.Cmp(rb) == 0
	}
	diff := new(big.Int).Sub(ra, rb)
	diff.Abs(diff)
	// diff * 10000 <= ref * bps
	lhs := new(big.Int).Mul(diff, big.NewInt(10_000))
	rhs := new(big.Int).Mul(ref, big.NewInt(TieBreakReceiveBps))
	return lhs.Cmp(rhs) <= 0
}

// sameAssetClass matches tokens that trade as the same kind of value: the
// same asset, or both USD stablecoins.
func sameAssetClass(a, b id.Token) bool {
	if id.SameAddress(a.Address, b.Address) {
		return true
	}
	if a.Symbol != "" && strings.EqualFold(a.Symbol, b.Symbol) {
		return true
	}
	return id.IsStableSymbol(a.Symbol) && id.IsStableSymbol(b.Symbol)
}
