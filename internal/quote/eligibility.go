package quote

import (
	"fmt"

	"github.com/solswap/router/internal/model"
)

// Filter drops quotes that fail provider-specific business rules. Only the
// sponsor-paying provider carries a solvency concern: the fee charged to the
// user must cover the worst-case sponsor cost, within a small absolute
// tolerance for float noise in the upstream USD conversions. Everything else
// passes unconditionally.
func Filter(quotes []model.NormalizedQuote, req model.SwapRequest) ([]model.NormalizedQuote, []model.Rejection) {
	eligible := make([]model.NormalizedQuote, 0, len(quotes))
	var rejections []model.Rejection

	for _, q := range quotes {
		if q.Provider != model.ProviderRelay {
			eligible = append(eligible, q)
			continue
		}
		if q.WorstCaseSponsorCostUSD > 0 && q.UserFeeUSD < q.WorstCaseSponsorCostUSD-EligibilityToleranceUSD {
			rejections = append(rejections, model.Rejection{
				Provider: q.Provider,
				Reason: fmt.Sprintf("user fee $%.4f does not cover worst-case sponsor cost $%.4f",
					q.UserFeeUSD, q.WorstCaseSponsorCostUSD),
				// A fee that fell back to the native gas token and still
				// under-covers means the user simply lacks gas balance.
				NeedGas: q.RequiresSOL,
			})
			continue
		}
		eligible = append(eligible, q)
	}
	return eligible, rejections
}

// OnlyNeedGas reports whether every rejection in the set is attributable to
// insufficient native gas-token balance.
func OnlyNeedGas(rejections []model.Rejection) bool {
	if len(rejections) == 0 {
		return false
	}
	for _, r := range rejections {
		if !r.NeedGas {
			return false
		}
	}
	return true
}
