package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/solswap/router/internal/audit"
	routererr "github.com/solswap/router/internal/errors"
	"github.com/solswap/router/internal/model"
	"github.com/solswap/router/internal/providers"
	"github.com/solswap/router/internal/quote"
	"github.com/solswap/router/internal/routes"
)

// Aggregator fans a request out to every applicable provider, filters the
// responses through the eligibility rules, and ranks what survives.
type Aggregator struct {
	adapters  []providers.Adapter
	validator *routes.Validator
	sink      *audit.Sink
	log       zerolog.Logger
	now       func() time.Time
}

func New(adapters []providers.Adapter, validator *routes.Validator, sink *audit.Sink, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		adapters:  adapters,
		validator: validator,
		sink:      sink,
		log:       log,
		now:       time.Now,
	}
}

// Quotes runs one aggregation round. The returned result is ordered
// best-first; Best is nil only alongside a non-nil error.
func (a *Aggregator) Quotes(ctx context.Context, req model.SwapRequest) (model.QuotesResult, error) {
	if req.SelfSwap() {
		return model.QuotesResult{}, routererr.New(routererr.CodeValidation, "origin and destination are the same asset")
	}
	if req.Amount == "" {
		return model.QuotesResult{}, routererr.New(routererr.CodeValidation, "amount is required")
	}

	if a.validator != nil {
		if verdict := a.validator.IsSupported(ctx, req); !verdict.Supported {
			return model.QuotesResult{}, routererr.New(routererr.CodeRouteUnsupported, verdict.Reason)
		}
	}

	applicable := make([]providers.Adapter, 0, len(a.adapters))
	for _, adapter := range a.adapters {
		if adapter.Applicable(req) {
			applicable = append(applicable, adapter)
		}
	}
	if len(applicable) == 0 {
		return model.QuotesResult{}, routererr.New(routererr.CodeRouteUnsupported, "no provider serves this route")
	}

	type outcome struct {
		quote model.NormalizedQuote
		err   error
	}
	results := make([]outcome, len(applicable))
	var wg sync.WaitGroup
	for i, adapter := range applicable {
		wg.Add(1)
		go func(i int, adapter providers.Adapter) {
			defer wg.Done()
			q, err := adapter.FetchQuote(ctx, req)
			results[i] = outcome{quote: q, err: err}
		}(i, adapter)
	}
	wg.Wait()

	var candidates []model.NormalizedQuote
	failures := make(map[string]error)
	for i, r := range results {
		if r.err != nil {
			name := string(applicable[i].Name())
			failures[name] = r.err
			a.log.Debug().Err(r.err).Str("provider", name).Msg("provider quote failed")
			continue
		}
		candidates = append(candidates, r.quote)
	}
	if len(candidates) == 0 {
		return model.QuotesResult{}, routererr.Aggregate(failures)
	}

	eligible, rejections := quote.Filter(candidates, req)
	if len(eligible) == 0 {
		if quote.OnlyNeedGas(rejections) {
			return model.QuotesResult{Rejections: rejections},
				routererr.New(routererr.CodeNeedGas, "wallet lacks the gas balance to cover the routing fee")
		}
		return model.QuotesResult{Rejections: rejections},
			routererr.New(routererr.CodeIneligible, "no quote passed eligibility")
	}

	ranking := quote.Rank(eligible, req)
	result := model.QuotesResult{
		Quotes:     ranking.Quotes,
		Best:       &ranking.Quotes[0],
		Rejections: rejections,
	}

	a.record(req, ranking, rejections)
	return result, nil
}

func (a *Aggregator) record(req model.SwapRequest, ranking quote.Ranking, rejections []model.Rejection) {
	if a.sink == nil {
		return
	}
	a.sink.Record(model.AuditRecord{
		Timestamp:      a.now().UTC(),
		Request:        req,
		Candidates:     ranking.Quotes,
		Rejections:     rejections,
		Winner:         ranking.Quotes[0].Provider,
		TieBreakFired:  ranking.TieBreakFired,
		TieBreakReason: ranking.TieBreakReason,
	})
}
