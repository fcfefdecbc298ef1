package prices

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/solswap/router/internal/httpx"
	"github.com/solswap/router/internal/id"
)

const defaultBase = "https://lite-api.jup.ag/price/v2"

// Fallback prices used when the lookup fails. Deliberately coarse: a USD
// figure is better than no eligibility math at all, and the sponsor cost
// model already carries its own buffers.
var fallbackBySymbol = map[string]float64{
	"SOL":  150,
	"ETH":  3000,
	"BNB":  600,
	"POL":  0.5,
	"USDC": 1,
	"USDT": 1,
}

// Service resolves best-effort USD prices with a small TTL cache.
type Service struct {
	http    *httpx.Client
	baseURL string
	ttl     time.Duration
	now     func() time.Time
	log     zerolog.Logger

	mu    sync.Mutex
	cache map[string]cachedPrice
}

type cachedPrice struct {
	price     float64
	fetchedAt time.Time
}

func New(httpClient *httpx.Client, baseURL string, log zerolog.Logger) *Service {
	if baseURL == "" {
		baseURL = defaultBase
	}
	return &Service{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     time.Minute,
		now:     time.Now,
		log:     log,
		cache:   make(map[string]cachedPrice),
	}
}

type priceResponse struct {
	Data map[string]struct {
		Price string `json:"price"`
	} `json:"data"`
}

// USDPrice looks up the token's USD price. Never returns an error: a failed
// or nonsensical lookup degrades to the fixed fallback for the symbol, or
// zero for assets with no fallback.
func (s *Service) USDPrice(ctx context.Context, token id.Token, chain id.Chain) float64 {
	if id.IsStableSymbol(token.Symbol) {
		return 1
	}

	key := chain.CAIP2 + "/" + token.Address
	s.mu.Lock()
	entry, ok := s.cache[key]
	s.mu.Unlock()
	if ok && s.now().Sub(entry.fetchedAt) < s.ttl {
		return entry.price
	}

	price := s.fetch(ctx, token)
	if price <= 0 {
		if ok {
			// Stale beats fallback.
			return entry.price
		}
		return fallbackBySymbol[strings.ToUpper(token.Symbol)]
	}

	s.mu.Lock()
	s.cache[key] = cachedPrice{price: price, fetchedAt: s.now()}
	s.mu.Unlock()
	return price
}

func (s *Service) fetch(ctx context.Context, token id.Token) float64 {
	vals := url.Values{}
	vals.Set("ids", token.Address)
	var resp priceResponse
	if _, err := s.http.GetJSON(ctx, s.baseURL+"?"+vals.Encode(), nil, &resp); err != nil {
		s.log.Debug().Err(err).Str("token", token.Symbol).Msg("price lookup failed")
		return 0
	}
	entry, ok := resp.Data[token.Address]
	if !ok {
		return 0
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(entry.Price), 64)
	if err != nil || price <= 0 {
		return 0
	}
	return price
}
