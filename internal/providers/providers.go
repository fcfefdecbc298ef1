package providers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	routererr "github.com/solswap/router/internal/errors"
	"github.com/solswap/router/internal/model"
)

// Adapter is one quote source. Applicable is a cheap static check so the
// aggregator only fans out to providers that can possibly serve the route;
// FetchQuote does the network work and normalization.
type Adapter interface {
	Name() model.Provider
	Applicable(req model.SwapRequest) bool
	FetchQuote(ctx context.Context, req model.SwapRequest) (model.NormalizedQuote, error)
}

// DefaultQuoteValidity is assumed when a provider reports no expiry of its own.
const DefaultQuoteValidity = 60 * time.Second

// errorEnvelope matches the common {message: "..."} / {error: "..."} shapes
// provider error bodies come in.
type errorEnvelope struct {
	Message  string `json:"message"`
	ErrorMsg string `json:"error"`
	Detail   string `json:"detail"`
}

// TranslateError turns a provider 4xx body into a domain error when the
// message matches a known business condition, otherwise passes err through
// with the provider's own message attached.
func TranslateError(provider model.Provider, body []byte, err error) error {
	if err == nil {
		return nil
	}
	msg := extractMessage(body)
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "amount too small") || strings.Contains(lower, "amount is too low") || strings.Contains(lower, "below minimum"):
		return routererr.New(routererr.CodeValidation, string(provider)+": amount below the provider minimum")
	case strings.Contains(lower, "no liquidity") || strings.Contains(lower, "insufficient liquidity") || strings.Contains(lower, "no routes found"):
		return routererr.New(routererr.CodeRouteUnsupported, string(provider)+": no liquidity for this pair")
	case strings.Contains(lower, "unsupported") || strings.Contains(lower, "not supported"):
		return routererr.New(routererr.CodeRouteUnsupported, string(provider)+": route not supported")
	}
	if msg != "" && routererr.HasCode(err, routererr.CodeProvider) {
		return routererr.Wrap(routererr.CodeProvider, string(provider)+": "+msg, err)
	}
	return err
}

func extractMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var envelope errorEnvelope
	if json.Unmarshal(body, &envelope) != nil {
		return ""
	}
	for _, candidate := range []string{envelope.Message, envelope.ErrorMsg, envelope.Detail} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}
