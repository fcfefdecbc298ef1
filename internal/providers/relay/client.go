package relay

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	routererr "github.com/solswap/router/internal/errors"
	"github.com/solswap/router/internal/httpx"
	"github.com/solswap/router/internal/id"
	"github.com/solswap/router/internal/model"
	"github.com/solswap/router/internal/prices"
	"github.com/solswap/router/internal/providers"
	"github.com/solswap/router/internal/quote"
	"github.com/solswap/router/internal/routes"
	"github.com/solswap/router/internal/wallet"
)

const defaultBase = "https://api.relay.link"

// Client quotes through the sponsor-paying relay service. The relay fronts
// destination-side gas and rent, so every quote carries the worst-case sponsor
// cost model and the fee the user is charged to cover it.
type Client struct {
	http    *httpx.Client
	baseURL string
	prices  *prices.Service
	wallet  wallet.Wallet
	now     func() time.Time
	log     zerolog.Logger
}

func New(httpClient *httpx.Client, baseURL string, priceSvc *prices.Service, w wallet.Wallet, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBase
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		prices:  priceSvc,
		wallet:  w,
		now:     time.Now,
		log:     log,
	}
}

func (c *Client) Name() model.Provider { return model.ProviderRelay }

func (c *Client) Applicable(req model.SwapRequest) bool {
	return req.OriginChain.RelayID != 0 && req.DestChain.RelayID != 0
}

type quoteRequest struct {
	User                string `json:"user"`
	Recipient           string `json:"recipient"`
	OriginChainID       int64  `json:"originChainId"`
	DestinationChainID  int64  `json:"destinationChainId"`
	OriginCurrency      string `json:"originCurrency"`
	DestinationCurrency string `json:"destinationCurrency"`
	Amount              string `json:"amount"`
	TradeType           string `json:"tradeType"`
}

type currencyRef struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
}

type feeItem struct {
	Currency  currencyRef `json:"currency"`
	Amount    string      `json:"amount"`
	AmountUSD string      `json:"amountUsd"`
}

type currencyAmount struct {
	Currency  currencyRef `json:"currency"`
	Amount    string      `json:"amount"`
	AmountUSD string      `json:"amountUsd"`
}

type quoteResponse struct {
	Steps []struct {
		ID        string `json:"id"`
		RequestID string `json:"requestId"`
		Items     []struct {
			Data struct {
				SerializedTx string `json:"serializedTx"`
			} `json:"data"`
			Check struct {
				Endpoint string `json:"endpoint"`
				Method   string `json:"method"`
			} `json:"check"`
		} `json:"items"`
	} `json:"steps"`
	Fees    map[string]feeItem `json:"fees"`
	Details struct {
		CurrencyIn   currencyAmount `json:"currencyIn"`
		CurrencyOut  currencyAmount `json:"currencyOut"`
		TimeEstimate int64          `json:"timeEstimate"`
		TotalImpact  struct {
			Percent string `json:"percent"`
		} `json:"totalImpact"`
	} `json:"details"`
}

func (c *Client) FetchQuote(ctx context.Context, req model.SwapRequest) (model.NormalizedQuote, error) {
	tradeType := "EXACT_INPUT"
	if req.Direction == model.DirectionExactOut {
		tradeType = "EXACT_OUTPUT"
	}
	body := quoteRequest{
		User:                req.UserAddress,
		Recipient:           req.EffectiveRecipient(),
		OriginChainID:       req.OriginChain.RelayID,
		DestinationChainID:  req.DestChain.RelayID,
		OriginCurrency:      req.OriginToken.Address,
		DestinationCurrency: req.DestToken.Address,
		Amount:              req.Amount,
		TradeType:           tradeType,
	}

	var resp quoteResponse
	raw, err := c.http.PostJSON(ctx, c.baseURL+"/quote", body, nil, &resp)
	if err != nil {
		return model.NormalizedQuote{}, providers.TranslateError(model.ProviderRelay, raw, err)
	}

	expectedOut := strings.TrimSpace(resp.Details.CurrencyOut.Amount)
	if expectedOut == "" {
		return model.NormalizedQuote{}, routererr.New(routererr.CodeUnavailable, "relay quote missing output amount")
	}

	payload, err := extractPayload(resp)
	if err != nil {
		return model.NormalizedQuote{}, err
	}

	// Only fee line items in the destination currency are folded into Fees.
	// Origin-currency items are already reflected in the input amount.
	fees := "0"
	for _, item := range resp.Fees {
		if id.SameAddress(item.Currency.Address, req.DestToken.Address) {
			fees = id.AddBase(fees, item.Amount)
		}
	}

	now := c.now()
	q := model.NormalizedQuote{
		Provider:             model.ProviderRelay,
		ExpectedOut:          expectedOut,
		ExpectedOutFormatted: id.FormatDecimal(expectedOut, req.DestToken.Decimals),
		Fees:                 fees,
		FeeCurrency:          req.DestToken.Address,
		FeePayer:             model.FeePayerSponsor,
		UserReceivesUSD:      parseFloat(resp.Details.CurrencyOut.AmountUSD),
		UserPaysUSD:          parseFloat(resp.Details.CurrencyIn.AmountUSD),
		PriceDrift:           parseFloat(resp.Details.TotalImpact.Percent),
		ExpiryAt:             now.Add(providers.DefaultQuoteValidity),
		FetchedAt:            now,
		Relay:                payload,
	}

	c.applySponsorModel(ctx, req, &q)
	return q, nil
}

func extractPayload(resp quoteResponse) (*model.RelayPayload, error) {
	for _, step := range resp.Steps {
		for _, item := range step.Items {
			if strings.TrimSpace(item.Data.SerializedTx) == "" {
				continue
			}
			return &model.RelayPayload{
				RequestID:     step.RequestID,
				SerializedTx:  item.Data.SerializedTx,
				CheckEndpoint: item.Check.Endpoint,
			}, nil
		}
	}
	return nil, routererr.New(routererr.CodeUnavailable, "relay quote missing execution step")
}

// applySponsorModel fills the sponsor-economics fields: the worst-case sponsor
// outlay, the fee charged to the user to cover it, and the origin-side cost.
// Auxiliary reads are best-effort; a failed read degrades to the conservative
// input rather than failing the quote.
func (c *Client) applySponsorModel(ctx context.Context, req model.SwapRequest, q *model.NormalizedQuote) {
	solana, _ := id.ParseChain("solana")
	solPrice := c.prices.USDPrice(ctx, id.NativeToken(solana), solana)
	q.SolPriceUSD = solPrice

	inputs := quote.CostInputs{
		DestValueUSD:   q.UserReceivesUSD,
		SolPriceUSD:    solPrice,
		TransferFeeBps: req.DestToken.TransferFeeBps,
		PayerIsUser:    strings.EqualFold(req.FeePayerOverride, "user"),
	}

	if c.wallet != nil {
		if gas, err := c.wallet.RecentGasFee(ctx); err == nil {
			inputs.GasLamports = gas
		} else {
			c.log.Debug().Err(err).Msg("gas fee read failed, using default")
		}
	}

	if req.DestChain.IsSolana() {
		if c.wallet != nil {
			exists, err := c.wallet.TokenAccountExists(ctx, req.EffectiveRecipient(), req.DestToken.Address)
			if err != nil {
				c.log.Debug().Err(err).Msg("token account lookup failed, assuming absent")
			}
			inputs.AccountExists = exists
		}
	} else {
		// EVM destinations carry no rent exposure.
		inputs.AccountExists = true
	}

	breakdown := quote.EstimateWorstCaseSponsorCost(inputs)
	q.WorstCaseSponsorCostUSD = breakdown.TotalUSD()
	q.SponsorCost = id.USDToBase(breakdown.TotalUSD(), solana.NativeDecimals, solPrice)

	var nativeBalance string
	if c.wallet != nil && req.OriginChain.IsSolana() {
		if balance, err := c.wallet.NativeBalance(ctx); err == nil {
			nativeBalance = balance
		} else {
			c.log.Debug().Err(err).Msg("native balance read failed")
		}
	}

	// A stablecoin fee is deducted from the swap output itself, so the output
	// amount is the balance that must cover it.
	choice := quote.SelectUserFee(
		q.WorstCaseSponsorCostUSD,
		req.DestToken,
		id.NativeToken(req.OriginChain),
		solPrice,
		q.ExpectedOut,
		nativeBalance,
	)
	q.UserFee = choice.Amount
	q.UserFeeCurrency = choice.Token.Address
	q.UserFeeUSD = choice.AmountUSD
	// A stable-settled fee means the user never spends native gas; the
	// sponsor pays it and recoups from the output.
	q.Gasless = !choice.Native
	q.RequiresSOL = choice.Native && req.OriginChain.IsSolana()
	if choice.Native && !choice.BalanceCovers {
		// The user cannot actually pay this fee. Zeroing the USD figure lets
		// the eligibility gate reject the quote instead of silently quoting a
		// fee the wallet cannot cover.
		q.UserFeeUSD = 0
	}

	gas := inputs.GasLamports
	if gas == 0 {
		gas = quote.DefaultSignatureLamports
	}
	if req.OriginChain.IsSolana() {
		q.SolanaCostToUser = strconv.FormatUint(gas, 10)
	}
}

// BridgeStatus resolves the destination-side settlement state for a request.
func (c *Client) BridgeStatus(ctx context.Context, requestID string) (model.BridgeStatus, error) {
	var resp struct {
		Status string `json:"status"`
	}
	url := c.baseURL + "/intents/status?requestId=" + requestID
	raw, err := c.http.GetJSON(ctx, url, nil, &resp)
	if err != nil {
		return "", providers.TranslateError(model.ProviderRelay, raw, err)
	}
	switch strings.ToLower(strings.TrimSpace(resp.Status)) {
	case "waiting":
		return model.BridgeWaiting, nil
	case "pending":
		return model.BridgePending, nil
	case "success":
		return model.BridgeSuccess, nil
	case "failure":
		return model.BridgeFailure, nil
	case "refund":
		return model.BridgeRefund, nil
	default:
		return "", routererr.New(routererr.CodeUnavailable, "relay reported unknown settlement status "+strconv.Quote(resp.Status))
	}
}

type chainsResponse struct {
	Chains []struct {
		ID           int64  `json:"id"`
		Name         string `json:"name"`
		TokenSupport string `json:"tokenSupport"`
		Currencies   []struct {
			Address          string `json:"address"`
			SupportsBridging bool   `json:"supportsBridging"`
		} `json:"currencies"`
	} `json:"chains"`
}

// FetchChainSupport implements the route-support metadata source.
func (c *Client) FetchChainSupport(ctx context.Context) ([]routes.ChainSupport, error) {
	var resp chainsResponse
	raw, err := c.http.GetJSON(ctx, c.baseURL+"/chains", nil, &resp)
	if err != nil {
		return nil, providers.TranslateError(model.ProviderRelay, raw, err)
	}
	out := make([]routes.ChainSupport, 0, len(resp.Chains))
	for _, chain := range resp.Chains {
		support := routes.ChainSupport{
			ChainID:           chain.ID,
			Name:              chain.Name,
			SupportsAllTokens: strings.EqualFold(chain.TokenSupport, "All"),
		}
		for _, currency := range chain.Currencies {
			support.Tokens = append(support.Tokens, routes.TokenSupport{
				Address:         currency.Address,
				BridgingEnabled: currency.SupportsBridging,
			})
		}
		out = append(out, support)
	}
	return out, nil
}

func parseFloat(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0
	}
	return f
}
