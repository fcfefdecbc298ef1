package jupiterultra

import (
	"context"
	"math/big"
	"net/url"
	"strings"
	"time"

	routererr "github.com/solswap/router/internal/errors"
	"github.com/solswap/router/internal/httpx"
	"github.com/solswap/router/internal/id"
	"github.com/solswap/router/internal/model"
	"github.com/solswap/router/internal/providers"
)

const defaultBase = "https://lite-api.jup.ag/ultra/v1"

// Ultra order validity is much shorter than the default window: the unsigned
// transaction embeds a recent blockhash and goes stale fast.
const orderValidity = 30 * time.Second

// Client quotes same-chain Solana swaps through the Ultra order flow: the
// order endpoint returns an unsigned transaction plus a request id, and the
// execute endpoint broadcasts the signed transaction on the service's side.
type Client struct {
	http    *httpx.Client
	baseURL string
	now     func() time.Time
}

func New(httpClient *httpx.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBase
	}
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}
}

func (c *Client) Name() model.Provider { return model.ProviderUltra }

func (c *Client) Applicable(req model.SwapRequest) bool {
	return req.SameChain() && req.OriginChain.IsSolana()
}

type orderResponse struct {
	RequestID    string `json:"requestId"`
	Transaction  string `json:"transaction"`
	InAmount     string `json:"inAmount"`
	OutAmount    string `json:"outAmount"`
	FeeBps       int64  `json:"feeBps"`
	SwapUsdValue string `json:"swapUsdValue"`
}

func (c *Client) FetchQuote(ctx context.Context, req model.SwapRequest) (model.NormalizedQuote, error) {
	if req.Direction == model.DirectionExactOut {
		return model.NormalizedQuote{}, routererr.New(routererr.CodeValidation, "ultra orders fix the input amount only")
	}

	vals := url.Values{}
	vals.Set("inputMint", req.OriginToken.Address)
	vals.Set("outputMint", req.DestToken.Address)
	vals.Set("amount", req.Amount)
	vals.Set("taker", req.UserAddress)

	var resp orderResponse
	raw, err := c.http.GetJSON(ctx, c.baseURL+"/order?"+vals.Encode(), nil, &resp)
	if err != nil {
		return model.NormalizedQuote{}, providers.TranslateError(model.ProviderUltra, raw, err)
	}
	if strings.TrimSpace(resp.OutAmount) == "" {
		return model.NormalizedQuote{}, routererr.New(routererr.CodeUnavailable, "ultra order missing output amount")
	}
	if strings.TrimSpace(resp.Transaction) == "" || strings.TrimSpace(resp.RequestID) == "" {
		return model.NormalizedQuote{}, routererr.New(routererr.CodeUnavailable, "ultra order missing transaction")
	}

	// The platform fee is proportional and already deducted from outAmount;
	// record it for display without double-counting.
	fees := "0"
	if resp.FeeBps > 0 {
		fees = proportional(resp.OutAmount, resp.FeeBps)
	}

	now := c.now()
	return model.NormalizedQuote{
		Provider:             model.ProviderUltra,
		ExpectedOut:          resp.OutAmount,
		ExpectedOutFormatted: id.FormatDecimal(resp.OutAmount, req.DestToken.Decimals),
		Fees:                 fees,
		FeeCurrency:          req.DestToken.Address,
		FeePayer:             model.FeePayerSponsor,
		ExpiryAt:             now.Add(orderValidity),
		FetchedAt:            now,
		Ultra: &model.UltraPayload{
			RequestID:  resp.RequestID,
			UnsignedTx: resp.Transaction,
		},
	}, nil
}

type executeResponse struct {
	Status    string `json:"status"`
	Signature string `json:"signature"`
	Error     string `json:"error"`
}

// Execute submits the signed order transaction through the service and
// returns the on-chain signature.
func (c *Client) Execute(ctx context.Context, signedTxBase64, requestID string) (string, error) {
	body := map[string]string{
		"signedTransaction": signedTxBase64,
		"requestId":         requestID,
	}
	var resp executeResponse
	raw, err := c.http.PostJSON(ctx, c.baseURL+"/execute", body, nil, &resp)
	if err != nil {
		return "", providers.TranslateError(model.ProviderUltra, raw, err)
	}
	if !strings.EqualFold(resp.Status, "Success") {
		msg := resp.Error
		if msg == "" {
			msg = "ultra execution failed"
		}
		return "", routererr.New(routererr.CodeSubmission, msg)
	}
	if strings.TrimSpace(resp.Signature) == "" {
		return "", routererr.New(routererr.CodeSubmission, "ultra execution returned no signature")
	}
	return resp.Signature, nil
}

func proportional(amount string, bps int64) string {
	n := id.MustBase(amount)
	n.Mul(n, big.NewInt(bps))
	n.Div(n, big.NewInt(10_000))
	return n.String()
}
