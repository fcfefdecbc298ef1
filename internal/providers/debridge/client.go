package debridge

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	routererr "github.com/solswap/router/internal/errors"
	"github.com/solswap/router/internal/httpx"
	"github.com/solswap/router/internal/id"
	"github.com/solswap/router/internal/model"
	"github.com/solswap/router/internal/providers"
)

const defaultBase = "https://dln.debridge.finance/v1.0"

// Client quotes through the DLN order API. The user pays all costs: the
// protocol fee comes out of the destination amount and the fixed fee is paid
// in origin-chain native units on top of the input.
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

func (c *Client) Name() model.Provider { return model.ProviderDebridge }

// Applicable only cross-chain; DLN is an order bridge, not a same-chain DEX.
func (c *Client) Applicable(req model.SwapRequest) bool {
	return !req.SameChain() && req.OriginChain.DebridgeID != 0 && req.DestChain.DebridgeID != 0
}

type createTxResponse struct {
	OrderID    string `json:"orderId"`
	Estimation struct {
		SrcChainTokenIn struct {
			Amount string `json:"amount"`
		} `json:"srcChainTokenIn"`
		DstChainTokenOut struct {
			Amount            string `json:"amount"`
			RecommendedAmount string `json:"recommendedAmount"`
			Decimals          int    `json:"decimals"`
		} `json:"dstChainTokenOut"`
	} `json:"estimation"`
	Tx struct {
		Data string `json:"data"`
	} `json:"tx"`
	FixFee string `json:"fixFee"`
}

func (c *Client) FetchQuote(ctx context.Context, req model.SwapRequest) (model.NormalizedQuote, error) {
	if req.Direction == model.DirectionExactOut {
		return model.NormalizedQuote{}, routererr.New(routererr.CodeValidation, "debridge quotes fix the input amount only")
	}

	vals := url.Values{}
	vals.Set("srcChainId", strconv.FormatInt(req.OriginChain.DebridgeID, 10))
	vals.Set("srcChainTokenIn", req.OriginToken.Address)
	vals.Set("srcChainTokenInAmount", req.Amount)
	vals.Set("dstChainId", strconv.FormatInt(req.DestChain.DebridgeID, 10))
	vals.Set("dstChainTokenOut", req.DestToken.Address)
	vals.Set("dstChainTokenOutRecipient", req.EffectiveRecipient())
	vals.Set("srcChainOrderAuthorityAddress", req.UserAddress)
	vals.Set("dstChainOrderAuthorityAddress", req.EffectiveRecipient())

	var resp createTxResponse
	raw, err := c.http.GetJSON(ctx, c.baseURL+"/dln/order/create-tx?"+vals.Encode(), nil, &resp)
	if err != nil {
		return model.NormalizedQuote{}, providers.TranslateError(model.ProviderDebridge, raw, err)
	}

	out := strings.TrimSpace(resp.Estimation.DstChainTokenOut.RecommendedAmount)
	if out == "" {
		out = strings.TrimSpace(resp.Estimation.DstChainTokenOut.Amount)
	}
	if out == "" {
		return model.NormalizedQuote{}, routererr.New(routererr.CodeUnavailable, "debridge quote missing output amount")
	}
	if strings.TrimSpace(resp.Tx.Data) == "" {
		return model.NormalizedQuote{}, routererr.New(routererr.CodeUnavailable, "debridge quote missing transaction")
	}

	// The headline amount is before the taker margin; the recommended amount
	// is what actually lands. The difference is the destination-side fee.
	fees := id.SubClamped(resp.Estimation.DstChainTokenOut.Amount, out)

	decimals := resp.Estimation.DstChainTokenOut.Decimals
	if decimals == 0 {
		decimals = req.DestToken.Decimals
	}

	now := c.now()
	q := model.NormalizedQuote{
		Provider:             model.ProviderDebridge,
		ExpectedOut:          out,
		ExpectedOutFormatted: id.FormatDecimal(out, decimals),
		Fees:                 fees,
		FeeCurrency:          req.DestToken.Address,
		FeePayer:             model.FeePayerUser,
		ExpiryAt:             now.Add(providers.DefaultQuoteValidity),
		FetchedAt:            now,
		Debridge: &model.DebridgePayload{
			OrderID:      resp.OrderID,
			SerializedTx: resp.Tx.Data,
		},
	}

	// The fixed fee is charged in origin native units on top of the input, so
	// the user needs gas-token balance beyond the swap amount.
	if fixFee := strings.TrimSpace(resp.FixFee); fixFee != "" && fixFee != "0" {
		if req.OriginChain.IsSolana() {
			q.SolanaCostToUser = fixFee
		}
		q.RequiresSOL = req.OriginChain.IsSolana()
	}
	return q, nil
}
