package debridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	routererr "github.com/solswap/router/internal/errors"
	"github.com/solswap/router/internal/httpx"
	"github.com/solswap/router/internal/id"
	"github.com/solswap/router/internal/model"
)

func crossChainRequest(t *testing.T) model.SwapRequest {
	t.Helper()
	solana, _ := id.ParseChain("solana")
	arbitrum, _ := id.ParseChain("arbitrum")
	usdcSol, _ := id.ParseToken("USDC", solana)
	usdcArb, _ := id.ParseToken("USDC", arbitrum)
	return model.SwapRequest{
		OriginChain: solana, OriginToken: usdcSol,
		DestChain: arbitrum, DestToken: usdcArb,
		Amount:      "50000000",
		Direction:   model.DirectionExactIn,
		UserAddress: "UserPubkey1111111111111111111111111111111111",
	}
}

const orderFixture = `{
	"orderId": "0xorder42",
	"estimation": {
		"srcChainTokenIn": {"amount": "50000000"},
		"dstChainTokenOut": {"amount": "49900000", "recommendedAmount": "49700000", "decimals": 6}
	},
	"tx": {"data": "BASE64TX"},
	"fixFee": "1500000"
}`

func TestFetchQuoteNormalizes(t *testing.T) {
	req := crossChainRequest(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/dln/order/create-tx" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("srcChainId"); got != "7565164" {
			t.Errorf("srcChainId = %s", got)
		}
		if got := r.URL.Query().Get("dstChainId"); got != "42161" {
			t.Errorf("dstChainId = %s", got)
		}
		_, _ = w.Write([]byte(orderFixture))
	}))
	defer srv.Close()

	c := New(httpx.New(time.Second, 0), srv.URL)
	q, err := c.FetchQuote(context.Background(), req)
	if err != nil {
		t.Fatalf("FetchQuote: %v", err)
	}
	if q.Provider != model.ProviderDebridge {
		t.Fatalf("provider = %s", q.Provider)
	}
	if q.ExpectedOut != "49700000" {
		t.Fatalf("recommended amount must win, got %s", q.ExpectedOut)
	}
	if q.Fees != "200000" {
		t.Fatalf("fee = headline minus recommended, got %s", q.Fees)
	}
	if q.FeePayer != model.FeePayerUser {
		t.Fatalf("fee payer = %s", q.FeePayer)
	}
	if q.Debridge == nil || q.Debridge.OrderID != "0xorder42" || q.Debridge.SerializedTx != "BASE64TX" {
		t.Fatalf("payload = %+v", q.Debridge)
	}
	if !q.RequiresSOL || q.SolanaCostToUser != "1500000" {
		t.Fatalf("fix fee must surface as origin SOL cost: %s / %v", q.SolanaCostToUser, q.RequiresSOL)
	}
}

func TestApplicableCrossChainOnly(t *testing.T) {
	c := New(httpx.New(time.Second, 0), "")
	req := crossChainRequest(t)
	if !c.Applicable(req) {
		t.Fatal("cross-chain route must be applicable")
	}
	req.DestChain = req.OriginChain
	if c.Applicable(req) {
		t.Fatal("same-chain route must not be applicable")
	}
}

func TestFetchQuoteRejectsExactOut(t *testing.T) {
	c := New(httpx.New(time.Second, 0), "")
	req := crossChainRequest(t)
	req.Direction = model.DirectionExactOut
	_, err := c.FetchQuote(context.Background(), req)
	if !routererr.HasCode(err, routererr.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFetchQuoteTranslatesLiquidityError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"no liquidity available for this pair"}`))
	}))
	defer srv.Close()

	c := New(httpx.New(time.Second, 0), srv.URL)
	_, err := c.FetchQuote(context.Background(), crossChainRequest(t))
	if !routererr.HasCode(err, routererr.CodeRouteUnsupported) {
		t.Fatalf("expected route-unsupported, got %v", err)
	}
}
