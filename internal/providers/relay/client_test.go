package relay

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	routererr "github.com/solswap/router/internal/errors"
	"github.com/solswap/router/internal/httpx"
	"github.com/solswap/router/internal/id"
	"github.com/solswap/router/internal/model"
	"github.com/solswap/router/internal/prices"
)

type fakeWallet struct {
	gas           uint64
	nativeBalance string
	tokenBalance  string
	accountExists bool
}

func (f *fakeWallet) Address() string { return "UserPubkey1111111111111111111111111111111111" }
func (f *fakeWallet) SignTransaction(ctx context.Context, tx string) (string, error) {
	return tx, nil
}
func (f *fakeWallet) SendTransaction(ctx context.Context, tx string) (string, error) {
	return "sig", nil
}
func (f *fakeWallet) TransactionStatus(ctx context.Context, sig string) (model.TxStatus, error) {
	return model.TxConfirmed, nil
}
func (f *fakeWallet) NativeBalance(ctx context.Context) (string, error) {
	return f.nativeBalance, nil
}
func (f *fakeWallet) TokenBalance(ctx context.Context, mint string) (string, error) {
	return f.tokenBalance, nil
}
func (f *fakeWallet) TokenAccountExists(ctx context.Context, owner, mint string) (bool, error) {
	return f.accountExists, nil
}
func (f *fakeWallet) RecentGasFee(ctx context.Context) (uint64, error) {
	return f.gas, nil
}

func offlinePrices(t *testing.T) *prices.Service {
	t.Helper()
	// Unreachable endpoint: SOL resolves through the fixed fallback at $150.
	return prices.New(httpx.New(200*time.Millisecond, 0), "http://127.0.0.1:0", zerolog.Nop())
}

func crossChainUSDCRequest(t *testing.T) model.SwapRequest {
	t.Helper()
	solana, _ := id.ParseChain("solana")
	base, _ := id.ParseChain("base")
	usdcSol, _ := id.ParseToken("USDC", solana)
	usdcBase, _ := id.ParseToken("USDC", base)
	return model.SwapRequest{
		OriginChain: solana, OriginToken: usdcSol,
		DestChain: base, DestToken: usdcBase,
		Amount:      "100000000",
		Direction:   model.DirectionExactIn,
		UserAddress: "UserPubkey1111111111111111111111111111111111",
	}
}

func quoteFixture(req model.SwapRequest) map[string]any {
	return map[string]any{
		"steps": []map[string]any{{
			"id":        "deposit",
			"requestId": "0xreq123",
			"items": []map[string]any{{
				"data":  map[string]any{"serializedTx": "AQID"},
				"check": map[string]any{"endpoint": "/intents/status?requestId=0xreq123", "method": "GET"},
			}},
		}},
		"fees": map[string]any{
			"gas": map[string]any{
				"currency": map[string]any{"symbol": "SOL", "address": "11111111111111111111111111111111", "decimals": 9},
				"amount":   "5000", "amountUsd": "0.00075",
			},
			"relayerService": map[string]any{
				"currency": map[string]any{"symbol": "USDC", "address": req.DestToken.Address, "decimals": 6},
				"amount":   "250000", "amountUsd": "0.25",
			},
		},
		"details": map[string]any{
			"currencyIn": map[string]any{
				"currency": map[string]any{"symbol": "USDC", "address": req.OriginToken.Address, "decimals": 6},
				"amount":   req.Amount, "amountUsd": "100.00",
			},
			"currencyOut": map[string]any{
				"currency": map[string]any{"symbol": "USDC", "address": req.DestToken.Address, "decimals": 6},
				"amount":   "99500000", "amountUsd": "99.50",
			},
			"timeEstimate": 12,
			"totalImpact":  map[string]any{"percent": "-0.5"},
		},
	}
}

func TestFetchQuoteNormalizes(t *testing.T) {
	req := crossChainUSDCRequest(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quote" || r.Method != http.MethodPost {
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
		}
		var body quoteRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.OriginChainID != req.OriginChain.RelayID || body.TradeType != "EXACT_INPUT" {
			t.Errorf("bad request body: %+v", body)
		}
		_ = json.NewEncoder(w).Encode(quoteFixture(req))
	}))
	defer srv.Close()

	w := &fakeWallet{gas: 10000, nativeBalance: "5000000000"}
	c := New(httpx.New(time.Second, 0), srv.URL, offlinePrices(t), w, zerolog.Nop())

	q, err := c.FetchQuote(context.Background(), req)
	if err != nil {
		t.Fatalf("FetchQuote: %v", err)
	}
	if q.Provider != model.ProviderRelay {
		t.Fatalf("provider = %s", q.Provider)
	}
	if q.ExpectedOut != "99500000" || q.ExpectedOutFormatted != "99.5" {
		t.Fatalf("expected out = %s (%s)", q.ExpectedOut, q.ExpectedOutFormatted)
	}
	if q.Fees != "250000" {
		t.Fatalf("only destination-currency fee items should sum, got %s", q.Fees)
	}
	if q.FeePayer != model.FeePayerSponsor {
		t.Fatalf("fee payer = %s", q.FeePayer)
	}
	if q.Relay == nil || q.Relay.RequestID != "0xreq123" || q.Relay.SerializedTx != "AQID" {
		t.Fatalf("payload = %+v", q.Relay)
	}
	if q.Debridge != nil || q.Ultra != nil {
		t.Fatal("exactly one payload pointer must be set")
	}
	if q.UserReceivesUSD != 99.5 || q.UserPaysUSD != 100 {
		t.Fatalf("usd figures = %f / %f", q.UserReceivesUSD, q.UserPaysUSD)
	}
	if q.ExpiryAt.Sub(q.FetchedAt) != 60*time.Second {
		t.Fatalf("default validity window expected, got %s", q.ExpiryAt.Sub(q.FetchedAt))
	}
}

func TestFetchQuoteSponsorEconomics(t *testing.T) {
	req := crossChainUSDCRequest(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(quoteFixture(req))
	}))
	defer srv.Close()

	w := &fakeWallet{gas: 10000, nativeBalance: "5000000000"}
	c := New(httpx.New(time.Second, 0), srv.URL, offlinePrices(t), w, zerolog.Nop())

	q, err := c.FetchQuote(context.Background(), req)
	if err != nil {
		t.Fatalf("FetchQuote: %v", err)
	}

	// SOL at the $150 fallback, gas 10000 lamports, EVM destination (no rent):
	// base gas 0.0015, retry 0.003, drift 0.02 * 99.50 = 1.99.
	wantWorst := 0.0015 + 0.003 + 1.99
	if math.Abs(q.WorstCaseSponsorCostUSD-wantWorst) > 1e-9 {
		t.Fatalf("worst case = %f, want %f", q.WorstCaseSponsorCostUSD, wantWorst)
	}

	// Destination is a stablecoin and the output covers the fee: charge in
	// USDC at the 20% margin.
	if q.UserFeeCurrency != req.DestToken.Address {
		t.Fatalf("fee currency = %s", q.UserFeeCurrency)
	}
	if math.Abs(q.UserFeeUSD-wantWorst*1.2) > 1e-9 {
		t.Fatalf("user fee usd = %f", q.UserFeeUSD)
	}
	if q.RequiresSOL {
		t.Fatal("stable fee must not require SOL")
	}
	if !q.Gasless {
		t.Fatal("stable-settled fee is gasless for the user")
	}
	if q.SolanaCostToUser != "10000" {
		t.Fatalf("origin cost = %s", q.SolanaCostToUser)
	}
	if q.UserFeeUSD < q.WorstCaseSponsorCostUSD {
		t.Fatal("fee must cover the worst case")
	}
}

func TestFetchQuoteTranslatesProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"amount too small to cover fees"}`))
	}))
	defer srv.Close()

	c := New(httpx.New(time.Second, 0), srv.URL, offlinePrices(t), nil, zerolog.Nop())
	_, err := c.FetchQuote(context.Background(), crossChainUSDCRequest(t))
	if !routererr.HasCode(err, routererr.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBridgeStatusMapping(t *testing.T) {
	status := "waiting"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"` + status + `"}`))
	}))
	defer srv.Close()

	c := New(httpx.New(time.Second, 0), srv.URL, offlinePrices(t), nil, zerolog.Nop())
	cases := map[string]model.BridgeStatus{
		"waiting": model.BridgeWaiting,
		"pending": model.BridgePending,
		"success": model.BridgeSuccess,
		"failure": model.BridgeFailure,
		"refund":  model.BridgeRefund,
	}
	for input, want := range cases {
		status = input
		got, err := c.BridgeStatus(context.Background(), "0xreq123")
		if err != nil {
			t.Fatalf("BridgeStatus(%s): %v", input, err)
		}
		if got != want {
			t.Fatalf("BridgeStatus(%s) = %s, want %s", input, got, want)
		}
	}

	status = "exploded"
	if _, err := c.BridgeStatus(context.Background(), "0xreq123"); err == nil {
		t.Fatal("unknown status must error")
	}
}

func TestFetchChainSupport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chains" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"chains":[
			{"id":792703809,"name":"Solana","tokenSupport":"Limited","currencies":[
				{"address":"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v","supportsBridging":true}
			]},
			{"id":8453,"name":"Base","tokenSupport":"All"}
		]}`))
	}))
	defer srv.Close()

	c := New(httpx.New(time.Second, 0), srv.URL, offlinePrices(t), nil, zerolog.Nop())
	chains, err := c.FetchChainSupport(context.Background())
	if err != nil {
		t.Fatalf("FetchChainSupport: %v", err)
	}
	if len(chains) != 2 {
		t.Fatalf("got %d chains", len(chains))
	}
	if !chains[1].SupportsAllTokens || chains[1].ChainID != 8453 {
		t.Fatalf("base chain = %+v", chains[1])
	}
	if len(chains[0].Tokens) != 1 || !chains[0].Tokens[0].BridgingEnabled {
		t.Fatalf("solana tokens = %+v", chains[0].Tokens)
	}
}
