package quote

import (
	"reflect"
	"testing"

	"github.com/solswap/router/internal/id"
	"github.com/solswap/router/internal/model"
)

func sameChainUSDCRequest(t *testing.T) model.SwapRequest {
	t.Helper()
	solana, _ := id.ParseChain("solana")
	usdc, _ := id.ParseToken("USDC", solana)
	usdt, _ := id.ParseToken("USDT", solana)
	return model.SwapRequest{
		OriginChain: solana,
		OriginToken: usdc,
		DestChain:   solana,
		DestToken:   usdt,
		Amount:      "1000000",
		Direction:   model.DirectionExactIn,
		UserAddress: "user1111111111111111111111111111",
	}
}

// Scenario A: sponsor-paid and user-paid quotes with identical effective
// receive tie exactly; the sponsor-paying provider wins.
func TestExactTiePrefersSponsorPaid(t *testing.T) {
	req := usdcRequest(t)
	sponsor := model.NormalizedQuote{
		Provider:    model.ProviderRelay,
		ExpectedOut: "1000000",
		Fees:        "0",
		FeeCurrency: "USDC",
		FeePayer:    model.FeePayerSponsor,
		Gasless:     true,
	}
	userPays := model.NormalizedQuote{
		Provider:    model.ProviderDebridge,
		ExpectedOut: "1000100",
		Fees:        "100",
		FeeCurrency: "USDC",
		FeePayer:    model.FeePayerUser,
	}

	ranking := Rank([]model.NormalizedQuote{userPays, sponsor}, req)
	if ranking.Quotes[0].Provider != model.ProviderRelay {
		t.Fatalf("sponsor-paying provider must win the tie, got %s", ranking.Quotes[0].Provider)
	}
	if !ranking.TieBreakFired {
		t.Fatal("tie-break should have fired")
	}
}

// Scenario D: a clearly better sponsor quote wins on the primary key alone.
func TestClearWinnerNeedsNoTieBreak(t *testing.T) {
	req := usdcRequest(t)
	sponsor := model.NormalizedQuote{
		Provider:        model.ProviderRelay,
		ExpectedOut:     "1050000",
		FeePayer:        model.FeePayerSponsor,
		UserReceivesUSD: 105,
		UserPaysUSD:     100,
		Gasless:         true,
	}
	userPays := model.NormalizedQuote{
		Provider:        model.ProviderDebridge,
		ExpectedOut:     "1000000",
		FeePayer:        model.FeePayerUser,
		UserReceivesUSD: 100,
		UserPaysUSD:     100.24,
	}

	ranking := Rank([]model.NormalizedQuote{userPays, sponsor}, req)
	if ranking.Quotes[0].Provider != model.ProviderRelay {
		t.Fatalf("higher net USD must rank first, got %s", ranking.Quotes[0].Provider)
	}
	if ranking.TieBreakFired {
		t.Fatal("no tie-break should fire on a clear winner")
	}
}

func TestTieBreakInactiveBeyondThreshold(t *testing.T) {
	req := usdcRequest(t)
	leader := model.NormalizedQuote{
		Provider:        model.ProviderDebridge,
		ExpectedOut:     "1020000",
		FeePayer:        model.FeePayerUser,
		UserReceivesUSD: 102,
		UserPaysUSD:     100,
	}
	runnerUp := model.NormalizedQuote{
		Provider:        model.ProviderRelay,
		ExpectedOut:     "1000000",
		FeePayer:        model.FeePayerSponsor,
		UserReceivesUSD: 100,
		UserPaysUSD:     100,
		Gasless:         true,
	}

	// Net values differ by far more than 0.1%; the sponsor quote stays second.
	ranking := Rank([]model.NormalizedQuote{runnerUp, leader}, req)
	if ranking.Quotes[0].Provider != model.ProviderDebridge {
		t.Fatalf("lower quote must never be promoted beyond the threshold, got %s", ranking.Quotes[0].Provider)
	}
	if ranking.TieBreakFired {
		t.Fatal("tie-break must not fire beyond the threshold")
	}
}

func TestSelectionDeterministicAndOrderInsensitive(t *testing.T) {
	req := usdcRequest(t)
	quotes := []model.NormalizedQuote{
		{Provider: model.ProviderDebridge, ExpectedOut: "1000100", Fees: "100", FeeCurrency: "USDC", FeePayer: model.FeePayerUser},
		{Provider: model.ProviderRelay, ExpectedOut: "1000000", FeePayer: model.FeePayerSponsor, Gasless: true},
		{Provider: model.ProviderUltra, ExpectedOut: "999000", FeePayer: model.FeePayerUser},
	}

	first := SortByBest(quotes, req)
	second := SortByBest(quotes, req)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("repeated calls must return identical order")
	}

	reversed := []model.NormalizedQuote{quotes[2], quotes[1], quotes[0]}
	third := SortByBest(reversed, req)
	if !reflect.DeepEqual(first, third) {
		t.Fatal("input order must not change the output order")
	}
}

func TestSameChainSpecialistPromotion(t *testing.T) {
	req := sameChainUSDCRequest(t)
	leader := model.NormalizedQuote{
		Provider:    model.ProviderRelay,
		ExpectedOut: "1000050",
		FeePayer:    model.FeePayerSponsor,
		Gasless:     true,
	}
	specialist := model.NormalizedQuote{
		Provider:    model.ProviderUltra,
		ExpectedOut: "1000000",
		FeePayer:    model.FeePayerUser,
	}

	// 50 parts in a million is well inside 10 bps.
	ranking := Rank([]model.NormalizedQuote{leader, specialist}, req)
	if ranking.Quotes[0].Provider != model.ProviderUltra {
		t.Fatalf("specialist must be promoted within threshold, got %s", ranking.Quotes[0].Provider)
	}
	if !ranking.TieBreakFired {
		t.Fatal("specialist promotion is a tie-break")
	}
}

func TestExactOutSortsByCost(t *testing.T) {
	req := usdcRequest(t)
	req.Direction = model.DirectionExactOut
	cheap := model.NormalizedQuote{
		Provider:    model.ProviderRelay,
		ExpectedOut: "1000000",
		Fees:        "0",
		FeePayer:    model.FeePayerSponsor,
	}
	expensive := model.NormalizedQuote{
		Provider:    model.ProviderDebridge,
		ExpectedOut: "1000000",
		Fees:        "500",
		FeeCurrency: "USDC",
		FeePayer:    model.FeePayerUser,
	}
	ordered := SortByBest([]model.NormalizedQuote{expensive, cheap}, req)
	if ordered[0].Provider != model.ProviderRelay {
		t.Fatalf("exact_out orders by ascending cost, got %s first", ordered[0].Provider)
	}
}
