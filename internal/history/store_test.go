package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/solswap/router/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "history.db"), filepath.Join(dir, "history.lock"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRecord(swapID, user string) Record {
	return Record{
		SwapID:      swapID,
		UserAddress: user,
		Provider:    model.ProviderRelay,
		OriginChain: "solana",
		DestChain:   "base",
		Status:      "submitted",
		Quote: model.NormalizedQuote{
			Provider:    model.ProviderRelay,
			ExpectedOut: "99500000",
			Relay:       &model.RelayPayload{RequestID: "0xreq123"},
		},
	}
}

func TestSaveAndGetRoundtrip(t *testing.T) {
	s := openTestStore(t)
	if err := s.Save(sampleRecord("swap-1", "alice")); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Get("swap-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Provider != model.ProviderRelay || got.Quote.Relay == nil || got.Quote.Relay.RequestID != "0xreq123" {
		t.Fatalf("roundtrip lost payload: %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatal("timestamps must be stamped on save")
	}
}

func TestUpdateStatusAdvancesRecord(t *testing.T) {
	s := openTestStore(t)
	if err := s.Save(sampleRecord("swap-1", "alice")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.UpdateStatus("swap-1", "settled", "5Sig", model.BridgeSuccess); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.Get("swap-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "settled" || got.Signature != "5Sig" || got.Bridge != model.BridgeSuccess {
		t.Fatalf("update lost fields: %+v", got)
	}
}

func TestGetUnknownSwap(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get("nope"); err == nil {
		t.Fatal("unknown swap must error")
	}
}

func TestListByUserFiltersAndOrders(t *testing.T) {
	s := openTestStore(t)
	first := sampleRecord("swap-1", "alice")
	first.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	first.UpdatedAt = first.CreatedAt
	if err := s.Save(first); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(sampleRecord("swap-2", "alice")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(sampleRecord("swap-3", "bob")); err != nil {
		t.Fatalf("save: %v", err)
	}

	records, err := s.ListByUser("alice", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected alice's two swaps, got %d", len(records))
	}
	if records[0].SwapID != "swap-2" {
		t.Fatalf("most recent first, got %s", records[0].SwapID)
	}

	limited, err := s.ListByUser("", 1)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("limit not applied, got %d", len(limited))
	}
}
