package routes

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/solswap/router/internal/cache"
	"github.com/solswap/router/internal/id"
	"github.com/solswap/router/internal/model"
)

// ChainSupport is one chain's token-support metadata as reported by the
// provider chain-listing endpoint.
type ChainSupport struct {
	ChainID           int64          `json:"chain_id"`
	Name              string         `json:"name"`
	SupportsAllTokens bool           `json:"supports_all_tokens"`
	Tokens            []TokenSupport `json:"tokens,omitempty"`
}

type TokenSupport struct {
	Address         string `json:"address"`
	BridgingEnabled bool   `json:"bridging_enabled"`
}

// MetadataFetcher loads the per-chain support metadata. The relay client
// implements it against the provider's chain-listing endpoint.
type MetadataFetcher interface {
	FetchChainSupport(ctx context.Context) ([]ChainSupport, error)
}

// Verdict is the validator's answer. Reason is set only when unsupported.
type Verdict struct {
	Supported bool
	Reason    string
}

// Validator short-circuits obviously-unsupported routes before quoting. It is
// deliberately not authoritative: on fetch failure it serves the last good
// snapshot, and with nothing cached at all it fails open so the real quote
// call delivers the verdict.
type Validator struct {
	fetcher MetadataFetcher
	disk    *cache.Store
	ttl     time.Duration
	now     func() time.Time
	log     zerolog.Logger

	mu        sync.RWMutex
	snapshot  map[int64]ChainSupport
	fetchedAt time.Time
}

const DefaultTTL = 5 * time.Minute

// diskKey names the persisted snapshot; diskRetention keeps it readable well
// past the TTL so a fresh process can still serve stale data when the
// listing endpoint is down.
const (
	diskKey            = "relay/chains"
	diskRetentionOfTTL = 12
)

func NewValidator(fetcher MetadataFetcher, disk *cache.Store, ttl time.Duration, log zerolog.Logger) *Validator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Validator{
		fetcher: fetcher,
		disk:    disk,
		ttl:     ttl,
		now:     time.Now,
		log:     log,
	}
}

// IsSupported checks both legs of the route against cached chain metadata.
func (v *Validator) IsSupported(ctx context.Context, req model.SwapRequest) Verdict {
	snapshot := v.current(ctx)
	if snapshot == nil {
		// Nothing cached and the fetch failed: fail open.
		return Verdict{Supported: true}
	}

	if verdict := checkLeg(snapshot, req.OriginChain, req.OriginToken, "origin"); !verdict.Supported {
		return verdict
	}
	return checkLeg(snapshot, req.DestChain, req.DestToken, "destination")
}

func checkLeg(snapshot map[int64]ChainSupport, chain id.Chain, token id.Token, leg string) Verdict {
	support, ok := snapshot[chain.RelayID]
	if !ok {
		return Verdict{Reason: leg + " chain " + chain.Slug + " is not supported"}
	}
	if support.SupportsAllTokens {
		return Verdict{Supported: true}
	}
	for _, t := range support.Tokens {
		if id.SameAddress(t.Address, token.Address) {
			if !t.BridgingEnabled {
				return Verdict{Reason: leg + " token is listed but bridging is disabled"}
			}
			return Verdict{Supported: true}
		}
	}
	return Verdict{Reason: leg + " token is not supported on " + chain.Slug}
}

// current returns a fresh-enough snapshot, refreshing when the TTL lapsed.
// Concurrent refreshes may race; last writer wins and staleness is fine.
func (v *Validator) current(ctx context.Context) map[int64]ChainSupport {
	v.mu.RLock()
	snapshot := v.snapshot
	age := v.now().Sub(v.fetchedAt)
	v.mu.RUnlock()

	if snapshot != nil && age < v.ttl {
		return snapshot
	}

	// A fresh process starts empty; the disk snapshot from a previous run
	// can spare the network round trip entirely.
	if snapshot == nil {
		if cached, cachedAge, ok := v.fromDisk(); ok {
			v.mu.Lock()
			v.snapshot = cached
			v.fetchedAt = v.now().Add(-cachedAge)
			v.mu.Unlock()
			if cachedAge < v.ttl {
				return cached
			}
			snapshot = cached
		}
	}

	chains, err := v.fetcher.FetchChainSupport(ctx)
	if err != nil {
		if snapshot != nil {
			v.log.Debug().Err(err).Msg("route metadata refresh failed, serving stale snapshot")
			return snapshot
		}
		v.log.Debug().Err(err).Msg("route metadata unavailable, failing open")
		return nil
	}

	fresh := make(map[int64]ChainSupport, len(chains))
	for _, c := range chains {
		fresh[c.ChainID] = c
	}

	v.mu.Lock()
	v.snapshot = fresh
	v.fetchedAt = v.now()
	v.mu.Unlock()
	v.toDisk(chains)
	return fresh
}

func (v *Validator) fromDisk() (map[int64]ChainSupport, time.Duration, bool) {
	if v.disk == nil {
		return nil, 0, false
	}
	value, age, ok, err := v.disk.Get(diskKey)
	if err != nil || !ok {
		if err != nil {
			v.log.Debug().Err(err).Msg("route metadata disk read failed")
		}
		return nil, 0, false
	}
	var chains []ChainSupport
	if err := json.Unmarshal(value, &chains); err != nil {
		v.log.Debug().Err(err).Msg("route metadata disk entry is corrupt, ignoring")
		return nil, 0, false
	}
	snapshot := make(map[int64]ChainSupport, len(chains))
	for _, c := range chains {
		snapshot[c.ChainID] = c
	}
	return snapshot, age, true
}

func (v *Validator) toDisk(chains []ChainSupport) {
	if v.disk == nil {
		return
	}
	value, err := json.Marshal(chains)
	if err != nil {
		return
	}
	if err := v.disk.Put(diskKey, value, v.ttl*diskRetentionOfTTL); err != nil {
		v.log.Debug().Err(err).Msg("route metadata disk write failed")
	}
}

// Snapshot exposes the cached metadata for the routes listing surface.
func (v *Validator) Snapshot(ctx context.Context) []ChainSupport {
	snapshot := v.current(ctx)
	out := make([]ChainSupport, 0, len(snapshot))
	for _, c := range snapshot {
		out = append(out, c)
	}
	return out
}
