package execution

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	routererr "github.com/solswap/router/internal/errors"
	"github.com/solswap/router/internal/history"
	"github.com/solswap/router/internal/model"
	"github.com/solswap/router/internal/quote"
	"github.com/solswap/router/internal/wallet"
)

// QuoteRefresher re-fetches a quote for the same request, used when the held
// quote has expired or aged past its provider's freshness window.
type QuoteRefresher interface {
	FetchQuote(ctx context.Context, req model.SwapRequest) (model.NormalizedQuote, error)
}

// BridgeStatusChecker resolves destination-side settlement for a request id.
type BridgeStatusChecker interface {
	BridgeStatus(ctx context.Context, requestID string) (model.BridgeStatus, error)
}

// UltraExecutor submits a signed order transaction through the provider.
type UltraExecutor interface {
	Execute(ctx context.Context, signedTxBase64, requestID string) (string, error)
}

// Options tune the execution loops. Zero values take the defaults.
type Options struct {
	PollInterval    time.Duration
	MaxPollAttempts int
	SubmitRetries   int
}

func DefaultOptions() Options {
	return Options{
		PollInterval:    2 * time.Second,
		MaxPollAttempts: 30,
		SubmitRetries:   3,
	}
}

// Ultra orders embed a recent blockhash: past the hard age limit the
// transaction will not land and must be refreshed; past the warn limit it is
// at risk.
const (
	ultraMaxAge  = 30 * time.Second
	ultraWarnAge = 25 * time.Second
)

// Event is one observable execution transition, surfaced to the caller for
// progress display.
type Event struct {
	Stage     string
	Message   string
	Signature string
}

// Outcome is the terminal result of one execution.
type Outcome struct {
	Status      model.TxStatus
	Bridge      model.BridgeStatus
	Signature   string
	ExplorerURL string
	Message     string
}

// Orchestrator drives a selected quote through signing, submission,
// confirmation and settlement. History writes are best-effort: a failed write
// is logged and never interrupts the swap.
type Orchestrator struct {
	wallet     wallet.Wallet
	refreshers map[model.Provider]QuoteRefresher
	bridge     BridgeStatusChecker
	ultra      UltraExecutor
	history    *history.Store
	log        zerolog.Logger
	opts       Options

	OnEvent func(Event)

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

func New(w wallet.Wallet, refreshers map[model.Provider]QuoteRefresher, bridge BridgeStatusChecker, ultra UltraExecutor, hist *history.Store, log zerolog.Logger, opts Options) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultOptions().PollInterval
	}
	if opts.MaxPollAttempts <= 0 {
		opts.MaxPollAttempts = DefaultOptions().MaxPollAttempts
	}
	if opts.SubmitRetries <= 0 {
		opts.SubmitRetries = DefaultOptions().SubmitRetries
	}
	return &Orchestrator{
		wallet:     w,
		refreshers: refreshers,
		bridge:     bridge,
		ultra:      ultra,
		history:    hist,
		log:        log,
		opts:       opts,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// Execute runs the provider-specific flow for the quote.
func (o *Orchestrator) Execute(ctx context.Context, req model.SwapRequest, q model.NormalizedQuote) (Outcome, error) {
	if o.wallet == nil {
		return Outcome{}, routererr.New(routererr.CodeUsage, "execution requires a configured wallet")
	}

	fresh, err := o.preflight(ctx, req, q)
	if err != nil {
		return Outcome{}, err
	}
	q = fresh

	switch {
	case q.Relay != nil:
		return o.executeRelay(ctx, req, q)
	case q.Debridge != nil:
		return o.executeDebridge(ctx, req, q)
	case q.Ultra != nil:
		return o.executeUltra(ctx, req, q)
	default:
		return Outcome{}, routererr.New(routererr.CodeInternal, "quote carries no execution payload")
	}
}

// preflight enforces quote freshness. An expired quote is refreshed once
// through the provider; with no refresher wired the swap aborts rather than
// submitting a transaction that cannot land. Relay quotes skip the staleness
// check here: that flow re-quotes unconditionally right before submission.
func (o *Orchestrator) preflight(ctx context.Context, req model.SwapRequest, q model.NormalizedQuote) (model.NormalizedQuote, error) {
	if q.Relay != nil {
		return q, nil
	}
	now := o.now()
	stale := q.Expired(now)
	if q.Ultra != nil {
		age := q.Age(now)
		if age > ultraMaxAge {
			stale = true
		} else if age > ultraWarnAge {
			o.log.Warn().Dur("age", age).Msg("order close to expiry, landing is at risk")
		}
	}
	if !stale {
		return q, nil
	}
	o.emit(Event{Stage: "refreshing", Message: "quote expired, fetching a fresh one"})
	return o.refresh(ctx, req, q)
}

// refresh re-fetches the quote through the provider and re-runs the
// eligibility gate on the fresh numbers; market movement can invalidate the
// sponsor economics between quoting and execution.
func (o *Orchestrator) refresh(ctx context.Context, req model.SwapRequest, q model.NormalizedQuote) (model.NormalizedQuote, error) {
	refresher, ok := o.refreshers[q.Provider]
	if !ok {
		return model.NormalizedQuote{}, routererr.New(routererr.CodeExpiredQuote, "quote cannot be refreshed")
	}
	fresh, err := refresher.FetchQuote(ctx, req)
	if err != nil {
		return model.NormalizedQuote{}, routererr.Wrap(routererr.CodeExpiredQuote, "refresh quote", err)
	}
	if eligible, rejections := quote.Filter([]model.NormalizedQuote{fresh}, req); len(eligible) == 0 {
		reason := "refreshed quote failed eligibility"
		if len(rejections) > 0 {
			reason = rejections[0].Reason
		}
		return model.NormalizedQuote{}, routererr.New(routererr.CodeIneligible, reason)
	}
	return fresh, nil
}

func (o *Orchestrator) executeRelay(ctx context.Context, req model.SwapRequest, q model.NormalizedQuote) (Outcome, error) {
	// The sponsor priced this quote against a moving market. Re-quote
	// synchronously and re-check solvency before anything is signed; the
	// fresh payload is what gets submitted.
	o.emit(Event{Stage: "requoting"})
	fresh, err := o.refresh(ctx, req, q)
	if err != nil {
		return Outcome{}, err
	}
	if fresh.Relay == nil {
		return Outcome{}, routererr.New(routererr.CodeInternal, "refreshed quote carries no relay payload")
	}
	q = fresh

	swapID := newSwapID()

	signature, err := o.signAndSubmit(ctx, q.Relay.SerializedTx)
	if err != nil {
		return Outcome{}, err
	}
	o.emit(Event{Stage: "submitted", Signature: signature})
	o.saveHistory(swapID, req, q, "submitted", signature, "")

	status, err := o.pollTransaction(ctx, signature, model.TxConfirmed)
	if err != nil {
		o.updateHistory(swapID, "failed", signature, "")
		return Outcome{Status: model.TxFailed, Signature: signature}, err
	}
	o.emit(Event{Stage: string(status), Signature: signature})
	o.updateHistory(swapID, string(status), signature, "")

	// Origin confirmation is not settlement: the sponsor still has to fill on
	// the destination side.
	o.emit(Event{Stage: "bridging", Signature: signature})
	bridgeStatus, err := o.pollBridge(ctx, q.Relay.RequestID)
	outcome := Outcome{
		Status:      status,
		Bridge:      bridgeStatus,
		Signature:   signature,
		ExplorerURL: explorerURL(req, signature),
	}
	if err != nil {
		o.updateHistory(swapID, "settlement_unknown", signature, bridgeStatus)
		return outcome, err
	}
	switch bridgeStatus {
	case model.BridgeSuccess:
		o.emit(Event{Stage: "settled", Signature: signature})
		o.updateHistory(swapID, "settled", signature, bridgeStatus)
		return outcome, nil
	case model.BridgeFailure:
		o.updateHistory(swapID, "failed", signature, bridgeStatus)
		return outcome, routererr.New(routererr.CodeSettlement, "bridge reported destination failure")
	case model.BridgeRefund:
		o.updateHistory(swapID, "refunded", signature, bridgeStatus)
		return outcome, routererr.New(routererr.CodeSettlement, "bridge refunded the origin deposit")
	default:
		// Poll budget exhausted while the bridge was still working.
		o.updateHistory(swapID, "settling", signature, bridgeStatus)
		outcome.Message = "origin transaction landed; settlement still in progress"
		return outcome, nil
	}
}

func (o *Orchestrator) executeDebridge(ctx context.Context, req model.SwapRequest, q model.NormalizedQuote) (Outcome, error) {
	swapID := newSwapID()

	signature, err := o.signAndSubmit(ctx, q.Debridge.SerializedTx)
	if err != nil {
		return Outcome{}, err
	}
	o.emit(Event{Stage: "submitted", Signature: signature})
	o.saveHistory(swapID, req, q, "submitted", signature, "")

	status, err := o.pollTransaction(ctx, signature, model.TxFinalized)
	if err != nil {
		o.updateHistory(swapID, "failed", signature, "")
		return Outcome{Status: model.TxFailed, Signature: signature}, err
	}
	o.emit(Event{Stage: string(status), Signature: signature})
	o.updateHistory(swapID, string(status), signature, "")

	outcome := Outcome{
		Status:      status,
		Signature:   signature,
		ExplorerURL: explorerURL(req, signature),
	}
	if status == model.TxConfirmed {
		// Confirmed but not finalized within the poll budget is a success for
		// order-based bridging; the order engine takes it from here.
		outcome.Message = "origin transaction confirmed; order fill proceeds asynchronously"
	}
	return outcome, nil
}

func (o *Orchestrator) executeUltra(ctx context.Context, req model.SwapRequest, q model.NormalizedQuote) (Outcome, error) {
	if o.ultra == nil {
		return Outcome{}, routererr.New(routererr.CodeUsage, "ultra execution is not configured")
	}
	swapID := newSwapID()

	signed, err := o.wallet.SignTransaction(ctx, q.Ultra.UnsignedTx)
	if err != nil {
		return Outcome{}, err
	}
	signature, err := o.ultra.Execute(ctx, signed, q.Ultra.RequestID)
	if err != nil {
		return Outcome{}, err
	}
	o.emit(Event{Stage: "submitted", Signature: signature})
	o.saveHistory(swapID, req, q, "submitted", signature, "")

	status, err := o.pollTransaction(ctx, signature, model.TxFinalized)
	if err != nil {
		o.updateHistory(swapID, "failed", signature, "")
		return Outcome{Status: model.TxFailed, Signature: signature}, err
	}
	o.emit(Event{Stage: string(status), Signature: signature})
	o.updateHistory(swapID, string(status), signature, "")

	return Outcome{
		Status:      status,
		Signature:   signature,
		ExplorerURL: explorerURL(req, signature),
	}, nil
}

// signAndSubmit signs the serialized transaction and submits it, retrying
// submission on transient failures.
func (o *Orchestrator) signAndSubmit(ctx context.Context, serializedTx string) (string, error) {
	signed, err := o.wallet.SignTransaction(ctx, serializedTx)
	if err != nil {
		return "", err
	}
	var lastErr error
	for attempt := 0; attempt < o.opts.SubmitRetries; attempt++ {
		if attempt > 0 {
			if err := o.sleep(ctx, o.opts.PollInterval); err != nil {
				return "", routererr.Wrap(routererr.CodeSubmission, "submission cancelled", err)
			}
		}
		signature, err := o.wallet.SendTransaction(ctx, signed)
		if err == nil {
			return signature, nil
		}
		lastErr = err
		if !routererr.Retryable(err) {
			break
		}
		o.log.Warn().Err(err).Int("attempt", attempt+1).Msg("submission failed, retrying")
	}
	return "", routererr.Wrap(routererr.CodeSubmission, "submit transaction", lastErr)
}

// pollTransaction polls the origin chain until the signature reaches target
// or a terminal state, or the poll budget runs out. On exhaustion the last
// known status is returned without error; pending is not a failure. If no
// poll ever succeeded there is no known status, and that surfaces as an
// error rather than an optimistic pending.
func (o *Orchestrator) pollTransaction(ctx context.Context, signature string, target model.TxStatus) (model.TxStatus, error) {
	last := model.TxPending
	observed := false
	var lastErr error
	for attempt := 0; attempt < o.opts.MaxPollAttempts; attempt++ {
		if attempt > 0 {
			if err := o.sleep(ctx, o.opts.PollInterval); err != nil {
				return last, routererr.Wrap(routererr.CodeSubmission, "confirmation wait cancelled", err)
			}
		}
		status, err := o.wallet.TransactionStatus(ctx, signature)
		if err != nil {
			// Transient RPC failures are absorbed by the poll budget.
			lastErr = err
			o.log.Debug().Err(err).Msg("status poll failed")
			continue
		}
		lastErr = nil
		observed = true
		last = status
		if status == model.TxFailed {
			return status, routererr.New(routererr.CodeSubmission, "transaction failed on-chain")
		}
		if status == target || status == model.TxFinalized {
			return status, nil
		}
	}
	if !observed && lastErr != nil {
		return last, routererr.Wrap(routererr.CodeSubmission, "transaction status unavailable", lastErr)
	}
	return last, nil
}

// pollBridge polls destination settlement until terminal or the budget runs
// out. A final failed check surfaces as an error so the caller never mistakes
// an unknown settlement for a good one.
func (o *Orchestrator) pollBridge(ctx context.Context, requestID string) (model.BridgeStatus, error) {
	if o.bridge == nil {
		return "", routererr.New(routererr.CodeUsage, "bridge status checking is not configured")
	}
	last := model.BridgeStatus("")
	var lastErr error
	for attempt := 0; attempt < o.opts.MaxPollAttempts; attempt++ {
		if attempt > 0 {
			if err := o.sleep(ctx, o.opts.PollInterval); err != nil {
				return last, routererr.Wrap(routererr.CodeSettlement, "settlement wait cancelled", err)
			}
		}
		status, err := o.bridge.BridgeStatus(ctx, requestID)
		if err != nil {
			lastErr = err
			o.log.Debug().Err(err).Msg("settlement poll failed")
			continue
		}
		lastErr = nil
		last = status
		if status.Terminal() {
			return status, nil
		}
	}
	if last == "" && lastErr != nil {
		return "", routererr.Wrap(routererr.CodeSettlement, "settlement status unavailable", lastErr)
	}
	return last, nil
}

func (o *Orchestrator) emit(event Event) {
	if o.OnEvent != nil {
		o.OnEvent(event)
	}
}

func (o *Orchestrator) saveHistory(swapID string, req model.SwapRequest, q model.NormalizedQuote, status, signature string, bridge model.BridgeStatus) {
	if o.history == nil {
		return
	}
	err := o.history.Save(history.Record{
		SwapID:      swapID,
		UserAddress: req.UserAddress,
		Provider:    q.Provider,
		OriginChain: req.OriginChain.Slug,
		DestChain:   req.DestChain.Slug,
		Status:      status,
		Signature:   signature,
		Bridge:      bridge,
		Request:     req,
		Quote:       q,
	})
	if err != nil {
		o.log.Warn().Err(err).Str("swap_id", swapID).Msg("history write failed")
	}
}

func (o *Orchestrator) updateHistory(swapID, status, signature string, bridge model.BridgeStatus) {
	if o.history == nil {
		return
	}
	if err := o.history.UpdateStatus(swapID, status, signature, bridge); err != nil {
		o.log.Warn().Err(err).Str("swap_id", swapID).Msg("history update failed")
	}
}

func explorerURL(req model.SwapRequest, signature string) string {
	if req.OriginChain.Explorer == "" || signature == "" {
		return ""
	}
	return req.OriginChain.Explorer + signature
}

func newSwapID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "swap-unknown"
	}
	return fmt.Sprintf("swap_%s", hex.EncodeToString(b))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
