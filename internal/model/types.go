package model

import (
	"time"

	"github.com/solswap/router/internal/id"
)

// Provider is the closed set of quote sources.
type Provider string

const (
	ProviderRelay    Provider = "relay"
	ProviderDebridge Provider = "debridge"
	ProviderUltra    Provider = "jupiter_ultra"
)

// Direction of the trade: which side of the swap the amount fixes.
type Direction string

const (
	DirectionExactIn  Direction = "exact_in"
	DirectionExactOut Direction = "exact_out"
)

// FeePayer identifies who fronts the destination-side execution cost.
type FeePayer string

const (
	FeePayerSponsor FeePayer = "sponsor"
	FeePayerUser    FeePayer = "user"
)

// SwapRequest is one quote-and-execute cycle. Immutable once constructed.
type SwapRequest struct {
	OriginChain id.Chain  `json:"origin_chain"`
	OriginToken id.Token  `json:"origin_token"`
	DestChain   id.Chain  `json:"dest_chain"`
	DestToken   id.Token  `json:"dest_token"`
	Amount      string    `json:"amount"`
	Direction   Direction `json:"direction"`
	UserAddress string    `json:"user_address"`
	// Recipient defaults to UserAddress when empty.
	Recipient string `json:"recipient,omitempty"`
	// FeePayerOverride forces the rent/fee payer for sponsor cost estimation.
	FeePayerOverride string `json:"fee_payer_override,omitempty"`
}

func (r SwapRequest) EffectiveRecipient() string {
	if r.Recipient != "" {
		return r.Recipient
	}
	return r.UserAddress
}

// SameChain reports whether origin and destination are the same network.
func (r SwapRequest) SameChain() bool {
	return r.OriginChain.CAIP2 == r.DestChain.CAIP2
}

// SelfSwap is the degenerate same-chain same-token request; never a valid route.
func (r SwapRequest) SelfSwap() bool {
	return r.SameChain() && id.SameAddress(r.OriginToken.Address, r.DestToken.Address)
}

// RelayPayload carries what the relay execution flow needs: the request id for
// status polling and the ready-to-sign transaction from the first execution
// step.
type RelayPayload struct {
	RequestID    string `json:"request_id"`
	SerializedTx string `json:"serialized_tx"`
	// CheckEndpoint is the bridge-status URL reported by the quote, when any.
	CheckEndpoint string `json:"check_endpoint,omitempty"`
}

// DebridgePayload carries the DLN order id and its ready-to-sign transaction.
type DebridgePayload struct {
	OrderID      string `json:"order_id"`
	SerializedTx string `json:"serialized_tx"`
}

// UltraPayload carries an unsigned transaction the caller must sign plus the
// request id the execute endpoint requires.
type UltraPayload struct {
	RequestID  string `json:"request_id"`
	UnsignedTx string `json:"unsigned_tx"`
}

// NormalizedQuote is the provider-independent view of one quote. Created fresh
// on every quote call, immutable, superseded on re-quote. Exactly one payload
// pointer is non-nil, matching Provider.
type NormalizedQuote struct {
	Provider Provider `json:"provider"`

	ExpectedOut          string `json:"expected_out"`
	ExpectedOutFormatted string `json:"expected_out_formatted"`

	// Fees is the sum of provider fee line items denominated in FeeCurrency.
	// Line items in other currencies are never folded in here.
	Fees        string   `json:"fees"`
	FeeCurrency string   `json:"fee_currency"`
	FeePayer    FeePayer `json:"fee_payer"`

	// SponsorCost is the sponsor's own expected outlay, raw sponsor-currency units.
	SponsorCost string `json:"sponsor_cost,omitempty"`

	// SolanaCostToUser is what the user pays on the origin chain in lamports.
	// Display and eligibility only; never mixed into destination arithmetic.
	SolanaCostToUser string `json:"solana_cost_to_user,omitempty"`

	RequiresSOL bool `json:"requires_sol"`
	Gasless     bool `json:"gasless"`

	// UserFee is the fee charged to the user, possibly in a currency different
	// from FeeCurrency.
	UserFee         string  `json:"user_fee,omitempty"`
	UserFeeCurrency string  `json:"user_fee_currency,omitempty"`
	UserFeeUSD      float64 `json:"user_fee_usd,omitempty"`

	// USD-comparable figures, sponsor-paying provider only.
	WorstCaseSponsorCostUSD float64 `json:"worst_case_sponsor_cost_usd,omitempty"`
	UserReceivesUSD         float64 `json:"user_receives_usd,omitempty"`
	UserPaysUSD             float64 `json:"user_pays_usd,omitempty"`
	SolPriceUSD             float64 `json:"sol_price_usd,omitempty"`
	PriceDrift              float64 `json:"price_drift,omitempty"`

	ExpiryAt  time.Time `json:"expiry_at"`
	FetchedAt time.Time `json:"fetched_at"`

	Relay    *RelayPayload    `json:"relay,omitempty"`
	Debridge *DebridgePayload `json:"debridge,omitempty"`
	Ultra    *UltraPayload    `json:"ultra,omitempty"`
}

// Expired reports whether the quote's absolute expiry has passed.
func (q NormalizedQuote) Expired(now time.Time) bool {
	return !q.ExpiryAt.IsZero() && now.After(q.ExpiryAt)
}

// Age of the quote since it was fetched.
func (q NormalizedQuote) Age(now time.Time) time.Duration {
	if q.FetchedAt.IsZero() {
		return 0
	}
	return now.Sub(q.FetchedAt)
}

// Rejection explains why a candidate quote failed eligibility.
type Rejection struct {
	Provider Provider `json:"provider"`
	Reason   string   `json:"reason"`
	// NeedGas marks rejections attributable solely to insufficient native
	// gas-token balance, so the caller can surface an actionable message.
	NeedGas bool `json:"need_gas,omitempty"`
}

// QuotesResult is the ordered outcome of one aggregation round.
type QuotesResult struct {
	Quotes     []NormalizedQuote `json:"quotes"`
	Best       *NormalizedQuote  `json:"best"`
	Rejections []Rejection       `json:"rejections,omitempty"`
}

// AuditRecord is one append-only evaluation entry, written fire-and-forget
// for offline reconciliation.
type AuditRecord struct {
	Timestamp      time.Time         `json:"timestamp"`
	Request        SwapRequest       `json:"request"`
	Candidates     []NormalizedQuote `json:"candidates"`
	Rejections     []Rejection       `json:"rejections,omitempty"`
	Winner         Provider          `json:"winner,omitempty"`
	TieBreakFired  bool              `json:"tie_break_fired"`
	TieBreakReason string            `json:"tie_break_reason,omitempty"`
}

// TxStatus is the origin-transaction state machine.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxConfirmed TxStatus = "confirmed"
	TxFinalized TxStatus = "finalized"
	TxFailed    TxStatus = "failed"
)

func (s TxStatus) Terminal() bool {
	return s == TxFinalized || s == TxFailed
}

// BridgeStatus tracks destination-side settlement for the sponsor-paying
// provider, independent of origin confirmation.
type BridgeStatus string

const (
	BridgeWaiting BridgeStatus = "waiting"
	BridgePending BridgeStatus = "pending"
	BridgeSuccess BridgeStatus = "success"
	BridgeFailure BridgeStatus = "failure"
	BridgeRefund  BridgeStatus = "refund"
)

func (s BridgeStatus) Terminal() bool {
	switch s {
	case BridgeSuccess, BridgeFailure, BridgeRefund:
		return true
	default:
		return false
	}
}
