package domain

// Settlement status constants. The state replaces the sentinel-id pattern with
// an explicit progression: not started -> pending -> confirmed.
const (
	SettlementNotStarted = "not_started"
	SettlementPending    = "pending"
	SettlementConfirmed  = "confirmed"
)

// SettlementState tracks the negotiation with the payment gateway for one
// draft. At most one settlement may be open (pending) per draft at a time.
type SettlementState struct {
	Status string `json:"status"`

	// Ref is the gateway's unique reference for this payment attempt, set once
	// an intent has been opened. Used for reconciliation.
	Ref string `json:"ref,omitempty"`

	// ClientSecret is the gateway token the payment collection UI renders
	// with. Only meaningful while pending.
	ClientSecret string `json:"client_secret,omitempty"`

	// Amount is the minor-unit amount the intent was opened for. The draft
	// total can change while an intent is open (coupon applied, item
	// removed), so the opened amount has to be kept to detect the drift.
	Amount int64 `json:"amount,omitempty"`
}

// NoSettlement returns the initial settlement state.
func NoSettlement() SettlementState {
	return SettlementState{Status: SettlementNotStarted}
}

// PendingSettlement returns the state for a freshly opened gateway intent.
func PendingSettlement(ref, clientSecret string, amount int64) SettlementState {
	return SettlementState{Status: SettlementPending, Ref: ref, ClientSecret: clientSecret, Amount: amount}
}

// ConfirmedSettlement returns the state after the gateway confirms funds.
// The client secret is dropped; it has no use past confirmation.
func ConfirmedSettlement(ref string) SettlementState {
	return SettlementState{Status: SettlementConfirmed, Ref: ref}
}

// IsOpen reports whether a gateway intent is open and awaiting confirmation.
func (s SettlementState) IsOpen() bool {
	return s.Status == SettlementPending
}

// IsConfirmed reports whether the gateway has confirmed the settlement.
func (s SettlementState) IsConfirmed() bool {
	return s.Status == SettlementConfirmed
}

// Started reports whether an intent has ever been opened for this draft.
func (s SettlementState) Started() bool {
	return s.Status == SettlementPending || s.Status == SettlementConfirmed
}

// SettlementIntent represents an open negotiation with the payment gateway.
type SettlementIntent struct {
	ReferenceID      string `json:"reference_id"`
	ClientSecret     string `json:"client_secret"`
	AmountMinorUnits int64  `json:"amount_minor_units"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
}
