package domain

// Protocol selects how payment and order creation are sequenced for a chosen
// payment method.
type Protocol int

const (
	// ProtocolDeferred commits the order first with set_paid=false; payment is
	// collected out of band (cash on delivery, bank transfer).
	ProtocolDeferred Protocol = iota

	// ProtocolGateway settles through the payment gateway first, then commits
	// the order with set_paid=true and the settlement reference attached.
	ProtocolGateway
)

func (p Protocol) String() string {
	if p == ProtocolDeferred {
		return "deferred"
	}
	return "gateway"
}

// ProtocolFor maps a payment method tag onto a settlement protocol. Tags in
// deferredTags settle via ProtocolDeferred; everything else, including unknown
// tags, settles via the gateway so an order is never marked paid without
// gateway confirmation.
func ProtocolFor(methodTag string, deferredTags []string) Protocol {
	for _, tag := range deferredTags {
		if tag == methodTag {
			return ProtocolDeferred
		}
	}
	return ProtocolGateway
}
