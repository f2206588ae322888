package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettlementStateTransitions(t *testing.T) {
	s := NoSettlement()
	assert.False(t, s.Started())
	assert.False(t, s.IsOpen())
	assert.False(t, s.IsConfirmed())

	s = PendingSettlement("pi_123", "pi_123_secret", 45000)
	assert.True(t, s.Started())
	assert.True(t, s.IsOpen())
	assert.False(t, s.IsConfirmed())
	assert.Equal(t, "pi_123", s.Ref)
	assert.Equal(t, "pi_123_secret", s.ClientSecret)
	assert.Equal(t, int64(45000), s.Amount)

	s = ConfirmedSettlement("pi_123")
	assert.True(t, s.Started())
	assert.False(t, s.IsOpen())
	assert.True(t, s.IsConfirmed())
	assert.Equal(t, "pi_123", s.Ref)
	assert.Equal(t, "", s.ClientSecret, "secret is not carried past confirmation")
}

func TestProtocolFor(t *testing.T) {
	deferred := []string{"cod", "bank_transfer"}

	assert.Equal(t, ProtocolDeferred, ProtocolFor("cod", deferred))
	assert.Equal(t, ProtocolDeferred, ProtocolFor("bank_transfer", deferred))
	assert.Equal(t, ProtocolGateway, ProtocolFor("card", deferred))
	// Unknown methods settle through the gateway rather than shipping goods
	// against a payment that was never taken.
	assert.Equal(t, ProtocolGateway, ProtocolFor("mystery_wallet", deferred))
	assert.Equal(t, ProtocolGateway, ProtocolFor("cod", nil))
}
