package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hazelmarket/checkout/internal/domain"
)

type mockRestrictionResolver struct {
	mock.Mock
}

func (m *mockRestrictionResolver) RestrictedProducts(ctx context.Context, country string, productIDs []string) ([]string, error) {
	args := m.Called(ctx, country, productIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type mockStockResolver struct {
	mock.Mock
}

func (m *mockStockResolver) StockLevels(ctx context.Context, productIDs []string) ([]StockLevel, error) {
	args := m.Called(ctx, productIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]StockLevel), args.Error(1)
}

func testDraft() *domain.CheckoutDraft {
	return &domain.CheckoutDraft{
		ID:        "draft-001",
		ShopperID: "shopper-001",
		Status:    domain.StatusActive,
		Items: []domain.LineItem{
			{ProductID: "prod-1", Name: "Walnut Board", Quantity: 2, UnitPrice: 15000},
			{ProductID: "prod-2", Name: "Oak Tray", Quantity: 1, UnitPrice: 10000},
		},
		Currency: "EUR",
		ShippingAddress: &domain.Address{
			FullName: "Jamie Doe", AddressLine: "12 Harbour Lane",
			City: "Rotterdam", PostalCode: "3011", Country: "NL",
		},
	}
}

func TestShippingRestrictionGate_AllShippable(t *testing.T) {
	resolver := new(mockRestrictionResolver)
	resolver.On("RestrictedProducts", mock.Anything, "NL", []string{"prod-1", "prod-2"}).
		Return([]string{}, nil)

	out, err := NewShippingRestrictionGate(resolver).Check(context.Background(), testDraft())

	require.NoError(t, err)
	assert.True(t, out.Valid)
	assert.Empty(t, out.Violations)
	resolver.AssertExpectations(t)
}

func TestShippingRestrictionGate_Restricted(t *testing.T) {
	resolver := new(mockRestrictionResolver)
	resolver.On("RestrictedProducts", mock.Anything, "NL", mock.Anything).
		Return([]string{"prod-2"}, nil)

	out, err := NewShippingRestrictionGate(resolver).Check(context.Background(), testDraft())

	require.NoError(t, err)
	assert.False(t, out.Valid)
	require.Len(t, out.Violations, 1)
	assert.Equal(t, "prod-2", out.Violations[0].ProductID)
	assert.Contains(t, out.Violations[0].Message, "Oak Tray")
	assert.Contains(t, out.Violations[0].Message, "NL")
}

func TestShippingRestrictionGate_NoAddressYet(t *testing.T) {
	resolver := new(mockRestrictionResolver)
	d := testDraft()
	d.ShippingAddress = nil

	out, err := NewShippingRestrictionGate(resolver).Check(context.Background(), d)

	require.NoError(t, err)
	assert.True(t, out.Valid)
	resolver.AssertNotCalled(t, "RestrictedProducts")
}

func TestShippingRestrictionGate_ResolverError(t *testing.T) {
	resolver := new(mockRestrictionResolver)
	resolver.On("RestrictedProducts", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("catalog unavailable"))

	_, err := NewShippingRestrictionGate(resolver).Check(context.Background(), testDraft())
	assert.Error(t, err)
}

func TestStockGate_AllAvailable(t *testing.T) {
	resolver := new(mockStockResolver)
	resolver.On("StockLevels", mock.Anything, []string{"prod-1", "prod-2"}).
		Return([]StockLevel{
			{ProductID: "prod-1", InStock: true, Available: 5},
			{ProductID: "prod-2", InStock: true, Available: 2},
		}, nil)

	out, err := NewStockGate(resolver).Check(context.Background(), testDraft())

	require.NoError(t, err)
	assert.True(t, out.Valid)
}

func TestStockGate_OutOfStockAndShort(t *testing.T) {
	resolver := new(mockStockResolver)
	resolver.On("StockLevels", mock.Anything, mock.Anything).
		Return([]StockLevel{
			{ProductID: "prod-1", InStock: true, Available: 1},
			{ProductID: "prod-2", InStock: false},
		}, nil)

	out, err := NewStockGate(resolver).Check(context.Background(), testDraft())

	require.NoError(t, err)
	assert.False(t, out.Valid)
	require.Len(t, out.Violations, 2)
	assert.Contains(t, out.Violations[0].Message, "only 1 of Walnut Board left")
	assert.Contains(t, out.Violations[1].Message, "out of stock")
}

func TestStockGate_UnknownProductTreatedAsOutOfStock(t *testing.T) {
	resolver := new(mockStockResolver)
	resolver.On("StockLevels", mock.Anything, mock.Anything).
		Return([]StockLevel{
			{ProductID: "prod-1", InStock: true, Available: 5},
		}, nil)

	out, err := NewStockGate(resolver).Check(context.Background(), testDraft())

	require.NoError(t, err)
	assert.False(t, out.Valid)
	require.Len(t, out.Violations, 1)
	assert.Equal(t, "prod-2", out.Violations[0].ProductID)
}

func TestMinimumOrderGate_Policies(t *testing.T) {
	d := testDraft() // subtotal 40000

	t.Run("disabled", func(t *testing.T) {
		out, err := NewMinimumOrderGate(MinOrderDisabled, 50000).Check(context.Background(), d)
		require.NoError(t, err)
		assert.True(t, out.Valid)
		assert.Empty(t, out.Violations)
	})

	t.Run("advise reports without blocking", func(t *testing.T) {
		out, err := NewMinimumOrderGate(MinOrderAdvise, 50000).Check(context.Background(), d)
		require.NoError(t, err)
		assert.True(t, out.Valid)
		require.Len(t, out.Violations, 1)
		assert.Contains(t, out.Violations[0].Message, "below the minimum")
	})

	t.Run("block", func(t *testing.T) {
		out, err := NewMinimumOrderGate(MinOrderBlock, 50000).Check(context.Background(), d)
		require.NoError(t, err)
		assert.False(t, out.Valid)
	})

	t.Run("met", func(t *testing.T) {
		out, err := NewMinimumOrderGate(MinOrderBlock, 40000).Check(context.Background(), d)
		require.NoError(t, err)
		assert.True(t, out.Valid)
	})
}
