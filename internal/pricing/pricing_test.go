package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hazelmarket/checkout/internal/domain"
)

type mockRateResolver struct {
	mock.Mock
}

func (m *mockRateResolver) QuoteRates(ctx context.Context, address domain.Address, items []domain.LineItem) ([]domain.ShippingMethod, error) {
	args := m.Called(ctx, address, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ShippingMethod), args.Error(1)
}

func pricedDraft() *domain.CheckoutDraft {
	return &domain.CheckoutDraft{
		ID: "draft-001",
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

func TestQuoteShippingMethods(t *testing.T) {
	rates := new(mockRateResolver)
	quoted := []domain.ShippingMethod{
		{ID: "rate-1", MethodID: "flat_rate", Label: "Standard", Cost: 5000},
		{ID: "rate-2", MethodID: "express", Label: "Next Day", Cost: 12000},
	}
	rates.On("QuoteRates", mock.Anything, mock.Anything, mock.Anything).Return(quoted, nil)

	methods, err := NewResolver(rates).QuoteShippingMethods(context.Background(), pricedDraft())

	require.NoError(t, err)
	assert.Equal(t, quoted, methods)
}

func TestQuoteShippingMethods_NoAddress(t *testing.T) {
	d := pricedDraft()
	d.ShippingAddress = nil

	_, err := NewResolver(new(mockRateResolver)).QuoteShippingMethods(context.Background(), d)
	assert.Error(t, err)
}

func TestSelectMethod_UsesQuotedCost(t *testing.T) {
	rates := new(mockRateResolver)
	rates.On("QuoteRates", mock.Anything, mock.Anything, mock.Anything).Return([]domain.ShippingMethod{
		{ID: "rate-1", MethodID: "flat_rate", Label: "Standard", Cost: 5000},
	}, nil)

	r := NewResolver(rates)

	method, err := r.SelectMethod(context.Background(), pricedDraft(), "rate-1")
	require.NoError(t, err)
	require.NotNil(t, method)
	assert.Equal(t, int64(5000), method.Cost)

	method, err = r.SelectMethod(context.Background(), pricedDraft(), "rate-99")
	require.NoError(t, err)
	assert.Nil(t, method)
}

func TestSelectMethod_QuoteError(t *testing.T) {
	rates := new(mockRateResolver)
	rates.On("QuoteRates", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("rate service down"))

	_, err := NewResolver(rates).SelectMethod(context.Background(), pricedDraft(), "rate-1")
	assert.Error(t, err)
}

// Subtotal 400.00, 10% coupon, shipping 50.00: discount is 40.00 and the
// total is 410.00.
func TestSummarize(t *testing.T) {
	d := pricedDraft()
	d.ShippingMethod = &domain.ShippingMethod{ID: "rate-1", MethodID: "flat_rate", Label: "Standard", Cost: 5000}
	d.AppliedCoupon = &domain.Coupon{Code: "TEN", DiscountType: domain.DiscountPercent, Amount: 10}

	s := Summarize(d)

	assert.Equal(t, int64(40000), s.Subtotal)
	assert.Equal(t, int64(5000), s.Shipping)
	assert.Equal(t, int64(4000), s.Discount)
	assert.Equal(t, int64(41000), s.Total)
	assert.Equal(t, "EUR", s.Currency)
}

func TestSummarize_DiscountClampKeepsShippingPayable(t *testing.T) {
	d := pricedDraft()
	d.ShippingMethod = &domain.ShippingMethod{ID: "rate-1", MethodID: "flat_rate", Label: "Standard", Cost: 5000}
	d.AppliedCoupon = &domain.Coupon{Code: "HUGE", DiscountType: domain.DiscountFixed, Amount: 999999}

	s := Summarize(d)

	assert.Equal(t, s.Subtotal, s.Discount)
	assert.Equal(t, int64(5000), s.Total)
}
