package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazelmarket/checkout/internal/domain"
	"github.com/hazelmarket/checkout/internal/service"
	"github.com/hazelmarket/checkout/pkg/httputil"
	"github.com/hazelmarket/checkout/pkg/validator"
)

// CheckoutHandler handles HTTP requests for checkout endpoints.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// AddressRequest is the JSON shape of an address in step payloads.
type AddressRequest struct {
	FullName    string `json:"full_name" validate:"required"`
	AddressLine string `json:"address_line" validate:"required"`
	City        string `json:"city" validate:"required"`
	State       string `json:"state"`
	PostalCode  string `json:"postal_code" validate:"required"`
	Country     string `json:"country" validate:"required,len=2"`
	Phone       string `json:"phone"`
	Email       string `json:"email" validate:"omitempty,email"`
}

func (a AddressRequest) toDomain() domain.Address {
	return domain.Address{
		FullName:    a.FullName,
		AddressLine: a.AddressLine,
		City:        a.City,
		State:       a.State,
		PostalCode:  a.PostalCode,
		Country:     a.Country,
		Phone:       a.Phone,
		Email:       a.Email,
	}
}

// SubmitShippingRequest is the JSON request body for the shipping step.
type SubmitShippingRequest struct {
	Address        AddressRequest `json:"address" validate:"required"`
	SameAsShipping bool           `json:"same_as_shipping"`
}

// SubmitShippingMethodRequest is the JSON request body for the rate choice.
type SubmitShippingMethodRequest struct {
	RateID string `json:"rate_id" validate:"required"`
}

// SubmitBillingRequest is the JSON request body for the billing step.
type SubmitBillingRequest struct {
	SameAsShipping bool            `json:"same_as_shipping"`
	Address        *AddressRequest `json:"address,omitempty"`
}

// SubmitPaymentRequest is the JSON request body for the payment step.
type SubmitPaymentRequest struct {
	MethodTag  string `json:"method_tag" validate:"required"`
	OrderNotes string `json:"order_notes" validate:"max=1000"`
}

// ApplyCouponRequest is the JSON request body for applying a coupon.
type ApplyCouponRequest struct {
	Code string `json:"code" validate:"required"`
}

// BackRequest is the JSON request body for stepping back.
type BackRequest struct {
	Step string `json:"step" validate:"required"`
}

// --- Handlers ---

// StartCheckout handles POST /api/v1/checkout
func (h *CheckoutHandler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	shopperID := r.Header.Get("X-Shopper-ID")

	draft, err := h.service.Start(r.Context(), shopperID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: draft})
}

// GetDraft handles GET /api/v1/checkout/{id}
func (h *CheckoutHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := h.service.Get(r.Context(), chi.URLParam(r, "id"), r.Header.Get("X-Shopper-ID"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: draft})
}

// SubmitShipping handles PUT /api/v1/checkout/{id}/shipping
func (h *CheckoutHandler) SubmitShipping(w http.ResponseWriter, r *http.Request) {
	var req SubmitShippingRequest
	if !h.decode(w, r, &req) {
		return
	}

	draft, err := h.service.SubmitShipping(r.Context(), chi.URLParam(r, "id"), r.Header.Get("X-Shopper-ID"), &service.SubmitShippingInput{
		Address:        req.Address.toDomain(),
		SameAsShipping: req.SameAsShipping,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: draft})
}

// QuoteShippingMethods handles GET /api/v1/checkout/{id}/shipping-methods
func (h *CheckoutHandler) QuoteShippingMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.service.QuoteShippingMethods(r.Context(), chi.URLParam(r, "id"), r.Header.Get("X-Shopper-ID"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: methods})
}

// SubmitShippingMethod handles PUT /api/v1/checkout/{id}/shipping-method
func (h *CheckoutHandler) SubmitShippingMethod(w http.ResponseWriter, r *http.Request) {
	var req SubmitShippingMethodRequest
	if !h.decode(w, r, &req) {
		return
	}

	draft, err := h.service.SubmitShippingMethod(r.Context(), chi.URLParam(r, "id"), r.Header.Get("X-Shopper-ID"), req.RateID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: draft})
}

// SubmitBilling handles PUT /api/v1/checkout/{id}/billing
func (h *CheckoutHandler) SubmitBilling(w http.ResponseWriter, r *http.Request) {
	var req SubmitBillingRequest
	if !h.decode(w, r, &req) {
		return
	}

	input := &service.SubmitBillingInput{SameAsShipping: req.SameAsShipping}
	if req.Address != nil {
		addr := req.Address.toDomain()
		input.Address = &addr
	}

	draft, err := h.service.SubmitBilling(r.Context(), chi.URLParam(r, "id"), r.Header.Get("X-Shopper-ID"), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: draft})
}

// SubmitPayment handles PUT /api/v1/checkout/{id}/payment
func (h *CheckoutHandler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	var req SubmitPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	draft, err := h.service.SubmitPayment(r.Context(), chi.URLParam(r, "id"), r.Header.Get("X-Shopper-ID"), &service.SubmitPaymentInput{
		MethodTag:  req.MethodTag,
		OrderNotes: req.OrderNotes,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: draft})
}

// ApplyCoupon handles POST /api/v1/checkout/{id}/coupon
func (h *CheckoutHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req ApplyCouponRequest
	if !h.decode(w, r, &req) {
		return
	}

	draft, err := h.service.ApplyCoupon(r.Context(), chi.URLParam(r, "id"), r.Header.Get("X-Shopper-ID"), req.Code)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: draft})
}

// RemoveCoupon handles DELETE /api/v1/checkout/{id}/coupon
func (h *CheckoutHandler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	draft, err := h.service.RemoveCoupon(r.Context(), chi.URLParam(r, "id"), r.Header.Get("X-Shopper-ID"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: draft})
}

// GetSummary handles GET /api/v1/checkout/{id}/summary
func (h *CheckoutHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Summary(r.Context(), chi.URLParam(r, "id"), r.Header.Get("X-Shopper-ID"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: view})
}

// Back handles POST /api/v1/checkout/{id}/back
func (h *CheckoutHandler) Back(w http.ResponseWriter, r *http.Request) {
	var req BackRequest
	if !h.decode(w, r, &req) {
		return
	}

	draft, err := h.service.Back(r.Context(), chi.URLParam(r, "id"), r.Header.Get("X-Shopper-ID"), req.Step)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: draft})
}

// ConfirmOrder handles POST /api/v1/checkout/{id}/confirm
func (h *CheckoutHandler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ConfirmOrder(r.Context(), chi.URLParam(r, "id"), r.Header.Get("X-Shopper-ID"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	status := http.StatusCreated
	if result.RequiresAction {
		// No order yet: the shopper still has to complete the payment.
		status = http.StatusAccepted
	}

	httputil.WriteJSON(w, status, httputil.Response{Data: result})
}

// ResumeSettlement handles GET /api/v1/checkout/return
// The gateway redirects the shopper here with the settlement reference. No
// shopper header: this may be a fresh session.
func (h *CheckoutHandler) ResumeSettlement(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("ref")

	result, err := h.service.ResumeSettlement(r.Context(), ref)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// CancelCheckout handles POST /api/v1/checkout/{id}/cancel
func (h *CheckoutHandler) CancelCheckout(w http.ResponseWriter, r *http.Request) {
	draft, err := h.service.Cancel(r.Context(), chi.URLParam(r, "id"), r.Header.Get("X-Shopper-ID"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: draft})
}

// decode reads, parses and validates a JSON request body. Writes the error
// response itself and returns false when the body is unusable.
func (h *CheckoutHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return false
	}

	if err := validator.Validate(dst); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}

	return true
}
