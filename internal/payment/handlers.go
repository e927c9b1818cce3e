package payment

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/academy-payments/internal/common"
	"github.com/noah-isme/academy-payments/internal/obs"
)

const (
	msgInvalidBody          = "Invalid request body."
	msgOrderFailed          = "Failed to create payment order."
	msgVerifyFields         = "razorpay_order_id, razorpay_payment_id and razorpay_signature are required."
	msgPaymentVerified      = "Payment verified."
	msgServiceMisconfigured = "Payment service is not configured."
)

// Handler exposes the browser-facing checkout endpoints.
type Handler struct {
	Orders    *OrderService
	KeySecret string
	Validator *validator.Validate
}

// CreateOrder handles POST /create-order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Orders == nil {
		common.JSONError(w, http.StatusInternalServerError, msgServiceMisconfigured)
		return
	}
	logger := zerolog.Ctx(r.Context())

	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "Request body too large.")
			return
		}
		common.JSONError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	resp, err := h.Orders.Create(r.Context(), req)
	if err != nil {
		if appErr, ok := common.AsAppError(err); ok {
			common.JSONError(w, appErr.HTTPStatus, appErr.Message)
			return
		}
		message := msgOrderFailed
		var gerr *GatewayError
		if errors.As(err, &gerr) && gerr.Description != "" {
			message = gerr.Description
		}
		logger.Error().Err(err).Msg("create payment order")
		common.JSONError(w, http.StatusInternalServerError, message)
		return
	}

	logger.Info().
		Str("order_id", resp.OrderID).
		Int64("amount", resp.Amount).
		Str("currency", resp.Currency).
		Msg("payment order created")
	common.JSON(w, http.StatusOK, resp)
}

type verifyRequest struct {
	OrderID   string `json:"razorpay_order_id" validate:"required,max=64"`
	PaymentID string `json:"razorpay_payment_id" validate:"required,max=64"`
	Signature string `json:"razorpay_signature" validate:"required,hexadecimal,max=128"`
}

type verifyResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
}

// VerifyPayment handles POST /verify-payment, checking the signature the
// checkout widget returns after a successful payment.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())
	if h == nil || h.KeySecret == "" {
		logger.Error().Msg("payment verification attempted without key secret")
		obs.IncVerify("misconfigured")
		common.JSONStatus(w, http.StatusInternalServerError, "error", msgCredentialsMissing)
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		obs.IncVerify("invalid")
		common.JSONStatus(w, http.StatusBadRequest, "error", msgInvalidBody)
		return
	}
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.PaymentID = strings.TrimSpace(req.PaymentID)
	req.Signature = strings.TrimSpace(req.Signature)
	if err := h.validate().Struct(req); err != nil {
		obs.IncVerify("invalid")
		common.JSONStatus(w, http.StatusBadRequest, "error", msgVerifyFields)
		return
	}

	if !VerifySignature(h.KeySecret, CheckoutPayload(req.OrderID, req.PaymentID), req.Signature) {
		logger.Warn().Str("order_id", req.OrderID).Str("payment_id", req.PaymentID).Msg("checkout signature rejected")
		obs.IncVerify("invalid_signature")
		common.JSONStatus(w, http.StatusBadRequest, "error", msgInvalidSignature)
		return
	}

	logger.Info().Str("order_id", req.OrderID).Str("payment_id", req.PaymentID).Msg("payment verified")
	obs.IncVerify("success")
	common.JSON(w, http.StatusOK, verifyResponse{
		Status:    "success",
		Message:   msgPaymentVerified,
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
	})
}

func (h *Handler) validate() *validator.Validate {
	if h.Validator != nil {
		return h.Validator
	}
	return defaultValidator
}
