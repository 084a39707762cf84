package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/adilmk/homeserve/internal/apperrors"
	"github.com/adilmk/homeserve/internal/logger"
	"github.com/adilmk/homeserve/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type processPaymentRequest struct {
	ProviderID    int64                `json:"provider_id"`
	BookingAmount decimal.Decimal      `json:"booking_amount"`
	Currency      string               `json:"currency"`
	BookingMethod models.PaymentMethod `json:"booking_method"`
	Amount        decimal.Decimal      `json:"amount"`
	Method        models.PaymentMethod `json:"method"`
	Details       models.Metadata      `json:"details"`
}

type refundRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

func bookingIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "bookingID"), 10, 64)
}

func (h *Handler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	bookingID, err := bookingIDParam(r)
	if err != nil {
		http.Error(w, "invalid booking id", http.StatusBadRequest)
		return
	}

	var req processPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid input", http.StatusBadRequest)
		return
	}

	charge := models.BookingCharge{
		BookingID:  bookingID,
		ProviderID: req.ProviderID,
		Amount:     req.BookingAmount,
		Currency:   req.Currency,
		Method:     req.BookingMethod,
	}

	result, err := h.paymentService.ProcessPayment(r.Context(), charge, req.Amount, req.Method, req.Details)
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(result)
	case errors.Is(err, apperrors.ErrInvalidAmount):
		http.Error(w, "invalid amount", http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrAmountMismatch):
		http.Error(w, "amount does not match booking", http.StatusUnprocessableEntity)
	case errors.Is(err, apperrors.ErrMethodMismatch):
		http.Error(w, "method does not match booking", http.StatusUnprocessableEntity)
	case errors.Is(err, apperrors.ErrUnsupportedMethod):
		http.Error(w, "unsupported payment method", http.StatusUnprocessableEntity)
	case errors.Is(err, apperrors.ErrPaymentExists):
		http.Error(w, "payment already exists for booking", http.StatusConflict)
	default:
		http.Error(w, "internal server error", http.StatusInternalServerError)
		logger.Log.Error("failed to process payment", zap.Int64("booking_id", bookingID), zap.Error(err))
	}
}

func (h *Handler) ConfirmCashPayment(w http.ResponseWriter, r *http.Request) {
	bookingID, err := bookingIDParam(r)
	if err != nil {
		http.Error(w, "invalid booking id", http.StatusBadRequest)
		return
	}

	payment, err := h.paymentService.ConfirmCashPayment(r.Context(), bookingID)
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(payment)
	case errors.Is(err, apperrors.ErrPaymentNotFound):
		http.Error(w, "payment not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrMethodMismatch):
		http.Error(w, "payment is not a cash payment", http.StatusUnprocessableEntity)
	case errors.Is(err, apperrors.ErrInvalidStateTransition):
		http.Error(w, "payment is not pending", http.StatusConflict)
	default:
		http.Error(w, "internal server error", http.StatusInternalServerError)
		logger.Log.Error("failed to confirm cash payment", zap.Int64("booking_id", bookingID), zap.Error(err))
	}
}

func (h *Handler) ReleaseJobPayment(w http.ResponseWriter, r *http.Request) {
	bookingID, err := bookingIDParam(r)
	if err != nil {
		http.Error(w, "invalid booking id", http.StatusBadRequest)
		return
	}

	transaction, err := h.paymentService.ReleaseJobPayment(r.Context(), bookingID)
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(transaction)
	case errors.Is(err, apperrors.ErrPaymentNotFound):
		http.Error(w, "payment not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrInvalidStateTransition):
		http.Error(w, "payment cannot be released", http.StatusConflict)
	case errors.Is(err, apperrors.ErrCommissionConfig):
		http.Error(w, "commission not configured for amount", http.StatusUnprocessableEntity)
	default:
		http.Error(w, "internal server error", http.StatusInternalServerError)
		logger.Log.Error("failed to release payment", zap.Int64("booking_id", bookingID), zap.Error(err))
	}
}

func (h *Handler) ProcessRefund(w http.ResponseWriter, r *http.Request) {
	bookingID, err := bookingIDParam(r)
	if err != nil {
		http.Error(w, "invalid booking id", http.StatusBadRequest)
		return
	}

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid input", http.StatusBadRequest)
		return
	}

	result, err := h.paymentService.ProcessRefund(r.Context(), bookingID, req.Amount, req.Reason)
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(result)
	case errors.Is(err, apperrors.ErrPaymentNotFound):
		http.Error(w, "payment not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrInvalidAmount):
		http.Error(w, "invalid amount", http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrRefundExceedsPayment):
		http.Error(w, "refund exceeds paid amount", http.StatusUnprocessableEntity)
	case errors.Is(err, apperrors.ErrInvalidStateTransition):
		http.Error(w, "payment cannot be refunded", http.StatusConflict)
	default:
		http.Error(w, "internal server error", http.StatusInternalServerError)
		logger.Log.Error("failed to process refund", zap.Int64("booking_id", bookingID), zap.Error(err))
	}
}
