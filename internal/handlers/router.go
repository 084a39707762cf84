package handlers

import (
	"net/http"

	"github.com/adilmk/homeserve/internal/middleware"
	"github.com/adilmk/homeserve/internal/service"
	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

type Handler struct {
	walletService     service.WalletService
	paymentService    service.PaymentService
	withdrawalService service.WithdrawalService
}

func NewHandler(walletService service.WalletService, paymentService service.PaymentService, withdrawalService service.WithdrawalService) *Handler {
	return &Handler{
		walletService:     walletService,
		paymentService:    paymentService,
		withdrawalService: withdrawalService,
	}
}

func NewRouter(handler *Handler, secretKey string) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.WithLogging())
	r.Use(middleware.WithGzip())

	limiter := middleware.NewUserRateLimiter(rate.Limit(20), 40)

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Invalid URL format", http.StatusNotFound)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.JWTMiddleware(secretKey))
		r.Use(middleware.RateLimitMiddleware(limiter))

		r.Route("/provider", func(r chi.Router) {
			r.Get("/wallet", handler.GetWallet)
			r.Get("/wallet/transactions", handler.GetTransactions)
			r.Get("/earnings/estimate", handler.EstimateEarnings)
			r.Post("/withdrawals", handler.CreateWithdrawal)
			r.Get("/withdrawals", handler.GetWithdrawals)
			r.Post("/withdrawals/{id}/cancel", handler.CancelWithdrawal)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/{bookingID}/process", handler.ProcessPayment)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin())
			r.Post("/payments/{bookingID}/confirm-cash", handler.ConfirmCashPayment)
			r.Post("/payments/{bookingID}/refund", handler.ProcessRefund)
			r.Post("/bookings/{bookingID}/release", handler.ReleaseJobPayment)
			r.Post("/withdrawals/{id}/approve", handler.ApproveWithdrawal)
			r.Post("/withdrawals/{id}/reject", handler.RejectWithdrawal)
			r.Get("/withdrawals/stats", handler.WithdrawalStats)
		})
	})

	return r
}
