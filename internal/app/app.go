package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/adilmk/homeserve/internal/config"
	"github.com/adilmk/homeserve/internal/database"
	"github.com/adilmk/homeserve/internal/gateway"
	"github.com/adilmk/homeserve/internal/handlers"
	"github.com/adilmk/homeserve/internal/logger"
	"github.com/adilmk/homeserve/internal/models"
	"github.com/adilmk/homeserve/internal/notification"
	"github.com/adilmk/homeserve/internal/repository"
	"github.com/adilmk/homeserve/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type App struct {
	server *http.Server
	db     *sql.DB
}

func NewApp() (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ParseFlags()

	if err := logger.Initialize(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	feeRate, err := decimal.NewFromString(cfg.WithdrawalFeeRate)
	if err != nil {
		return nil, fmt.Errorf("invalid withdrawal fee rate %q: %w", cfg.WithdrawalFeeRate, err)
	}

	commissionCfg := service.DefaultCommissionConfig()
	if err := service.ValidateCommissionConfig(commissionCfg); err != nil {
		return nil, fmt.Errorf("invalid commission config: %w", err)
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Log.Error("Database connection failed", zap.Error(err))
		return nil, err
	}

	walletRepo := repository.NewWalletRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	withdrawalRepo := repository.NewWithdrawalRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	sim := gateway.NewSimulator(rand.New(rand.NewSource(time.Now().UnixNano())), cfg.GatewayFailureRate)
	processors := map[models.PaymentMethod]gateway.Processor{
		models.PaymentMobileMoney:  gateway.NewMobileMoneyProcessor(sim),
		models.PaymentBankTransfer: gateway.NewBankTransferProcessor(sim),
		models.PaymentCash:         gateway.NewCashProcessor(),
	}

	notifier := notification.NewLogNotifier()

	walletService := service.NewWalletService(walletRepo, transactionRepo, cfg.DefaultCurrency)
	paymentService := service.NewPaymentService(paymentRepo, walletService, processors, commissionCfg, notifier, cfg.GatewayTimeout)
	withdrawalService := service.NewWithdrawalService(withdrawalRepo, walletRepo, gateway.NewPayoutSimulator(sim), notifier, feeRate, cfg.DefaultCurrency, cfg.GatewayTimeout)

	handler := handlers.NewHandler(walletService, paymentService, withdrawalService)
	r := handlers.NewRouter(handler, cfg.SecretKey)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	return &App{
		server: server,
		db:     db,
	}, nil
}

func (a *App) Run() error {
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("server failed to start", zap.Error(err))
		}
	}()
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	logger.Log.Info("shutting down server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("server shutdown failed", zap.Error(err))
		return err
	}

	logger.Log.Info("closing database connection...")
	if err := a.db.Close(); err != nil {
		logger.Log.Error("failed to close database", zap.Error(err))
		return err
	}

	return nil
}
