package service

import (
	"context"
	"fmt"

	"github.com/adilmk/homeserve/internal/apperrors"
	"github.com/adilmk/homeserve/internal/logger"
	"github.com/adilmk/homeserve/internal/models"
	"github.com/adilmk/homeserve/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type WalletService interface {
	GetOrCreateWallet(ctx context.Context, ownerID int64) (models.Wallet, error)
	GetBalance(ctx context.Context, ownerID int64) (models.Wallet, error)
	Credit(ctx context.Context, ownerID int64, amount decimal.Decimal, description string, metadata models.Metadata) (models.Transaction, error)
	Debit(ctx context.Context, ownerID int64, amount decimal.Decimal, description string, metadata models.Metadata) (models.Transaction, error)
	Hold(ctx context.Context, ownerID int64, amount decimal.Decimal, description string, metadata models.Metadata) (models.Transaction, error)
	Release(ctx context.Context, ownerID int64, amount decimal.Decimal, description string, metadata models.Metadata) (models.Transaction, error)
	ListTransactions(ctx context.Context, ownerID int64, filter models.TransactionFilter) ([]models.Transaction, error)
	Reconcile(ctx context.Context, ownerID int64) (bool, error)
}

type walletService struct {
	walletRepo      repository.WalletRepository
	transactionRepo repository.TransactionRepository
	currency        string
}

func NewWalletService(walletRepo repository.WalletRepository, transactionRepo repository.TransactionRepository, currency string) WalletService {
	return &walletService{
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		currency:        currency,
	}
}

// GetOrCreateWallet lazily provisions a zero-balance wallet on the owner's
// first financial event.
func (s *walletService) GetOrCreateWallet(ctx context.Context, ownerID int64) (models.Wallet, error) {
	return s.walletRepo.GetOrCreate(ctx, ownerID, s.currency)
}

func (s *walletService) GetBalance(ctx context.Context, ownerID int64) (models.Wallet, error) {
	return s.walletRepo.GetByOwner(ctx, ownerID)
}

func (s *walletService) Credit(ctx context.Context, ownerID int64, amount decimal.Decimal, description string, metadata models.Metadata) (models.Transaction, error) {
	return s.apply(ctx, ownerID, models.TransactionCredit, amount, description, metadata)
}

func (s *walletService) Debit(ctx context.Context, ownerID int64, amount decimal.Decimal, description string, metadata models.Metadata) (models.Transaction, error) {
	return s.apply(ctx, ownerID, models.TransactionDebit, amount, description, metadata)
}

// Hold sets funds aside pending a later release or consumption; on the ledger
// it is a balance reduction with a reversible counterpart.
func (s *walletService) Hold(ctx context.Context, ownerID int64, amount decimal.Decimal, description string, metadata models.Metadata) (models.Transaction, error) {
	return s.apply(ctx, ownerID, models.TransactionHold, amount, description, metadata)
}

func (s *walletService) Release(ctx context.Context, ownerID int64, amount decimal.Decimal, description string, metadata models.Metadata) (models.Transaction, error) {
	return s.apply(ctx, ownerID, models.TransactionRelease, amount, description, metadata)
}

func (s *walletService) apply(ctx context.Context, ownerID int64, opType models.TransactionType, amount decimal.Decimal, description string, metadata models.Metadata) (models.Transaction, error) {
	if !amount.IsPositive() {
		return models.Transaction{}, fmt.Errorf("%s of %s: %w", opType, amount, apperrors.ErrInvalidAmount)
	}

	// First credit/hold for an owner provisions the wallet as a side effect.
	wallet, err := s.walletRepo.GetOrCreate(ctx, ownerID, s.currency)
	if err != nil {
		return models.Transaction{}, err
	}

	entry, err := s.walletRepo.Apply(ctx, models.WalletOperation{
		OwnerID:     wallet.OwnerID,
		Type:        opType,
		Amount:      amount.Round(moneyScale),
		Currency:    s.currency,
		Description: description,
		Metadata:    metadata,
	})
	if err != nil {
		return models.Transaction{}, err
	}

	logger.Log.Info("wallet operation applied",
		zap.Int64("owner", ownerID),
		zap.String("type", string(opType)),
		zap.String("amount", amount.String()),
		zap.String("reference", entry.Reference),
	)
	return entry, nil
}

func (s *walletService) ListTransactions(ctx context.Context, ownerID int64, filter models.TransactionFilter) ([]models.Transaction, error) {
	return s.transactionRepo.ListByOwner(ctx, ownerID, filter)
}

// Reconcile replays the completed ledger for a wallet and compares the sum of
// signed amounts to the stored balance.
func (s *walletService) Reconcile(ctx context.Context, ownerID int64) (bool, error) {
	wallet, err := s.walletRepo.GetByOwner(ctx, ownerID)
	if err != nil {
		return false, err
	}

	sum, err := s.transactionRepo.SumCompleted(ctx, wallet.ID)
	if err != nil {
		return false, err
	}

	if !sum.Equal(wallet.Balance) {
		logger.Log.Error("wallet out of balance with ledger",
			zap.Int64("owner", ownerID),
			zap.String("balance", wallet.Balance.String()),
			zap.String("ledger_sum", sum.String()),
		)
		return false, nil
	}
	return true, nil
}
