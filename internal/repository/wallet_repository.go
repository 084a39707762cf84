package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/adilmk/homeserve/internal/apperrors"
	"github.com/adilmk/homeserve/internal/logger"
	"github.com/adilmk/homeserve/internal/models"
	"go.uber.org/zap"
)

type WalletRepository interface {
	GetOrCreate(ctx context.Context, ownerID int64, currency string) (models.Wallet, error)
	GetByOwner(ctx context.Context, ownerID int64) (models.Wallet, error)
	Apply(ctx context.Context, op models.WalletOperation) (models.Transaction, error)
}

type walletRepo struct {
	db *sql.DB
}

func NewWalletRepository(db *sql.DB) WalletRepository {
	return &walletRepo{db: db}
}

func (r *walletRepo) GetOrCreate(ctx context.Context, ownerID int64, currency string) (models.Wallet, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wallets (owner_id, currency) VALUES ($1, $2)
		ON CONFLICT (owner_id) DO NOTHING
	`, ownerID, currency)
	if err != nil {
		logger.Log.Error("failed to create wallet", zap.Int64("owner", ownerID), zap.Error(err))
		return models.Wallet{}, err
	}

	return r.GetByOwner(ctx, ownerID)
}

func (r *walletRepo) GetByOwner(ctx context.Context, ownerID int64) (models.Wallet, error) {
	var w models.Wallet
	query := `
		SELECT id, owner_id, balance, currency, active, created_at, updated_at
		FROM wallets WHERE owner_id = $1
	`
	err := r.db.QueryRowContext(ctx, query, ownerID).
		Scan(&w.ID, &w.OwnerID, &w.Balance, &w.Currency, &w.Active, &w.CreatedAt, &w.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return models.Wallet{}, apperrors.ErrWalletNotFound
	}
	if err != nil {
		logger.Log.Error("failed to get wallet", zap.Int64("owner", ownerID), zap.Error(err))
		return models.Wallet{}, err
	}
	return w, nil
}

// Apply runs one balance mutation and its ledger entry in a single
// transaction. The wallet row stays locked until commit, so concurrent
// operations against the same wallet serialize here.
func (r *walletRepo) Apply(ctx context.Context, op models.WalletOperation) (entry models.Transaction, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Transaction{}, err
	}
	defer func() {
		rollbackOnErr(tx, err)
	}()

	wallet, err := lockWalletByOwner(ctx, tx, op.OwnerID)
	if err != nil {
		return models.Transaction{}, err
	}

	entry, err = applyOperation(ctx, tx, &wallet, op)
	if err != nil {
		return models.Transaction{}, err
	}

	err = tx.Commit()
	if err != nil {
		return models.Transaction{}, err
	}
	return entry, nil
}
