package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/adilmk/homeserve/internal/apperrors"
	"github.com/adilmk/homeserve/internal/logger"
	"github.com/adilmk/homeserve/internal/models"
	"github.com/adilmk/homeserve/internal/utils"
)

// rollbackOnErr finishes a transaction the way the deferred blocks in every
// repository method expect: rollback when err is set, otherwise leave the
// commit to the caller.
func rollbackOnErr(tx *sql.Tx, err error) {
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.Log.Error("rollback error")
		}
	}
}

// lockWalletByOwner reads the wallet row under FOR UPDATE so the
// balance-check-then-mutate sequence is atomic per wallet.
func lockWalletByOwner(ctx context.Context, tx *sql.Tx, ownerID int64) (models.Wallet, error) {
	return lockWallet(ctx, tx, `
		SELECT id, owner_id, balance, currency, active, created_at, updated_at
		FROM wallets WHERE owner_id = $1 FOR UPDATE
	`, ownerID)
}

func lockWalletByID(ctx context.Context, tx *sql.Tx, walletID int64) (models.Wallet, error) {
	return lockWallet(ctx, tx, `
		SELECT id, owner_id, balance, currency, active, created_at, updated_at
		FROM wallets WHERE id = $1 FOR UPDATE
	`, walletID)
}

func lockWallet(ctx context.Context, tx *sql.Tx, query string, arg int64) (models.Wallet, error) {
	var w models.Wallet
	err := tx.QueryRowContext(ctx, query, arg).
		Scan(&w.ID, &w.OwnerID, &w.Balance, &w.Currency, &w.Active, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Wallet{}, apperrors.ErrWalletNotFound
	}
	if err != nil {
		return models.Wallet{}, err
	}
	return w, nil
}

// applyOperation performs one validated balance mutation inside tx: it checks
// sufficiency for negative deltas, updates the locked wallet row and appends
// the ledger entry with balance snapshots. On success w.Balance reflects the
// new balance so a caller can chain operations in the same transaction.
func applyOperation(ctx context.Context, tx *sql.Tx, w *models.Wallet, op models.WalletOperation) (models.Transaction, error) {
	if !w.Active {
		return models.Transaction{}, apperrors.ErrWalletInactive
	}
	if op.Currency != "" && op.Currency != w.Currency {
		return models.Transaction{}, apperrors.ErrCurrencyMismatch
	}

	delta := op.SignedAmount()
	newBalance := w.Balance.Add(delta)
	if newBalance.IsNegative() {
		return models.Transaction{}, fmt.Errorf("wallet %d: balance %s, requested %s: %w",
			w.ID, w.Balance, op.Amount, apperrors.ErrInsufficientFunds)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE wallets SET balance = $1, updated_at = now() WHERE id = $2
	`, newBalance, w.ID); err != nil {
		return models.Transaction{}, err
	}

	entry := models.Transaction{
		WalletID:      w.ID,
		OwnerID:       w.OwnerID,
		Type:          op.Type,
		Amount:        delta,
		Currency:      w.Currency,
		Description:   op.Description,
		Reference:     op.Reference,
		Status:        models.TransactionCompleted,
		Metadata:      op.Metadata,
		BalanceBefore: w.Balance,
		BalanceAfter:  newBalance,
	}
	if entry.Reference == "" {
		entry.Reference = utils.NewReference("TXN")
	}
	if entry.Metadata == nil {
		entry.Metadata = models.Metadata{}
	}

	err := tx.QueryRowContext(ctx, `
		INSERT INTO wallet_transactions
			(wallet_id, owner_id, type, amount, currency, description, reference, status, metadata, balance_before, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`, entry.WalletID, entry.OwnerID, entry.Type, entry.Amount, entry.Currency, entry.Description,
		entry.Reference, entry.Status, entry.Metadata, entry.BalanceBefore, entry.BalanceAfter).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return models.Transaction{}, err
	}

	w.Balance = newBalance
	return entry, nil
}
