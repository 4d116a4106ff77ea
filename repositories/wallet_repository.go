package repositories

import (
	"context"
	"fmt"

	"github.com/Dosada05/tournament-engine/models"
)

type postgresWalletRepository struct {
	exec SQLExecutor
}

func (r *postgresWalletRepository) Ensure(ctx context.Context, ownerID int) error {
	query := `INSERT INTO wallets (owner_id, balance) VALUES ($1, 0) ON CONFLICT (owner_id) DO NOTHING`
	if _, err := r.exec.ExecContext(ctx, query, ownerID); err != nil {
		return fmt.Errorf("failed to ensure wallet for owner %d: %w", ownerID, err)
	}
	return nil
}

func (r *postgresWalletRepository) Get(ctx context.Context, ownerID int) (*models.Wallet, error) {
	return r.get(ctx, `SELECT owner_id, balance, updated_at FROM wallets WHERE owner_id = $1`, ownerID)
}

func (r *postgresWalletRepository) GetForUpdate(ctx context.Context, ownerID int) (*models.Wallet, error) {
	return r.get(ctx, `SELECT owner_id, balance, updated_at FROM wallets WHERE owner_id = $1 FOR UPDATE`, ownerID)
}

func (r *postgresWalletRepository) get(ctx context.Context, query string, ownerID int) (*models.Wallet, error) {
	w := &models.Wallet{}
	if err := r.exec.QueryRowContext(ctx, query, ownerID).Scan(&w.OwnerID, &w.Balance, &w.UpdatedAt); err != nil {
		return nil, notFound(err, ErrWalletNotFound)
	}
	return w, nil
}

func (r *postgresWalletRepository) UpdateBalance(ctx context.Context, ownerID int, balance int64) error {
	query := `UPDATE wallets SET balance = $1, updated_at = NOW() WHERE owner_id = $2`
	result, err := r.exec.ExecContext(ctx, query, balance, ownerID)
	if err != nil {
		return handlePQError(err)
	}
	return checkAffectedRows(result, ErrWalletNotFound)
}

func (r *postgresWalletRepository) CreateTransaction(ctx context.Context, tx *models.CreditTransaction) error {
	query := `
		INSERT INTO credit_transactions (id, owner_id, amount, balance_before, balance_after, type, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`
	err := r.exec.QueryRowContext(ctx, query,
		tx.ID, tx.OwnerID, tx.Amount, tx.BalanceBefore, tx.BalanceAfter, tx.Type, tx.ReferenceID,
	).Scan(&tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record credit transaction: %w", handlePQError(err))
	}
	return nil
}

func (r *postgresWalletRepository) ListTransactions(ctx context.Context, ownerID, limit int) ([]*models.CreditTransaction, error) {
	query := `
		SELECT id, owner_id, amount, balance_before, balance_after, type, reference_id, created_at
		FROM credit_transactions
		WHERE owner_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2`
	rows, err := r.exec.QueryContext(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions for owner %d: %w", ownerID, err)
	}
	defer rows.Close()

	out := make([]*models.CreditTransaction, 0)
	for rows.Next() {
		tx := &models.CreditTransaction{}
		if err := rows.Scan(&tx.ID, &tx.OwnerID, &tx.Amount, &tx.BalanceBefore, &tx.BalanceAfter,
			&tx.Type, &tx.ReferenceID, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan credit transaction row: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}
