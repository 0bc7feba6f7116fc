package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
)

// GetBalance retrieves the directed balance row debtor -> creditor.
func (t *tx) GetBalance(ctx context.Context, groupID, debtorID, creditorID string) (*models.Balance, error) {
	balance := &models.Balance{GroupID: groupID, DebtorID: debtorID, CreditorID: creditorID}
	var amount, updatedAt int64
	var currency string
	err := t.tx.QueryRowContext(ctx,
		`SELECT amount, currency, updated_at FROM balances
		 WHERE group_id = ? AND debtor_id = ? AND creditor_id = ?`,
		groupID, debtorID, creditorID,
	).Scan(&amount, &currency, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	balance.Amount = money.New(amount, currency)
	balance.UpdatedAt = fromMillis(updatedAt)
	return balance, nil
}

// PutBalance inserts or updates the directed row of balance.
// The opposite-direction row must already be gone (see idx_balances_pair).
func (t *tx) PutBalance(ctx context.Context, balance *models.Balance) error {
	if balance.UpdatedAt.IsZero() {
		balance.UpdatedAt = t.now()
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE balances SET amount = ?, currency = ?, updated_at = ?
		 WHERE group_id = ? AND debtor_id = ? AND creditor_id = ?`,
		balance.Amount.Amount, balance.Amount.Currency, toMillis(balance.UpdatedAt),
		balance.GroupID, balance.DebtorID, balance.CreditorID,
	)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	} else if n > 0 {
		return nil
	}

	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO balances (group_id, debtor_id, creditor_id, amount, currency, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		balance.GroupID, balance.DebtorID, balance.CreditorID,
		balance.Amount.Amount, balance.Amount.Currency, toMillis(balance.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert balance: %w", err)
	}
	return nil
}

// DeleteBalance removes the directed row debtor -> creditor if present.
func (t *tx) DeleteBalance(ctx context.Context, groupID, debtorID, creditorID string) error {
	_, err := t.tx.ExecContext(ctx,
		"DELETE FROM balances WHERE group_id = ? AND debtor_id = ? AND creditor_id = ?",
		groupID, debtorID, creditorID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete balance: %w", err)
	}
	return nil
}

// ListBalances retrieves every balance row of a group.
func (t *tx) ListBalances(ctx context.Context, groupID string) ([]models.Balance, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT debtor_id, creditor_id, amount, currency, updated_at FROM balances
		 WHERE group_id = ? ORDER BY debtor_id, creditor_id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer rows.Close()

	var balances []models.Balance
	for rows.Next() {
		b := models.Balance{GroupID: groupID}
		var amount, updatedAt int64
		var currency string
		if err := rows.Scan(&b.DebtorID, &b.CreditorID, &amount, &currency, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		b.Amount = money.New(amount, currency)
		b.UpdatedAt = fromMillis(updatedAt)
		balances = append(balances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate balances: %w", err)
	}
	return balances, nil
}
