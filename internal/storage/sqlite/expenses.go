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

const expenseColumns = "id, group_id, payer_id, amount, currency, description, split_kind, created_at, updated_at"

// InsertExpense persists a new expense. Its splits are written separately
// with ReplaceSplits inside the same transaction.
func (t *tx) InsertExpense(ctx context.Context, expense *models.Expense) error {
	// Generate ID if not set
	if expense.ID == "" {
		expense.ID = models.NewExpenseID()
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = t.now()
	}
	if expense.UpdatedAt.IsZero() {
		expense.UpdatedAt = expense.CreatedAt
	}

	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.GroupID, expense.PayerID, expense.Amount.Amount, expense.Amount.Currency,
		expense.Description, string(expense.SplitKind), toMillis(expense.CreatedAt), toMillis(expense.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}
	return nil
}

// GetExpense retrieves an expense by ID.
func (t *tx) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	expense, err := scanExpense(t.tx.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE id = ?",
		expenseID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return expense, nil
}

// UpdateExpense overwrites the mutable columns of an expense.
func (t *tx) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE expenses SET payer_id = ?, amount = ?, currency = ?, description = ?, split_kind = ?, updated_at = ?
		 WHERE id = ?`,
		expense.PayerID, expense.Amount.Amount, expense.Amount.Currency, expense.Description,
		string(expense.SplitKind), toMillis(expense.UpdatedAt), expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	return requireRow(res, "expense", expense.ID)
}

// DeleteExpense removes an expense; its splits go with it via ON DELETE CASCADE.
func (t *tx) DeleteExpense(ctx context.Context, expenseID string) error {
	res, err := t.tx.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return requireRow(res, "expense", expenseID)
}

// ListExpenses retrieves all expenses of a group, oldest first.
func (t *tx) ListExpenses(ctx context.Context, groupID string) ([]*models.Expense, error) {
	rows, err := t.tx.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE group_id = ? ORDER BY created_at, id",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses by group: %w", err)
	}
	defer rows.Close()

	var expenses []*models.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	return expenses, nil
}

// ReplaceSplits deletes the current splits of an expense and inserts splits.
func (t *tx) ReplaceSplits(ctx context.Context, expenseID string, splits []models.ExpenseSplit) error {
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM expense_splits WHERE expense_id = ?", expenseID); err != nil {
		return fmt.Errorf("failed to delete splits: %w", err)
	}
	for _, split := range splits {
		_, err := t.tx.ExecContext(ctx,
			"INSERT INTO expense_splits (expense_id, participant_id, share, currency) VALUES (?, ?, ?, ?)",
			expenseID, split.ParticipantID, split.Share.Amount, split.Share.Currency,
		)
		if err != nil {
			return fmt.Errorf("failed to insert split: %w", err)
		}
	}
	return nil
}

// ListSplits retrieves the splits of an expense ordered by participant.
func (t *tx) ListSplits(ctx context.Context, expenseID string) ([]models.ExpenseSplit, error) {
	rows, err := t.tx.QueryContext(ctx,
		"SELECT expense_id, participant_id, share, currency FROM expense_splits WHERE expense_id = ? ORDER BY participant_id",
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list splits: %w", err)
	}
	defer rows.Close()

	var splits []models.ExpenseSplit
	for rows.Next() {
		var split models.ExpenseSplit
		var amount int64
		var currency string
		if err := rows.Scan(&split.ExpenseID, &split.ParticipantID, &amount, &currency); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		split.Share = money.New(amount, currency)
		splits = append(splits, split)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}
	return splits, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(row scanner) (*models.Expense, error) {
	var (
		expense              models.Expense
		amount               int64
		currency, splitKind  string
		createdAt, updatedAt int64
	)
	err := row.Scan(&expense.ID, &expense.GroupID, &expense.PayerID, &amount, &currency,
		&expense.Description, &splitKind, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	expense.Amount = money.New(amount, currency)
	expense.SplitKind = models.SplitKind(splitKind)
	expense.CreatedAt = fromMillis(createdAt)
	expense.UpdatedAt = fromMillis(updatedAt)
	return &expense, nil
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}
