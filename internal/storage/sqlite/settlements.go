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

const settlementColumns = "id, group_id, from_id, to_id, amount, currency, status, note, created_at, completed_at"

// InsertSettlement persists a new settlement.
func (t *tx) InsertSettlement(ctx context.Context, settlement *models.Settlement) error {
	// Generate ID if not set
	if settlement.ID == "" {
		settlement.ID = models.NewSettlementID()
	}
	if settlement.CreatedAt.IsZero() {
		settlement.CreatedAt = t.now()
	}

	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO settlements (`+settlementColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		settlement.ID, settlement.GroupID, settlement.FromID, settlement.ToID,
		settlement.Amount.Amount, settlement.Amount.Currency, string(settlement.Status),
		nullString(settlement.Note), toMillis(settlement.CreatedAt), nullMillis(settlement),
	)
	if err != nil {
		return fmt.Errorf("failed to insert settlement: %w", err)
	}
	return nil
}

// GetSettlement retrieves a settlement by ID.
func (t *tx) GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error) {
	settlement, err := scanSettlement(t.tx.QueryRowContext(ctx,
		"SELECT "+settlementColumns+" FROM settlements WHERE id = ?",
		settlementID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("settlement %s: %w", settlementID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	return settlement, nil
}

// UpdateSettlement persists a settlement's status and completion time.
func (t *tx) UpdateSettlement(ctx context.Context, settlement *models.Settlement) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE settlements SET status = ?, note = ?, completed_at = ? WHERE id = ?",
		string(settlement.Status), nullString(settlement.Note), nullMillis(settlement), settlement.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update settlement: %w", err)
	}
	return requireRow(res, "settlement", settlement.ID)
}

// ListSettlements retrieves all settlements for a group, oldest first.
func (t *tx) ListSettlements(ctx context.Context, groupID string) ([]*models.Settlement, error) {
	rows, err := t.tx.QueryContext(ctx,
		"SELECT "+settlementColumns+" FROM settlements WHERE group_id = ? ORDER BY created_at, id",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements by group: %w", err)
	}
	defer rows.Close()

	var settlements []*models.Settlement
	for rows.Next() {
		settlement, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlements = append(settlements, settlement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}
	return settlements, nil
}

func scanSettlement(row scanner) (*models.Settlement, error) {
	var (
		settlement  models.Settlement
		amount      int64
		currency    string
		status      string
		note        sql.NullString
		createdAt   int64
		completedAt sql.NullInt64
	)
	err := row.Scan(&settlement.ID, &settlement.GroupID, &settlement.FromID, &settlement.ToID,
		&amount, &currency, &status, &note, &createdAt, &completedAt)
	if err != nil {
		return nil, err
	}
	settlement.Amount = money.New(amount, currency)
	settlement.Status = models.SettlementStatus(status)
	if note.Valid {
		settlement.Note = note.String
	}
	settlement.CreatedAt = fromMillis(createdAt)
	if completedAt.Valid {
		at := fromMillis(completedAt.Int64)
		settlement.CompletedAt = &at
	}
	return &settlement, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullMillis(settlement *models.Settlement) any {
	if settlement.CompletedAt == nil {
		return nil
	}
	return toMillis(*settlement.CompletedAt)
}
