package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// CreateGroup persists a new group with its members.
func (t *tx) CreateGroup(ctx context.Context, group *models.Group) error {
	// Generate ID if not set
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = t.now()
	}

	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO groups (id, name, currency, created_at) VALUES (?, ?, ?, ?)",
		group.ID, group.Name, group.Currency, toMillis(group.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	if err := t.insertMembers(ctx, group.ID, group.Members); err != nil {
		return err
	}

	members := slices.Clone(group.Members)
	slices.Sort(members)
	group.Members = slices.Compact(members)
	return nil
}

// GetGroup retrieves a group by ID, including its members.
func (t *tx) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group := &models.Group{}
	var createdAt int64
	err := t.tx.QueryRowContext(ctx,
		"SELECT id, name, currency, created_at FROM groups WHERE id = ?",
		groupID,
	).Scan(&group.ID, &group.Name, &group.Currency, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	group.CreatedAt = fromMillis(createdAt)

	rows, err := t.tx.QueryContext(ctx,
		"SELECT member_id FROM group_members WHERE group_id = ? ORDER BY member_id",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		group.Members = append(group.Members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate group members: %w", err)
	}

	return group, nil
}

// AddGroupMembers adds members to a group, ignoring ones already present.
func (t *tx) AddGroupMembers(ctx context.Context, groupID string, members []string) error {
	var exists int
	err := t.tx.QueryRowContext(ctx, "SELECT 1 FROM groups WHERE id = ?", groupID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check group existence: %w", err)
	}
	return t.insertMembers(ctx, groupID, members)
}

// RemoveGroupMember deletes one membership row.
func (t *tx) RemoveGroupMember(ctx context.Context, groupID, member string) error {
	res, err := t.tx.ExecContext(ctx,
		"DELETE FROM group_members WHERE group_id = ? AND member_id = ?",
		groupID, member,
	)
	if err != nil {
		return fmt.Errorf("failed to remove group member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to remove group member: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("member %s of group %s: %w", member, groupID, storage.ErrNotFound)
	}
	return nil
}

func (t *tx) insertMembers(ctx context.Context, groupID string, members []string) error {
	for _, member := range members {
		_, err := t.tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO group_members (group_id, member_id) VALUES (?, ?)",
			groupID, member,
		)
		if err != nil {
			return fmt.Errorf("failed to insert group member: %w", err)
		}
	}
	return nil
}
