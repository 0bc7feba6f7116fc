// Package storage provides abstractions for persistent ledger storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/splitledger/internal/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when the datastore could not serialize a
	// transaction (busy, locked or write conflict). The transaction has been
	// rolled back and may be retried.
	ErrConflict = errors.New("transaction conflict")
)

// Store is the transactional persistence collaborator of the ledger.
// This abstraction allows swapping storage backends (SQLite, in-memory, ...)
// without changing the ledger.
type Store interface {
	// Update runs fn inside a serializable read-write transaction.
	// If fn returns an error nothing it wrote is kept.
	Update(ctx context.Context, fn func(tx Tx) error) error

	// View runs fn against a consistent read-only snapshot.
	View(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any resources held by the store.
	Close() error
}

// Tx is the set of table operations available inside a transaction.
// Write methods must only be called from within Store.Update.
type Tx interface {
	// Groups

	// CreateGroup persists a new group and its members.
	// The group.ID and CreatedAt fields will be populated if empty.
	CreateGroup(ctx context.Context, group *models.Group) error
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)
	AddGroupMembers(ctx context.Context, groupID string, members []string) error
	RemoveGroupMember(ctx context.Context, groupID, member string) error

	// Expenses

	InsertExpense(ctx context.Context, expense *models.Expense) error
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)
	UpdateExpense(ctx context.Context, expense *models.Expense) error
	// DeleteExpense removes an expense together with its splits.
	DeleteExpense(ctx context.Context, expenseID string) error
	// ListExpenses returns a group's expenses oldest first.
	ListExpenses(ctx context.Context, groupID string) ([]*models.Expense, error)

	// ReplaceSplits swaps all splits of an expense for the given ones.
	ReplaceSplits(ctx context.Context, expenseID string, splits []models.ExpenseSplit) error
	// ListSplits returns an expense's splits ordered by participant ID.
	ListSplits(ctx context.Context, expenseID string) ([]models.ExpenseSplit, error)

	// Balances

	// GetBalance returns the directed row debtor->creditor, or ErrNotFound.
	GetBalance(ctx context.Context, groupID, debtorID, creditorID string) (*models.Balance, error)
	// PutBalance inserts or replaces the directed row for balance's pair.
	PutBalance(ctx context.Context, balance *models.Balance) error
	DeleteBalance(ctx context.Context, groupID, debtorID, creditorID string) error
	// ListBalances returns a group's rows ordered by (debtor, creditor).
	ListBalances(ctx context.Context, groupID string) ([]models.Balance, error)

	// Settlements

	InsertSettlement(ctx context.Context, settlement *models.Settlement) error
	GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error)
	UpdateSettlement(ctx context.Context, settlement *models.Settlement) error
	// ListSettlements returns a group's settlements oldest first.
	ListSettlements(ctx context.Context, groupID string) ([]*models.Settlement, error)
}
