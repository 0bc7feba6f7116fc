package balance

import (
	"context"
	"sort"
	"time"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

type rowKey struct {
	debtor, creditor string
}

// Book is an in-memory balance table for one group. It applies exactly the
// same netting rule as Store and is used to replay history without touching
// persisted balances.
type Book struct {
	groupID  string
	currency string
	rows     map[rowKey]models.Balance
}

// NewBook returns an empty book for a group.
func NewBook(groupID, currency string) *Book {
	return &Book{groupID: groupID, currency: currency, rows: make(map[rowKey]models.Balance)}
}

// ApplyDelta adds delta to what debtor owes creditor. It panics on the same
// programmer errors as Store.ApplyDelta.
func (b *Book) ApplyDelta(debtorID, creditorID string, delta money.Money) {
	// In-memory rows never fail.
	_ = apply(context.Background(), b, b.groupID, debtorID, creditorID, delta, time.Time{})
}

// Get returns the row for the unordered pair {x, y}, or nil.
func (b *Book) Get(x, y string) *models.Balance {
	if row, ok := b.rows[rowKey{x, y}]; ok {
		return &row
	}
	if row, ok := b.rows[rowKey{y, x}]; ok {
		return &row
	}
	return nil
}

// List returns all rows ordered by (debtor, creditor).
func (b *Book) List() []models.Balance {
	list := make([]models.Balance, 0, len(b.rows))
	for _, row := range b.rows {
		list = append(list, row)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].DebtorID != list[j].DebtorID {
			return list[i].DebtorID < list[j].DebtorID
		}
		return list[i].CreditorID < list[j].CreditorID
	})
	return list
}

// NetPosition returns the signed net position of userID.
func (b *Book) NetPosition(userID string) money.Money {
	return netPosition(b.currency, userID, b.List())
}

func (b *Book) get(_ context.Context, _, debtorID, creditorID string) (*models.Balance, error) {
	if row, ok := b.rows[rowKey{debtorID, creditorID}]; ok {
		return &row, nil
	}
	return nil, nil
}

func (b *Book) put(_ context.Context, row *models.Balance) error {
	b.rows[rowKey{row.DebtorID, row.CreditorID}] = *row
	return nil
}

func (b *Book) del(_ context.Context, _, debtorID, creditorID string) error {
	delete(b.rows, rowKey{debtorID, creditorID})
	return nil
}
