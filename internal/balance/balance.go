// Package balance maintains the pairwise debt table of a group.
//
// Every change goes through one rule: a delta on the directed edge
// debtor->creditor is netted against whatever row exists for the pair in
// either direction, and the result is stored as a single positive row (or
// no row when it nets to zero). Store applies the rule inside a storage
// transaction; Book applies it to an in-memory row set.
package balance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
)

// rows is the row access the canonical rule needs. get returns nil, nil
// when the directed row does not exist.
type rows interface {
	get(ctx context.Context, groupID, debtorID, creditorID string) (*models.Balance, error)
	put(ctx context.Context, b *models.Balance) error
	del(ctx context.Context, groupID, debtorID, creditorID string) error
}

// apply adds delta to the directed edge debtor->creditor.
func apply(ctx context.Context, r rows, groupID, debtorID, creditorID string, delta money.Money, now time.Time) error {
	if debtorID == "" || creditorID == "" {
		panic(fmt.Sprintf("balance: empty participant id (debtor=%q creditor=%q)", debtorID, creditorID))
	}
	if debtorID == creditorID {
		panic(fmt.Sprintf("balance: debtor and creditor are both %q", debtorID))
	}
	if delta.IsZero() {
		return nil
	}

	forward, err := r.get(ctx, groupID, debtorID, creditorID)
	if err != nil {
		return err
	}
	reverse, err := r.get(ctx, groupID, creditorID, debtorID)
	if err != nil {
		return err
	}

	// net is what debtor owes creditor after the delta.
	net := delta
	if forward != nil {
		net = net.Add(forward.Amount)
	}
	if reverse != nil {
		net = net.Sub(reverse.Amount)
	}

	// The stale direction is always removed before the new one is written
	// so there is never more than one row for the pair.
	switch {
	case net.IsPositive():
		if reverse != nil {
			if err := r.del(ctx, groupID, creditorID, debtorID); err != nil {
				return err
			}
		}
		return r.put(ctx, &models.Balance{
			GroupID: groupID, DebtorID: debtorID, CreditorID: creditorID, Amount: net, UpdatedAt: now,
		})
	case net.IsNegative():
		if forward != nil {
			if err := r.del(ctx, groupID, debtorID, creditorID); err != nil {
				return err
			}
		}
		return r.put(ctx, &models.Balance{
			GroupID: groupID, DebtorID: creditorID, CreditorID: debtorID, Amount: net.Neg(), UpdatedAt: now,
		})
	default:
		if forward != nil {
			if err := r.del(ctx, groupID, debtorID, creditorID); err != nil {
				return err
			}
		}
		if reverse != nil {
			if err := r.del(ctx, groupID, creditorID, debtorID); err != nil {
				return err
			}
		}
		return nil
	}
}

// Store is the persisted balance table seen through one storage transaction.
// A Store must not outlive the transaction it was created with.
type Store struct {
	tx     storage.Tx
	now    func() time.Time
	groups map[string]*models.Group
}

// New returns a Store bound to tx.
func New(tx storage.Tx) *Store {
	return &Store{tx: tx, now: time.Now, groups: make(map[string]*models.Group)}
}

// WithClock overrides the time source used for UpdatedAt.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Get returns the single row for the unordered pair {a, b}, or nil.
func (s *Store) Get(ctx context.Context, groupID, a, b string) (*models.Balance, error) {
	for _, dir := range [2][2]string{{a, b}, {b, a}} {
		row, err := s.get(ctx, groupID, dir[0], dir[1])
		if err != nil || row != nil {
			return row, err
		}
	}
	return nil, nil
}

// ApplyDelta adds delta to what debtor owes creditor. A negative delta pays
// the edge down and may flip its direction.
//
// ApplyDelta panics if debtor equals creditor, if either id is empty or if
// the group does not exist. Callers validate those before writing.
func (s *Store) ApplyDelta(ctx context.Context, groupID, debtorID, creditorID string, delta money.Money) error {
	if _, err := s.group(ctx, groupID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			panic(fmt.Sprintf("balance: apply delta on unknown group %q", groupID))
		}
		return err
	}
	if err := apply(ctx, s, groupID, debtorID, creditorID, delta, s.now()); err != nil {
		return fmt.Errorf("failed to apply delta %s -> %s: %w", debtorID, creditorID, err)
	}
	return nil
}

// List returns all non-zero rows of a group ordered by (debtor, creditor).
func (s *Store) List(ctx context.Context, groupID string) ([]models.Balance, error) {
	return s.tx.ListBalances(ctx, groupID)
}

// NetPosition returns what userID is owed minus what they owe in the group.
func (s *Store) NetPosition(ctx context.Context, groupID, userID string) (money.Money, error) {
	group, err := s.group(ctx, groupID)
	if err != nil {
		return money.Money{}, err
	}
	list, err := s.List(ctx, groupID)
	if err != nil {
		return money.Money{}, err
	}
	return netPosition(group.Currency, userID, list), nil
}

// NetPositions returns the net position of every group member, and of any
// other user still referenced by a row, ordered by user ID.
func (s *Store) NetPositions(ctx context.Context, groupID string) ([]models.NetPosition, error) {
	group, err := s.group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	list, err := s.List(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return NetPositions(group.Currency, group.Members, list), nil
}

func (s *Store) group(ctx context.Context, groupID string) (*models.Group, error) {
	if g, ok := s.groups[groupID]; ok {
		return g, nil
	}
	g, err := s.tx.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	s.groups[groupID] = g
	return g, nil
}

func (s *Store) get(ctx context.Context, groupID, debtorID, creditorID string) (*models.Balance, error) {
	row, err := s.tx.GetBalance(ctx, groupID, debtorID, creditorID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return row, err
}

func (s *Store) put(ctx context.Context, b *models.Balance) error {
	return s.tx.PutBalance(ctx, b)
}

func (s *Store) del(ctx context.Context, groupID, debtorID, creditorID string) error {
	return s.tx.DeleteBalance(ctx, groupID, debtorID, creditorID)
}

// NetPositions derives signed net positions from balance rows. Every user in
// members is included even at zero; users only found in rows are appended.
// The result is ordered by user ID.
func NetPositions(currency string, members []string, list []models.Balance) []models.NetPosition {
	totals := make(map[string]money.Money, len(members))
	for _, m := range members {
		totals[m] = money.Zero(currency)
	}
	credit := func(user string, amount money.Money) {
		cur, ok := totals[user]
		if !ok {
			cur = money.Zero(currency)
		}
		totals[user] = cur.Add(amount)
	}
	for _, b := range list {
		credit(b.CreditorID, b.Amount)
		credit(b.DebtorID, b.Amount.Neg())
	}

	positions := make([]models.NetPosition, 0, len(totals))
	for user, amount := range totals {
		positions = append(positions, models.NetPosition{UserID: user, Amount: amount})
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].UserID < positions[j].UserID })
	return positions
}

func netPosition(currency, userID string, list []models.Balance) money.Money {
	net := money.Zero(currency)
	for _, b := range list {
		switch userID {
		case b.CreditorID:
			net = net.Add(b.Amount)
		case b.DebtorID:
			net = net.Sub(b.Amount)
		}
	}
	return net
}
