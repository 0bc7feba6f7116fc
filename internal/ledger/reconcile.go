package ledger

import (
	"context"
	"sort"

	"github.com/mmynk/splitledger/internal/balance"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
)

// history is everything balances are derived from, read in one snapshot.
type history struct {
	group       *models.Group
	expenses    []*models.Expense
	splits      map[string][]models.ExpenseSplit
	settlements []*models.Settlement
	stored      []models.Balance
}

func (s *Service) loadHistory(ctx context.Context, groupID string) (*history, error) {
	h := &history{splits: make(map[string][]models.ExpenseSplit)}
	err := s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		if h.group, err = s.loadGroup(ctx, tx, groupID); err != nil {
			return err
		}
		if h.expenses, err = tx.ListExpenses(ctx, groupID); err != nil {
			return err
		}
		for _, e := range h.expenses {
			if h.splits[e.ID], err = tx.ListSplits(ctx, e.ID); err != nil {
				return err
			}
		}
		if h.settlements, err = tx.ListSettlements(ctx, groupID); err != nil {
			return err
		}
		h.stored, err = tx.ListBalances(ctx, groupID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// replay rebuilds balances from expenses and completed settlements using
// the same netting rule as live updates.
func (h *history) replay() *balance.Book {
	book := balance.NewBook(h.group.ID, h.group.Currency)
	for _, e := range h.expenses {
		for _, split := range h.splits[e.ID] {
			if split.ParticipantID == e.PayerID || !split.Share.IsPositive() {
				continue
			}
			book.ApplyDelta(split.ParticipantID, e.PayerID, split.Share)
		}
	}
	for _, st := range h.settlements {
		if st.Status != models.SettlementCompleted {
			continue
		}
		book.ApplyDelta(st.ToID, st.FromID, st.Amount)
	}
	return book
}

// Recompute returns the balances implied by a group's history without
// looking at, or changing, the stored balances.
func (s *Service) Recompute(ctx context.Context, groupID string) ([]models.Balance, error) {
	h, err := s.loadHistory(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return h.replay().List(), nil
}

// Reconcile compares stored balances with balances recomputed from history
// and reports every pair that differs by more than the configured epsilon.
// Discrepancies are reported, never corrected.
func (s *Service) Reconcile(ctx context.Context, groupID string) ([]models.Discrepancy, error) {
	h, err := s.loadHistory(ctx, groupID)
	if err != nil {
		return nil, err
	}

	discrepancies := diff(groupID, h.group.Currency, h.stored, h.replay().List(), s.epsilon)
	for _, d := range discrepancies {
		s.logger.Error("Balance discrepancy",
			"group_id", groupID,
			"pair_a", d.Pair.A,
			"pair_b", d.Pair.B,
			"stored", d.Stored.String(),
			"expected", d.Expected.String(),
			"delta", d.Delta.String(),
		)
	}
	s.metrics.Discrepancies(len(discrepancies))
	s.logger.Info("Reconciliation finished",
		"group_id", groupID,
		"expenses", len(h.expenses),
		"settlements", len(h.settlements),
		"discrepancies", len(discrepancies),
	)
	return discrepancies, nil
}

// diff compares two balance sets pair by pair, ordered by pair.
func diff(groupID, currency string, stored, expected []models.Balance, epsilon int64) []models.Discrepancy {
	type amounts struct{ stored, expected money.Money }
	pairs := make(map[models.Pair]*amounts)
	entry := func(p models.Pair) *amounts {
		a, ok := pairs[p]
		if !ok {
			a = &amounts{stored: money.Zero(currency), expected: money.Zero(currency)}
			pairs[p] = a
		}
		return a
	}
	for _, b := range stored {
		p, signed := b.Signed()
		e := entry(p)
		e.stored = e.stored.Add(signed)
	}
	for _, b := range expected {
		p, signed := b.Signed()
		e := entry(p)
		e.expected = e.expected.Add(signed)
	}

	var out []models.Discrepancy
	for p, a := range pairs {
		delta := a.expected.Sub(a.stored)
		if delta.Abs().Amount <= epsilon {
			continue
		}
		out = append(out, models.Discrepancy{
			GroupID:  groupID,
			Pair:     p,
			Stored:   a.stored,
			Expected: a.expected,
			Delta:    delta,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pair.A != out[j].Pair.A {
			return out[i].Pair.A < out[j].Pair.A
		}
		return out[i].Pair.B < out[j].Pair.B
	})
	return out
}
