package ledger

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/balance"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// mutator translates ledger events into balance deltas. It runs inside the
// caller's write transaction and never commits on its own.
type mutator struct {
	balances         *balance.Store
	allowOverpayment bool
}

// recordExpense makes every participant owe the payer their share.
func (m *mutator) recordExpense(ctx context.Context, expense *models.Expense, splits []models.ExpenseSplit) error {
	return m.applyExpense(ctx, expense, splits, false)
}

// reverseExpense undoes recordExpense for the same expense and splits.
func (m *mutator) reverseExpense(ctx context.Context, expense *models.Expense, splits []models.ExpenseSplit) error {
	return m.applyExpense(ctx, expense, splits, true)
}

func (m *mutator) applyExpense(ctx context.Context, expense *models.Expense, splits []models.ExpenseSplit, reverse bool) error {
	for _, split := range splits {
		if split.ParticipantID == expense.PayerID || !split.Share.IsPositive() {
			continue
		}
		delta := split.Share
		if reverse {
			delta = delta.Neg()
		}
		if err := m.balances.ApplyDelta(ctx, expense.GroupID, split.ParticipantID, expense.PayerID, delta); err != nil {
			return err
		}
	}
	return nil
}

// recordSettlementCompleted pays down what settlement.FromID owes
// settlement.ToID. Unless overpayment is allowed the payment may not exceed
// the current debt.
func (m *mutator) recordSettlementCompleted(ctx context.Context, settlement *models.Settlement) error {
	if !m.allowOverpayment {
		row, err := m.balances.Get(ctx, settlement.GroupID, settlement.FromID, settlement.ToID)
		if err != nil {
			return err
		}
		owed := money.Zero(settlement.Amount.Currency)
		if row != nil && row.DebtorID == settlement.FromID {
			owed = row.Amount
		}
		if settlement.Amount.Cmp(owed) > 0 {
			return fmt.Errorf("%w: %s owes %s %s, settlement is %s",
				ErrSettlementExceedsBalance, settlement.FromID, settlement.ToID, owed, settlement.Amount)
		}
	}
	return m.balances.ApplyDelta(ctx, settlement.GroupID, settlement.ToID, settlement.FromID, settlement.Amount)
}

// validateAmount checks that amount is a usable input in the group's currency.
func validateAmount(group *models.Group, amount money.Money) error {
	if err := amount.Validate(); err != nil {
		return err
	}
	if amount.Currency != group.Currency {
		return fmt.Errorf("%w: amount is in %s, group %s uses %s", ErrInvalidAmount, amount.Currency, group.ID, group.Currency)
	}
	return nil
}

func requireMember(group *models.Group, userID string) error {
	if !group.HasMember(userID) {
		return fmt.Errorf("%w: %q is not a member of group %s", ErrUnknownParticipant, userID, group.ID)
	}
	return nil
}

// buildSplits validates spec against the group and computes every
// participant's share of amount.
func buildSplits(group *models.Group, payerID string, amount money.Money, spec models.SplitSpec) ([]models.ExpenseSplit, error) {
	if err := validateAmount(group, amount); err != nil {
		return nil, err
	}
	if err := requireMember(group, payerID); err != nil {
		return nil, err
	}

	var (
		participants []string
		shares       []money.Money
		err          error
	)
	switch spec.Kind {
	case models.SplitEqual:
		participants, err = equalOrder(group, payerID, spec.Participants)
		if err != nil {
			return nil, err
		}
		shares, err = money.SplitEqual(amount, len(participants))

	case models.SplitExact:
		participants = sortedKeys(spec.Shares)
		exact := make([]money.Money, len(participants))
		for i, p := range participants {
			exact[i] = money.New(spec.Shares[p], amount.Currency)
		}
		if err := requireMembers(group, participants); err != nil {
			return nil, err
		}
		shares, err = money.SplitExact(amount, exact)

	case models.SplitPercentage:
		participants = sortedKeys(spec.Percentages)
		pcts := make([]decimal.Decimal, len(participants))
		for i, p := range participants {
			pcts[i] = spec.Percentages[p]
		}
		if err := requireMembers(group, participants); err != nil {
			return nil, err
		}
		shares, err = money.SplitPercentage(amount, pcts)

	default:
		return nil, fmt.Errorf("%w: unknown split kind %q", ErrSplitMismatch, spec.Kind)
	}
	if err != nil {
		return nil, err
	}

	splits := make([]models.ExpenseSplit, len(participants))
	for i, p := range participants {
		splits[i] = models.ExpenseSplit{ParticipantID: p, Share: shares[i]}
	}
	return splits, nil
}

// equalOrder returns the participants in remainder order: everyone except
// the payer in ascending ID order, then the payer.
func equalOrder(group *models.Group, payerID string, participants []string) ([]string, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("%w: no participants", ErrInvalidAmount)
	}
	ordered := slices.Clone(participants)
	sort.Strings(ordered)
	for i := 1; i < len(ordered); i++ {
		if ordered[i] == ordered[i-1] {
			return nil, fmt.Errorf("%w: participant %q listed twice", ErrSplitMismatch, ordered[i])
		}
	}
	if err := requireMembers(group, ordered); err != nil {
		return nil, err
	}

	if idx := slices.Index(ordered, payerID); idx >= 0 {
		ordered = append(slices.Delete(ordered, idx, idx+1), payerID)
	}
	return ordered, nil
}

func requireMembers(group *models.Group, participants []string) error {
	if len(participants) == 0 {
		return fmt.Errorf("%w: no participants", ErrInvalidAmount)
	}
	for _, p := range participants {
		if err := requireMember(group, p); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
