// Package ledger is the balance ledger of a group: it records expenses and
// settlements as pairwise balance changes, reconciles balances against
// history and suggests payments that settle the group.
//
// Every mutation of a group runs under that group's write lock and inside a
// single storage transaction, so balances are never observed half-applied.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/mmynk/splitledger/internal/balance"
	"github.com/mmynk/splitledger/internal/cache"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/simplify"
	"github.com/mmynk/splitledger/internal/storage"
)

// Service is the ledger's application-facing API.
type Service struct {
	store   storage.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	locks   *groupLocks

	cache    cache.Cache
	cacheTTL time.Duration

	lockTimeout      time.Duration
	maxRetries       uint
	allowOverpayment bool
	epsilon          int64
	now              func() time.Time

	// retryInterval is the first backoff interval between conflicting
	// write attempts.
	retryInterval time.Duration
}

// New creates a Service on top of store.
func New(store storage.Store, opts ...Option) *Service {
	s := &Service{
		store:         store,
		logger:        slog.Default(),
		locks:         newGroupLocks(),
		cache:         cache.Nop{},
		cacheTTL:      DefaultCacheTTL,
		lockTimeout:   DefaultLockTimeout,
		maxRetries:    DefaultMaxRetries,
		now:           time.Now,
		retryInterval: 10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxRetries == 0 {
		s.maxRetries = 1
	}
	return s
}

// ==================== Groups ====================

// CreateGroup creates a group with the given members. All amounts in the
// group must be in currency.
func (s *Service) CreateGroup(ctx context.Context, name, currency string, members []string) (*models.Group, error) {
	start := time.Now()
	group := &models.Group{
		Name:      name,
		Currency:  strings.ToUpper(currency),
		Members:   members,
		CreatedAt: s.now(),
	}

	err := func() error {
		if len(group.Currency) != 3 {
			return fmt.Errorf("%w: currency %q is not an ISO 4217 code", ErrInvalidAmount, currency)
		}
		for _, m := range members {
			if m == "" {
				return fmt.Errorf("%w: empty member id", ErrUnknownParticipant)
			}
		}
		return s.update(ctx, func(tx storage.Tx) error {
			return tx.CreateGroup(ctx, group)
		})
	}()
	s.observe("create_group", start, err, "group_id", group.ID, "members_count", len(members))
	if err != nil {
		return nil, err
	}
	return group, nil
}

// GetGroup returns a group with its members.
func (s *Service) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	var group *models.Group
	err := s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		group, err = s.loadGroup(ctx, tx, groupID)
		return err
	})
	return group, err
}

// AddMembers adds members to a group. Existing members are ignored.
func (s *Service) AddMembers(ctx context.Context, groupID string, members ...string) error {
	return s.mutate(ctx, "add_members", groupID, []any{"members_count", len(members)}, func(tx storage.Tx) error {
		if _, err := s.loadGroup(ctx, tx, groupID); err != nil {
			return err
		}
		for _, m := range members {
			if m == "" {
				return fmt.Errorf("%w: empty member id", ErrUnknownParticipant)
			}
		}
		return tx.AddGroupMembers(ctx, groupID, members)
	})
}

// RemoveMember removes a member who has no outstanding balance in the group.
// A member named by an expense or a pending settlement also stays, since
// deleting, updating or accepting those would give them a balance again.
func (s *Service) RemoveMember(ctx context.Context, groupID, member string) error {
	return s.mutate(ctx, "remove_member", groupID, []any{"member", member}, func(tx storage.Tx) error {
		group, err := s.loadGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if err := requireMember(group, member); err != nil {
			return err
		}
		rows, err := tx.ListBalances(ctx, groupID)
		if err != nil {
			return err
		}
		for _, b := range rows {
			if b.DebtorID == member || b.CreditorID == member {
				return fmt.Errorf("%w: %s <-> %s %s", ErrParticipantHasBalance, b.DebtorID, b.CreditorID, b.Amount)
			}
		}
		if err := checkUnreferenced(ctx, tx, groupID, member); err != nil {
			return err
		}
		return tx.RemoveGroupMember(ctx, groupID, member)
	})
}

// checkUnreferenced fails with ErrParticipantHasBalance if an expense or a
// pending settlement of the group names member.
func checkUnreferenced(ctx context.Context, tx storage.Tx, groupID, member string) error {
	expenses, err := tx.ListExpenses(ctx, groupID)
	if err != nil {
		return err
	}
	for _, e := range expenses {
		if e.PayerID == member {
			return fmt.Errorf("%w: %s paid expense %s", ErrParticipantHasBalance, member, e.ID)
		}
		splits, err := tx.ListSplits(ctx, e.ID)
		if err != nil {
			return err
		}
		for _, sp := range splits {
			if sp.ParticipantID == member {
				return fmt.Errorf("%w: %s shares expense %s", ErrParticipantHasBalance, member, e.ID)
			}
		}
	}

	settlements, err := tx.ListSettlements(ctx, groupID)
	if err != nil {
		return err
	}
	for _, st := range settlements {
		if st.Status == models.SettlementPending && (st.FromID == member || st.ToID == member) {
			return fmt.Errorf("%w: %s is named by pending settlement %s", ErrParticipantHasBalance, member, st.ID)
		}
	}
	return nil
}

// ==================== Expenses ====================

// ExpenseOption sets optional expense fields.
type ExpenseOption func(*models.Expense)

// WithDescription attaches a free-text description to an expense.
func WithDescription(description string) ExpenseOption {
	return func(e *models.Expense) { e.Description = description }
}

// RecordExpense records that payerID paid amount, split according to spec,
// and updates balances accordingly. It returns the new expense ID.
func (s *Service) RecordExpense(ctx context.Context, groupID, payerID string, amount money.Money, spec models.SplitSpec, opts ...ExpenseOption) (string, error) {
	now := s.now()
	expense := &models.Expense{
		ID:        models.NewExpenseID(),
		GroupID:   groupID,
		PayerID:   payerID,
		Amount:    amount,
		SplitKind: spec.Kind,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, opt := range opts {
		opt(expense)
	}

	attrs := []any{"expense_id", expense.ID, "payer_id", payerID, "amount", amount.String(), "split", spec.Kind}
	err := s.mutate(ctx, "record_expense", groupID, attrs, func(tx storage.Tx) error {
		group, err := s.loadGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		splits, err := buildSplits(group, payerID, amount, spec)
		if err != nil {
			return err
		}

		if err := tx.InsertExpense(ctx, expense); err != nil {
			return err
		}
		if err := tx.ReplaceSplits(ctx, expense.ID, splits); err != nil {
			return err
		}
		return s.mutator(tx).recordExpense(ctx, expense, splits)
	})
	if err != nil {
		return "", err
	}
	return expense.ID, nil
}

// UpdateExpense replaces an expense's amount and split. The old split is
// reversed and the new one recorded in the same transaction; if the new
// split is invalid nothing changes.
func (s *Service) UpdateExpense(ctx context.Context, expenseID string, amount money.Money, spec models.SplitSpec) error {
	attrs := []any{"expense_id", expenseID, "amount", amount.String(), "split", spec.Kind}
	groupID, err := s.expenseGroup(ctx, expenseID)
	if err != nil {
		s.observe("update_expense", time.Now(), err, attrs...)
		return err
	}

	return s.mutate(ctx, "update_expense", groupID, attrs, func(tx storage.Tx) error {
		expense, oldSplits, err := loadExpense(ctx, tx, expenseID)
		if err != nil {
			return err
		}
		group, err := s.loadGroup(ctx, tx, expense.GroupID)
		if err != nil {
			return err
		}
		newSplits, err := buildSplits(group, expense.PayerID, amount, spec)
		if err != nil {
			return err
		}

		m := s.mutator(tx)
		if err := m.reverseExpense(ctx, expense, oldSplits); err != nil {
			return err
		}

		expense.Amount = amount
		expense.SplitKind = spec.Kind
		expense.UpdatedAt = s.now()
		if err := tx.UpdateExpense(ctx, expense); err != nil {
			return err
		}
		if err := tx.ReplaceSplits(ctx, expense.ID, newSplits); err != nil {
			return err
		}
		return m.recordExpense(ctx, expense, newSplits)
	})
}

// DeleteExpense reverses an expense's balance effect and deletes it.
func (s *Service) DeleteExpense(ctx context.Context, expenseID string) error {
	groupID, err := s.expenseGroup(ctx, expenseID)
	if err != nil {
		s.observe("delete_expense", time.Now(), err, "expense_id", expenseID)
		return err
	}

	return s.mutate(ctx, "delete_expense", groupID, []any{"expense_id", expenseID}, func(tx storage.Tx) error {
		expense, splits, err := loadExpense(ctx, tx, expenseID)
		if err != nil {
			return err
		}
		if err := s.mutator(tx).reverseExpense(ctx, expense, splits); err != nil {
			return err
		}
		return tx.DeleteExpense(ctx, expenseID)
	})
}

// GetExpense returns an expense and its splits.
func (s *Service) GetExpense(ctx context.Context, expenseID string) (*models.Expense, []models.ExpenseSplit, error) {
	var (
		expense *models.Expense
		splits  []models.ExpenseSplit
	)
	err := s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		expense, splits, err = loadExpense(ctx, tx, expenseID)
		return err
	})
	return expense, splits, err
}

// ListExpenses returns a group's expenses oldest first.
func (s *Service) ListExpenses(ctx context.Context, groupID string) ([]*models.Expense, error) {
	var expenses []*models.Expense
	err := s.store.View(ctx, func(tx storage.Tx) error {
		if _, err := s.loadGroup(ctx, tx, groupID); err != nil {
			return err
		}
		var err error
		expenses, err = tx.ListExpenses(ctx, groupID)
		return err
	})
	return expenses, err
}

// ==================== Balances ====================

// GetGroupBalances returns every non-zero balance row of a group ordered by
// (debtor, creditor).
func (s *Service) GetGroupBalances(ctx context.Context, groupID string) ([]models.Balance, error) {
	key := cache.BalancesKey(groupID)
	var cached []models.Balance
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("Balance cache read failed", "group_id", groupID, "error", err)
	} else if found {
		return cached, nil
	}

	gen := s.locks.generation(groupID)
	var rows []models.Balance
	err = s.store.View(ctx, func(tx storage.Tx) error {
		if _, err := s.loadGroup(ctx, tx, groupID); err != nil {
			return err
		}
		var err error
		rows, err = balance.New(tx).List(ctx, groupID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.fillBalanceCache(ctx, groupID, gen, rows)
	return rows, nil
}

// fillBalanceCache stores rows read at generation gen. A write that commits
// around the Set bumps the generation before deleting the key, so the entry
// is either skipped or deleted again here.
func (s *Service) fillBalanceCache(ctx context.Context, groupID string, gen uint64, rows []models.Balance) {
	if s.locks.generation(groupID) != gen {
		return
	}
	key := cache.BalancesKey(groupID)
	if err := s.cache.Set(ctx, key, rows, s.cacheTTL); err != nil {
		s.logger.Warn("Balance cache write failed", "group_id", groupID, "error", err)
		return
	}
	if s.locks.generation(groupID) != gen {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Error("Balance cache invalidation failed", "group_id", groupID, "error", err)
		}
	}
}

// GetUserNetPosition returns what userID is owed minus what they owe.
func (s *Service) GetUserNetPosition(ctx context.Context, groupID, userID string) (money.Money, error) {
	var net money.Money
	err := s.store.View(ctx, func(tx storage.Tx) error {
		group, err := s.loadGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if err := requireMember(group, userID); err != nil {
			return err
		}
		net, err = balance.New(tx).NetPosition(ctx, groupID, userID)
		return err
	})
	return net, err
}

// GetNetPositions returns the net position of every member ordered by ID.
func (s *Service) GetNetPositions(ctx context.Context, groupID string) ([]models.NetPosition, error) {
	var positions []models.NetPosition
	err := s.store.View(ctx, func(tx storage.Tx) error {
		if _, err := s.loadGroup(ctx, tx, groupID); err != nil {
			return err
		}
		var err error
		positions, err = balance.New(tx).NetPositions(ctx, groupID)
		return err
	})
	return positions, err
}

// SuggestSettlements returns payments that would settle the whole group.
func (s *Service) SuggestSettlements(ctx context.Context, groupID string) ([]models.SettlementInstruction, error) {
	positions, err := s.GetNetPositions(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return simplify.Simplify(positions), nil
}

// ==================== Settlements ====================

// CompleteSettlement records that fromID paid toID amount and applies it to
// balances immediately. It returns the new settlement ID.
//
// Unless the service was built WithAllowOverpayment(true), amount may not
// exceed what fromID currently owes toID directly. Instructions from
// SuggestSettlements can pair members with no direct debt (A owes B and
// B owes C becomes A pays C); completing those needs overpayment allowed.
func (s *Service) CompleteSettlement(ctx context.Context, groupID, fromID, toID string, amount money.Money) (string, error) {
	now := s.now()
	settlement := &models.Settlement{
		ID:          models.NewSettlementID(),
		GroupID:     groupID,
		FromID:      fromID,
		ToID:        toID,
		Amount:      amount,
		Status:      models.SettlementCompleted,
		CreatedAt:   now,
		CompletedAt: &now,
	}

	err := s.mutate(ctx, "complete_settlement", groupID, settlementAttrs(settlement), func(tx storage.Tx) error {
		if err := s.validateSettlement(ctx, tx, settlement); err != nil {
			return err
		}
		if err := s.mutator(tx).recordSettlementCompleted(ctx, settlement); err != nil {
			return err
		}
		return tx.InsertSettlement(ctx, settlement)
	})
	if err != nil {
		return "", err
	}
	return settlement.ID, nil
}

// ProposeSettlement records a pending settlement. Balances are not touched
// until it is accepted.
func (s *Service) ProposeSettlement(ctx context.Context, groupID, fromID, toID string, amount money.Money, note string) (string, error) {
	settlement := &models.Settlement{
		ID:        models.NewSettlementID(),
		GroupID:   groupID,
		FromID:    fromID,
		ToID:      toID,
		Amount:    amount,
		Status:    models.SettlementPending,
		Note:      note,
		CreatedAt: s.now(),
	}

	err := s.mutate(ctx, "propose_settlement", groupID, settlementAttrs(settlement), func(tx storage.Tx) error {
		if err := s.validateSettlement(ctx, tx, settlement); err != nil {
			return err
		}
		return tx.InsertSettlement(ctx, settlement)
	})
	if err != nil {
		return "", err
	}
	return settlement.ID, nil
}

// AcceptSettlement completes a pending settlement and applies it to balances
// under the same overpayment rule as CompleteSettlement.
func (s *Service) AcceptSettlement(ctx context.Context, settlementID string) error {
	return s.transitionSettlement(ctx, "accept_settlement", settlementID, models.SettlementCompleted)
}

// CancelSettlement withdraws a pending settlement.
func (s *Service) CancelSettlement(ctx context.Context, settlementID string) error {
	return s.transitionSettlement(ctx, "cancel_settlement", settlementID, models.SettlementCancelled)
}

func (s *Service) transitionSettlement(ctx context.Context, op, settlementID string, next models.SettlementStatus) error {
	groupID, err := s.settlementGroup(ctx, settlementID)
	if err != nil {
		s.observe(op, time.Now(), err, "settlement_id", settlementID)
		return err
	}

	return s.mutate(ctx, op, groupID, []any{"settlement_id", settlementID}, func(tx storage.Tx) error {
		settlement, err := tx.GetSettlement(ctx, settlementID)
		if err != nil {
			return notFound(err, ErrSettlementNotFound, settlementID)
		}
		if !settlement.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s is %s, cannot become %s", ErrInvalidTransition, settlementID, settlement.Status, next)
		}

		if next == models.SettlementCompleted {
			// Membership may have changed since the proposal.
			if err := s.validateSettlement(ctx, tx, settlement); err != nil {
				return err
			}
			if err := s.mutator(tx).recordSettlementCompleted(ctx, settlement); err != nil {
				return err
			}
			now := s.now()
			settlement.CompletedAt = &now
		}
		settlement.Status = next
		return tx.UpdateSettlement(ctx, settlement)
	})
}

// ListSettlements returns a group's settlements oldest first.
func (s *Service) ListSettlements(ctx context.Context, groupID string) ([]*models.Settlement, error) {
	var settlements []*models.Settlement
	err := s.store.View(ctx, func(tx storage.Tx) error {
		if _, err := s.loadGroup(ctx, tx, groupID); err != nil {
			return err
		}
		var err error
		settlements, err = tx.ListSettlements(ctx, groupID)
		return err
	})
	return settlements, err
}

func (s *Service) validateSettlement(ctx context.Context, tx storage.Tx, settlement *models.Settlement) error {
	group, err := s.loadGroup(ctx, tx, settlement.GroupID)
	if err != nil {
		return err
	}
	if err := validateAmount(group, settlement.Amount); err != nil {
		return err
	}
	if err := requireMember(group, settlement.FromID); err != nil {
		return err
	}
	if err := requireMember(group, settlement.ToID); err != nil {
		return err
	}
	if settlement.FromID == settlement.ToID {
		return fmt.Errorf("%w: %s", ErrSelfSettlement, settlement.FromID)
	}
	return nil
}

func settlementAttrs(st *models.Settlement) []any {
	return []any{"settlement_id", st.ID, "from_id", st.FromID, "to_id", st.ToID, "amount", st.Amount.String()}
}

// ==================== Plumbing ====================

// mutate runs fn as one write transaction on groupID: it takes the group
// lock, retries on datastore conflicts, drops cached reads of the group
// after commit and records the outcome.
func (s *Service) mutate(ctx context.Context, op, groupID string, attrs []any, fn func(tx storage.Tx) error) (err error) {
	start := time.Now()
	attrs = append([]any{"group_id", groupID}, attrs...)
	defer func() { s.observe(op, start, err, attrs...) }()

	release, err := s.locks.acquire(ctx, groupID, s.lockTimeout)
	if err != nil {
		if errors.Is(err, ErrLockTimeout) {
			s.metrics.LockTimeout()
		}
		return err
	}
	defer release()

	if err := s.update(ctx, fn); err != nil {
		return err
	}

	s.locks.bump(groupID)
	if err := s.cache.Delete(ctx, cache.BalancesKey(groupID)); err != nil {
		s.logger.Error("Balance cache invalidation failed", "group_id", groupID, "error", err)
	}
	return nil
}

// update runs fn in a write transaction, retrying with exponential backoff
// while the store reports storage.ErrConflict.
func (s *Service) update(ctx context.Context, fn func(tx storage.Tx) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.retryInterval
	bo.MaxInterval = 50 * s.retryInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := s.store.Update(ctx, fn)
		switch {
		case err == nil:
			return struct{}{}, nil
		case errors.Is(err, storage.ErrConflict):
			s.metrics.TxConflict()
			s.logger.Debug("Write transaction conflict, retrying", "error", err)
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(s.maxRetries))

	if errors.Is(err, storage.ErrConflict) {
		return fmt.Errorf("%w: %w", ErrTransactionConflict, err)
	}
	return err
}

// observe logs and counts a finished mutation.
func (s *Service) observe(op string, start time.Time, err error, attrs ...any) {
	elapsed := time.Since(start)
	attrs = append(attrs, "op", op, "duration_ms", elapsed.Milliseconds())

	switch {
	case err == nil:
		s.metrics.ObserveMutation(op, metrics.ResultOK, elapsed)
		s.logger.Info("Ledger mutation ok", attrs...)
	case isRejection(err):
		s.metrics.ObserveMutation(op, metrics.ResultRejected, elapsed)
		s.logger.Warn("Ledger mutation rejected", append(attrs, "error", err)...)
	default:
		s.metrics.ObserveMutation(op, metrics.ResultError, elapsed)
		s.logger.Error("Ledger mutation failed", append(attrs, "error", err)...)
	}
}

func (s *Service) mutator(tx storage.Tx) *mutator {
	return &mutator{
		balances:         balance.New(tx).WithClock(s.now),
		allowOverpayment: s.allowOverpayment,
	}
}

func (s *Service) loadGroup(ctx context.Context, tx storage.Tx, groupID string) (*models.Group, error) {
	group, err := tx.GetGroup(ctx, groupID)
	if err != nil {
		return nil, notFound(err, ErrGroupNotFound, groupID)
	}
	return group, nil
}

func loadExpense(ctx context.Context, tx storage.Tx, expenseID string) (*models.Expense, []models.ExpenseSplit, error) {
	expense, err := tx.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, nil, notFound(err, ErrExpenseNotFound, expenseID)
	}
	splits, err := tx.ListSplits(ctx, expenseID)
	if err != nil {
		return nil, nil, err
	}
	return expense, splits, nil
}

// expenseGroup looks up which group's lock guards an expense.
func (s *Service) expenseGroup(ctx context.Context, expenseID string) (string, error) {
	var groupID string
	err := s.store.View(ctx, func(tx storage.Tx) error {
		expense, err := tx.GetExpense(ctx, expenseID)
		if err != nil {
			return notFound(err, ErrExpenseNotFound, expenseID)
		}
		groupID = expense.GroupID
		return nil
	})
	return groupID, err
}

func (s *Service) settlementGroup(ctx context.Context, settlementID string) (string, error) {
	var groupID string
	err := s.store.View(ctx, func(tx storage.Tx) error {
		settlement, err := tx.GetSettlement(ctx, settlementID)
		if err != nil {
			return notFound(err, ErrSettlementNotFound, settlementID)
		}
		groupID = settlement.GroupID
		return nil
	})
	return groupID, err
}
