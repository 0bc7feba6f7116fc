// Package memory provides an in-memory implementation of storage.Store.
//
// Update works on a private copy of the whole dataset and publishes it only
// when the transaction function succeeds, so failed transactions leave no trace.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

var errReadOnly = errors.New("memory: write in read-only transaction")

type balanceKey struct {
	group, debtor, creditor string
}

type state struct {
	groups      map[string]*models.Group
	expenses    map[string]*models.Expense
	splits      map[string][]models.ExpenseSplit
	balances    map[balanceKey]models.Balance
	settlements map[string]*models.Settlement
}

func newState() *state {
	return &state{
		groups:      make(map[string]*models.Group),
		expenses:    make(map[string]*models.Expense),
		splits:      make(map[string][]models.ExpenseSplit),
		balances:    make(map[balanceKey]models.Balance),
		settlements: make(map[string]*models.Settlement),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, g := range s.groups {
		c.groups[k] = copyGroup(g)
	}
	for k, e := range s.expenses {
		e := *e
		c.expenses[k] = &e
	}
	for k, sp := range s.splits {
		c.splits[k] = slices.Clone(sp)
	}
	for k, b := range s.balances {
		c.balances[k] = b
	}
	for k, st := range s.settlements {
		c.settlements[k] = copySettlement(st)
	}
	return c
}

// Store is an in-memory storage.Store. The zero value is not usable; call New.
type Store struct {
	mu    sync.RWMutex
	data  *state
	now   func() time.Time
	close bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{data: newState(), now: time.Now}
}

// Update runs fn on a copy of the data and publishes the copy if fn succeeds.
func (s *Store) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.close {
		return errors.New("memory: store is closed")
	}

	work := s.data.clone()
	if err := fn(&tx{data: work, now: s.now}); err != nil {
		return err
	}
	s.data = work
	return nil
}

// View runs fn against the current data under a read lock.
func (s *Store) View(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.close {
		return errors.New("memory: store is closed")
	}
	return fn(&tx{data: s.data, now: s.now, readOnly: true})
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.close = true
	return nil
}

type tx struct {
	data     *state
	now      func() time.Time
	readOnly bool
}

func (t *tx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

// ==================== Groups ====================

func (t *tx) CreateGroup(_ context.Context, group *models.Group) error {
	if err := t.writable(); err != nil {
		return err
	}
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = t.now()
	}
	if _, exists := t.data.groups[group.ID]; exists {
		return fmt.Errorf("group already exists: %s", group.ID)
	}
	group.Members = normalizeMembers(group.Members)
	t.data.groups[group.ID] = copyGroup(group)
	return nil
}

func (t *tx) GetGroup(_ context.Context, groupID string) (*models.Group, error) {
	g, ok := t.data.groups[groupID]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	return copyGroup(g), nil
}

func (t *tx) AddGroupMembers(_ context.Context, groupID string, members []string) error {
	if err := t.writable(); err != nil {
		return err
	}
	g, ok := t.data.groups[groupID]
	if !ok {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	g.Members = normalizeMembers(append(g.Members, members...))
	return nil
}

func (t *tx) RemoveGroupMember(_ context.Context, groupID, member string) error {
	if err := t.writable(); err != nil {
		return err
	}
	g, ok := t.data.groups[groupID]
	if !ok {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	idx := slices.Index(g.Members, member)
	if idx < 0 {
		return fmt.Errorf("member %s of group %s: %w", member, groupID, storage.ErrNotFound)
	}
	g.Members = slices.Delete(g.Members, idx, idx+1)
	return nil
}

// ==================== Expenses ====================

func (t *tx) InsertExpense(_ context.Context, expense *models.Expense) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.data.groups[expense.GroupID]; !ok {
		return fmt.Errorf("group %s: %w", expense.GroupID, storage.ErrNotFound)
	}
	if expense.ID == "" {
		expense.ID = models.NewExpenseID()
	}
	if _, exists := t.data.expenses[expense.ID]; exists {
		return fmt.Errorf("expense already exists: %s", expense.ID)
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = t.now()
	}
	if expense.UpdatedAt.IsZero() {
		expense.UpdatedAt = expense.CreatedAt
	}
	e := *expense
	t.data.expenses[e.ID] = &e
	return nil
}

func (t *tx) GetExpense(_ context.Context, expenseID string) (*models.Expense, error) {
	e, ok := t.data.expenses[expenseID]
	if !ok {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

func (t *tx) UpdateExpense(_ context.Context, expense *models.Expense) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.data.expenses[expense.ID]; !ok {
		return fmt.Errorf("expense %s: %w", expense.ID, storage.ErrNotFound)
	}
	e := *expense
	t.data.expenses[e.ID] = &e
	return nil
}

func (t *tx) DeleteExpense(_ context.Context, expenseID string) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.data.expenses[expenseID]; !ok {
		return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	delete(t.data.expenses, expenseID)
	delete(t.data.splits, expenseID)
	return nil
}

func (t *tx) ListExpenses(_ context.Context, groupID string) ([]*models.Expense, error) {
	var result []*models.Expense
	for _, e := range t.data.expenses {
		if e.GroupID == groupID {
			cp := *e
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (t *tx) ReplaceSplits(_ context.Context, expenseID string, splits []models.ExpenseSplit) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.data.expenses[expenseID]; !ok {
		return fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	cp := slices.Clone(splits)
	for i := range cp {
		cp[i].ExpenseID = expenseID
	}
	sort.Slice(cp, func(i, j int) bool { return cp[i].ParticipantID < cp[j].ParticipantID })
	t.data.splits[expenseID] = cp
	return nil
}

func (t *tx) ListSplits(_ context.Context, expenseID string) ([]models.ExpenseSplit, error) {
	return slices.Clone(t.data.splits[expenseID]), nil
}

// ==================== Balances ====================

func (t *tx) GetBalance(_ context.Context, groupID, debtorID, creditorID string) (*models.Balance, error) {
	b, ok := t.data.balances[balanceKey{groupID, debtorID, creditorID}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &b, nil
}

func (t *tx) PutBalance(_ context.Context, balance *models.Balance) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.data.groups[balance.GroupID]; !ok {
		return fmt.Errorf("group %s: %w", balance.GroupID, storage.ErrNotFound)
	}
	t.data.balances[balanceKey{balance.GroupID, balance.DebtorID, balance.CreditorID}] = *balance
	return nil
}

func (t *tx) DeleteBalance(_ context.Context, groupID, debtorID, creditorID string) error {
	if err := t.writable(); err != nil {
		return err
	}
	delete(t.data.balances, balanceKey{groupID, debtorID, creditorID})
	return nil
}

func (t *tx) ListBalances(_ context.Context, groupID string) ([]models.Balance, error) {
	var result []models.Balance
	for k, b := range t.data.balances {
		if k.group == groupID {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DebtorID != result[j].DebtorID {
			return result[i].DebtorID < result[j].DebtorID
		}
		return result[i].CreditorID < result[j].CreditorID
	})
	return result, nil
}

// ==================== Settlements ====================

func (t *tx) InsertSettlement(_ context.Context, settlement *models.Settlement) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.data.groups[settlement.GroupID]; !ok {
		return fmt.Errorf("group %s: %w", settlement.GroupID, storage.ErrNotFound)
	}
	if settlement.ID == "" {
		settlement.ID = models.NewSettlementID()
	}
	if _, exists := t.data.settlements[settlement.ID]; exists {
		return fmt.Errorf("settlement already exists: %s", settlement.ID)
	}
	if settlement.CreatedAt.IsZero() {
		settlement.CreatedAt = t.now()
	}
	t.data.settlements[settlement.ID] = copySettlement(settlement)
	return nil
}

func (t *tx) GetSettlement(_ context.Context, settlementID string) (*models.Settlement, error) {
	st, ok := t.data.settlements[settlementID]
	if !ok {
		return nil, fmt.Errorf("settlement %s: %w", settlementID, storage.ErrNotFound)
	}
	return copySettlement(st), nil
}

func (t *tx) UpdateSettlement(_ context.Context, settlement *models.Settlement) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.data.settlements[settlement.ID]; !ok {
		return fmt.Errorf("settlement %s: %w", settlement.ID, storage.ErrNotFound)
	}
	t.data.settlements[settlement.ID] = copySettlement(settlement)
	return nil
}

func (t *tx) ListSettlements(_ context.Context, groupID string) ([]*models.Settlement, error) {
	var result []*models.Settlement
	for _, st := range t.data.settlements {
		if st.GroupID == groupID {
			result = append(result, copySettlement(st))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func copyGroup(g *models.Group) *models.Group {
	cp := *g
	cp.Members = slices.Clone(g.Members)
	return &cp
}

func copySettlement(st *models.Settlement) *models.Settlement {
	cp := *st
	if st.CompletedAt != nil {
		at := *st.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}

func normalizeMembers(members []string) []string {
	out := slices.Clone(members)
	slices.Sort(out)
	return slices.Compact(out)
}
