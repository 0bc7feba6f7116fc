package models

import (
	"time"

	"github.com/mmynk/splitledger/internal/money"
)

// SettlementStatus is the lifecycle state of a settlement.
type SettlementStatus string

const (
	// SettlementPending is a proposal; it has not affected balances.
	SettlementPending SettlementStatus = "pending"

	// SettlementCompleted has been applied to balances. Terminal.
	SettlementCompleted SettlementStatus = "completed"

	// SettlementCancelled was withdrawn without touching balances. Terminal.
	SettlementCancelled SettlementStatus = "cancelled"
)

// CanTransitionTo reports whether s may move to next.
// Only pending settlements can change state.
func (s SettlementStatus) CanTransitionTo(next SettlementStatus) bool {
	return s == SettlementPending && (next == SettlementCompleted || next == SettlementCancelled)
}

// Settlement represents a payment between group members to clear debts.
type Settlement struct {
	// ID is the unique identifier for the settlement ("stl_..." TypeID).
	ID string

	// GroupID is the group this settlement belongs to.
	GroupID string

	// FromID is the member who pays (debtor settling up).
	FromID string

	// ToID is the member who receives the payment (creditor being paid).
	ToID string

	// Amount is the payment amount.
	Amount money.Money

	Status SettlementStatus

	// Note is an optional description for the settlement.
	Note string

	CreatedAt time.Time

	// CompletedAt is set once Status is SettlementCompleted.
	CompletedAt *time.Time
}

// SettlementInstruction is one suggested payment produced by debt simplification.
type SettlementInstruction struct {
	FromID string
	ToID   string
	Amount money.Money
}
