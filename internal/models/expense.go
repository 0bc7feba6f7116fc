package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/money"
)

// SplitKind selects how an expense total is divided among participants.
type SplitKind string

const (
	// SplitEqual divides the total evenly; leftover minor units go to
	// non-payers in ascending ID order first, then to the payer.
	SplitEqual SplitKind = "equal"

	// SplitExact uses caller-provided shares in minor units.
	SplitExact SplitKind = "exact"

	// SplitPercentage assigns each participant a percentage of the total.
	SplitPercentage SplitKind = "percentage"
)

// Expense is a payment made by one member on behalf of some participants.
type Expense struct {
	// ID is the unique identifier for the expense ("exp_..." TypeID).
	ID string

	// GroupID is the group this expense belongs to.
	GroupID string

	// PayerID is the member who paid.
	PayerID string

	// Amount is the total paid.
	Amount money.Money

	// Description is an optional free-text label.
	Description string

	// SplitKind records how the splits were derived.
	SplitKind SplitKind

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExpenseSplit is one participant's share of an expense.
// The shares of one expense always sum to Expense.Amount exactly.
type ExpenseSplit struct {
	ExpenseID     string
	ParticipantID string
	Share         money.Money
}

// SplitSpec describes how to split an expense.
//
// For SplitEqual only Participants is used. For SplitExact, Shares maps each
// participant to a minor-unit amount; for SplitPercentage, Percentages maps
// each participant to a percentage. Participants is ignored for the keyed kinds.
type SplitSpec struct {
	Kind         SplitKind
	Participants []string
	Shares       map[string]int64
	Percentages  map[string]decimal.Decimal
}

// EqualSplit is shorthand for an equal split among participants.
func EqualSplit(participants ...string) SplitSpec {
	return SplitSpec{Kind: SplitEqual, Participants: participants}
}

// ExactSplit is shorthand for an exact split.
func ExactSplit(shares map[string]int64) SplitSpec {
	return SplitSpec{Kind: SplitExact, Shares: shares}
}

// PercentageSplit is shorthand for a percentage split.
func PercentageSplit(percentages map[string]decimal.Decimal) SplitSpec {
	return SplitSpec{Kind: SplitPercentage, Percentages: percentages}
}
