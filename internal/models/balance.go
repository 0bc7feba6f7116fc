package models

import (
	"time"

	"github.com/mmynk/splitledger/internal/money"
)

// Balance is a directed pairwise debt: DebtorID owes CreditorID Amount.
// Stored rows always have a positive Amount and DebtorID != CreditorID.
type Balance struct {
	GroupID    string
	DebtorID   string
	CreditorID string
	Amount     money.Money
	UpdatedAt  time.Time
}

// NetPosition is a member's signed standing in a group: what they are owed
// minus what they owe. Positive means net creditor.
type NetPosition struct {
	UserID string
	Amount money.Money
}

// Pair is an unordered member pair, normalised so that A < B.
type Pair struct {
	A string
	B string
}

// NewPair returns the normalised pair for x and y.
func NewPair(x, y string) Pair {
	if y < x {
		x, y = y, x
	}
	return Pair{A: x, B: y}
}

// Signed returns the balance as an amount owed by p.A to p.B.
func (b Balance) Signed() (Pair, money.Money) {
	p := NewPair(b.DebtorID, b.CreditorID)
	if b.DebtorID == p.A {
		return p, b.Amount
	}
	return p, b.Amount.Neg()
}

// Discrepancy reports a pair whose stored balance differs from the balance
// recomputed from history. Stored and Expected are signed amounts owed by
// Pair.A to Pair.B; Delta is Expected - Stored.
type Discrepancy struct {
	GroupID  string
	Pair     Pair
	Stored   money.Money
	Expected money.Money
	Delta    money.Money
}
