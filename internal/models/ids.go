package models

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

// ID prefixes. Expense and settlement IDs are K-sortable TypeIDs in the
// format "prefix_suffix", so listing by ID follows creation order.
const (
	PrefixExpense    = "exp"
	PrefixSettlement = "stl"
)

// NewExpenseID generates a new expense identifier.
func NewExpenseID() string { return newID(PrefixExpense) }

// NewSettlementID generates a new settlement identifier.
func NewSettlementID() string { return newID(PrefixSettlement) }

func newID(prefix string) string {
	tid, err := typeid.Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("models: invalid id prefix %q: %v", prefix, err))
	}
	return tid.String()
}
