// Package simplify turns net positions into a short list of payments.
package simplify

import (
	"sort"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

type party struct {
	id        string
	remaining money.Money
}

// Simplify returns payment instructions that settle every net position.
//
// Algorithm (greedy matching):
//   - Creditors (net > 0) and debtors (net < 0) are each sorted by amount,
//     largest first, ties broken by ascending user ID. Zero positions are ignored.
//   - The largest remaining debtor pays the largest remaining creditor
//     min(debt, credit); whichever side reaches zero is dropped.
//
// The result has at most n-1 entries for n non-zero positions and its
// amounts sum to the total of the positive positions. It is not guaranteed
// to be the smallest possible set of payments.
func Simplify(positions []models.NetPosition) []models.SettlementInstruction {
	var creditors, debtors []party
	for _, p := range positions {
		switch {
		case p.Amount.IsPositive():
			creditors = append(creditors, party{id: p.UserID, remaining: p.Amount})
		case p.Amount.IsNegative():
			debtors = append(debtors, party{id: p.UserID, remaining: p.Amount.Neg()})
		}
	}
	sortParties(creditors)
	sortParties(debtors)

	var instructions []models.SettlementInstruction
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		debtor, creditor := &debtors[i], &creditors[j]

		amount := debtor.remaining.Min(creditor.remaining)
		if amount.IsPositive() {
			instructions = append(instructions, models.SettlementInstruction{
				FromID: debtor.id,
				ToID:   creditor.id,
				Amount: amount,
			})
		}

		debtor.remaining = debtor.remaining.Sub(amount)
		creditor.remaining = creditor.remaining.Sub(amount)

		if debtor.remaining.IsZero() {
			i++
		}
		if creditor.remaining.IsZero() {
			j++
		}
	}
	return instructions
}

func sortParties(parties []party) {
	sort.Slice(parties, func(a, b int) bool {
		if c := parties[a].remaining.Cmp(parties[b].remaining); c != 0 {
			return c > 0
		}
		return parties[a].id < parties[b].id
	})
}
