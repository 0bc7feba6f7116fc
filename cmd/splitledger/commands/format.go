package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// parseAmount reads a major-unit amount ("12.34") in the group's currency.
func parseAmount(ctx context.Context, groupID, s string) (money.Money, error) {
	group, err := appCtx.Ledger.GetGroup(ctx, groupID)
	if err != nil {
		return money.Money{}, err
	}
	return money.Parse(s, group.Currency)
}

// splitFlags holds the flags shared by expense add and expense update.
type splitFlags struct {
	participants []string
	shares       map[string]string
	percentages  map[string]string
}

func (f *splitFlags) spec(currency string) (models.SplitSpec, error) {
	switch {
	case len(f.shares) > 0 && len(f.percentages) > 0:
		return models.SplitSpec{}, fmt.Errorf("use either --shares or --percent, not both")
	case len(f.shares) > 0:
		shares := make(map[string]int64, len(f.shares))
		for id, v := range f.shares {
			m, err := money.Parse(v, currency)
			if err != nil {
				return models.SplitSpec{}, fmt.Errorf("share for %s: %w", id, err)
			}
			shares[id] = m.Amount
		}
		return models.ExactSplit(shares), nil
	case len(f.percentages) > 0:
		pcts := make(map[string]decimal.Decimal, len(f.percentages))
		for id, v := range f.percentages {
			d, err := decimal.NewFromString(strings.TrimSuffix(strings.TrimSpace(v), "%"))
			if err != nil {
				return models.SplitSpec{}, fmt.Errorf("percentage for %s: %w", id, err)
			}
			pcts[id] = d
		}
		return models.PercentageSplit(pcts), nil
	case len(f.participants) > 0:
		return models.EqualSplit(f.participants...), nil
	}
	return models.SplitSpec{}, fmt.Errorf("one of --with, --shares or --percent is required")
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printBalances(w io.Writer, balances []models.Balance) error {
	if len(balances) == 0 {
		fmt.Fprintln(w, "All settled up.")
		return nil
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "DEBTOR\tCREDITOR\tAMOUNT")
	for _, b := range balances {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", b.DebtorID, b.CreditorID, b.Amount)
	}
	return tw.Flush()
}

func printInstructions(w io.Writer, instructions []models.SettlementInstruction) error {
	if len(instructions) == 0 {
		fmt.Fprintln(w, "Nothing to settle.")
		return nil
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "FROM\tTO\tAMOUNT")
	for _, in := range instructions {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", in.FromID, in.ToID, in.Amount)
	}
	return tw.Flush()
}
