// Package report renders reconciliation results as an Excel workbook for
// operators.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mmynk/splitledger/internal/models"
)

// Sheet names.
const (
	SheetDiscrepancies = "Discrepancies"
	SheetBalances      = "Balances"
)

var (
	discrepancyHeaders = []string{"Member A", "Member B", "Stored (A owes B)", "Expected (A owes B)", "Delta", "Currency"}
	balanceHeaders     = []string{"Debtor", "Creditor", "Amount", "Currency", "Updated"}
)

// WriteReconciliation writes a workbook with one sheet listing the
// discrepancies found for group and one listing its stored balances.
// Amounts are written in major units.
func WriteReconciliation(w io.Writer, group *models.Group, discrepancies []models.Discrepancy, balances []models.Balance) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetDiscrepancies); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetBalances); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	rows := make([][]any, 0, len(discrepancies)+1)
	rows = append(rows, headerRow(discrepancyHeaders))
	for _, d := range discrepancies {
		rows = append(rows, []any{
			d.Pair.A,
			d.Pair.B,
			d.Stored.Decimal().InexactFloat64(),
			d.Expected.Decimal().InexactFloat64(),
			d.Delta.Decimal().InexactFloat64(),
			d.Delta.Currency,
		})
	}
	if err := writeRows(f, SheetDiscrepancies, rows); err != nil {
		return err
	}

	rows = make([][]any, 0, len(balances)+1)
	rows = append(rows, headerRow(balanceHeaders))
	for _, b := range balances {
		updated := ""
		if !b.UpdatedAt.IsZero() {
			updated = b.UpdatedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []any{
			b.DebtorID,
			b.CreditorID,
			b.Amount.Decimal().InexactFloat64(),
			b.Amount.Currency,
			updated,
		})
	}
	if err := writeRows(f, SheetBalances, rows); err != nil {
		return err
	}

	// The group is identified in the document properties.
	props := &excelize.DocProperties{
		Title:   fmt.Sprintf("Reconciliation of %s", group.Name),
		Subject: group.ID,
	}
	if err := f.SetDocProps(props); err != nil {
		return fmt.Errorf("failed to set document properties: %w", err)
	}

	f.SetColWidth(SheetDiscrepancies, "A", "B", 16)
	f.SetColWidth(SheetDiscrepancies, "C", "E", 20)
	f.SetColWidth(SheetBalances, "A", "B", 16)
	f.SetColWidth(SheetBalances, "E", "E", 22)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func headerRow(headers []string) []any {
	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	return row
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
