// Package export writes ledger data to spreadsheets for operators.
package export

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/hongminglow/vault-be/internal/models"
)

const (
	transactionsSheet = "Transactions"
	summarySheet      = "Summary"
)

var transactionHeader = []any{"Timestamp", "User", "Asset", "Action", "Amount", "Term", "Vault", "Status", "ID"}

// TransactionSource lists a user's transactions, newest first.
type TransactionSource interface {
	ListTransactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error)
}

// TransactionExporter builds a workbook with every transaction of the given
// users and a per-asset summary.
type TransactionExporter struct {
	source TransactionSource
	limit  int
}

// NewTransactionExporter creates an exporter reading at most limit rows per
// user. A non-positive limit means no limit.
func NewTransactionExporter(source TransactionSource, limit int) *TransactionExporter {
	return &TransactionExporter{source: source, limit: limit}
}

// Export writes the workbook to w and returns the number of transactions.
func (e *TransactionExporter) Export(ctx context.Context, w io.Writer, userIDs []string) (int, error) {
	var all []models.Transaction
	for _, id := range lo.Uniq(userIDs) {
		txs, err := e.source.ListTransactions(ctx, id, e.limit)
		if err != nil {
			return 0, fmt.Errorf("list transactions for %s: %w", id, err)
		}
		all = append(all, txs...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].At.Before(all[j].At) })

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", transactionsSheet); err != nil {
		return 0, fmt.Errorf("rename sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return 0, fmt.Errorf("create header style: %w", err)
	}

	if err := writeRows(f, transactionsSheet, header, transactionHeader, lo.Map(all, func(t models.Transaction, _ int) []any {
		return []any{
			t.At.UTC().Format(time.RFC3339),
			t.UserID,
			t.Asset,
			string(t.Action),
			t.Amount.InexactFloat64(),
			t.Term,
			t.VaultID,
			t.Status,
			t.ID,
		}
	})); err != nil {
		return 0, err
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return 0, fmt.Errorf("create summary sheet: %w", err)
	}
	if err := writeRows(f, summarySheet, header, []any{"Asset", "Action", "Count", "Total"}, summarize(all)); err != nil {
		return 0, err
	}

	if err := f.Write(w); err != nil {
		return 0, fmt.Errorf("write workbook: %w", err)
	}
	return len(all), nil
}

func writeRows(f *excelize.File, sheet string, headerStyle int, header []any, rows [][]any) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	last, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", last, 18)
}

type summaryKey struct {
	asset  string
	action models.Action
}

// summarize totals amounts per asset and action, ordered by asset then action.
func summarize(txs []models.Transaction) [][]any {
	groups := lo.GroupBy(txs, func(t models.Transaction) summaryKey {
		return summaryKey{asset: t.Asset, action: t.Action}
	})
	keys := lo.Keys(groups)
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].asset != keys[j].asset {
			return keys[i].asset < keys[j].asset
		}
		return keys[i].action < keys[j].action
	})
	return lo.Map(keys, func(k summaryKey, _ int) []any {
		total := lo.Reduce(groups[k], func(acc decimal.Decimal, t models.Transaction, _ int) decimal.Decimal {
			return acc.Add(t.Amount)
		}, decimal.Zero)
		return []any{k.asset, string(k.action), len(groups[k]), total.InexactFloat64()}
	})
}
