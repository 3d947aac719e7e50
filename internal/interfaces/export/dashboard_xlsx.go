// Package export renders receivables data as downloadable documents.
package export

import (
	"bytes"
	"fmt"

	appfin "github.com/erp/receivables/internal/application/finance"
	"github.com/erp/receivables/internal/domain/finance"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	SummarySheet = "Summary"
	RowsSheet    = "Rows"
	GroupsSheet  = "Groups"
)

// XLSXContentType is the MIME type of a workbook
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DashboardXLSX renders a dashboard result as a workbook with a summary sheet,
// one sheet of rows for the selected view and, when grouped, a group sheet.
func DashboardXLSX(resp *appfin.DashboardResponse) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return nil, err
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	w := &sheetWriter{f: f, money: money, header: header}

	w.sheet = SummarySheet
	w.row("View", resp.View)
	w.row("Currency mode", resp.CurrencyMode)
	w.row("Display currency", resp.DisplayCurrency)
	w.row("Rates loaded at", resp.RatesLoadedAt.Format("2006-01-02 15:04:05"))
	w.row("Rows", resp.Total)
	w.next++
	w.headerRow("Currency", "Due", "Paid", "Unpaid", "Count")
	w.row(resp.Totals.Currency.String(), resp.Totals.Due, resp.Totals.Paid, resp.Totals.Unpaid, resp.Totals.Count)
	for _, c := range resp.TotalsByCurrency.Currencies() {
		a := resp.TotalsByCurrency[c]
		w.row(c.String(), a.Due, a.Paid, a.Unpaid, a.Count)
	}
	if len(resp.Degraded) > 0 {
		w.next++
		codes := make([]any, 0, len(resp.Degraded)+1)
		codes = append(codes, "Converted at default rate")
		for _, c := range resp.Degraded {
			codes = append(codes, c.String())
		}
		w.row(codes...)
	}

	if _, err := f.NewSheet(RowsSheet); err != nil {
		return nil, err
	}
	w.sheet, w.next = RowsSheet, 0
	switch finance.ViewMode(resp.View) {
	case finance.ViewInstallment:
		w.headerRow("Contract No", "Customer", "No", "Due Date", "Currency", "Due", "Paid", "Unpaid",
			resp.DisplayCurrency+" Due", resp.DisplayCurrency+" Unpaid", "Status", "Overdue Days")
		for _, r := range resp.InstallmentRows {
			w.row(r.ContractNo, r.CustomerName, r.InstallmentNo, r.DueDate, r.Original.Currency,
				r.Original.Due, r.Original.Paid, r.Original.Unpaid, r.Display.Due, r.Display.Unpaid,
				r.StatusLabel, r.OverdueDays)
		}
	case finance.ViewStaffSummary:
		w.headerRow("User", "Contracts", "Currency", "Due", "Paid", "Unpaid")
		for _, r := range resp.StaffRows {
			user := "unassigned"
			if r.UserID != nil {
				user = r.UserID.String()
			}
			w.row(user, r.ContractCount, r.Totals.Currency.String(), r.Totals.Due, r.Totals.Paid, r.Totals.Unpaid)
		}
	default:
		w.headerRow("Contract No", "Title", "Customer", "Sign Date", "Currency", "Net Amount", "Due", "Paid",
			"Unpaid", resp.DisplayCurrency+" Due", resp.DisplayCurrency+" Unpaid", "Installments", "Status")
		for _, r := range resp.ContractRows {
			w.row(r.ContractNo, r.Title, r.CustomerName, r.SignDate, r.Original.Currency, r.NetAmount,
				r.Original.Due, r.Original.Paid, r.Original.Unpaid, r.Display.Due, r.Display.Unpaid,
				r.InstallmentCount, r.StatusLabel)
		}
	}

	if len(resp.GroupTotals) > 0 {
		if _, err := f.NewSheet(GroupsSheet); err != nil {
			return nil, err
		}
		w.sheet, w.next = GroupsSheet, 0
		w.headerRow(resp.GroupBy, "Currency", "Due", "Paid", "Unpaid", "Count")
		for _, g := range resp.GroupTotals {
			w.row(g.Label, g.Totals.Currency.String(), g.Totals.Due, g.Totals.Paid, g.Totals.Unpaid, g.Totals.Count)
		}
	}
	if w.err != nil {
		return nil, w.err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetWriter appends rows to one sheet and keeps the first error
type sheetWriter struct {
	f      *excelize.File
	sheet  string
	next   int
	money  int
	header int
	err    error
}

func (w *sheetWriter) row(values ...any) {
	w.next++
	for i, v := range values {
		if w.err != nil {
			return
		}
		cell, err := excelize.CoordinatesToCellName(i+1, w.next)
		if err != nil {
			w.err = err
			return
		}
		if d, ok := v.(decimal.Decimal); ok {
			w.err = w.f.SetCellFloat(w.sheet, cell, d.InexactFloat64(), -1, 64)
			if w.err == nil {
				w.err = w.f.SetCellStyle(w.sheet, cell, cell, w.money)
			}
			continue
		}
		w.err = w.f.SetCellValue(w.sheet, cell, v)
	}
}

func (w *sheetWriter) headerRow(titles ...string) {
	values := make([]any, len(titles))
	for i, t := range titles {
		values[i] = t
	}
	w.row(values...)
	if w.err != nil || len(titles) == 0 {
		return
	}
	last, err := excelize.CoordinatesToCellName(len(titles), w.next)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetCellStyle(w.sheet, fmt.Sprintf("A%d", w.next), last, w.header)
}
