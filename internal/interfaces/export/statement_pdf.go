package export

import (
	"bytes"
	"fmt"
	"time"

	appfin "github.com/erp/receivables/internal/application/finance"
	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
)

// PDFContentType is the MIME type of a statement
const PDFContentType = "application/pdf"

// ContractStatementPDF renders a contract with its installments and the receipts
// posted against each one. Core fonts are Latin-1 only, so text that cannot be
// encoded is passed through the translator and may lose characters.
func ContractStatementPDF(c *appfin.ContractResponse, receipts map[uuid.UUID][]appfin.ReceiptResponse, generated time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Contract statement "+c.ContractNo, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 8, tr("Contract Statement "+c.ContractNo))
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	line := func(label, value string) {
		pdf.CellFormat(40, 6, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, tr(value), "", 1, "L", false, 0, "")
	}
	line("Title", c.Title)
	line("Customer", c.CustomerID.String())
	line("Sign date", c.SignDate)
	line("Status", c.ResolvedStatus)
	line("Currency", c.Currency)
	line("Gross amount", c.GrossAmount.StringFixed(2))
	line("Discount", fmt.Sprintf("%s %s", c.DiscountType, c.DiscountValue.String()))
	line("Net amount", c.NetAmount.StringFixed(2))
	line("Received", c.Rollup.TotalPaid.StringFixed(2))
	line("Outstanding", c.Rollup.TotalUnpaid.StringFixed(2))
	line("Generated", generated.Format("2006-01-02 15:04"))
	if c.Warning != nil {
		pdf.SetTextColor(200, 0, 0)
		line("Warning", c.Warning.Message)
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.Ln(4)

	widths := []float64{12, 26, 30, 30, 30, 30, 32}
	head := []string{"No", "Due date", "Due", "Paid", "Unpaid", "Overdue", "Status"}
	pdf.SetFont("Arial", "B", 10)
	for i, h := range head {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	for _, inst := range c.Installments {
		pdf.SetFont("Arial", "", 10)
		cells := []string{
			fmt.Sprintf("%d", inst.InstallmentNo),
			inst.DueDate,
			inst.AmountDue.StringFixed(2),
			inst.AmountPaid.StringFixed(2),
			inst.AmountUnpaid.StringFixed(2),
			fmt.Sprintf("%d", inst.OverdueDays),
			inst.Status,
		}
		for i, v := range cells {
			align := "R"
			if i == 1 || i == 6 {
				align = "C"
			}
			pdf.CellFormat(widths[i], 6, v, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "I", 8)
		for _, r := range receipts[inst.ID] {
			text := fmt.Sprintf("%s  %s %s  applied %s  %s", r.ReceivedDate, r.Amount.StringFixed(2), r.Currency,
				r.AppliedAmount.StringFixed(2), r.Method)
			if r.Note != "" {
				text += "  " + r.Note
			}
			pdf.CellFormat(widths[0], 5, "", "", 0, "", false, 0, "")
			pdf.CellFormat(0, 5, tr(text), "", 1, "L", false, 0, "")
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render statement: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write statement: %w", err)
	}
	return buf.Bytes(), nil
}
