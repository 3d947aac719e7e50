package export

import (
	"bytes"
	"testing"
	"time"

	appfin "github.com/erp/receivables/internal/application/finance"
	"github.com/erp/receivables/internal/domain/finance"
	"github.com/erp/receivables/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleDashboard(view finance.ViewMode) *appfin.DashboardResponse {
	return &appfin.DashboardResponse{
		View:            string(view),
		CurrencyMode:    "fixed",
		DisplayCurrency: "TWD",
		ContractRows: []appfin.ContractRowResponse{{
			ContractNo:       "HT-001",
			Title:            "Annual service",
			CustomerName:     "Acme Trading",
			SignDate:         "2024-04-20",
			NetAmount:        d("9000"),
			Original:         appfin.MoneyView{Currency: "TWD", Due: d("9000"), Paid: d("3000"), Unpaid: d("6000")},
			Display:          appfin.MoneyView{Currency: "TWD", Due: d("9000"), Paid: d("3000"), Unpaid: d("6000")},
			InstallmentCount: 3,
			StatusLabel:      "執行中",
		}},
		InstallmentRows: []appfin.InstallmentRowResponse{{
			ContractNo:    "HT-001",
			CustomerName:  "Acme Trading",
			InstallmentNo: 2,
			DueDate:       "2024-06-01",
			Original:      appfin.MoneyView{Currency: "TWD", Due: d("3000"), Paid: d("0"), Unpaid: d("3000")},
			Display:       appfin.MoneyView{Currency: "TWD", Due: d("3000"), Paid: d("0"), Unpaid: d("3000")},
			StatusLabel:   "逾期",
			OverdueDays:   14,
		}},
		Totals: finance.ConvertedAmounts{Currency: valueobject.Currency("TWD"), Due: d("9000"), Paid: d("3000"), Unpaid: d("6000"), Count: 1},
		TotalsByCurrency: finance.CurrencyBuckets{
			valueobject.Currency("TWD"): {Due: d("9000"), Paid: d("3000"), Unpaid: d("6000"), Count: 1},
		},
		GroupBy: "payment_method",
		GroupTotals: []finance.GroupTotal{{
			Key:    "bank_transfer",
			Label:  "Bank transfer",
			Totals: finance.ConvertedAmounts{Currency: valueobject.Currency("TWD"), Paid: d("3000"), Count: 1},
		}},
		Total:         1,
		Degraded:      []valueobject.Currency{"JPY"},
		RatesLoadedAt: time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC),
	}
}

func openWorkbook(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func cell(t *testing.T, f *excelize.File, sheet, axis string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, axis, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	return v
}

func TestDashboardXLSX_ContractView(t *testing.T) {
	data, err := DashboardXLSX(sampleDashboard(finance.ViewContract))
	require.NoError(t, err)

	f := openWorkbook(t, data)
	assert.Equal(t, []string{SummarySheet, RowsSheet, GroupsSheet}, f.GetSheetList())

	assert.Equal(t, "contract", cell(t, f, SummarySheet, "B1"))
	assert.Equal(t, "TWD", cell(t, f, SummarySheet, "B3"))
	assert.Equal(t, "Currency", cell(t, f, SummarySheet, "A7"))
	assert.Equal(t, "6000", cell(t, f, SummarySheet, "D8"))
	assert.Equal(t, "JPY", cell(t, f, SummarySheet, "B11"))

	assert.Equal(t, "Contract No", cell(t, f, RowsSheet, "A1"))
	assert.Equal(t, "HT-001", cell(t, f, RowsSheet, "A2"))
	assert.Equal(t, "3000", cell(t, f, RowsSheet, "H2"))
	assert.Equal(t, "執行中", cell(t, f, RowsSheet, "M2"))

	assert.Equal(t, "payment_method", cell(t, f, GroupsSheet, "A1"))
	assert.Equal(t, "Bank transfer", cell(t, f, GroupsSheet, "A2"))
}

func TestDashboardXLSX_InstallmentViewWithoutGroups(t *testing.T) {
	resp := sampleDashboard(finance.ViewInstallment)
	resp.GroupTotals = nil
	data, err := DashboardXLSX(resp)
	require.NoError(t, err)

	f := openWorkbook(t, data)
	assert.Equal(t, []string{SummarySheet, RowsSheet}, f.GetSheetList())
	assert.Equal(t, "2", cell(t, f, RowsSheet, "C2"))
	assert.Equal(t, "逾期", cell(t, f, RowsSheet, "K2"))
	assert.Equal(t, "14", cell(t, f, RowsSheet, "L2"))
}

func TestDashboardXLSX_StaffView(t *testing.T) {
	userID := uuid.New()
	resp := sampleDashboard(finance.ViewStaffSummary)
	resp.StaffRows = []finance.StaffSummaryRow{
		{UserID: &userID, ContractCount: 2, Totals: finance.ConvertedAmounts{Currency: "TWD", Due: d("500")}},
		{ContractCount: 1},
	}
	data, err := DashboardXLSX(resp)
	require.NoError(t, err)

	f := openWorkbook(t, data)
	assert.Equal(t, userID.String(), cell(t, f, RowsSheet, "A2"))
	assert.Equal(t, "unassigned", cell(t, f, RowsSheet, "A3"))
}

func TestContractStatementPDF(t *testing.T) {
	instID := uuid.New()
	c := &appfin.ContractResponse{
		ID:             uuid.New(),
		ContractNo:     "HT-001",
		Title:          "Annual service",
		CustomerID:     uuid.New(),
		GrossAmount:    d("10000"),
		DiscountType:   "amount",
		DiscountValue:  d("1000"),
		NetAmount:      d("9000"),
		Currency:       "TWD",
		SignDate:       "2024-04-20",
		ResolvedStatus: "active",
		Rollup:         finance.Rollup{TotalDue: d("9000"), TotalPaid: d("1000"), TotalUnpaid: d("8000"), InstallmentCount: 1},
		Installments: []appfin.InstallmentResponse{{
			ID: instID, InstallmentNo: 1, DueDate: "2024-05-01",
			AmountDue: d("9000"), AmountPaid: d("1000"), AmountUnpaid: d("8000"), Status: "partially_received",
		}},
		Warning: &appfin.WarningResponse{Code: "BALANCE_MISMATCH", Message: "installments do not add up to the net amount"},
	}
	receipts := map[uuid.UUID][]appfin.ReceiptResponse{
		instID: {{Amount: d("1000"), Currency: "TWD", AppliedAmount: d("1000"), ReceivedDate: "2024-05-03", Method: "cash", Note: "front desk"}},
	}

	data, err := ContractStatementPDF(c, receipts, time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
	assert.Greater(t, len(data), 500)
}
