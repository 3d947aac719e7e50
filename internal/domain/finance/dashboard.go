package finance

import (
	"sort"
	"strings"
	"time"

	"github.com/erp/receivables/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ViewMode selects the row granularity of the dashboard
type ViewMode string

const (
	ViewContract     ViewMode = "contract"
	ViewInstallment  ViewMode = "installment"
	ViewStaffSummary ViewMode = "staff_summary"
)

// IsValid checks if the view is known
func (v ViewMode) IsValid() bool {
	switch v {
	case ViewContract, ViewInstallment, ViewStaffSummary:
		return true
	}
	return false
}

// DateType selects which date the range filter applies to
type DateType string

const (
	DateTypeSignDate    DateType = "sign_date"
	DateTypeReceiptDate DateType = "receipt_date"
)

// Period is a date range shortcut
type Period string

const (
	PeriodThisMonth Period = "this_month"
	PeriodLastMonth Period = "last_month"
	PeriodCustom    Period = "custom"
)

// GroupBy selects the dimension of group totals
type GroupBy string

const (
	GroupByNone          GroupBy = ""
	GroupBySigner        GroupBy = "signer"
	GroupByOwner         GroupBy = "owner"
	GroupBySettlement    GroupBy = "settlement"
	GroupByCreatedMonth  GroupBy = "created_month"
	GroupByReceiptMonth  GroupBy = "receipt_month"
	GroupByPaymentMethod GroupBy = "payment_method"
)

// IsValid checks if the grouping is known
func (g GroupBy) IsValid() bool {
	switch g {
	case GroupByNone, GroupBySigner, GroupByOwner, GroupBySettlement,
		GroupByCreatedMonth, GroupByReceiptMonth, GroupByPaymentMethod:
		return true
	}
	return false
}

// IsReceiptBased reports whether the grouping aggregates receipts instead of installments
func (g GroupBy) IsReceiptBased() bool {
	return g == GroupByReceiptMonth || g == GroupByPaymentMethod
}

// FocusRole selects which user column the focus filter matches
type FocusRole string

const (
	FocusSales FocusRole = "sales"
	FocusOwner FocusRole = "owner"
)

// Contract view status filter values
const (
	ContractFilterSettled   = "settled"
	ContractFilterUnsettled = "unsettled"
)

// Paging bounds
const (
	DefaultPageSize = 20
	MinPageSize     = 10
	MaxPageSize     = 100
)

// DashboardFilter holds every dashboard filter. All conditions are ANDed.
type DashboardFilter struct {
	View          ViewMode
	Keyword       string
	CustomerGroup string
	ActivityTag   string
	SalesUserIDs  []uuid.UUID
	OwnerUserIDs  []uuid.UUID
	Status        string
	DateType      DateType
	Period        Period
	Range         TimeRange
	FocusRole     FocusRole
	FocusUserID   *uuid.UUID
	GroupBy       GroupBy
	CurrencyMode  RateMode
	Page          int
	PageSize      int
	// Today is the calendar date overdue is measured against
	Today time.Time
}

// Normalize fills defaults, resolves period shortcuts and clamps paging
func (f DashboardFilter) Normalize(today time.Time) (DashboardFilter, error) {
	if f.View == "" {
		f.View = ViewContract
	}
	if !f.View.IsValid() {
		return f, NewInvalidInput("unknown view %q", f.View)
	}
	if !f.GroupBy.IsValid() {
		return f, NewInvalidInput("unknown group_by %q", f.GroupBy)
	}
	switch f.DateType {
	case "":
		f.DateType = DateTypeSignDate
	case DateTypeSignDate, DateTypeReceiptDate:
	default:
		return f, NewInvalidInput("unknown date_type %q", f.DateType)
	}
	switch f.FocusRole {
	case "", FocusSales, FocusOwner:
	default:
		return f, NewInvalidInput("unknown focus role %q", f.FocusRole)
	}
	if !f.CurrencyMode.IsValid() {
		f.CurrencyMode = RateModeOriginal
	}

	f.Today = DateOf(today)
	switch f.Period {
	case PeriodThisMonth:
		f.Range = monthRange(f.Today, 0)
	case PeriodLastMonth:
		f.Range = monthRange(f.Today, -1)
	case PeriodCustom, "":
	default:
		return f, NewInvalidInput("unknown period %q", f.Period)
	}
	if !f.Range.From.IsZero() {
		f.Range.From = DateOf(f.Range.From)
	}
	if !f.Range.To.IsZero() {
		f.Range.To = DateOf(f.Range.To)
	}

	f.Keyword = strings.TrimSpace(f.Keyword)
	f.CustomerGroup = strings.TrimSpace(f.CustomerGroup)
	f.ActivityTag = strings.TrimSpace(f.ActivityTag)
	f.Status = strings.TrimSpace(f.Status)

	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.PageSize <= 0:
		f.PageSize = DefaultPageSize
	case f.PageSize < MinPageSize:
		f.PageSize = MinPageSize
	case f.PageSize > MaxPageSize:
		f.PageSize = MaxPageSize
	}
	return f, nil
}

func monthRange(today time.Time, offset int) TimeRange {
	first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, offset, 0)
	return TimeRange{From: first, To: first.AddDate(0, 1, -1)}
}

// Offset returns the row offset of the current page
func (f DashboardFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// UserScope returns the user filter in effect. The sales set wins; the owner
// set only applies when no sales users were given.
func (f DashboardFilter) UserScope() (FocusRole, []uuid.UUID) {
	if len(f.SalesUserIDs) > 0 {
		return FocusSales, f.SalesUserIDs
	}
	if len(f.OwnerUserIDs) > 0 {
		return FocusOwner, f.OwnerUserIDs
	}
	return "", nil
}

// StatusMatchesNothing reports whether the status filter is a value the
// current view does not know, which yields an empty result
func (f DashboardFilter) StatusMatchesNothing() bool {
	if f.Status == "" {
		return false
	}
	switch f.View {
	case ViewInstallment:
		return !InstallmentStatus(f.Status).IsValid()
	default:
		return f.Status != ContractFilterSettled && f.Status != ContractFilterUnsettled
	}
}

// Amounts are money sums in a single currency
type Amounts struct {
	Due    decimal.Decimal `json:"due"`
	Paid   decimal.Decimal `json:"paid"`
	Unpaid decimal.Decimal `json:"unpaid"`
	Count  int64           `json:"count"`
}

// Add returns the element-wise sum
func (a Amounts) Add(b Amounts) Amounts {
	return Amounts{
		Due:    a.Due.Add(b.Due),
		Paid:   a.Paid.Add(b.Paid),
		Unpaid: a.Unpaid.Add(b.Unpaid),
		Count:  a.Count + b.Count,
	}
}

// CurrencyBuckets keeps sums apart per currency until presentation
type CurrencyBuckets map[valueobject.Currency]Amounts

// Add accumulates a into the bucket of currency
func (b CurrencyBuckets) Add(currency valueobject.Currency, a Amounts) {
	b[currency] = b[currency].Add(a)
}

// Currencies returns the bucket currencies sorted by code
func (b CurrencyBuckets) Currencies() []valueobject.Currency {
	out := make([]valueobject.Currency, 0, len(b))
	for c := range b {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ConvertedAmounts are sums presented in one currency
type ConvertedAmounts struct {
	Currency valueobject.Currency   `json:"currency"`
	Due      decimal.Decimal        `json:"due"`
	Paid     decimal.Decimal        `json:"paid"`
	Unpaid   decimal.Decimal        `json:"unpaid"`
	Count    int64                  `json:"count"`
	Degraded []valueobject.Currency `json:"degraded_currencies,omitempty"`
}

// Round rounds the money fields for presentation
func (c ConvertedAmounts) Round(places int32) ConvertedAmounts {
	c.Due = c.Due.Round(places)
	c.Paid = c.Paid.Round(places)
	c.Unpaid = c.Unpaid.Round(places)
	return c
}

// Convert converts each currency bucket separately and sums the results.
// Currencies that fell back to the default rate are listed in Degraded.
func (b CurrencyBuckets) Convert(conv *Converter, mode RateMode) ConvertedAmounts {
	out := ConvertedAmounts{
		Currency: conv.TargetCurrency(mode),
		Due:      decimal.Zero,
		Paid:     decimal.Zero,
		Unpaid:   decimal.Zero,
	}
	for _, cur := range b.Currencies() {
		a := b[cur]
		due, ok1 := conv.ConvertForDisplay(a.Due, cur, mode)
		paid, ok2 := conv.ConvertForDisplay(a.Paid, cur, mode)
		unpaid, ok3 := conv.ConvertForDisplay(a.Unpaid, cur, mode)
		out.Due = out.Due.Add(due)
		out.Paid = out.Paid.Add(paid)
		out.Unpaid = out.Unpaid.Add(unpaid)
		out.Count += a.Count
		if !(ok1 && ok2 && ok3) {
			out.Degraded = append(out.Degraded, cur)
		}
	}
	return out
}

// GroupBucket is one (group key, currency) sum as returned by the query layer
type GroupBucket struct {
	Key      string
	Currency valueobject.Currency
	Amounts
}

// GroupTotal is the converted total of one group
type GroupTotal struct {
	Key     string           `json:"key"`
	Label   string           `json:"label"`
	Totals  ConvertedAmounts `json:"totals"`
	Buckets CurrencyBuckets  `json:"buckets"`
}

// AggregateGroups folds per-currency group sums into converted group totals, ordered by key
func AggregateGroups(groupBy GroupBy, buckets []GroupBucket, conv *Converter, mode RateMode) []GroupTotal {
	byKey := make(map[string]CurrencyBuckets)
	keys := make([]string, 0)
	for _, gb := range buckets {
		cb, ok := byKey[gb.Key]
		if !ok {
			cb = CurrencyBuckets{}
			byKey[gb.Key] = cb
			keys = append(keys, gb.Key)
		}
		cb.Add(gb.Currency, gb.Amounts)
	}
	sort.Strings(keys)

	out := make([]GroupTotal, 0, len(keys))
	for _, k := range keys {
		out = append(out, GroupTotal{
			Key:     k,
			Label:   GroupLabel(groupBy, k),
			Totals:  byKey[k].Convert(conv, mode).Round(2),
			Buckets: byKey[k],
		})
	}
	return out
}

// GroupLabel returns the display label of a group key
func GroupLabel(groupBy GroupBy, key string) string {
	switch groupBy {
	case GroupBySettlement:
		if key == ContractFilterSettled {
			return "已结清"
		}
		return "未结清"
	case GroupByPaymentMethod:
		return PaymentMethod(key).Label()
	case GroupBySigner, GroupByOwner:
		if key == "" {
			return "未分配"
		}
	}
	return key
}

// StaffBucket is one (user, currency) sum of the staff summary view
type StaffBucket struct {
	UserID        *uuid.UUID
	Currency      valueobject.Currency
	ContractCount int64
	Amounts
}

// StaffSummaryRow is the converted summary of one staff member
type StaffSummaryRow struct {
	UserID        *uuid.UUID       `json:"user_id"`
	ContractCount int64            `json:"contract_count"`
	Totals        ConvertedAmounts `json:"totals"`
}

// AggregateStaff folds per-currency staff sums into one row per user,
// ordered by converted amount due, largest first
func AggregateStaff(buckets []StaffBucket, conv *Converter, mode RateMode) []StaffSummaryRow {
	type acc struct {
		userID *uuid.UUID
		count  int64
		cb     CurrencyBuckets
	}
	byUser := make(map[uuid.UUID]*acc)
	order := make([]uuid.UUID, 0)
	for _, b := range buckets {
		key := uuid.Nil
		if b.UserID != nil {
			key = *b.UserID
		}
		a, ok := byUser[key]
		if !ok {
			a = &acc{userID: b.UserID, cb: CurrencyBuckets{}}
			byUser[key] = a
			order = append(order, key)
		}
		a.count += b.ContractCount
		a.cb.Add(b.Currency, b.Amounts)
	}

	out := make([]StaffSummaryRow, 0, len(order))
	for _, k := range order {
		a := byUser[k]
		out = append(out, StaffSummaryRow{
			UserID:        a.userID,
			ContractCount: a.count,
			Totals:        a.cb.Convert(conv, mode).Round(2),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Totals.Due.GreaterThan(out[j].Totals.Due)
	})
	return out
}

// ContractRow is one contract of the contract view, money in the row's own currency
type ContractRow struct {
	ContractID       uuid.UUID
	ContractNo       string
	Title            string
	CustomerID       uuid.UUID
	CustomerName     string
	CustomerCode     string
	SalesUserID      *uuid.UUID
	OwnerUserID      *uuid.UUID
	Currency         valueobject.Currency
	NetAmount        decimal.Decimal
	AmountDue        decimal.Decimal
	AmountPaid       decimal.Decimal
	AmountUnpaid     decimal.Decimal
	InstallmentCount int64
	Status           ContractStatus
	ManualStatus     string
	SignDate         time.Time
	CreatedAt        time.Time
}

// ResolvedStatus returns the displayed status of the row
func (r ContractRow) ResolvedStatus() ContractStatus {
	return ResolveContractStatus(r.Status, r.ManualStatus)
}

// InstallmentRow is one installment of the installment view
type InstallmentRow struct {
	InstallmentID uuid.UUID
	ContractID    uuid.UUID
	ContractNo    string
	CustomerID    uuid.UUID
	CustomerName  string
	SalesUserID   *uuid.UUID
	OwnerUserID   *uuid.UUID
	InstallmentNo int
	DueDate       time.Time
	Currency      valueobject.Currency
	AmountDue     decimal.Decimal
	AmountPaid    decimal.Decimal
	ManualStatus  string
}

// AmountUnpaid returns max(0, due - paid)
func (r InstallmentRow) AmountUnpaid() decimal.Decimal {
	return decimal.Max(decimal.Zero, r.AmountDue.Sub(r.AmountPaid))
}

// Status resolves the row status as of today
func (r InstallmentRow) Status(today time.Time) InstallmentStatus {
	return ResolveInstallmentStatus(r.AmountDue, r.AmountPaid, r.ManualStatus, r.DueDate, today)
}

// OverdueDays returns days past due for unsettled rows
func (r InstallmentRow) OverdueDays(today time.Time) int {
	if r.Status(today) == InstallmentStatusReceived {
		return 0
	}
	return OverdueDays(r.DueDate, today)
}

// SortInstallmentRows orders rows by due date ascending, overdue days
// descending, then newest first
func SortInstallmentRows(rows []InstallmentRow, today time.Time) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		if da, db := a.OverdueDays(today), b.OverdueDays(today); da != db {
			return da > db
		}
		return a.InstallmentID.String() > b.InstallmentID.String()
	})
}
