package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/receivables/internal/domain/finance"
	"github.com/erp/receivables/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Tolerance used by the status predicates; mirrors finance.Epsilon
const sqlEpsilon = "0.00001"

// Installment status predicates over alias i. Each one is the SQL form of
// finance.ResolveInstallmentStatus for exactly one state.
var (
	sqlReceived  = "(i.amount_due > 0 AND i.amount_due - i.amount_paid <= " + sqlEpsilon + ")"
	sqlNotRecv   = "NOT " + sqlReceived
	sqlNoPayment = "i.amount_paid <= " + sqlEpsilon
)

const sqlResolvedContractStatus = "(CASE WHEN c.manual_status <> '' THEN c.manual_status ELSE c.status END)"

const sqlUnpaid = "(CASE WHEN i.amount_due > i.amount_paid THEN i.amount_due - i.amount_paid ELSE 0 END)"

// GormDashboardQueryRepository implements finance.DashboardQueryRepository using GORM.
// Money is summed per currency in SQL and never converted here.
type GormDashboardQueryRepository struct {
	db *gorm.DB
}

// NewGormDashboardQueryRepository creates a new GormDashboardQueryRepository
func NewGormDashboardQueryRepository(db *gorm.DB) *GormDashboardQueryRepository {
	return &GormDashboardQueryRepository{db: db}
}

// AmountsResult is the scan target of the per-currency sums
type AmountsResult struct {
	Currency string
	Due      decimal.Decimal
	Paid     decimal.Decimal
	Unpaid   decimal.Decimal
	Cnt      int64
}

func (a AmountsResult) amounts() finance.Amounts {
	return finance.Amounts{Due: a.Due, Paid: a.Paid, Unpaid: a.Unpaid, Count: a.Cnt}
}

// ContractRows returns one page of the contract view, newest contract first
func (r *GormDashboardQueryRepository) ContractRows(ctx context.Context, f finance.DashboardFilter) ([]finance.ContractRow, int64, error) {
	if f.StatusMatchesNothing() {
		return []finance.ContractRow{}, 0, nil
	}

	var total int64
	if err := r.contractQuery(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	type contractResult struct {
		ID           uuid.UUID
		ContractNo   string
		Title        string
		CustomerID   uuid.UUID
		CustomerName string
		CustomerCode string
		SalesUserID  *uuid.UUID
		OwnerUserID  *uuid.UUID
		Currency     string
		NetAmount    decimal.Decimal
		Due          decimal.Decimal
		Paid         decimal.Decimal
		Unpaid       decimal.Decimal
		Cnt          int64
		Status       string
		ManualStatus string
		SignDate     time.Time
		CreatedAt    time.Time
	}

	sums := r.db.Table("installments").
		Select(`contract_id,
			SUM(amount_due) AS due,
			SUM(amount_paid) AS paid,
			SUM(CASE WHEN amount_due > amount_paid THEN amount_due - amount_paid ELSE 0 END) AS unpaid,
			COUNT(*) AS cnt`).
		Where("lifecycle = ?", finance.LifecycleActive).
		Group("contract_id")

	var results []contractResult
	err := r.contractQuery(ctx, f).
		Select(`c.id, c.contract_no, c.title, c.customer_id,
			COALESCE(cu.name, '') AS customer_name,
			COALESCE(cu.code, '') AS customer_code,
			c.sales_user_id, cu.owner_user_id,
			c.currency, c.net_amount,
			COALESCE(s.due, 0) AS due,
			COALESCE(s.paid, 0) AS paid,
			COALESCE(s.unpaid, 0) AS unpaid,
			COALESCE(s.cnt, 0) AS cnt,
			c.status, c.manual_status, c.sign_date, c.created_at`).
		Joins("LEFT JOIN (?) AS s ON s.contract_id = c.id", sums).
		Order("c.id DESC").
		Offset(f.Offset()).
		Limit(f.PageSize).
		Scan(&results).Error
	if err != nil {
		return nil, 0, err
	}

	rows := make([]finance.ContractRow, len(results))
	for i, res := range results {
		rows[i] = finance.ContractRow{
			ContractID:       res.ID,
			ContractNo:       res.ContractNo,
			Title:            res.Title,
			CustomerID:       res.CustomerID,
			CustomerName:     res.CustomerName,
			CustomerCode:     res.CustomerCode,
			SalesUserID:      res.SalesUserID,
			OwnerUserID:      res.OwnerUserID,
			Currency:         valueobject.Currency(res.Currency),
			NetAmount:        res.NetAmount,
			AmountDue:        res.Due,
			AmountPaid:       res.Paid,
			AmountUnpaid:     res.Unpaid,
			InstallmentCount: res.Cnt,
			Status:           finance.ContractStatus(res.Status),
			ManualStatus:     res.ManualStatus,
			SignDate:         res.SignDate,
			CreatedAt:        res.CreatedAt,
		}
	}
	return rows, total, nil
}

// InstallmentRows returns one page of the installment view, ordered by due date,
// overdue days descending, then newest first
func (r *GormDashboardQueryRepository) InstallmentRows(ctx context.Context, f finance.DashboardFilter) ([]finance.InstallmentRow, int64, error) {
	if f.StatusMatchesNothing() {
		return []finance.InstallmentRow{}, 0, nil
	}

	var total int64
	if err := r.installmentQuery(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	type installmentResult struct {
		ID            uuid.UUID
		ContractID    uuid.UUID
		ContractNo    string
		CustomerID    uuid.UUID
		CustomerName  string
		SalesUserID   *uuid.UUID
		OwnerUserID   *uuid.UUID
		InstallmentNo int
		DueDate       time.Time
		Currency      string
		AmountDue     decimal.Decimal
		AmountPaid    decimal.Decimal
		ManualStatus  string
	}

	var results []installmentResult
	err := r.installmentQuery(ctx, f).
		Select(`i.id, i.contract_id, c.contract_no, c.customer_id,
			COALESCE(cu.name, '') AS customer_name,
			c.sales_user_id, cu.owner_user_id,
			i.installment_no, i.due_date, i.currency,
			i.amount_due, i.amount_paid, i.manual_status`).
		Order(installmentOrder(f.Today)).
		Offset(f.Offset()).
		Limit(f.PageSize).
		Scan(&results).Error
	if err != nil {
		return nil, 0, err
	}

	rows := make([]finance.InstallmentRow, len(results))
	for i, res := range results {
		rows[i] = finance.InstallmentRow{
			InstallmentID: res.ID,
			ContractID:    res.ContractID,
			ContractNo:    res.ContractNo,
			CustomerID:    res.CustomerID,
			CustomerName:  res.CustomerName,
			SalesUserID:   res.SalesUserID,
			OwnerUserID:   res.OwnerUserID,
			InstallmentNo: res.InstallmentNo,
			DueDate:       res.DueDate,
			Currency:      valueobject.Currency(res.Currency),
			AmountDue:     res.AmountDue,
			AmountPaid:    res.AmountPaid,
			ManualStatus:  res.ManualStatus,
		}
	}
	return rows, total, nil
}

// Totals sums every installment matching the filter, per installment currency
func (r *GormDashboardQueryRepository) Totals(ctx context.Context, f finance.DashboardFilter) (finance.CurrencyBuckets, error) {
	buckets := finance.CurrencyBuckets{}
	if f.StatusMatchesNothing() {
		return buckets, nil
	}

	var results []AmountsResult
	err := r.scopedInstallments(ctx, f).
		Select(`i.currency AS currency,
			COALESCE(SUM(i.amount_due), 0) AS due,
			COALESCE(SUM(i.amount_paid), 0) AS paid,
			COALESCE(SUM(` + sqlUnpaid + `), 0) AS unpaid,
			COUNT(i.id) AS cnt`).
		Group("i.currency").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	for _, res := range results {
		buckets.Add(valueobject.Currency(res.Currency), res.amounts())
	}
	return buckets, nil
}

// GroupTotals sums per (group key, currency). Receipt based groupings sum
// collected receipt amounts in the receipt currency.
func (r *GormDashboardQueryRepository) GroupTotals(ctx context.Context, f finance.DashboardFilter) ([]finance.GroupBucket, error) {
	if f.GroupBy == finance.GroupByNone || f.StatusMatchesNothing() {
		return []finance.GroupBucket{}, nil
	}

	type groupResult struct {
		GroupKey string
		AmountsResult
	}

	var (
		results []groupResult
		err     error
	)
	if f.GroupBy.IsReceiptBased() {
		key := r.groupKey(f.GroupBy)
		q := r.scopedInstallments(ctx, f).
			Joins("JOIN receipts r ON r.installment_id = i.id")
		if f.DateType == finance.DateTypeReceiptDate {
			q = receiptDateBounds(q, "r", f.Range)
		}
		err = q.Select(key + ` AS group_key,
				r.currency AS currency,
				0 AS due,
				COALESCE(SUM(r.amount), 0) AS paid,
				0 AS unpaid,
				COUNT(r.id) AS cnt`).
			Group(key).
			Group("r.currency").
			Scan(&results).Error
	} else {
		key := r.groupKey(f.GroupBy)
		err = r.scopedInstallments(ctx, f).
			Select(key + ` AS group_key,
				i.currency AS currency,
				COALESCE(SUM(i.amount_due), 0) AS due,
				COALESCE(SUM(i.amount_paid), 0) AS paid,
				COALESCE(SUM(` + sqlUnpaid + `), 0) AS unpaid,
				COUNT(i.id) AS cnt`).
			Group(key).
			Group("i.currency").
			Scan(&results).Error
	}
	if err != nil {
		return nil, err
	}

	out := make([]finance.GroupBucket, len(results))
	for i, res := range results {
		out[i] = finance.GroupBucket{
			Key:      res.GroupKey,
			Currency: valueobject.Currency(res.Currency),
			Amounts:  res.amounts(),
		}
	}
	return out, nil
}

// StaffSummary sums contract amounts per signer, or per owner when the focus role is owner
func (r *GormDashboardQueryRepository) StaffSummary(ctx context.Context, f finance.DashboardFilter) ([]finance.StaffBucket, error) {
	if f.StatusMatchesNothing() {
		return []finance.StaffBucket{}, nil
	}

	userCol := "c.sales_user_id"
	if f.FocusRole == finance.FocusOwner {
		userCol = "cu.owner_user_id"
	}
	key := fmt.Sprintf("COALESCE(CAST(%s AS TEXT), '')", userCol)

	type staffResult struct {
		UserKey       string
		ContractCount int64
		AmountsResult
	}

	var results []staffResult
	err := r.scopedInstallments(ctx, f).
		Select(key + ` AS user_key,
			i.currency AS currency,
			COUNT(DISTINCT c.id) AS contract_count,
			COALESCE(SUM(i.amount_due), 0) AS due,
			COALESCE(SUM(i.amount_paid), 0) AS paid,
			COALESCE(SUM(` + sqlUnpaid + `), 0) AS unpaid,
			COUNT(i.id) AS cnt`).
		Group(key).
		Group("i.currency").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	out := make([]finance.StaffBucket, 0, len(results))
	for _, res := range results {
		b := finance.StaffBucket{
			Currency:      valueobject.Currency(res.Currency),
			ContractCount: res.ContractCount,
			Amounts:       res.amounts(),
		}
		if res.UserKey != "" {
			id, err := uuid.Parse(res.UserKey)
			if err != nil {
				return nil, fmt.Errorf("staff summary: bad user id %q: %w", res.UserKey, err)
			}
			b.UserID = &id
		}
		out = append(out, b)
	}
	return out, nil
}

// contractQuery is the filtered contract set of the contract view
func (r *GormDashboardQueryRepository) contractQuery(ctx context.Context, f finance.DashboardFilter) *gorm.DB {
	q := r.db.WithContext(ctx).
		Table("contracts AS c").
		Joins("LEFT JOIN customers cu ON cu.id = c.customer_id").
		Where("c.lifecycle = ?", finance.LifecycleActive)
	q = applyCommonFilters(q, f)
	if f.DateType == finance.DateTypeReceiptDate && hasBounds(f.Range) {
		q = q.Where("EXISTS (?)", receiptDateBounds(
			r.db.Table("receipts r2").Select("1").Where("r2.contract_id = c.id"), "r2", f.Range))
	}
	return applyContractStatus(q, f.Status)
}

// installmentQuery is the filtered installment set of the installment view
func (r *GormDashboardQueryRepository) installmentQuery(ctx context.Context, f finance.DashboardFilter) *gorm.DB {
	q := r.installmentBase(ctx, f)
	if f.DateType == finance.DateTypeReceiptDate && hasBounds(f.Range) {
		q = q.Where("EXISTS (?)", receiptDateBounds(
			r.db.Table("receipts r2").Select("1").Where("r2.installment_id = i.id"), "r2", f.Range))
	}
	if f.Status != "" {
		cond, args := installmentStatusPredicate(finance.InstallmentStatus(f.Status), f.Today)
		q = q.Where(cond, args...)
	}
	return q
}

// scopedInstallments is the installment set behind totals and groupings.
// The status filter and receipt date semantics follow the active view.
func (r *GormDashboardQueryRepository) scopedInstallments(ctx context.Context, f finance.DashboardFilter) *gorm.DB {
	if f.View == finance.ViewInstallment {
		return r.installmentQuery(ctx, f)
	}
	q := r.installmentBase(ctx, f)
	if f.DateType == finance.DateTypeReceiptDate && hasBounds(f.Range) {
		q = q.Where("EXISTS (?)", receiptDateBounds(
			r.db.Table("receipts r2").Select("1").Where("r2.contract_id = c.id"), "r2", f.Range))
	}
	return applyContractStatus(q, f.Status)
}

func (r *GormDashboardQueryRepository) installmentBase(ctx context.Context, f finance.DashboardFilter) *gorm.DB {
	q := r.db.WithContext(ctx).
		Table("installments AS i").
		Joins("JOIN contracts c ON c.id = i.contract_id").
		Joins("LEFT JOIN customers cu ON cu.id = c.customer_id").
		Where("i.lifecycle = ? AND c.lifecycle = ?", finance.LifecycleActive, finance.LifecycleActive)
	return applyCommonFilters(q, f)
}

func (r *GormDashboardQueryRepository) groupKey(g finance.GroupBy) string {
	switch g {
	case finance.GroupBySigner:
		return "COALESCE(CAST(c.sales_user_id AS TEXT), '')"
	case finance.GroupByOwner:
		return "COALESCE(CAST(cu.owner_user_id AS TEXT), '')"
	case finance.GroupBySettlement:
		return fmt.Sprintf("(CASE WHEN %s = '%s' THEN '%s' ELSE '%s' END)",
			sqlResolvedContractStatus, finance.ContractStatusSettled,
			finance.ContractFilterSettled, finance.ContractFilterUnsettled)
	case finance.GroupByCreatedMonth:
		return monthExpr(r.db, "c.created_at")
	case finance.GroupByReceiptMonth:
		return monthExpr(r.db, "r.received_date")
	case finance.GroupByPaymentMethod:
		return "r.method"
	}
	return "''"
}

// applyCommonFilters adds the customer, user and sign date conditions shared by every view
func applyCommonFilters(q *gorm.DB, f finance.DashboardFilter) *gorm.DB {
	if f.Keyword != "" {
		like := containsPattern(f.Keyword)
		q = q.Where("("+containsMatch(q, "cu.name")+" OR "+containsMatch(q, "cu.code")+
			" OR "+containsMatch(q, "cu.mobile")+" OR "+containsMatch(q, "c.contract_no")+")",
			like, like, like, like)
	}
	if f.CustomerGroup != "" {
		q = q.Where(containsMatch(q, "cu.customer_group"), containsPattern(f.CustomerGroup))
	}
	if f.ActivityTag != "" {
		q = q.Where("cu.activity_tag = ?", f.ActivityTag)
	}

	switch role, ids := f.UserScope(); role {
	case finance.FocusSales:
		q = q.Where("c.sales_user_id IN ?", ids)
	case finance.FocusOwner:
		q = q.Where("cu.owner_user_id IN ?", ids)
	}

	if f.FocusUserID != nil {
		switch f.FocusRole {
		case finance.FocusOwner:
			q = q.Where("cu.owner_user_id = ?", *f.FocusUserID)
		default:
			q = q.Where("c.sales_user_id = ?", *f.FocusUserID)
		}
	}

	if f.DateType != finance.DateTypeReceiptDate {
		if !f.Range.From.IsZero() {
			q = q.Where("c.sign_date >= ?", f.Range.From)
		}
		if !f.Range.To.IsZero() {
			q = q.Where("c.sign_date <= ?", f.Range.To)
		}
	}
	return q
}

func applyContractStatus(q *gorm.DB, status string) *gorm.DB {
	switch status {
	case finance.ContractFilterSettled:
		return q.Where(sqlResolvedContractStatus+" = ?", finance.ContractStatusSettled)
	case finance.ContractFilterUnsettled:
		return q.Where(sqlResolvedContractStatus+" <> ?", finance.ContractStatusSettled)
	case "":
		return q
	}
	return q.Where("1 = 0")
}

// installmentStatusPredicate returns the condition selecting exactly the rows
// that resolve to status as of today
func installmentStatusPredicate(status finance.InstallmentStatus, today time.Time) (string, []interface{}) {
	unpaid := sqlNotRecv + " AND " + sqlNoPayment
	switch status {
	case finance.InstallmentStatusReceived:
		return sqlReceived, nil
	case finance.InstallmentStatusPartiallyReceived:
		return sqlNotRecv + " AND i.amount_paid > " + sqlEpsilon, nil
	case finance.InstallmentStatusDunning:
		return unpaid + " AND i.manual_status = ?", []interface{}{finance.InstallmentStatusDunning}
	case finance.InstallmentStatusOverdue:
		return unpaid + " AND i.manual_status <> ? AND i.due_date < ?",
			[]interface{}{finance.InstallmentStatusDunning, today}
	case finance.InstallmentStatusPending:
		return unpaid + " AND i.manual_status <> ? AND i.due_date >= ?",
			[]interface{}{finance.InstallmentStatusDunning, today}
	}
	return "1 = 0", nil
}

// installmentOrder sorts by due date, then rows carrying overdue days, then id.
// Rows sharing a due date differ in overdue days only by whether they are settled.
// gorm discards an OrderBy expression once plain columns merge into it, so this stays one expression.
func installmentOrder(today time.Time) clause.OrderBy {
	return clause.OrderBy{Expression: clause.Expr{
		SQL:                "i.due_date ASC, (CASE WHEN " + sqlNotRecv + " AND i.due_date < ? THEN 1 ELSE 0 END) DESC, i.id DESC",
		Vars:               []interface{}{today},
		WithoutParentheses: true,
	}}
}

func hasBounds(tr finance.TimeRange) bool {
	return !tr.From.IsZero() || !tr.To.IsZero()
}

func receiptDateBounds(q *gorm.DB, alias string, tr finance.TimeRange) *gorm.DB {
	if !tr.From.IsZero() {
		q = q.Where(alias+".received_date >= ?", tr.From)
	}
	if !tr.To.IsZero() {
		q = q.Where(alias+".received_date <= ?", tr.To)
	}
	return q
}

var _ finance.DashboardQueryRepository = (*GormDashboardQueryRepository)(nil)
