package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/receivables/internal/domain/finance"
	"github.com/erp/receivables/internal/domain/shared"
	"github.com/erp/receivables/internal/domain/shared/valueobject"
	"github.com/erp/receivables/internal/infrastructure/logger"
	"github.com/erp/receivables/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MaxExportRows caps the rows fetched for a spreadsheet export
const MaxExportRows = 5000

// DashboardService answers the receivables dashboard. Sums come back per
// currency from the query layer and are converted here, bucket by bucket.
type DashboardService struct {
	queries finance.DashboardQueryRepository
	rates   finance.RateSupplier
	clock   shared.Clock
	record  valueobject.Currency
	metrics *telemetry.FinanceMetrics
}

// NewDashboardService creates a new DashboardService
func NewDashboardService(
	queries finance.DashboardQueryRepository,
	rates finance.RateSupplier,
	clock shared.Clock,
	record valueobject.Currency,
) *DashboardService {
	return &DashboardService{queries: queries, rates: rates, clock: clock, record: record}
}

// SetMetrics sets the metrics sink
func (s *DashboardService) SetMetrics(m *telemetry.FinanceMetrics) {
	s.metrics = m
}

// BuildFilter validates a request and turns it into a normalized filter
func (s *DashboardService) BuildFilter(req DashboardRequest) (finance.DashboardFilter, error) {
	from, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return finance.DashboardFilter{}, err
	}
	to, err := parseDate("end_date", req.EndDate)
	if err != nil {
		return finance.DashboardFilter{}, err
	}
	sales, err := parseUUIDs("sales_user_ids", req.SalesUserIDs)
	if err != nil {
		return finance.DashboardFilter{}, err
	}
	owners, err := parseUUIDs("owner_user_ids", req.OwnerUserIDs)
	if err != nil {
		return finance.DashboardFilter{}, err
	}
	f := finance.DashboardFilter{
		View:          finance.ViewMode(req.View),
		Keyword:       req.Keyword,
		CustomerGroup: req.CustomerGroup,
		ActivityTag:   req.ActivityTag,
		SalesUserIDs:  sales,
		OwnerUserIDs:  owners,
		Status:        req.Status,
		DateType:      finance.DateType(req.DateType),
		Period:        finance.Period(req.Period),
		Range:         finance.TimeRange{From: from, To: to},
		FocusRole:     finance.FocusRole(req.FocusRole),
		GroupBy:       finance.GroupBy(req.GroupBy),
		CurrencyMode:  finance.ParseRateMode(req.CurrencyMode),
		Page:          req.Page,
		PageSize:      req.PageSize,
	}
	if req.FocusUserID != "" {
		focus, err := parseUUIDs("focus_user_id", []string{req.FocusUserID})
		if err != nil {
			return finance.DashboardFilter{}, err
		}
		f.FocusUserID = &focus[0]
	}
	return f.Normalize(s.clock.Now())
}

// Query runs the dashboard for one page
func (s *DashboardService) Query(ctx context.Context, req DashboardRequest) (*DashboardResponse, error) {
	f, err := s.BuildFilter(req)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, f)
}

// QueryAll runs the dashboard across pages, up to MaxExportRows rows
func (s *DashboardService) QueryAll(ctx context.Context, req DashboardRequest) (*DashboardResponse, error) {
	req.Page = 1
	req.PageSize = finance.MaxPageSize
	f, err := s.BuildFilter(req)
	if err != nil {
		return nil, err
	}
	resp, err := s.run(ctx, f)
	if err != nil {
		return nil, err
	}
	for page := 2; page <= resp.TotalPages && rowCount(resp) < MaxExportRows; page++ {
		f.Page = page
		next, err := s.run(ctx, f)
		if err != nil {
			return nil, err
		}
		resp.ContractRows = append(resp.ContractRows, next.ContractRows...)
		resp.InstallmentRows = append(resp.InstallmentRows, next.InstallmentRows...)
		resp.StaffRows = append(resp.StaffRows, next.StaffRows...)
	}
	resp.Page = 1
	resp.PageSize = rowCount(resp)
	return resp, nil
}

func rowCount(r *DashboardResponse) int {
	return len(r.ContractRows) + len(r.InstallmentRows) + len(r.StaffRows)
}

func (s *DashboardService) run(ctx context.Context, f finance.DashboardFilter) (resp *DashboardResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "dashboard", "query",
		attribute.String("dashboard.view", string(f.View)),
		attribute.String("dashboard.group_by", string(f.GroupBy)),
		attribute.String("dashboard.currency_mode", f.CurrencyMode.String()),
	)
	defer span.End()
	start := time.Now()
	defer func() {
		telemetry.RecordError(span, err)
		s.metrics.ObserveDashboard(string(f.View), err, time.Since(start))
	}()

	table, err := s.rates.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("load exchange rates: %w", err)
	}
	conv := finance.NewConverter(table, s.record)
	mode := f.CurrencyMode

	var (
		contractRows    []finance.ContractRow
		installmentRows []finance.InstallmentRow
		staffBuckets    []finance.StaffBucket
		groupBuckets    []finance.GroupBucket
		totals          finance.CurrencyBuckets
		total           int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		switch f.View {
		case finance.ViewInstallment:
			installmentRows, total, err = s.queries.InstallmentRows(gctx, f)
		case finance.ViewStaffSummary:
			staffBuckets, err = s.queries.StaffSummary(gctx, f)
		default:
			contractRows, total, err = s.queries.ContractRows(gctx, f)
		}
		return err
	})
	g.Go(func() error {
		var err error
		totals, err = s.queries.Totals(gctx, f)
		return err
	})
	if f.GroupBy != finance.GroupByNone {
		g.Go(func() error {
			var err error
			groupBuckets, err = s.queries.GroupTotals(gctx, f)
			return err
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}

	resp = &DashboardResponse{
		View:             string(f.View),
		CurrencyMode:     mode.String(),
		DisplayCurrency:  conv.TargetCurrency(mode).String(),
		TotalsByCurrency: totals,
		GroupBy:          string(f.GroupBy),
		Page:             f.Page,
		PageSize:         f.PageSize,
		RatesLoadedAt:    table.LoadedAt(),
	}
	if resp.TotalsByCurrency == nil {
		resp.TotalsByCurrency = finance.CurrencyBuckets{}
	}
	resp.Totals = resp.TotalsByCurrency.Convert(conv, mode).Round(2)
	resp.Degraded = resp.Totals.Degraded

	switch f.View {
	case finance.ViewInstallment:
		finance.SortInstallmentRows(installmentRows, f.Today)
		resp.InstallmentRows = make([]InstallmentRowResponse, 0, len(installmentRows))
		for _, r := range installmentRows {
			resp.InstallmentRows = append(resp.InstallmentRows, toInstallmentRow(r, conv, mode, f.Today))
		}
	case finance.ViewStaffSummary:
		all := finance.AggregateStaff(staffBuckets, conv, mode)
		total = int64(len(all))
		resp.StaffRows = pageOf(all, f.Offset(), f.PageSize)
	default:
		resp.ContractRows = make([]ContractRowResponse, 0, len(contractRows))
		for _, r := range contractRows {
			resp.ContractRows = append(resp.ContractRows, toContractRow(r, conv, mode))
		}
	}
	if f.GroupBy != finance.GroupByNone {
		resp.GroupTotals = finance.AggregateGroups(f.GroupBy, groupBuckets, conv, mode)
	}
	resp.Total = total
	resp.TotalPages = int((total + int64(f.PageSize) - 1) / int64(f.PageSize))

	for _, c := range resp.Degraded {
		s.metrics.IncDegraded(c.String())
	}
	if len(resp.Degraded) > 0 {
		logger.L(ctx).Warn("Dashboard used default exchange rate",
			zap.Strings("currencies", currencyCodes(resp.Degraded)),
			zap.String("mode", mode.String()),
		)
	}
	return resp, nil
}

func pageOf[T any](rows []T, offset, size int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	end := offset + size
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

func currencyCodes(cs []valueobject.Currency) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.String()
	}
	return out
}

func displayMoney(conv *finance.Converter, mode finance.RateMode, currency valueobject.Currency, due, paid, unpaid decimal.Decimal) MoneyView {
	convert := func(d decimal.Decimal) decimal.Decimal {
		v, _ := conv.ConvertForDisplay(d, currency, mode)
		return v.Round(2)
	}
	return MoneyView{
		Currency: conv.TargetCurrency(mode).String(),
		Due:      convert(due),
		Paid:     convert(paid),
		Unpaid:   convert(unpaid),
	}
}

func toContractRow(r finance.ContractRow, conv *finance.Converter, mode finance.RateMode) ContractRowResponse {
	status := r.ResolvedStatus()
	return ContractRowResponse{
		ContractID:   r.ContractID,
		ContractNo:   r.ContractNo,
		Title:        r.Title,
		CustomerID:   r.CustomerID,
		CustomerName: r.CustomerName,
		CustomerCode: r.CustomerCode,
		SalesUserID:  r.SalesUserID,
		OwnerUserID:  r.OwnerUserID,
		NetAmount:    r.NetAmount,
		Original: MoneyView{
			Currency: r.Currency.String(),
			Due:      r.AmountDue,
			Paid:     r.AmountPaid,
			Unpaid:   r.AmountUnpaid,
		},
		Display:          displayMoney(conv, mode, r.Currency, r.AmountDue, r.AmountPaid, r.AmountUnpaid),
		InstallmentCount: r.InstallmentCount,
		Status:           status.String(),
		StatusLabel:      status.Label(),
		SignDate:         r.SignDate.Format(DateLayout),
	}
}

func toInstallmentRow(r finance.InstallmentRow, conv *finance.Converter, mode finance.RateMode, today time.Time) InstallmentRowResponse {
	status := r.Status(today)
	unpaid := r.AmountUnpaid()
	return InstallmentRowResponse{
		InstallmentID: r.InstallmentID,
		ContractID:    r.ContractID,
		ContractNo:    r.ContractNo,
		CustomerID:    r.CustomerID,
		CustomerName:  r.CustomerName,
		SalesUserID:   r.SalesUserID,
		OwnerUserID:   r.OwnerUserID,
		InstallmentNo: r.InstallmentNo,
		DueDate:       r.DueDate.Format(DateLayout),
		Original: MoneyView{
			Currency: r.Currency.String(),
			Due:      r.AmountDue,
			Paid:     r.AmountPaid,
			Unpaid:   unpaid,
		},
		Display:     displayMoney(conv, mode, r.Currency, r.AmountDue, r.AmountPaid, unpaid),
		Status:      status.String(),
		StatusLabel: status.Label(),
		OverdueDays: r.OverdueDays(today),
	}
}

// ExchangeRates returns the active rate snapshot
func (s *DashboardService) ExchangeRates(ctx context.Context) (*ExchangeRatesResponse, error) {
	table, err := s.rates.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("load exchange rates: %w", err)
	}
	return &ExchangeRatesResponse{
		Base:        table.Base().String(),
		DefaultRate: table.DefaultRate(),
		LoadedAt:    table.LoadedAt(),
		Rates:       table.Rates(),
	}, nil
}
