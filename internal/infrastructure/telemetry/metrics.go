package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

const metricPrefix = "receivables_"

// Ledger outcomes
const (
	ResultApplied  = "applied"
	ResultRejected = "rejected"
	ResultConflict = "conflict"
	ResultError    = "error"
)

// FinanceMetrics holds the Prometheus collectors of the receivables service.
// A nil *FinanceMetrics records nothing.
type FinanceMetrics struct {
	receipts        *prometheus.CounterVec
	receiptAmount   *prometheus.CounterVec
	ledgerRetries   prometheus.Counter
	ledgerLatency   *prometheus.HistogramVec
	settlements     *prometheus.CounterVec
	dashboardTotal  *prometheus.CounterVec
	dashboardTiming *prometheus.HistogramVec
	degradedRates   *prometheus.CounterVec
	rateCache       *prometheus.CounterVec
}

// NewFinanceMetrics creates the collectors and registers them with reg
func NewFinanceMetrics(reg prometheus.Registerer) (*FinanceMetrics, error) {
	m := &FinanceMetrics{
		receipts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "ledger_receipts_total",
			Help: "Receipt applications by result and payment method",
		}, []string{"result", "method"}),
		receiptAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "ledger_receipt_amount_total",
			Help: "Sum of applied receipt amounts by receipt currency",
		}, []string{"currency"}),
		ledgerRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "ledger_retries_total",
			Help: "Ledger transactions retried after a concurrent modification",
		}),
		ledgerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricPrefix + "ledger_latency_seconds",
			Help:    "Receipt ledger latency including retries",
			Buckets: prometheus.DefBuckets,
		}, []string{"result"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "settlements_total",
			Help: "Installments and contracts reaching settled",
		}, []string{"entity"}),
		dashboardTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "dashboard_queries_total",
			Help: "Dashboard queries by view and result",
		}, []string{"view", "result"}),
		dashboardTiming: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricPrefix + "dashboard_query_seconds",
			Help:    "Dashboard query latency by view",
			Buckets: prometheus.DefBuckets,
		}, []string{"view"}),
		degradedRates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "degraded_conversions_total",
			Help: "Conversions that fell back to the default exchange rate",
		}, []string{"currency"}),
		rateCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "rate_cache_total",
			Help: "Exchange rate snapshot cache lookups by outcome",
		}, []string{"outcome"}),
	}
	for _, c := range []prometheus.Collector{
		m.receipts, m.receiptAmount, m.ledgerRetries, m.ledgerLatency, m.settlements,
		m.dashboardTotal, m.dashboardTiming, m.degradedRates, m.rateCache,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveLedger records one ledger call
func (m *FinanceMetrics) ObserveLedger(result, method string, d time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	m.receipts.WithLabelValues(result, method).Inc()
	m.ledgerLatency.WithLabelValues(result).Observe(d.Seconds())
}

// AddReceiptAmount adds a posted receipt amount
func (m *FinanceMetrics) AddReceiptAmount(currency string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.receiptAmount.WithLabelValues(currency).Add(amount.InexactFloat64())
}

// IncLedgerRetry counts one retry after a version conflict
func (m *FinanceMetrics) IncLedgerRetry() {
	if m == nil {
		return
	}
	m.ledgerRetries.Inc()
}

// IncSettled counts an installment or contract reaching settled
func (m *FinanceMetrics) IncSettled(entity string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(entity).Inc()
}

// ObserveDashboard records one dashboard query
func (m *FinanceMetrics) ObserveDashboard(view string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = ResultError
	}
	m.dashboardTotal.WithLabelValues(view, result).Inc()
	m.dashboardTiming.WithLabelValues(view).Observe(d.Seconds())
}

// IncDegraded counts a conversion that used the default rate
func (m *FinanceMetrics) IncDegraded(currency string) {
	if m == nil {
		return
	}
	m.degradedRates.WithLabelValues(currency).Inc()
}

// IncRateCache counts a rate cache hit, miss or error
func (m *FinanceMetrics) IncRateCache(outcome string) {
	if m == nil {
		return
	}
	m.rateCache.WithLabelValues(outcome).Inc()
}
