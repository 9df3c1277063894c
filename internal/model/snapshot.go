package model

import (
	"sort"
	"time"
)

// TransactionType distinguishes inflows from outflows.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// TransactionRecord is a single transaction reported by one source.
// IDs are source-scoped; PrefixID must be applied before merging so the
// merged ledger has globally unique IDs.
type TransactionRecord struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description,omitempty"`
	Amount        float64         `json:"amount"` // positive = inflow
	Type          TransactionType `json:"type"`
	Date          time.Time       `json:"date"`
	Category      string          `json:"category,omitempty"`
	Status        string          `json:"status,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
}

// PrefixID namespaces the transaction ID with the reporting source's key.
func (t TransactionRecord) PrefixID(sourceKey string) TransactionRecord {
	t.ID = sourceKey + ":" + t.ID
	return t
}

// FinancialMetrics holds derived metrics a source may report. All fields are
// optional; nil means the source does not report that metric, not zero.
type FinancialMetrics struct {
	Cashflow                *float64 `json:"cashflow,omitempty"`
	Runway                  *float64 `json:"runway,omitempty"` // months
	BurnRate                *float64 `json:"burn_rate,omitempty"`
	GrowthRate              *float64 `json:"growth_rate,omitempty"`
	CustomerAcquisitionCost *float64 `json:"customer_acquisition_cost,omitempty"`
	LifetimeValue           *float64 `json:"lifetime_value,omitempty"`
}

// PayrollSummary is the payroll block reported by a payroll provider.
type PayrollSummary struct {
	Provider      string     `json:"provider"`
	EmployeeCount int        `json:"employee_count"`
	MonthlyCost   float64    `json:"monthly_cost"`
	NextPayDate   *time.Time `json:"next_pay_date,omitempty"`
}

// PartialSnapshot is the result of one source fetch. Every field is
// optional; a nil field means the source does not report it.
type PartialSnapshot struct {
	CashOnHand          *float64            `json:"cash_on_hand,omitempty"`
	MonthlyRevenue      *float64            `json:"monthly_revenue,omitempty"`
	MonthlyExpenses     *float64            `json:"monthly_expenses,omitempty"`
	OutstandingInvoices *float64            `json:"outstanding_invoices,omitempty"`
	Transactions        []TransactionRecord `json:"transactions,omitempty"`
	Metrics             *FinancialMetrics   `json:"metrics,omitempty"`
	Payroll             *PayrollSummary     `json:"payroll,omitempty"`

	// Source is the label of the provider that produced this snapshot.
	// Set by the fetch layer, used in contradiction records.
	Source string `json:"source,omitempty"`
}

// IsEmpty reports whether the snapshot carries no data at all (the fallback
// value served when a source cannot be reached and no cache entry exists).
func (p *PartialSnapshot) IsEmpty() bool {
	if p == nil {
		return true
	}
	return p.CashOnHand == nil &&
		p.MonthlyRevenue == nil &&
		p.MonthlyExpenses == nil &&
		p.OutstandingInvoices == nil &&
		len(p.Transactions) == 0 &&
		p.Metrics == nil &&
		p.Payroll == nil
}

// FinancialSnapshot is the merged picture across all connected sources.
// Shape matches PartialSnapshot; numeric fields are sums or weighted blends,
// transactions are the concatenation of all sources' ledgers. Recomputed on
// every aggregation call, never persisted.
type FinancialSnapshot struct {
	CashOnHand          *float64            `json:"cash_on_hand,omitempty"`
	MonthlyRevenue      *float64            `json:"monthly_revenue,omitempty"`
	MonthlyExpenses     *float64            `json:"monthly_expenses,omitempty"`
	OutstandingInvoices *float64            `json:"outstanding_invoices,omitempty"`
	Transactions        []TransactionRecord `json:"transactions,omitempty"`
	Metrics             *FinancialMetrics   `json:"metrics,omitempty"`
	Payroll             *PayrollSummary     `json:"payroll,omitempty"`

	// Sources lists the labels of sources that contributed, in supplied order.
	Sources []string `json:"sources,omitempty"`
	// GeneratedAt is when this aggregation ran.
	GeneratedAt time.Time `json:"generated_at"`
}

// SortTransactionsDesc orders transactions by date, newest first. Ties keep
// their relative order so repeated aggregations are stable.
func SortTransactionsDesc(txs []TransactionRecord) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Date.After(txs[j].Date)
	})
}

// Float returns a pointer to v. Convenience for building snapshots.
func Float(v float64) *float64 {
	return &v
}
