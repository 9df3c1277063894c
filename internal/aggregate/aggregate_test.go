package aggregate

import (
	"context"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NeverShitty/chittyfinance-sub000/internal/fetcher"
	"github.com/NeverShitty/chittyfinance-sub000/internal/model"
	"github.com/NeverShitty/chittyfinance-sub000/internal/source"
)

func part(key string, snap *model.PartialSnapshot) Part {
	return Part{Key: key, Label: key, Snapshot: snap}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMerge_SumAdditivity(t *testing.T) {
	out := Merge([]Part{
		part("stripe:1", &model.PartialSnapshot{CashOnHand: model.Float(100)}),
		part("mercury:1", &model.PartialSnapshot{CashOnHand: model.Float(200)}),
		part("plaid:1", &model.PartialSnapshot{MonthlyRevenue: model.Float(5000)}), // omits cash
	}, time.Now())

	if out.CashOnHand == nil || *out.CashOnHand != 300 {
		t.Errorf("expected cash 300, got %v", out.CashOnHand)
	}
	if out.MonthlyRevenue == nil || *out.MonthlyRevenue != 5000 {
		t.Errorf("expected revenue 5000, got %v", out.MonthlyRevenue)
	}
	if out.MonthlyExpenses != nil {
		t.Errorf("field no source reported should be omitted, got %v", *out.MonthlyExpenses)
	}
}

func TestMerge_RunwayWeighting(t *testing.T) {
	out := Merge([]Part{
		part("a:1", &model.PartialSnapshot{Metrics: &model.FinancialMetrics{
			BurnRate: model.Float(100), Runway: model.Float(10),
		}}),
		part("b:1", &model.PartialSnapshot{Metrics: &model.FinancialMetrics{
			BurnRate: model.Float(300), Runway: model.Float(2),
		}}),
	}, time.Now())

	// 10 * 0.25 + 2 * 0.75
	if out.Metrics == nil || out.Metrics.Runway == nil || !almostEqual(*out.Metrics.Runway, 4.0) {
		t.Errorf("expected blended runway 4.0, got %+v", out.Metrics)
	}
	if out.Metrics.BurnRate == nil || *out.Metrics.BurnRate != 400 {
		t.Errorf("expected summed burn rate 400, got %v", out.Metrics.BurnRate)
	}
}

func TestMerge_RunwayDerivedFromCash(t *testing.T) {
	out := Merge([]Part{
		part("a:1", &model.PartialSnapshot{
			CashOnHand: model.Float(12000),
			Metrics:    &model.FinancialMetrics{BurnRate: model.Float(3000)},
		}),
	}, time.Now())

	if out.Metrics == nil || out.Metrics.Runway == nil || !almostEqual(*out.Metrics.Runway, 4.0) {
		t.Errorf("expected derived runway 4.0, got %+v", out.Metrics)
	}
}

func TestMerge_RunwayZeroBurnOmitted(t *testing.T) {
	out := Merge([]Part{
		part("a:1", &model.PartialSnapshot{
			CashOnHand: model.Float(12000),
			Metrics:    &model.FinancialMetrics{BurnRate: model.Float(0)},
		}),
	}, time.Now())

	if out.Metrics == nil || out.Metrics.Runway != nil {
		t.Errorf("zero burn rate must omit runway, got %+v", out.Metrics)
	}
}

func TestMerge_CashflowDerived(t *testing.T) {
	out := Merge([]Part{
		part("a:1", &model.PartialSnapshot{
			MonthlyRevenue:  model.Float(10000),
			MonthlyExpenses: model.Float(7000),
		}),
	}, time.Now())

	if out.Metrics == nil || out.Metrics.Cashflow == nil || *out.Metrics.Cashflow != 3000 {
		t.Errorf("expected derived cashflow 3000, got %+v", out.Metrics)
	}

	// A directly reported cashflow wins over derivation.
	out = Merge([]Part{
		part("a:1", &model.PartialSnapshot{
			MonthlyRevenue:  model.Float(10000),
			MonthlyExpenses: model.Float(7000),
			Metrics:         &model.FinancialMetrics{Cashflow: model.Float(1234)},
		}),
	}, time.Now())
	if *out.Metrics.Cashflow != 1234 {
		t.Errorf("reported cashflow should win, got %v", *out.Metrics.Cashflow)
	}
}

func TestMerge_OptimisticMetricMerges(t *testing.T) {
	out := Merge([]Part{
		part("a:1", &model.PartialSnapshot{Metrics: &model.FinancialMetrics{
			GrowthRate:              model.Float(0.05),
			LifetimeValue:           model.Float(1200),
			CustomerAcquisitionCost: model.Float(300),
		}}),
		part("b:1", &model.PartialSnapshot{Metrics: &model.FinancialMetrics{
			GrowthRate:              model.Float(0.12),
			LifetimeValue:           model.Float(900),
			CustomerAcquisitionCost: model.Float(250),
		}}),
	}, time.Now())

	m := out.Metrics
	if m.GrowthRate == nil || *m.GrowthRate != 0.12 {
		t.Errorf("growth rate should take max, got %v", m.GrowthRate)
	}
	if m.LifetimeValue == nil || *m.LifetimeValue != 1200 {
		t.Errorf("lifetime value should take max, got %v", m.LifetimeValue)
	}
	if m.CustomerAcquisitionCost == nil || *m.CustomerAcquisitionCost != 250 {
		t.Errorf("acquisition cost should take min, got %v", m.CustomerAcquisitionCost)
	}
}

func TestMerge_PayrollLastWriterWins(t *testing.T) {
	out := Merge([]Part{
		part("gusto:1", &model.PartialSnapshot{Payroll: &model.PayrollSummary{Provider: "gusto", MonthlyCost: 40000}}),
		part("quickbooks:1", &model.PartialSnapshot{Payroll: &model.PayrollSummary{Provider: "quickbooks", MonthlyCost: 41000}}),
		part("stripe:1", &model.PartialSnapshot{CashOnHand: model.Float(1)}), // no payroll, does not clear it
	}, time.Now())

	if out.Payroll == nil || out.Payroll.Provider != "quickbooks" {
		t.Errorf("expected last payroll reporter to win, got %+v", out.Payroll)
	}
}

func TestMerge_TransactionsPrefixedAndSorted(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 8, d, 0, 0, 0, 0, time.UTC) }

	out := Merge([]Part{
		part("stripe:acct_1", &model.PartialSnapshot{Transactions: []model.TransactionRecord{
			{ID: "tx_1", Amount: 50, Date: day(1)},
			{ID: "tx_2", Amount: -20, Date: day(3)},
		}}),
		part("mercury:m_1", &model.PartialSnapshot{Transactions: []model.TransactionRecord{
			{ID: "tx_1", Amount: 75, Date: day(2)},
		}}),
	}, time.Now())

	if len(out.Transactions) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(out.Transactions))
	}
	if out.Transactions[0].ID != "stripe:acct_1:tx_2" {
		t.Errorf("expected newest first with prefixed id, got %q", out.Transactions[0].ID)
	}
	if out.Transactions[1].ID != "mercury:m_1:tx_1" || out.Transactions[2].ID != "stripe:acct_1:tx_1" {
		t.Errorf("unexpected order: %q, %q", out.Transactions[1].ID, out.Transactions[2].ID)
	}
}

func TestMerge_SourcesListsContributors(t *testing.T) {
	out := Merge([]Part{
		part("stripe:1", &model.PartialSnapshot{CashOnHand: model.Float(1)}),
		part("plaid:1", &model.PartialSnapshot{}), // empty fallback snapshot
		part("mercury:1", &model.PartialSnapshot{CashOnHand: model.Float(2)}),
	}, time.Now())

	if len(out.Sources) != 2 || out.Sources[0] != "stripe:1" || out.Sources[1] != "mercury:1" {
		t.Errorf("expected contributing sources in supplied order, got %v", out.Sources)
	}
}

func TestAggregate_SkipsDisconnectedSources(t *testing.T) {
	var calls atomic.Int32
	reg := source.NewRegistry()
	reg.Register(source.AdapterFunc{
		Service: model.ServiceStripe,
		Fn: func(_ context.Context, _ model.Source) (*model.PartialSnapshot, error) {
			calls.Add(1)
			return &model.PartialSnapshot{CashOnHand: model.Float(100)}, nil
		},
	})
	f := fetcher.New(reg, fetcher.Options{RateLimits: map[string]int{}})
	agg := New(f)

	out := agg.Aggregate(context.Background(), []model.Source{
		{ServiceType: model.ServiceStripe, IntegrationID: "a", Connected: true,
			Credentials: map[string]string{"api_key": "k"}},
		{ServiceType: model.ServiceStripe, IntegrationID: "b", Connected: false,
			Credentials: map[string]string{"api_key": "k"}},
	})

	if got := calls.Load(); got != 1 {
		t.Errorf("disconnected source must not be fetched, got %d calls", got)
	}
	if out.CashOnHand == nil || *out.CashOnHand != 100 {
		t.Errorf("expected cash 100, got %v", out.CashOnHand)
	}
}

func TestAggregate_ConcurrentFetchDeterministicMerge(t *testing.T) {
	reg := source.NewRegistry()
	reg.Register(source.AdapterFunc{
		Service: model.ServiceGusto,
		Fn: func(_ context.Context, src model.Source) (*model.PartialSnapshot, error) {
			// The first-supplied source responds slowest; completion order is
			// the reverse of supplied order.
			if src.IntegrationID == "first" {
				time.Sleep(30 * time.Millisecond)
			}
			return &model.PartialSnapshot{
				Payroll: &model.PayrollSummary{Provider: src.IntegrationID},
			}, nil
		},
	})
	f := fetcher.New(reg, fetcher.Options{RateLimits: map[string]int{}})
	agg := New(f)

	out := agg.Aggregate(context.Background(), []model.Source{
		{ServiceType: model.ServiceGusto, IntegrationID: "first", Connected: true,
			Credentials: map[string]string{"access_token": "t", "company_id": "c"}},
		{ServiceType: model.ServiceGusto, IntegrationID: "second", Connected: true,
			Credentials: map[string]string{"access_token": "t", "company_id": "c"}},
	})

	if out.Payroll == nil || out.Payroll.Provider != "second" {
		t.Errorf("payroll winner must follow supplied order, not completion order: %+v", out.Payroll)
	}
}
