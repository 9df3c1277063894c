package aggregate

import (
	"time"

	"github.com/NeverShitty/chittyfinance-sub000/internal/model"
)

// Merge reduces the per-source parts into one FinancialSnapshot. parts must
// be in supplied-source order: every rule except payroll is order-independent,
// and payroll is last-writer-wins over exactly this order.
func Merge(parts []Part, now time.Time) *model.FinancialSnapshot {
	out := &model.FinancialSnapshot{GeneratedAt: now}

	out.CashOnHand = sumField(parts, func(p *model.PartialSnapshot) *float64 { return p.CashOnHand })
	out.MonthlyRevenue = sumField(parts, func(p *model.PartialSnapshot) *float64 { return p.MonthlyRevenue })
	out.MonthlyExpenses = sumField(parts, func(p *model.PartialSnapshot) *float64 { return p.MonthlyExpenses })
	out.OutstandingInvoices = sumField(parts, func(p *model.PartialSnapshot) *float64 { return p.OutstandingInvoices })

	for _, p := range parts {
		if p.Snapshot == nil {
			continue
		}
		// Source-scoped transaction IDs become globally unique here, not at
		// fetch time, so cached snapshots are never prefixed twice.
		for _, tx := range p.Snapshot.Transactions {
			out.Transactions = append(out.Transactions, tx.PrefixID(p.Key))
		}
		if !p.Snapshot.IsEmpty() {
			out.Sources = append(out.Sources, p.Label)
		}
	}
	model.SortTransactionsDesc(out.Transactions)

	out.Metrics = mergeMetrics(parts, out)
	out.Payroll = mergePayroll(parts)
	return out
}

// sumField adds a numeric field across all sources that report it. Sources
// that omit the field contribute 0; if no source reports it, the merged
// field is omitted rather than zero.
func sumField(parts []Part, get func(*model.PartialSnapshot) *float64) *float64 {
	var total float64
	reported := false
	for _, p := range parts {
		if p.Snapshot == nil {
			continue
		}
		if v := get(p.Snapshot); v != nil {
			total += *v
			reported = true
		}
	}
	if !reported {
		return nil
	}
	return model.Float(total)
}

func sumMetric(parts []Part, get func(*model.FinancialMetrics) *float64) *float64 {
	var total float64
	reported := false
	for _, p := range parts {
		if p.Snapshot == nil || p.Snapshot.Metrics == nil {
			continue
		}
		if v := get(p.Snapshot.Metrics); v != nil {
			total += *v
			reported = true
		}
	}
	if !reported {
		return nil
	}
	return model.Float(total)
}

// pickMetric folds a metric across reporting sources with the given
// comparison, keeping the winner. Used for the optimistic max/min merges.
func pickMetric(parts []Part, get func(*model.FinancialMetrics) *float64, better func(candidate, current float64) bool) *float64 {
	var best *float64
	for _, p := range parts {
		if p.Snapshot == nil || p.Snapshot.Metrics == nil {
			continue
		}
		v := get(p.Snapshot.Metrics)
		if v == nil {
			continue
		}
		if best == nil || better(*v, *best) {
			best = model.Float(*v)
		}
	}
	return best
}

func mergeMetrics(parts []Part, out *model.FinancialSnapshot) *model.FinancialMetrics {
	m := &model.FinancialMetrics{}

	m.BurnRate = sumMetric(parts, func(fm *model.FinancialMetrics) *float64 { return fm.BurnRate })

	// Cashflow: sum of reported values, else derived from the aggregated
	// revenue/expense figures when at least one of them is present.
	m.Cashflow = sumMetric(parts, func(fm *model.FinancialMetrics) *float64 { return fm.Cashflow })
	if m.Cashflow == nil && (out.MonthlyRevenue != nil || out.MonthlyExpenses != nil) {
		var rev, exp float64
		if out.MonthlyRevenue != nil {
			rev = *out.MonthlyRevenue
		}
		if out.MonthlyExpenses != nil {
			exp = *out.MonthlyExpenses
		}
		m.Cashflow = model.Float(rev - exp)
	}

	m.Runway = blendRunway(parts, out.CashOnHand, m.BurnRate)

	// Growth rate and lifetime value take the highest reported figure; the
	// platform reporting more is assumed better informed. Acquisition cost
	// mirrors that optimism inverted: lowest cost estimate wins.
	m.GrowthRate = pickMetric(parts,
		func(fm *model.FinancialMetrics) *float64 { return fm.GrowthRate },
		func(c, cur float64) bool { return c > cur })
	m.LifetimeValue = pickMetric(parts,
		func(fm *model.FinancialMetrics) *float64 { return fm.LifetimeValue },
		func(c, cur float64) bool { return c > cur })
	m.CustomerAcquisitionCost = pickMetric(parts,
		func(fm *model.FinancialMetrics) *float64 { return fm.CustomerAcquisitionCost },
		func(c, cur float64) bool { return c < cur })

	if m.Cashflow == nil && m.Runway == nil && m.BurnRate == nil &&
		m.GrowthRate == nil && m.CustomerAcquisitionCost == nil && m.LifetimeValue == nil {
		return nil
	}
	return m
}

// blendRunway averages runway across sources that report both runway and
// burn rate, weighted by each source's share of the total burn. A source
// burning more dominates the blended estimate. When no source reports both,
// falls back to aggregated cash divided by aggregated burn; a zero burn rate
// leaves runway unset rather than dividing by zero.
func blendRunway(parts []Part, cash, burnRate *float64) *float64 {
	var weighted, totalBurn float64
	for _, p := range parts {
		if p.Snapshot == nil || p.Snapshot.Metrics == nil {
			continue
		}
		fm := p.Snapshot.Metrics
		if fm.Runway == nil || fm.BurnRate == nil {
			continue
		}
		weighted += *fm.Runway * *fm.BurnRate
		totalBurn += *fm.BurnRate
	}
	if totalBurn > 0 {
		return model.Float(weighted / totalBurn)
	}

	if cash != nil && burnRate != nil && *burnRate > 0 {
		return model.Float(*cash / *burnRate)
	}
	return nil
}

// mergePayroll is last-writer-wins in supplied-source order. Only one payroll
// provider is expected in practice; with several connected, the one supplied
// last overwrites the rest.
func mergePayroll(parts []Part) *model.PayrollSummary {
	var last *model.PayrollSummary
	for _, p := range parts {
		if p.Snapshot == nil || p.Snapshot.Payroll == nil {
			continue
		}
		cp := *p.Snapshot.Payroll
		last = &cp
	}
	return last
}
