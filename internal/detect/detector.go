// Package detect finds disagreements between the snapshots different
// sources report for the same business. Three numeric passes compare
// figures pairwise against tuned tolerances; a fourth pass delegates to an
// AI classifier for contradictions the numbers alone cannot show.
package detect

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/NeverShitty/chittyfinance-sub000/internal/model"
	"github.com/NeverShitty/chittyfinance-sub000/pkg/classifier"
)

// usd renders dollar amounts with thousands grouping for contradiction
// descriptions.
var usd = message.NewPrinter(language.English)

// Options configures a Detector.
type Options struct {
	// Thresholds overrides the default pass tuning.
	Thresholds *Thresholds
	// Classifier runs the compliance pass. Nil skips that pass.
	Classifier classifier.Classifier
	// ClassifierTimeout bounds the compliance pass. Default: 30s.
	ClassifierTimeout time.Duration
}

// Detector runs the contradiction passes. Stateless; safe for concurrent
// use.
type Detector struct {
	thresholds        Thresholds
	classifier        classifier.Classifier
	classifierTimeout time.Duration
	nowFunc           func() time.Time
	newID             func() string
}

// New creates a Detector.
func New(opts Options) *Detector {
	t := DefaultThresholds()
	if opts.Thresholds != nil {
		t = *opts.Thresholds
	}
	timeout := opts.ClassifierTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Detector{
		thresholds:        t,
		classifier:        opts.Classifier,
		classifierTimeout: timeout,
		nowFunc:           time.Now,
		newID:             uuid.NewString,
	}
}

// WithNow overrides the clock. For tests.
func (d *Detector) WithNow(now func() time.Time) *Detector {
	d.nowFunc = now
	return d
}

// Detect runs all passes over the per-source snapshots and recurring-charge
// list. Every pass is independent; a failing compliance pass contributes
// zero contradictions and never blocks the numeric passes. Detect itself
// cannot fail.
func (d *Detector) Detect(ctx context.Context, snapshots []*model.PartialSnapshot, charges []model.ChargeDetails, entityID string) model.ContradictionAnalysis {
	var found []model.Contradiction
	found = append(found, d.cashPass(snapshots, entityID)...)
	found = append(found, d.revenuePass(snapshots, entityID)...)
	found = append(found, d.recurringExpensesPass(snapshots, charges, entityID)...)
	found = append(found, d.compliancePass(ctx, snapshots, entityID)...)

	// Most severe first; ties keep pass order.
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Severity.Weight() > found[j].Severity.Weight()
	})

	analysis := model.ContradictionAnalysis{
		Contradictions: found,
		Summary:        model.Summarize(found),
		RiskScore:      RiskScore(found),
	}
	zap.L().Info("contradiction detection complete",
		zap.Int("snapshots", len(snapshots)),
		zap.Int("contradictions", len(found)),
		zap.Int("risk_score", analysis.RiskScore),
	)
	return analysis
}

// numericRule describes one pairwise numeric pass.
type numericRule struct {
	title  string
	noun   string // how the figure reads in a sentence
	action string
	t      PassThresholds
	get    func(*model.PartialSnapshot) *float64
}

func (d *Detector) cashPass(snapshots []*model.PartialSnapshot, entityID string) []model.Contradiction {
	return d.pairwise(snapshots, entityID, numericRule{
		title:  "Cash on Hand Discrepancy",
		noun:   "cash on hand",
		action: "Reconcile bank balances across providers and verify account linkage.",
		t:      d.thresholds.Cash,
		get:    func(p *model.PartialSnapshot) *float64 { return p.CashOnHand },
	})
}

func (d *Detector) revenuePass(snapshots []*model.PartialSnapshot, entityID string) []model.Contradiction {
	return d.pairwise(snapshots, entityID, numericRule{
		title:  "Monthly Revenue Discrepancy",
		noun:   "monthly revenue",
		action: "Check for unrecorded revenue streams or double-counted payouts.",
		t:      d.thresholds.Revenue,
		get:    func(p *model.PartialSnapshot) *float64 { return p.MonthlyRevenue },
	})
}

// pairwise compares every unordered snapshot pair on one field. A snapshot
// is never compared to itself and each pair is visited once, so swapping
// the input order swaps labels but never duplicates a finding.
func (d *Detector) pairwise(snapshots []*model.PartialSnapshot, entityID string, rule numericRule) []model.Contradiction {
	var out []model.Contradiction
	for i := 0; i < len(snapshots); i++ {
		for j := i + 1; j < len(snapshots); j++ {
			a, b := rule.get(snapshots[i]), rule.get(snapshots[j])
			if a == nil || b == nil {
				continue
			}
			diff := math.Abs(*a - *b)
			if !exceeds(diff, math.Max(*a, *b), rule.t) {
				continue
			}

			labelA := sourceLabel(snapshots[i], i)
			labelB := sourceLabel(snapshots[j], j)
			out = append(out, model.Contradiction{
				ID:       d.newID(),
				Type:     model.ContradictionFinancial,
				Severity: severityFor(diff, rule.t),
				Title:    rule.title,
				Description: usd.Sprintf("%s reports $%.2f %s while %s reports $%.2f, a gap of $%.2f.",
					labelA, *a, rule.noun, labelB, *b, diff),
				Sources: []string{labelA, labelB},
				ConflictingValues: &model.ConflictingValues{
					A: model.LabeledValue{Label: labelA, Value: *a},
					B: model.LabeledValue{Label: labelB, Value: *b},
				},
				PotentialImpact:   diff * rule.t.ImpactFactor,
				RecommendedAction: rule.action,
				DetectedAt:        d.nowFunc(),
				EntityID:          entityID,
			})
		}
	}
	return out
}

// recurringExpensesPass compares each snapshot's reported monthly expenses
// against the sum of known recurring charges. Skipped entirely when no
// recurring charges are on record: an empty charge list means missing data,
// not zero spend.
func (d *Detector) recurringExpensesPass(snapshots []*model.PartialSnapshot, charges []model.ChargeDetails, entityID string) []model.Contradiction {
	hasRecurring := false
	for _, c := range charges {
		if c.Recurring {
			hasRecurring = true
			break
		}
	}
	if !hasRecurring {
		return nil
	}
	recurring := model.RecurringTotal(charges)
	t := d.thresholds.RecurringExpenses

	var out []model.Contradiction
	for i, snap := range snapshots {
		if snap == nil || snap.MonthlyExpenses == nil {
			continue
		}
		diff := math.Abs(*snap.MonthlyExpenses - recurring)
		if !exceeds(diff, math.Max(*snap.MonthlyExpenses, recurring), t) {
			continue
		}

		label := sourceLabel(snap, i)
		out = append(out, model.Contradiction{
			ID:       d.newID(),
			Type:     model.ContradictionOperational,
			Severity: severityFor(diff, t),
			Title:    "Expenses vs Recurring Charges Mismatch",
			Description: usd.Sprintf("%s reports $%.2f monthly expenses but tracked recurring charges total $%.2f, a gap of $%.2f.",
				label, *snap.MonthlyExpenses, recurring, diff),
			Sources: []string{label, "Recurring Charges"},
			ConflictingValues: &model.ConflictingValues{
				A: model.LabeledValue{Label: label, Value: *snap.MonthlyExpenses},
				B: model.LabeledValue{Label: "Recurring Charges", Value: recurring},
			},
			PotentialImpact:   diff * t.ImpactFactor,
			RecommendedAction: "Audit subscriptions and recurring vendor charges against the expense ledger.",
			DetectedAt:        d.nowFunc(),
			EntityID:          entityID,
		})
	}
	return out
}

// compliancePass delegates to the external classifier. Any failure is
// swallowed: this pass yields zero contradictions rather than blocking the
// numeric ones.
func (d *Detector) compliancePass(ctx context.Context, snapshots []*model.PartialSnapshot, entityID string) []model.Contradiction {
	if d.classifier == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.classifierTimeout)
	defer cancel()

	candidates, err := d.classifier.Classify(ctx, snapshots, entityID)
	if err != nil {
		zap.L().Warn("compliance classifier failed, skipping pass",
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
		return nil
	}

	out := make([]model.Contradiction, 0, len(candidates))
	for _, c := range candidates {
		c.Normalize()
		sources := c.Sources
		if len(sources) == 0 {
			sources = []string{"AI Analysis"}
		}
		out = append(out, model.Contradiction{
			ID:                d.newID(),
			Type:              c.Type,
			Severity:          c.Severity,
			Title:             c.Title,
			Description:       c.Description,
			Sources:           sources,
			PotentialImpact:   c.PotentialImpact,
			RecommendedAction: c.RecommendedAction,
			DetectedAt:        d.nowFunc(),
			EntityID:          entityID,
		})
	}
	return out
}

// exceeds applies the dual threshold: the gap must beat both the relative
// tolerance and the absolute floor, strictly.
func exceeds(diff, reference float64, t PassThresholds) bool {
	return diff > reference*t.RelativeTolerance && diff > t.AbsoluteFloorUSD
}

func severityFor(diff float64, t PassThresholds) model.Severity {
	switch {
	case diff > t.CriticalAboveUSD:
		return model.SeverityCritical
	case diff > t.HighAboveUSD:
		return model.SeverityHigh
	default:
		return model.SeverityMedium
	}
}

func sourceLabel(snap *model.PartialSnapshot, idx int) string {
	if snap != nil && snap.Source != "" {
		return snap.Source
	}
	return usd.Sprintf("source %d", idx+1)
}
