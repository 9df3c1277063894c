package detect

import (
	"testing"

	"github.com/NeverShitty/chittyfinance-sub000/internal/model"
)

func withSeverity(s model.Severity) model.Contradiction {
	return model.Contradiction{Severity: s}
}

func TestRiskScore_Empty(t *testing.T) {
	if got := RiskScore(nil); got != 0 {
		t.Errorf("zero contradictions score 0, got %d", got)
	}
}

func TestRiskScore_Weights(t *testing.T) {
	got := RiskScore([]model.Contradiction{
		withSeverity(model.SeverityCritical), // 40
		withSeverity(model.SeverityHigh),     // 20
		withSeverity(model.SeverityMedium),   // 10
		withSeverity(model.SeverityLow),      // 5
	})
	if got != 75 {
		t.Errorf("expected 75, got %d", got)
	}
}

func TestRiskScore_Monotonic(t *testing.T) {
	list := []model.Contradiction{withSeverity(model.SeverityMedium)}
	before := RiskScore(list)
	after := RiskScore(append(list, withSeverity(model.SeverityCritical)))
	if after < before {
		t.Errorf("adding a contradiction decreased the score: %d -> %d", before, after)
	}
}

func TestRiskScore_Cap(t *testing.T) {
	var list []model.Contradiction
	for i := 0; i < 5; i++ {
		list = append(list, withSeverity(model.SeverityCritical))
	}
	// Raw weight 200.
	if got := RiskScore(list); got != 100 {
		t.Errorf("expected cap at 100, got %d", got)
	}
}
