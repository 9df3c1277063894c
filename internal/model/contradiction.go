package model

import "time"

// ContradictionType categorizes what kind of disagreement was detected.
type ContradictionType string

const (
	ContradictionFinancial   ContradictionType = "financial"
	ContradictionOperational ContradictionType = "operational"
	ContradictionCompliance  ContradictionType = "compliance"
	ContradictionData        ContradictionType = "data"
)

// Severity buckets a contradiction by estimated dollar impact.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityWeights drive both the risk score and severity ordering.
var severityWeights = map[Severity]int{
	SeverityCritical: 40,
	SeverityHigh:     20,
	SeverityMedium:   10,
	SeverityLow:      5,
}

// Weight returns the risk-score weight for the severity. Unknown severities
// weigh zero.
func (s Severity) Weight() int {
	return severityWeights[s]
}

// Valid reports whether s is one of the four known severities.
func (s Severity) Valid() bool {
	_, ok := severityWeights[s]
	return ok
}

// LabeledValue is one side of a detected disagreement.
type LabeledValue struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ConflictingValues carries exactly the two values that disagree.
type ConflictingValues struct {
	A LabeledValue `json:"a"`
	B LabeledValue `json:"b"`
}

// Contradiction is a single detected disagreement between sources. Immutable
// once produced; a fresh analysis run produces an entirely new list, so IDs
// have no identity across runs.
type Contradiction struct {
	ID                string             `json:"id"`
	Type              ContradictionType  `json:"type"`
	Severity          Severity           `json:"severity"`
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	Sources           []string           `json:"sources"`
	ConflictingValues *ConflictingValues `json:"conflicting_values,omitempty"`
	PotentialImpact   float64            `json:"potential_impact"`
	RecommendedAction string             `json:"recommended_action"`
	DetectedAt        time.Time          `json:"detected_at"`
	EntityID          string             `json:"entity_id,omitempty"`
}

// AnalysisSummary tallies a contradiction list.
type AnalysisSummary struct {
	Total          int              `json:"total"`
	BySeverity     map[Severity]int `json:"by_severity"`
	TotalImpactUSD float64          `json:"total_impact_usd"`
}

// ContradictionAnalysis is the full output of a detection run: the list, a
// summary, and the normalized 0-100 risk score. Purely derived.
type ContradictionAnalysis struct {
	Contradictions []Contradiction `json:"contradictions"`
	Summary        AnalysisSummary `json:"summary"`
	RiskScore      int             `json:"risk_score"`
}

// Summarize builds an AnalysisSummary from a contradiction list.
func Summarize(contradictions []Contradiction) AnalysisSummary {
	s := AnalysisSummary{
		Total:      len(contradictions),
		BySeverity: make(map[Severity]int),
	}
	for _, c := range contradictions {
		s.BySeverity[c.Severity]++
		s.TotalImpactUSD += c.PotentialImpact
	}
	return s
}
