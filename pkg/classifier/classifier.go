// Package classifier defines the compliance-analysis collaborator contract.
// Implementations look at the full snapshot set and propose additional
// candidate contradictions that the structured numeric passes cannot see.
package classifier

import (
	"context"

	"github.com/NeverShitty/chittyfinance-sub000/internal/model"
)

// CandidateContradiction is a contradiction proposed by a classifier. It
// carries no ID or timestamp; the detection layer assigns those when it
// adopts the candidate.
type CandidateContradiction struct {
	Type              model.ContradictionType `json:"type"`
	Severity          model.Severity          `json:"severity"`
	Title             string                  `json:"title"`
	Description       string                  `json:"description"`
	Sources           []string                `json:"sources,omitempty"`
	PotentialImpact   float64                 `json:"potential_impact,omitempty"`
	RecommendedAction string                  `json:"recommended_action"`
}

// Normalize clamps free-form classifier output onto the known enums. An
// unrecognized severity becomes medium, an unrecognized type becomes
// compliance.
func (c *CandidateContradiction) Normalize() {
	if !c.Severity.Valid() {
		c.Severity = model.SeverityMedium
	}
	switch c.Type {
	case model.ContradictionFinancial, model.ContradictionOperational,
		model.ContradictionCompliance, model.ContradictionData:
	default:
		c.Type = model.ContradictionCompliance
	}
}

// Classifier analyzes a snapshot set for compliance-grade contradictions.
// Implementations may time out or return garbage; callers must treat any
// error as "no candidates" and carry on.
type Classifier interface {
	Classify(ctx context.Context, snapshots []*model.PartialSnapshot, entityID string) ([]CandidateContradiction, error)
}

// Noop is a Classifier that finds nothing. Used when no API key is
// configured.
type Noop struct{}

func (Noop) Classify(context.Context, []*model.PartialSnapshot, string) ([]CandidateContradiction, error) {
	return nil, nil
}
