package detect

import "github.com/NeverShitty/chittyfinance-sub000/internal/model"

// scoreCap is the upper bound of the risk scale.
const scoreCap = 100

// RiskScore reduces a contradiction list to a 0-100 score by summing the
// severity weights and capping the result. A pure function of its input;
// zero contradictions score zero.
func RiskScore(contradictions []model.Contradiction) int {
	score := 0
	for _, c := range contradictions {
		score += c.Severity.Weight()
	}
	if score > scoreCap {
		return scoreCap
	}
	return score
}
