package classifier

import (
	"context"
	"encoding/json"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/NeverShitty/chittyfinance-sub000/internal/model"
	"github.com/NeverShitty/chittyfinance-sub000/pkg/anthropic"
)

const systemPrompt = `You are a financial compliance analyst. You are given the
per-source financial snapshots for one business as JSON. Look for
contradictions the structured numeric checks cannot catch: payroll figures
inconsistent with headcount, transaction patterns that contradict reported
revenue, category mismatches, or compliance-relevant gaps between sources.

Respond with ONLY a JSON array. Each element:
{
  "type": "financial" | "operational" | "compliance" | "data",
  "severity": "low" | "medium" | "high" | "critical",
  "title": "...",
  "description": "...",
  "potential_impact": <estimated dollars, number>,
  "recommended_action": "..."
}
Return [] if the snapshots are consistent.`

// AnthropicClassifier implements Classifier on the Anthropic messages API.
type AnthropicClassifier struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic builds a classifier over the given client. model and
// maxTokens fall back to a small default when zero.
func NewAnthropic(client anthropic.Client, model string, maxTokens int64) *AnthropicClassifier {
	if model == "" {
		model = "claude-haiku-4-5-20251001"
	}
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &AnthropicClassifier{client: client, model: model, maxTokens: maxTokens}
}

// Classify sends the snapshot set for analysis and parses the returned
// candidate list. Model output is repaired before parsing; LLMs reliably
// produce almost-JSON (markdown fences, trailing commas, single quotes).
func (a *AnthropicClassifier) Classify(ctx context.Context, snapshots []*model.PartialSnapshot, entityID string) ([]CandidateContradiction, error) {
	payload, err := json.Marshal(map[string]any{
		"entity_id": entityID,
		"snapshots": snapshots,
	})
	if err != nil {
		return nil, eris.Wrap(err, "classifier: marshal snapshots")
	}

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System: []anthropic.SystemBlock{{
			Text:         systemPrompt,
			CacheControl: &anthropic.CacheControl{TTL: "5m"},
		}},
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: string(payload),
		}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "classifier: create message")
	}
	resp.Usage.LogCost(a.model, "compliance_classify")

	candidates, err := parseCandidates(resp.Text())
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

func parseCandidates(raw string) ([]CandidateContradiction, error) {
	repaired, err := jsonrepair.RepairJSON(raw)
	if err != nil {
		return nil, eris.Wrap(err, "classifier: repair model output")
	}

	var candidates []CandidateContradiction
	if err := json.Unmarshal([]byte(repaired), &candidates); err != nil {
		// Some outputs wrap the array in an object despite instructions.
		var wrapped struct {
			Contradictions []CandidateContradiction `json:"contradictions"`
		}
		if err2 := json.Unmarshal([]byte(repaired), &wrapped); err2 != nil {
			return nil, eris.Wrap(err, "classifier: parse model output")
		}
		candidates = wrapped.Contradictions
	}

	for i := range candidates {
		candidates[i].Normalize()
	}

	kept := candidates[:0]
	for _, c := range candidates {
		if c.Title == "" {
			zap.L().Debug("dropping untitled candidate contradiction")
			continue
		}
		kept = append(kept, c)
	}
	return kept, nil
}
