package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NeverShitty/chittyfinance-sub000/internal/model"
	"github.com/NeverShitty/chittyfinance-sub000/pkg/anthropic"
)

// fakeClient returns a canned response or error.
type fakeClient struct {
	text string
	err  error
	last anthropic.MessageRequest
}

func (f *fakeClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: f.text}},
	}, nil
}

func TestClassify_ParsesCandidates(t *testing.T) {
	fake := &fakeClient{text: `[
		{"type":"compliance","severity":"high","title":"Payroll headcount mismatch",
		 "description":"Gusto reports 12 employees but payroll cost implies 20.",
		 "potential_impact":24000,"recommended_action":"Reconcile payroll records."}
	]`}
	c := NewAnthropic(fake, "", 0)

	got, err := c.Classify(context.Background(), []*model.PartialSnapshot{{}}, "entity-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.ContradictionCompliance, got[0].Type)
	assert.Equal(t, model.SeverityHigh, got[0].Severity)
	assert.Equal(t, 24000.0, got[0].PotentialImpact)
}

func TestClassify_RepairsMarkdownFencedOutput(t *testing.T) {
	fake := &fakeClient{text: "```json\n[{\"type\":\"data\",\"severity\":\"low\",\"title\":\"Category drift\",\"description\":\"d\",\"recommended_action\":\"a\"},]\n```"}
	c := NewAnthropic(fake, "", 0)

	got, err := c.Classify(context.Background(), nil, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Category drift", got[0].Title)
}

func TestClassify_NormalizesUnknownEnums(t *testing.T) {
	fake := &fakeClient{text: `[{"type":"weird","severity":"catastrophic","title":"T","description":"d","recommended_action":"a"}]`}
	c := NewAnthropic(fake, "", 0)

	got, err := c.Classify(context.Background(), nil, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.ContradictionCompliance, got[0].Type)
	assert.Equal(t, model.SeverityMedium, got[0].Severity)
}

func TestClassify_WrappedObjectOutput(t *testing.T) {
	fake := &fakeClient{text: `{"contradictions":[{"type":"financial","severity":"medium","title":"T","description":"d","recommended_action":"a"}]}`}
	c := NewAnthropic(fake, "", 0)

	got, err := c.Classify(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestClassify_DropsUntitledCandidates(t *testing.T) {
	fake := &fakeClient{text: `[{"type":"data","severity":"low","title":"","description":"d","recommended_action":"a"}]`}
	c := NewAnthropic(fake, "", 0)

	got, err := c.Classify(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClassify_PropagatesClientError(t *testing.T) {
	fake := &fakeClient{err: errors.New("timeout")}
	c := NewAnthropic(fake, "", 0)

	_, err := c.Classify(context.Background(), nil, "")
	assert.Error(t, err)
}

func TestClassify_RequestShape(t *testing.T) {
	fake := &fakeClient{text: "[]"}
	c := NewAnthropic(fake, "claude-sonnet-4-5-20250929", 1024)

	_, err := c.Classify(context.Background(), []*model.PartialSnapshot{
		{CashOnHand: model.Float(100), Source: "stripe:acct_1"},
	}, "entity-9")
	require.NoError(t, err)

	assert.Equal(t, "claude-sonnet-4-5-20250929", fake.last.Model)
	assert.Equal(t, int64(1024), fake.last.MaxTokens)
	require.Len(t, fake.last.Messages, 1)
	assert.Contains(t, fake.last.Messages[0].Content, "entity-9")
	assert.Contains(t, fake.last.Messages[0].Content, "stripe:acct_1")
	require.Len(t, fake.last.System, 1)
	assert.NotNil(t, fake.last.System[0].CacheControl)
}

func TestNoop(t *testing.T) {
	got, err := Noop{}.Classify(context.Background(), nil, "e")
	require.NoError(t, err)
	assert.Nil(t, got)
}
