package risk

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/towerclub/ambassador-server/pkg/anthropic"
)

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*anthropic.MessageResponse)
	return resp, args.Error(1)
}

func sampleSummary(offenders int) ScanSummary {
	summary := ScanSummary{
		ReferrerName: "Khalid",
		Scanned:      20,
		Counts:       LevelCounts{Low: 14, Medium: 3, High: 2, Critical: 1},
	}
	for i := 0; i < offenders; i++ {
		summary.TopOffenders = append(summary.TopOffenders, OffenderSummary{
			ReferralID: uuid.New(),
			Identifier: "referral " + string(rune('a'+i)),
			Score:      90 - i,
			Level:      LevelCritical,
			Rules:      []string{RuleDuplicatePhone, RuleRapidSignup},
		})
	}
	return summary
}

func TestAnthropicAdvisorSummarize(t *testing.T) {
	client := new(mockAnthropicClient)
	advisor := NewAnthropicAdvisor(client, "claude-haiku-4-5-20251001", 1024, 5*time.Second)

	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-haiku-4-5-20251001" &&
			len(req.Messages) == 1 &&
			strings.Contains(req.Messages[0].Content, "low=14 medium=3 high=2 critical=1")
	})).Return(&anthropic.MessageResponse{Text: "Three referrals look coordinated."}, nil).Once()

	narrative, err := advisor.Summarize(context.Background(), sampleSummary(2))
	require.NoError(t, err)
	assert.Equal(t, "Three referrals look coordinated.", narrative)
	client.AssertExpectations(t)
}

func TestAnthropicAdvisorPropagatesClientError(t *testing.T) {
	client := new(mockAnthropicClient)
	advisor := NewAnthropicAdvisor(client, "claude-haiku-4-5-20251001", 1024, 5*time.Second)

	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited")).Once()

	_, err := advisor.Summarize(context.Background(), sampleSummary(1))
	assert.Error(t, err)
}

func TestAnthropicAdvisorRejectsEmptyResponse(t *testing.T) {
	client := new(mockAnthropicClient)
	advisor := NewAnthropicAdvisor(client, "claude-haiku-4-5-20251001", 1024, 5*time.Second)

	client.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{Text: "   "}, nil).Once()

	_, err := advisor.Summarize(context.Background(), sampleSummary(1))
	assert.Error(t, err)
}

func TestNarrativePromptBoundsOffenders(t *testing.T) {
	prompt := buildNarrativePrompt(sampleSummary(9))
	assert.Equal(t, maxNarrativeOffenders, strings.Count(prompt, "\n- "))
	assert.Contains(t, prompt, "Referrer: Khalid")
	assert.Contains(t, prompt, RuleDuplicatePhone)
}
