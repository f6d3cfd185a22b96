package risk

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/towerclub/ambassador-server/pkg/anthropic"
)

// NarrativeAdvisor produces a short human-readable summary of a scan. Callers
// treat every failure as "no narrative"; an advisor error never fails a scan.
type NarrativeAdvisor interface {
	Summarize(ctx context.Context, summary ScanSummary) (string, error)
}

const (
	narrativeSystemPrompt = "You are a fraud analyst assistant for a referral reward program. " +
		"Given a structured scan summary, write a concise narrative (3-5 sentences) for an admin reviewer: " +
		"what the risk distribution looks like, which referrals stand out and why, and what the reviewer should check first. " +
		"Plain prose only, no markdown, no lists."

	maxNarrativeOffenders = 5
)

// AnthropicAdvisor generates scan narratives through the Anthropic messages API.
type AnthropicAdvisor struct {
	client    anthropic.Client
	model     string
	maxTokens int
	timeout   time.Duration
}

func NewAnthropicAdvisor(client anthropic.Client, model string, maxTokens int, timeout time.Duration) *AnthropicAdvisor {
	return &AnthropicAdvisor{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
	}
}

func (a *AnthropicAdvisor) Summarize(ctx context.Context, summary ScanSummary) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: int64(a.maxTokens),
		System:    narrativeSystemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: buildNarrativePrompt(summary)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("narrative request: %w", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("narrative response empty")
	}
	return text, nil
}

// buildNarrativePrompt renders the bounded summary sent to the model: level
// counts plus at most five top offenders with their rule names. Raw referral
// contact details never leave the service.
func buildNarrativePrompt(summary ScanSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Referrer: %s\n", summary.ReferrerName)
	fmt.Fprintf(&b, "Referrals scanned: %d\n", summary.Scanned)
	fmt.Fprintf(&b, "Risk distribution: low=%d medium=%d high=%d critical=%d\n",
		summary.Counts.Low, summary.Counts.Medium, summary.Counts.High, summary.Counts.Critical)

	offenders := summary.TopOffenders
	if len(offenders) > maxNarrativeOffenders {
		offenders = offenders[:maxNarrativeOffenders]
	}
	if len(offenders) > 0 {
		b.WriteString("Top offenders:\n")
		for _, o := range offenders {
			fmt.Fprintf(&b, "- %s (score %d, %s): %s\n", o.Identifier, o.Score, o.Level, strings.Join(o.Rules, ", "))
		}
	}
	return b.String()
}
