package risk

import (
	"time"

	"github.com/google/uuid"
)

// Level classifies a risk score
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Action is the recommended follow-up for a risk level
type Action string

const (
	ActionNone            Action = "none"
	ActionMonitor         Action = "monitor"
	ActionReviewRequired  Action = "review_required"
	ActionFlagImmediately Action = "flag_immediately"
)

// ScanStatus is the lifecycle status of a scan run
type ScanStatus string

const (
	ScanStatusProcessing ScanStatus = "processing"
	ScanStatusCompleted  ScanStatus = "completed"
	ScanStatusFailed     ScanStatus = "failed"
)

// TriggeredRule is one weighted signal that contributed to a referral's score
type TriggeredRule struct {
	RuleID string `json:"rule_id"`
	Name   string `json:"name"`
	Weight int    `json:"weight"`
	Detail string `json:"detail,omitempty"`
}

// Assessment is the current risk verdict for one referral. Each referral holds
// exactly one assessment, overwritten by every scan.
type Assessment struct {
	ReferralID     uuid.UUID       `json:"referral_id" db:"referral_id"`
	ReferrerID     uuid.UUID       `json:"referrer_id" db:"referrer_id"`
	Score          int             `json:"score" db:"score"`
	Level          Level           `json:"level" db:"level"`
	Action         Action          `json:"recommended_action" db:"recommended_action"`
	TriggeredRules []TriggeredRule `json:"triggered_rules" db:"triggered_rules"`
	Narrative      *string         `json:"narrative,omitempty" db:"narrative"`
	AssessedAt     time.Time       `json:"assessed_at" db:"assessed_at"`
	Assessor       string          `json:"assessor" db:"assessor"`
}

// LevelCounts aggregates assessments per risk level
type LevelCounts struct {
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
}

// Add counts one assessment at the given level
func (c *LevelCounts) Add(level Level) {
	switch level {
	case LevelLow:
		c.Low++
	case LevelMedium:
		c.Medium++
	case LevelHigh:
		c.High++
	case LevelCritical:
		c.Critical++
	}
}

// Hot returns the number of high and critical assessments
func (c *LevelCounts) Hot() int {
	return c.High + c.Critical
}

// Total returns the number of counted assessments
func (c *LevelCounts) Total() int {
	return c.Low + c.Medium + c.High + c.Critical
}

// ScanRun is one execution of the scoring pipeline over a referrer's scope.
// Sealed runs (completed or failed) are never mutated; a correction creates
// a new run.
type ScanRun struct {
	ID           uuid.UUID   `json:"id" db:"id"`
	ReferrerID   uuid.UUID   `json:"referrer_id" db:"referrer_id"`
	Building     *int        `json:"building,omitempty" db:"building"`
	Status       ScanStatus  `json:"status" db:"status"`
	Counts       LevelCounts `json:"counts"`
	Narrative    *string     `json:"narrative,omitempty" db:"narrative"`
	ErrorMessage *string     `json:"error_message,omitempty" db:"error_message"`
	StartedAt    time.Time   `json:"started_at" db:"started_at"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty" db:"completed_at"`
}

// ScanSummary is the bounded structured summary handed to the narrative advisor
type ScanSummary struct {
	ReferrerName string            `json:"referrer_name"`
	Scanned      int               `json:"scanned"`
	Counts       LevelCounts       `json:"counts"`
	TopOffenders []OffenderSummary `json:"top_offenders"`
}

// QuickAnalysis is the ephemeral result of the fallback scorer. Nothing is
// persisted for it.
type QuickAnalysis struct {
	ReferrerID *uuid.UUID `json:"referrer_id,omitempty"`
	Scanned    int        `json:"scanned"`
	Score      int        `json:"score"`
	Level      Level      `json:"level"`
	Action     Action     `json:"recommended_action"`
	Signals    []string   `json:"signals"`
}

// OffenderSummary is one high-risk referral inside a ScanSummary
type OffenderSummary struct {
	ReferralID uuid.UUID `json:"referral_id"`
	Identifier string    `json:"identifier"`
	Score      int       `json:"score"`
	Level      Level     `json:"level"`
	Rules      []string  `json:"rules"`
}
