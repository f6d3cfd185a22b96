package risk

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/towerclub/ambassador-server/internal/referrals"
	"github.com/towerclub/ambassador-server/pkg/common"
	"github.com/towerclub/ambassador-server/pkg/logger"
)

// ServiceConfig carries the engine tuning knobs
type ServiceConfig struct {
	BuildingSize    int
	ScanLockTTL     time.Duration
	Assessor        string
	NarrativeMinHot int
}

// Service orchestrates scan runs: it loads the scope, scores it, asks the
// narrative advisor when warranted, and persists the outcome.
type Service struct {
	referrals ReferralSource
	store     StoreInterface
	evaluator *Evaluator
	advisor   NarrativeAdvisor
	locker    ScanLocker
	cfg       ServiceConfig

	mu    sync.Mutex
	scans map[uuid.UUID]*sync.Mutex
}

var _ ServiceInterface = (*Service)(nil)

// NewService creates a new risk service. advisor and locker may be nil: no
// advisor means no narratives, no locker means in-process serialization only.
func NewService(referralSource ReferralSource, store StoreInterface, advisor NarrativeAdvisor, locker ScanLocker, cfg ServiceConfig) *Service {
	if cfg.BuildingSize <= 0 {
		cfg.BuildingSize = referrals.BuildingSize
	}
	if cfg.ScanLockTTL <= 0 {
		cfg.ScanLockTTL = 2 * time.Minute
	}
	if cfg.Assessor == "" {
		cfg.Assessor = "risk-engine"
	}
	if cfg.NarrativeMinHot <= 0 {
		cfg.NarrativeMinHot = 1
	}
	return &Service{
		referrals: referralSource,
		store:     store,
		evaluator: NewEvaluator(),
		advisor:   advisor,
		locker:    locker,
		cfg:       cfg,
	}
}

// Scan runs the full pipeline for one referrer. A nil building scans the whole
// history in building-size pages; building N (1-based) scans that page only.
// Scans for the same referrer are serialized, different referrers run in
// parallel.
func (s *Service) Scan(ctx context.Context, referrerID uuid.UUID, building *int) (*ScanRun, error) {
	start := time.Now()

	referrer, scope, err := s.loadScope(ctx, referrerID, building)
	if err != nil {
		return nil, err
	}

	unlock := s.lockReferrer(referrerID)
	defer unlock()

	runID := uuid.New()
	if s.locker != nil {
		key := "risk:scan:" + referrerID.String()
		acquired, lockErr := s.locker.AcquireLock(ctx, key, runID.String(), s.cfg.ScanLockTTL)
		if lockErr != nil {
			logger.WithContext(ctx).Warn("scan lock unavailable, proceeding with local lock only",
				zap.String("referrer_id", referrerID.String()),
				zap.Error(lockErr))
		} else if !acquired {
			return nil, common.NewConflictError("a scan for this referrer is already running")
		} else {
			defer func() {
				if relErr := s.locker.ReleaseLock(context.WithoutCancel(ctx), key, runID.String()); relErr != nil {
					logger.WithContext(ctx).Warn("failed to release scan lock", zap.Error(relErr))
				}
			}()
		}
	}

	run := &ScanRun{
		ID:         runID,
		ReferrerID: referrerID,
		Building:   building,
		Status:     ScanStatusProcessing,
		StartedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateScanRun(ctx, run); err != nil {
		return nil, common.NewInternalServerError("failed to create scan run")
	}

	// Full scope is evaluated before anything is written so a scoring failure
	// never leaves a half-scored building behind.
	evaluations := s.evaluator.Evaluate(scope)

	assessedAt := time.Now().UTC()
	assessments := make([]*Assessment, len(evaluations))
	var counts LevelCounts
	for i, ev := range evaluations {
		level := LevelFromScore(ev.Score)
		counts.Add(level)
		assessments[i] = &Assessment{
			ReferralID:     ev.Record.ID,
			ReferrerID:     referrerID,
			Score:          ev.Score,
			Level:          level,
			Action:         ActionForLevel(level),
			TriggeredRules: ev.Rules,
			AssessedAt:     assessedAt,
			Assessor:       s.cfg.Assessor,
		}
	}
	run.Counts = counts

	if s.advisor != nil && counts.Hot() >= s.cfg.NarrativeMinHot {
		summary := buildScanSummary(referrer.Name, assessments)
		if narrative, advErr := s.advisor.Summarize(ctx, summary); advErr != nil {
			logger.WithContext(ctx).Warn("narrative generation failed, continuing without",
				zap.String("scan_id", runID.String()),
				zap.Error(advErr))
		} else {
			run.Narrative = &narrative
		}
	}

	for i, a := range assessments {
		if err := s.store.UpsertAssessment(ctx, a); err != nil {
			return nil, s.sealFailed(ctx, run, start, fmt.Sprintf("upsert assessment %d/%d: %v", i+1, len(assessments), err))
		}
		assessmentsTotal.WithLabelValues(string(a.Level)).Inc()

		if a.Action == ActionFlagImmediately {
			reason := "risk: " + joinRuleIDs(a.TriggeredRules)
			if err := s.referrals.UpdateStatus(ctx, a.ReferralID, referrals.StatusFlagged, &reason); err != nil {
				return nil, s.sealFailed(ctx, run, start, fmt.Sprintf("flag referral %s: %v", a.ReferralID, err))
			}
		}
	}

	run.Status = ScanStatusCompleted
	completed := time.Now().UTC()
	run.CompletedAt = &completed
	if err := s.store.SealScanRun(ctx, run); err != nil {
		return nil, common.NewInternalServerError("failed to seal scan run")
	}

	scansTotal.WithLabelValues(string(ScanStatusCompleted)).Inc()
	scanDuration.Observe(time.Since(start).Seconds())
	logger.Info("scan completed",
		zap.String("scan_id", runID.String()),
		zap.String("referrer_id", referrerID.String()),
		zap.Int("scanned", len(scope)),
		zap.Int("hot", counts.Hot()),
	)
	return run, nil
}

// QuickAnalyze runs the deterministic fallback scorer over a referrer's scope
// without touching storage.
func (s *Service) QuickAnalyze(ctx context.Context, referrerID uuid.UUID, building *int) (*QuickAnalysis, error) {
	_, scope, err := s.loadScope(ctx, referrerID, building)
	if err != nil {
		return nil, err
	}
	result := s.analyze(scope)
	result.ReferrerID = &referrerID
	return result, nil
}

// AnalyzeRecords scores an ad-hoc set of referral records with the fallback
// scorer. Used for single-request analysis of not-yet-persisted signups.
func (s *Service) AnalyzeRecords(ctx context.Context, records []*referrals.ReferralRecord) (*QuickAnalysis, error) {
	if len(records) == 0 {
		return nil, common.NewBadRequestError("no referrals to analyze", nil)
	}
	return s.analyze(records), nil
}

// GetScanRun retrieves one scan run
func (s *Service) GetScanRun(ctx context.Context, id uuid.UUID) (*ScanRun, error) {
	run, err := s.store.GetScanRun(ctx, id)
	if errors.Is(err, ErrScanRunNotFound) {
		return nil, common.NewNotFoundError("scan run not found", err)
	}
	if err != nil {
		return nil, common.NewInternalServerError("failed to get scan run")
	}
	return run, nil
}

// GetAssessment retrieves the current assessment for one referral
func (s *Service) GetAssessment(ctx context.Context, referralID uuid.UUID) (*Assessment, error) {
	assessment, err := s.store.GetAssessment(ctx, referralID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("assessment not found", err)
	}
	if err != nil {
		return nil, common.NewInternalServerError("failed to get assessment")
	}
	return assessment, nil
}

// ListScanRuns retrieves a referrer's scan history with the total count
func (s *Service) ListScanRuns(ctx context.Context, referrerID uuid.UUID, limit, offset int) ([]*ScanRun, int64, error) {
	runs, err := s.store.ListScanRuns(ctx, referrerID, limit, offset)
	if err != nil {
		return nil, 0, common.NewInternalServerError("failed to list scan runs")
	}
	total, err := s.store.CountScanRuns(ctx, referrerID)
	if err != nil {
		return nil, 0, common.NewInternalServerError("failed to count scan runs")
	}
	return runs, total, nil
}

// ListAssessments retrieves a referrer's current assessments with the total count
func (s *Service) ListAssessments(ctx context.Context, referrerID uuid.UUID, limit, offset int) ([]*Assessment, int64, error) {
	assessments, err := s.store.ListAssessments(ctx, referrerID, limit, offset)
	if err != nil {
		return nil, 0, common.NewInternalServerError("failed to list assessments")
	}
	total, err := s.store.CountAssessments(ctx, referrerID)
	if err != nil {
		return nil, 0, common.NewInternalServerError("failed to count assessments")
	}
	return assessments, total, nil
}

// loadScope resolves the referrer and the referrals in scope. Unknown referrer
// and empty scope are input errors raised before any scan run exists.
func (s *Service) loadScope(ctx context.Context, referrerID uuid.UUID, building *int) (*referrals.Referrer, []*referrals.ReferralRecord, error) {
	referrer, err := s.referrals.GetReferrer(ctx, referrerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, common.NewNotFoundError("referrer not found", err)
		}
		return nil, nil, common.NewInternalServerError("failed to load referrer")
	}

	size := s.cfg.BuildingSize
	var scope []*referrals.ReferralRecord
	if building != nil {
		if *building < 1 {
			return nil, nil, common.NewBadRequestError("building must be >= 1", nil)
		}
		scope, err = s.referrals.ListByReferrer(ctx, referrerID, size, (*building-1)*size)
		if err != nil {
			return nil, nil, common.NewInternalServerError("failed to load referrals")
		}
	} else {
		for offset := 0; ; offset += size {
			page, pageErr := s.referrals.ListByReferrer(ctx, referrerID, size, offset)
			if pageErr != nil {
				return nil, nil, common.NewInternalServerError("failed to load referrals")
			}
			scope = append(scope, page...)
			if len(page) < size {
				break
			}
		}
	}

	if len(scope) == 0 {
		return nil, nil, common.NewBadRequestError("referrer has no referrals in scope", nil)
	}
	return referrer, scope, nil
}

func (s *Service) analyze(scope []*referrals.ReferralRecord) *QuickAnalysis {
	score, signals := s.evaluator.FallbackEvaluate(scope)
	level := LevelFromScore(score)
	if signals == nil {
		signals = []string{}
	}
	return &QuickAnalysis{
		Scanned: len(scope),
		Score:   score,
		Level:   level,
		Action:  ActionForLevel(level),
		Signals: signals,
	}
}

// lockReferrer serializes scans per referrer inside this process
func (s *Service) lockReferrer(referrerID uuid.UUID) func() {
	s.mu.Lock()
	if s.scans == nil {
		s.scans = make(map[uuid.UUID]*sync.Mutex)
	}
	lock, ok := s.scans[referrerID]
	if !ok {
		lock = &sync.Mutex{}
		s.scans[referrerID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func (s *Service) sealFailed(ctx context.Context, run *ScanRun, start time.Time, msg string) error {
	run.Status = ScanStatusFailed
	run.ErrorMessage = &msg
	completed := time.Now().UTC()
	run.CompletedAt = &completed

	ctx = context.WithoutCancel(ctx)
	if err := s.store.SealScanRun(ctx, run); err != nil {
		logger.WithContext(ctx).Error("failed to seal failed scan run",
			zap.String("scan_id", run.ID.String()),
			zap.Error(err))
	}
	scansTotal.WithLabelValues(string(ScanStatusFailed)).Inc()
	scanDuration.Observe(time.Since(start).Seconds())
	logger.WithContext(ctx).Error("scan failed",
		zap.String("scan_id", run.ID.String()),
		zap.String("error", msg))
	return common.NewInternalServerError("scan failed: " + msg)
}

// buildScanSummary picks the highest-scoring high/critical referrals for the
// narrative prompt. Identifiers are masked emails or record ids, never full
// contact details.
func buildScanSummary(referrerName string, assessments []*Assessment) ScanSummary {
	summary := ScanSummary{
		ReferrerName: referrerName,
		Scanned:      len(assessments),
	}

	hot := make([]*Assessment, 0, len(assessments))
	for _, a := range assessments {
		summary.Counts.Add(a.Level)
		if a.Level == LevelHigh || a.Level == LevelCritical {
			hot = append(hot, a)
		}
	}
	sort.Slice(hot, func(i, j int) bool { return hot[i].Score > hot[j].Score })
	if len(hot) > maxNarrativeOffenders {
		hot = hot[:maxNarrativeOffenders]
	}

	for _, a := range hot {
		rules := make([]string, len(a.TriggeredRules))
		for i, r := range a.TriggeredRules {
			rules[i] = r.RuleID
		}
		summary.TopOffenders = append(summary.TopOffenders, OffenderSummary{
			ReferralID: a.ReferralID,
			Identifier: "referral " + shortID(a.ReferralID),
			Score:      a.Score,
			Level:      a.Level,
			Rules:      rules,
		})
	}
	return summary
}

func joinRuleIDs(rules []TriggeredRule) string {
	if len(rules) == 0 {
		return "critical score"
	}
	out := rules[0].RuleID
	for _, r := range rules[1:] {
		out += ", " + r.RuleID
	}
	return out
}

func shortID(id uuid.UUID) string {
	s := id.String()
	return s[:8]
}
