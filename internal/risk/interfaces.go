package risk

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/towerclub/ambassador-server/internal/referrals"
)

// ReferralSource supplies the referrer and referral scope for a scan. The
// referrals repository satisfies it.
type ReferralSource interface {
	GetReferrer(ctx context.Context, id uuid.UUID) (*referrals.Referrer, error)
	ListByReferrer(ctx context.Context, referrerID uuid.UUID, limit, offset int) ([]*referrals.ReferralRecord, error)
	CountByReferrer(ctx context.Context, referrerID uuid.UUID) (int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status referrals.ReferralStatus, reason *string) error
}

// StoreInterface persists assessments and scan runs
type StoreInterface interface {
	UpsertAssessment(ctx context.Context, a *Assessment) error
	GetAssessment(ctx context.Context, referralID uuid.UUID) (*Assessment, error)
	ListAssessments(ctx context.Context, referrerID uuid.UUID, limit, offset int) ([]*Assessment, error)
	CountAssessments(ctx context.Context, referrerID uuid.UUID) (int64, error)
	CreateScanRun(ctx context.Context, run *ScanRun) error
	SealScanRun(ctx context.Context, run *ScanRun) error
	GetScanRun(ctx context.Context, id uuid.UUID) (*ScanRun, error)
	ListScanRuns(ctx context.Context, referrerID uuid.UUID, limit, offset int) ([]*ScanRun, error)
	CountScanRuns(ctx context.Context, referrerID uuid.UUID) (int64, error)
}

// ScanLocker serializes scans per referrer across processes. The redis client
// satisfies it; a nil locker falls back to in-process locking only.
type ScanLocker interface {
	AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, owner string) error
}

// ServiceInterface defines the risk engine operations exposed over HTTP
type ServiceInterface interface {
	Scan(ctx context.Context, referrerID uuid.UUID, building *int) (*ScanRun, error)
	QuickAnalyze(ctx context.Context, referrerID uuid.UUID, building *int) (*QuickAnalysis, error)
	AnalyzeRecords(ctx context.Context, records []*referrals.ReferralRecord) (*QuickAnalysis, error)
	GetScanRun(ctx context.Context, id uuid.UUID) (*ScanRun, error)
	ListScanRuns(ctx context.Context, referrerID uuid.UUID, limit, offset int) ([]*ScanRun, int64, error)
	GetAssessment(ctx context.Context, referralID uuid.UUID) (*Assessment, error)
	ListAssessments(ctx context.Context, referrerID uuid.UUID, limit, offset int) ([]*Assessment, int64, error)
}
