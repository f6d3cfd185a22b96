package referrals

import (
	"context"

	"github.com/google/uuid"
)

// RepositoryInterface defines the referral listing operations other modules depend on
type RepositoryInterface interface {
	GetReferrer(ctx context.Context, id uuid.UUID) (*Referrer, error)
	ListByReferrer(ctx context.Context, referrerID uuid.UUID, limit, offset int) ([]*ReferralRecord, error)
	CountByReferrer(ctx context.Context, referrerID uuid.UUID) (int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status ReferralStatus, reason *string) error
}
