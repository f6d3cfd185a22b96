package referrals

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs. It is also satisfied
// by pgxmock pools in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository handles referral data operations
type Repository struct {
	db DB
}

// Ensure the concrete repository satisfies the consumers' requirements.
var _ RepositoryInterface = (*Repository)(nil)

// NewRepository creates a new referral repository
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// GetReferrer retrieves a referrer by ID
func (r *Repository) GetReferrer(ctx context.Context, id uuid.UUID) (*Referrer, error) {
	query := `
		SELECT id, name, email, referral_code, created_at
		FROM referrers
		WHERE id = $1
	`

	var ref Referrer
	err := r.db.QueryRow(ctx, query, id).Scan(
		&ref.ID,
		&ref.Name,
		&ref.Email,
		&ref.ReferralCode,
		&ref.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &ref, nil
}

// ListByReferrer retrieves a referrer's referrals ordered by sequence position.
// Callers page through buildings by passing limit = building size and
// offset = building index * building size.
func (r *Repository) ListByReferrer(ctx context.Context, referrerID uuid.UUID, limit, offset int) ([]*ReferralRecord, error) {
	query := `
		SELECT id, referrer_id, referred_name, referred_email, referred_phone,
		       signup_ip, device_fingerprint, status, collapse_reason, position, created_at
		FROM referrals
		WHERE referrer_id = $1
		ORDER BY position ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, referrerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*ReferralRecord, 0)
	for rows.Next() {
		var rec ReferralRecord
		var name, email, phone, ip, device, reason sql.NullString

		err := rows.Scan(
			&rec.ID,
			&rec.ReferrerID,
			&name,
			&email,
			&phone,
			&ip,
			&device,
			&rec.Status,
			&reason,
			&rec.Position,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		rec.ReferredName = nullableString(name)
		rec.ReferredEmail = nullableString(email)
		rec.ReferredPhone = nullableString(phone)
		rec.SignupIP = nullableString(ip)
		rec.DeviceFingerprint = nullableString(device)
		rec.CollapseReason = nullableString(reason)

		records = append(records, &rec)
	}

	return records, rows.Err()
}

// CountByReferrer returns the total number of referrals for a referrer
func (r *Repository) CountByReferrer(ctx context.Context, referrerID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM referrals WHERE referrer_id = $1`, referrerID).Scan(&total)
	return total, err
}

// UpdateStatus updates a referral's lifecycle status, recording why it collapsed
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status ReferralStatus, reason *string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE referrals
		SET status = $2,
		    collapse_reason = COALESCE($3, collapse_reason)
		WHERE id = $1
	`, id, status, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("referral not found")
	}
	return nil
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
