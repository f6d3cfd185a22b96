package risk

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrScanRunNotFound is returned when a scan run id resolves to nothing.
var ErrScanRunNotFound = errors.New("scan run not found")

// DB is the subset of pgxpool.Pool the repository needs. It is also satisfied
// by pgxmock pools in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists assessments and scan runs
type Repository struct {
	db DB
}

var _ StoreInterface = (*Repository)(nil)

// NewRepository creates a new risk repository
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// UpsertAssessment writes the current assessment for a referral, replacing any
// previous verdict. Latest scan always wins.
func (r *Repository) UpsertAssessment(ctx context.Context, a *Assessment) error {
	rules, err := json.Marshal(a.TriggeredRules)
	if err != nil {
		return fmt.Errorf("marshal triggered rules: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO risk_assessments (referral_id, referrer_id, score, level, recommended_action,
		                              triggered_rules, narrative, assessed_at, assessor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (referral_id) DO UPDATE SET
			score = EXCLUDED.score,
			level = EXCLUDED.level,
			recommended_action = EXCLUDED.recommended_action,
			triggered_rules = EXCLUDED.triggered_rules,
			narrative = EXCLUDED.narrative,
			assessed_at = EXCLUDED.assessed_at,
			assessor = EXCLUDED.assessor
	`, a.ReferralID, a.ReferrerID, a.Score, a.Level, a.Action, rules, a.Narrative, a.AssessedAt, a.Assessor)
	return err
}

// GetAssessment retrieves the current assessment for one referral
func (r *Repository) GetAssessment(ctx context.Context, referralID uuid.UUID) (*Assessment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT referral_id, referrer_id, score, level, recommended_action,
		       triggered_rules, narrative, assessed_at, assessor
		FROM risk_assessments
		WHERE referral_id = $1
	`, referralID)
	return scanAssessment(row)
}

// ListAssessments retrieves a referrer's current assessments, highest score first
func (r *Repository) ListAssessments(ctx context.Context, referrerID uuid.UUID, limit, offset int) ([]*Assessment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT referral_id, referrer_id, score, level, recommended_action,
		       triggered_rules, narrative, assessed_at, assessor
		FROM risk_assessments
		WHERE referrer_id = $1
		ORDER BY score DESC, assessed_at DESC
		LIMIT $2 OFFSET $3
	`, referrerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assessments := make([]*Assessment, 0)
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		assessments = append(assessments, a)
	}
	return assessments, rows.Err()
}

// CountAssessments returns the number of current assessments for a referrer
func (r *Repository) CountAssessments(ctx context.Context, referrerID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM risk_assessments WHERE referrer_id = $1`, referrerID).Scan(&total)
	return total, err
}

// CreateScanRun inserts a run in processing state
func (r *Repository) CreateScanRun(ctx context.Context, run *ScanRun) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO scan_runs (id, referrer_id, building, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`, run.ID, run.ReferrerID, run.Building, run.Status, run.StartedAt)
	return err
}

// SealScanRun writes the terminal state of a run. Processing rows only; a run
// already sealed is left untouched.
func (r *Repository) SealScanRun(ctx context.Context, run *ScanRun) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE scan_runs
		SET status = $2,
		    low_count = $3, medium_count = $4, high_count = $5, critical_count = $6,
		    narrative = $7, error_message = $8, completed_at = $9
		WHERE id = $1 AND status = 'processing'
	`, run.ID, run.Status,
		run.Counts.Low, run.Counts.Medium, run.Counts.High, run.Counts.Critical,
		run.Narrative, run.ErrorMessage, run.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrScanRunNotFound
	}
	return nil
}

// GetScanRun retrieves one scan run by id
func (r *Repository) GetScanRun(ctx context.Context, id uuid.UUID) (*ScanRun, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, referrer_id, building, status,
		       low_count, medium_count, high_count, critical_count,
		       narrative, error_message, started_at, completed_at
		FROM scan_runs
		WHERE id = $1
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrScanRunNotFound
	}
	return run, err
}

// ListScanRuns retrieves a referrer's scan history, newest first
func (r *Repository) ListScanRuns(ctx context.Context, referrerID uuid.UUID, limit, offset int) ([]*ScanRun, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, referrer_id, building, status,
		       low_count, medium_count, high_count, critical_count,
		       narrative, error_message, started_at, completed_at
		FROM scan_runs
		WHERE referrer_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`, referrerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*ScanRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CountScanRuns returns the number of scan runs recorded for a referrer
func (r *Repository) CountScanRuns(ctx context.Context, referrerID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM scan_runs WHERE referrer_id = $1`, referrerID).Scan(&total)
	return total, err
}

func scanAssessment(row pgx.Row) (*Assessment, error) {
	var a Assessment
	var rules []byte
	var narrative sql.NullString

	err := row.Scan(
		&a.ReferralID,
		&a.ReferrerID,
		&a.Score,
		&a.Level,
		&a.Action,
		&rules,
		&narrative,
		&a.AssessedAt,
		&a.Assessor,
	)
	if err != nil {
		return nil, err
	}

	if len(rules) > 0 {
		if err := json.Unmarshal(rules, &a.TriggeredRules); err != nil {
			return nil, fmt.Errorf("unmarshal triggered rules: %w", err)
		}
	}
	if narrative.Valid {
		a.Narrative = &narrative.String
	}
	return &a, nil
}

func scanRun(row pgx.Row) (*ScanRun, error) {
	var run ScanRun
	var narrative, errMsg sql.NullString
	var building sql.NullInt32
	var completedAt sql.NullTime

	err := row.Scan(
		&run.ID,
		&run.ReferrerID,
		&building,
		&run.Status,
		&run.Counts.Low,
		&run.Counts.Medium,
		&run.Counts.High,
		&run.Counts.Critical,
		&narrative,
		&errMsg,
		&run.StartedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if building.Valid {
		b := int(building.Int32)
		run.Building = &b
	}
	if narrative.Valid {
		run.Narrative = &narrative.String
	}
	if errMsg.Valid {
		run.ErrorMessage = &errMsg.String
	}
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	return &run, nil
}
