package referrals

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetReferrer(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	created := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM referrers").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email", "referral_code", "created_at"}).
			AddRow(id, "Khalid", "khalid@towerclub.app", "KHL-2214", created))

	repo := NewRepository(mock)
	referrer, err := repo.GetReferrer(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Khalid", referrer.Name)
	assert.Equal(t, "KHL-2214", referrer.ReferralCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByReferrerHandlesNullColumns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	referrerID := uuid.New()
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cols := []string{"id", "referrer_id", "referred_name", "referred_email", "referred_phone",
		"signup_ip", "device_fingerprint", "status", "collapse_reason", "position", "created_at"}

	mock.ExpectQuery("SELECT (.+) FROM referrals").
		WithArgs(referrerID, 20, 0).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(uuid.New(), referrerID, "Karim", "karim@gmail.com", "0554871239", "203.0.113.7", "fp-aaaa", StatusPending, nil, 1, created).
			AddRow(uuid.New(), referrerID, nil, nil, nil, nil, nil, StatusFlagged, "risk: duplicate_phone", 2, created.Add(time.Minute)))

	repo := NewRepository(mock)
	records, err := repo.ListByReferrer(context.Background(), referrerID, 20, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Karim", *records[0].ReferredName)
	assert.Equal(t, "0554871239", *records[0].ReferredPhone)
	assert.Nil(t, records[0].CollapseReason)

	assert.Nil(t, records[1].ReferredName)
	assert.Nil(t, records[1].ReferredPhone)
	assert.Equal(t, StatusFlagged, records[1].Status)
	assert.Equal(t, "risk: duplicate_phone", *records[1].CollapseReason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusNoRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	reason := "risk: duplicate_phone"
	mock.ExpectExec("UPDATE referrals").
		WithArgs(id, StatusFlagged, &reason).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewRepository(mock)
	err = repo.UpdateStatus(context.Background(), id, StatusFlagged, &reason)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountByReferrer(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	referrerID := uuid.New()
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(referrerID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(63)))

	repo := NewRepository(mock)
	total, err := repo.CountByReferrer(context.Background(), referrerID)
	require.NoError(t, err)
	assert.Equal(t, int64(63), total)
}
