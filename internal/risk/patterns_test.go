package risk

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/towerclub/ambassador-server/internal/referrals"
)

func strPtr(s string) *string { return &s }

func referralWith(email, phone string, createdAt time.Time) *referrals.ReferralRecord {
	rec := &referrals.ReferralRecord{
		ID:        uuid.New(),
		Status:    referrals.StatusPending,
		CreatedAt: createdAt,
	}
	if email != "" {
		rec.ReferredEmail = strPtr(email)
	}
	if phone != "" {
		rec.ReferredPhone = strPtr(phone)
	}
	return rec
}

func TestSequentialEmailPatternDetected(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	scope := []*referrals.ReferralRecord{
		referralWith("user1@gmail.com", "", base),
		referralWith("user2@gmail.com", "", base.Add(time.Hour)),
		referralWith("user3@gmail.com", "", base.Add(2*time.Hour)),
		referralWith("karim@gmail.com", "", base.Add(3*time.Hour)),
		referralWith("sara@gmail.com", "", base.Add(4*time.Hour)),
	}
	assert.True(t, HasSequentialEmailPattern(scope))
}

func TestSequentialEmailPatternNeedsFiveReferrals(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	scope := []*referrals.ReferralRecord{
		referralWith("user1@gmail.com", "", base),
		referralWith("user2@gmail.com", "", base),
		referralWith("user3@gmail.com", "", base),
		referralWith("user4@gmail.com", "", base),
	}
	// Four suffixed emails but only four referrals in scope
	assert.False(t, HasSequentialEmailPattern(scope))
}

func TestSequentialEmailPatternIgnoresScatteredSuffixes(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	scope := []*referrals.ReferralRecord{
		referralWith("user1@gmail.com", "", base),
		referralWith("user40@gmail.com", "", base),
		referralWith("user900@gmail.com", "", base),
		referralWith("karim@gmail.com", "", base),
		referralWith("sara@gmail.com", "", base),
	}
	assert.False(t, HasSequentialEmailPattern(scope))
}

func TestRapidSignupCount(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	scope := []*referrals.ReferralRecord{
		referralWith("a@x.com", "", base.Add(30*time.Minute)),
		referralWith("b@x.com", "", base),
		referralWith("c@x.com", "", base.Add(2*time.Minute)),
	}
	// Sorted: base, base+2m, base+30m. Only the first pair is under the window.
	assert.Equal(t, 1, RapidSignupCount(scope))
	assert.Equal(t, 0, RapidSignupCount(scope[:1]))
}

func TestIsSuspiciousName(t *testing.T) {
	assert.True(t, IsSuspiciousName("test123"))
	assert.True(t, IsSuspiciousName("FAKE"))
	assert.True(t, IsSuspiciousName("1234"))
	assert.True(t, IsSuspiciousName("★★★"))
	assert.True(t, IsSuspiciousName("ـــ"))
	assert.True(t, IsSuspiciousName("عليـــ"))

	assert.False(t, IsSuspiciousName("Ahmed Ali"))
	assert.False(t, IsSuspiciousName("محمد"))
	assert.False(t, IsSuspiciousName("ســارة")) // short elongation inside a real name
	assert.False(t, IsSuspiciousName(""))
	assert.False(t, IsSuspiciousName("Tester McName")) // "test" only matches alone
}

func TestIsSuspiciousPhone(t *testing.T) {
	assert.True(t, IsSuspiciousPhone("5555555"))
	assert.True(t, IsSuspiciousPhone("+966 1234567"))
	assert.True(t, IsSuspiciousPhone("9876543210"))
	assert.True(t, IsSuspiciousPhone("0000051234"))
	assert.True(t, IsSuspiciousPhone("512512512"))

	assert.False(t, IsSuspiciousPhone("554871239"))
	assert.False(t, IsSuspiciousPhone(""))
	assert.False(t, IsSuspiciousPhone("55 48 71 23"))
}

func TestCrossChannelGroups(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	a := referralWith("one@gmail.com", "0554871239", base)
	b := referralWith("two@gmail.com", "0554872864", base)
	noPhone := referralWith("three@gmail.com", "", base)

	groups := CrossChannelGroups([]*referrals.ReferralRecord{a, b, noPhone})
	assert.Len(t, groups, 1)
	assert.Len(t, groups["55487|gmail.com"], 2)

	assert.True(t, HasSuspiciousCombination(groups))
	assert.False(t, HasCoordinatedGroup(groups))

	c := referralWith("four@gmail.com", "0554873117", base)
	groups = CrossChannelGroups([]*referrals.ReferralRecord{a, b, c})
	assert.True(t, HasCoordinatedGroup(groups))
}
