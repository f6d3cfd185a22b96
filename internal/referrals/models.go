package referrals

import (
	"time"

	"github.com/google/uuid"
)

// ReferralStatus is the lifecycle status of a referral
type ReferralStatus string

const (
	StatusPending   ReferralStatus = "pending"
	StatusCompleted ReferralStatus = "completed"
	StatusFlagged   ReferralStatus = "flagged"
)

// Referrer represents an ambassador recruiting users through a referral code
type Referrer struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	ReferralCode string    `json:"referral_code" db:"referral_code"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// ReferralRecord represents one signup attributed to a referrer.
// Name, email and phone of the referred user are optional: a record is
// created as soon as the code is redeemed, before the profile is complete.
type ReferralRecord struct {
	ID                uuid.UUID      `json:"id" db:"id"`
	ReferrerID        uuid.UUID      `json:"referrer_id" db:"referrer_id"`
	ReferredName      *string        `json:"referred_name,omitempty" db:"referred_name"`
	ReferredEmail     *string        `json:"referred_email,omitempty" db:"referred_email"`
	ReferredPhone     *string        `json:"referred_phone,omitempty" db:"referred_phone"`
	SignupIP          *string        `json:"signup_ip,omitempty" db:"signup_ip"`
	DeviceFingerprint *string        `json:"device_fingerprint,omitempty" db:"device_fingerprint"`
	Status            ReferralStatus `json:"status" db:"status"`
	CollapseReason    *string        `json:"collapse_reason,omitempty" db:"collapse_reason"`
	Position          int            `json:"position" db:"position"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
}

// BuildingSize is the fixed page size of one "building" in the ambassador UI.
// It also bounds the pairwise comparison scope of a risk scan.
const BuildingSize = 20
