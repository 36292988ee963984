package model

import (
	"math"
	"time"
)

// BanPermanent is the expires_at sentinel for bans with no natural expiry.
const BanPermanent int64 = math.MaxInt64

// MutedRecord is one muting episode. The table is named 'muted_members'.
// At most one row per (guild_id, user_id) has is_active set.
type MutedRecord struct {
	ID          int64     `db:"id"`
	CaseID      string    `db:"case_id"`
	UserID      string    `db:"user_id"`
	GuildID     string    `db:"guild_id"`
	Username    string    `db:"username"` // offending username at the time of the mute
	Reason      string    `db:"reason"`
	IsActive    bool      `db:"is_active"`
	KickTimer   bool      `db:"kick_timer"`
	StrikeCount int       `db:"strike_count"`
	CreatedAt   time.Time `db:"created_at"`
	ModifiedAt  time.Time `db:"modified_at"`
}

// KickDue reports whether the kick grace period has run out.
func (r MutedRecord) KickDue(now time.Time, grace time.Duration) bool {
	return r.KickTimer && now.Sub(r.CreatedAt) > grace
}

// BannedRecord is one ban episode. The table is named 'banned_members'.
type BannedRecord struct {
	ID         int64     `db:"id"`
	CaseID     string    `db:"case_id"`
	UserID     string    `db:"user_id"`
	GuildID    string    `db:"guild_id"`
	Username   string    `db:"username"`
	Reason     string    `db:"reason"`
	ExpiresAt  int64     `db:"expires_at"` // unix seconds, BanPermanent for no expiry
	IsActive   bool      `db:"is_active"`
	CreatedAt  time.Time `db:"created_at"`
	ModifiedAt time.Time `db:"modified_at"`
}

// IsPermanent reports whether the ban never expires on its own.
func (r BannedRecord) IsPermanent() bool {
	return r.ExpiresAt == BanPermanent
}

// Expired reports whether a temporary ban has run its course.
func (r BannedRecord) Expired(now time.Time) bool {
	return !r.IsPermanent() && now.Unix() >= r.ExpiresAt
}

// BanExpiry computes expires_at for a ban of the given length in days.
// Days are fixed 24h windows; days <= 0 means permanent.
func BanExpiry(now time.Time, days int) int64 {
	if days <= 0 {
		return BanPermanent
	}
	return now.Add(time.Duration(days) * 24 * time.Hour).Unix()
}
