package database

import (
	"context"
	"fmt"
	"time"

	"namewatch/model"
)

const bannedColumns = `id, case_id, user_id, guild_id, username, reason, expires_at, is_active, created_at, modified_at`

// InsertBanned adds a new active ban record.
func (s *Store) InsertBanned(ctx context.Context, rec *model.BannedRecord) error {
	now := s.now()
	rec.IsActive = true
	rec.CreatedAt = now
	rec.ModifiedAt = now

	query := s.q(`INSERT INTO banned_members (case_id, user_id, guild_id, username, reason, expires_at, is_active, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := s.db.QueryRowxContext(ctx, query,
		rec.CaseID, rec.UserID, rec.GuildID, rec.Username, rec.Reason,
		rec.ExpiresAt, rec.IsActive, rec.CreatedAt, rec.ModifiedAt,
	).Scan(&rec.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("ban record for user %s: %w", rec.UserID, model.ErrAlreadyActive)
		}
		return fmt.Errorf("failed to insert ban record: %w", err)
	}
	return nil
}

// ActiveBanned returns the member's active ban record, or model.ErrNotFound.
func (s *Store) ActiveBanned(ctx context.Context, guildID, userID string) (*model.BannedRecord, error) {
	var rec model.BannedRecord
	query := s.q(`SELECT ` + bannedColumns + ` FROM banned_members WHERE guild_id = ? AND user_id = ? AND is_active = ?`)
	if err := s.db.GetContext(ctx, &rec, query, guildID, userID, true); err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("active ban record for user %s: %w", userID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get active ban record for user %s: %w", userID, err)
	}
	return &rec, nil
}

// ListExpiredBanned returns active, non-permanent bans whose expiry is at or before now.
func (s *Store) ListExpiredBanned(ctx context.Context, guildID string, now time.Time) ([]model.BannedRecord, error) {
	var records []model.BannedRecord
	query := s.q(`SELECT ` + bannedColumns + ` FROM banned_members
		WHERE guild_id = ? AND is_active = ? AND expires_at <> ? AND expires_at <= ? ORDER BY id`)
	if err := s.db.SelectContext(ctx, &records, query, guildID, true, model.BanPermanent, now.Unix()); err != nil {
		return nil, fmt.Errorf("failed to list expired bans for guild %s: %w", guildID, err)
	}
	return records, nil
}

// DeactivateBanned marks a ban inactive. Returns model.ErrNotFound if it already was.
func (s *Store) DeactivateBanned(ctx context.Context, id int64) error {
	query := s.q(`UPDATE banned_members SET is_active = ?, modified_at = ? WHERE id = ? AND is_active = ?`)
	result, err := s.db.ExecContext(ctx, query, false, s.now(), id, true)
	if err != nil {
		return fmt.Errorf("failed to deactivate ban record %d: %w", id, err)
	}
	return expectOne(result, "ban record", id)
}
