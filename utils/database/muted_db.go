package database

import (
	"context"
	"fmt"

	"namewatch/model"
)

const mutedColumns = `id, case_id, user_id, guild_id, username, reason, is_active, kick_timer, strike_count, created_at, modified_at`

// InsertMuted adds a new active muted record and fills in its ID and timestamps.
// A concurrent insert for the same member surfaces as model.ErrAlreadyActive.
func (s *Store) InsertMuted(ctx context.Context, rec *model.MutedRecord) error {
	now := s.now()
	rec.IsActive = true
	rec.CreatedAt = now
	rec.ModifiedAt = now

	query := s.q(`INSERT INTO muted_members (case_id, user_id, guild_id, username, reason, is_active, kick_timer, strike_count, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := s.db.QueryRowxContext(ctx, query,
		rec.CaseID, rec.UserID, rec.GuildID, rec.Username, rec.Reason,
		rec.IsActive, rec.KickTimer, rec.StrikeCount, rec.CreatedAt, rec.ModifiedAt,
	).Scan(&rec.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("muted record for user %s: %w", rec.UserID, model.ErrAlreadyActive)
		}
		return fmt.Errorf("failed to insert muted record: %w", err)
	}
	return nil
}

// ActiveMuted returns the member's active muted record, or model.ErrNotFound.
func (s *Store) ActiveMuted(ctx context.Context, guildID, userID string) (*model.MutedRecord, error) {
	var rec model.MutedRecord
	query := s.q(`SELECT ` + mutedColumns + ` FROM muted_members WHERE guild_id = ? AND user_id = ? AND is_active = ?`)
	if err := s.db.GetContext(ctx, &rec, query, guildID, userID, true); err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("active muted record for user %s: %w", userID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get active muted record for user %s: %w", userID, err)
	}
	return &rec, nil
}

// ListActiveMuted returns every active muted record in the guild.
func (s *Store) ListActiveMuted(ctx context.Context, guildID string) ([]model.MutedRecord, error) {
	var records []model.MutedRecord
	query := s.q(`SELECT ` + mutedColumns + ` FROM muted_members WHERE guild_id = ? AND is_active = ? ORDER BY id`)
	if err := s.db.SelectContext(ctx, &records, query, guildID, true); err != nil {
		return nil, fmt.Errorf("failed to list active muted records for guild %s: %w", guildID, err)
	}
	return records, nil
}

// CountActiveMuted counts active muted records; used to number placeholder nicknames.
func (s *Store) CountActiveMuted(ctx context.Context, guildID string) (int, error) {
	var n int
	query := s.q(`SELECT COUNT(*) FROM muted_members WHERE guild_id = ? AND is_active = ?`)
	if err := s.db.GetContext(ctx, &n, query, guildID, true); err != nil {
		return 0, fmt.Errorf("failed to count active muted records: %w", err)
	}
	return n, nil
}

// DeactivateMuted marks the record inactive. The kick timer survives only when keepKickTimer is set,
// so a member who leaves or is kicked can still be recognised on rejoin.
// Returns model.ErrNotFound if the record was already inactive.
func (s *Store) DeactivateMuted(ctx context.Context, id int64, keepKickTimer bool) error {
	query := s.q(`UPDATE muted_members SET is_active = ?, kick_timer = (kick_timer AND ?), modified_at = ? WHERE id = ? AND is_active = ?`)
	result, err := s.db.ExecContext(ctx, query, false, keepKickTimer, s.now(), id, true)
	if err != nil {
		return fmt.Errorf("failed to deactivate muted record %d: %w", id, err)
	}
	return expectOne(result, "muted record", id)
}

// SupersedeMuted retires oldID and inserts next in one transaction.
func (s *Store) SupersedeMuted(ctx context.Context, oldID int64, next *model.MutedRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now()
	result, err := tx.ExecContext(ctx,
		tx.Rebind(`UPDATE muted_members SET is_active = ?, kick_timer = ?, modified_at = ? WHERE id = ? AND is_active = ?`),
		false, false, now, oldID, true)
	if err != nil {
		return fmt.Errorf("failed to retire muted record %d: %w", oldID, err)
	}
	if err := expectOne(result, "muted record", oldID); err != nil {
		return err
	}

	next.IsActive = true
	next.CreatedAt = now
	next.ModifiedAt = now
	err = tx.QueryRowxContext(ctx,
		tx.Rebind(`INSERT INTO muted_members (case_id, user_id, guild_id, username, reason, is_active, kick_timer, strike_count, created_at, modified_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		next.CaseID, next.UserID, next.GuildID, next.Username, next.Reason,
		next.IsActive, next.KickTimer, next.StrikeCount, next.CreatedAt, next.ModifiedAt,
	).Scan(&next.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("muted record for user %s: %w", next.UserID, model.ErrAlreadyActive)
		}
		return fmt.Errorf("failed to insert superseding muted record: %w", err)
	}
	return tx.Commit()
}

// LatestKickTimerMuted returns the most recent record of the member that still carries a kick timer,
// active or not. Returns model.ErrNotFound when there is none.
func (s *Store) LatestKickTimerMuted(ctx context.Context, guildID, userID string) (*model.MutedRecord, error) {
	var rec model.MutedRecord
	query := s.q(`SELECT ` + mutedColumns + ` FROM muted_members WHERE guild_id = ? AND user_id = ? AND kick_timer = ? ORDER BY id DESC LIMIT 1`)
	if err := s.db.GetContext(ctx, &rec, query, guildID, userID, true); err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("kick-timer record for user %s: %w", userID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get kick-timer record for user %s: %w", userID, err)
	}
	return &rec, nil
}

// UpdateStrikes sets the strike count and kick timer flag of a record regardless of its active state.
func (s *Store) UpdateStrikes(ctx context.Context, id int64, strikes int, kickTimer bool) error {
	query := s.q(`UPDATE muted_members SET strike_count = ?, kick_timer = ?, modified_at = ? WHERE id = ?`)
	result, err := s.db.ExecContext(ctx, query, strikes, kickTimer, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to update strikes on muted record %d: %w", id, err)
	}
	return expectOne(result, "muted record", id)
}

// MaxStrikeCount returns the highest strike count ever recorded for the member, 0 if none.
func (s *Store) MaxStrikeCount(ctx context.Context, guildID, userID string) (int, error) {
	var n int
	query := s.q(`SELECT COALESCE(MAX(strike_count), 0) FROM muted_members WHERE guild_id = ? AND user_id = ?`)
	if err := s.db.GetContext(ctx, &n, query, guildID, userID); err != nil {
		return 0, fmt.Errorf("failed to get strike count for user %s: %w", userID, err)
	}
	return n, nil
}
