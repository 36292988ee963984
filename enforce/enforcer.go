// Package enforce applies moderation decisions to both the platform and the store.
package enforce

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"time"

	"namewatch/model"
	"namewatch/platform"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
)

// Store is the record store the engine depends on. *database.Store implements it.
type Store interface {
	InsertMuted(ctx context.Context, rec *model.MutedRecord) error
	ActiveMuted(ctx context.Context, guildID, userID string) (*model.MutedRecord, error)
	ListActiveMuted(ctx context.Context, guildID string) ([]model.MutedRecord, error)
	CountActiveMuted(ctx context.Context, guildID string) (int, error)
	DeactivateMuted(ctx context.Context, id int64, keepKickTimer bool) error
	SupersedeMuted(ctx context.Context, oldID int64, next *model.MutedRecord) error
	LatestKickTimerMuted(ctx context.Context, guildID, userID string) (*model.MutedRecord, error)
	UpdateStrikes(ctx context.Context, id int64, strikes int, kickTimer bool) error
	MaxStrikeCount(ctx context.Context, guildID, userID string) (int, error)

	InsertBanned(ctx context.Context, rec *model.BannedRecord) error
	ActiveBanned(ctx context.Context, guildID, userID string) (*model.BannedRecord, error)
	ListExpiredBanned(ctx context.Context, guildID string, now time.Time) ([]model.BannedRecord, error)
	DeactivateBanned(ctx context.Context, id int64) error
}

// Enforcer performs mute, unmute, kick, ban and unban. Every action re-checks the
// current state first, so repeating one is a no-op. A nil actor means the action is automatic.
type Enforcer struct {
	plat  platform.Platform
	store Store
	cfg   model.GuardConfig
	now   func() time.Time
}

func NewEnforcer(plat platform.Platform, store Store, cfg model.GuardConfig) *Enforcer {
	return &Enforcer{plat: plat, store: store, cfg: cfg, now: time.Now}
}

func (e *Enforcer) audit(ctx context.Context, embed *discordgo.MessageEmbed) {
	if _, err := e.plat.SendEmbed(ctx, e.cfg.AuditChannelID, embed); err != nil {
		log.Printf("[Enforce] Failed to post audit notice %q: %v", embed.Title, err)
	}
}

func (e *Enforcer) dm(ctx context.Context, userID, content string) {
	if err := e.plat.SendDM(ctx, userID, content); err != nil {
		log.Printf("[Enforce] Failed to DM user %s: %v", userID, err)
	}
}

func (e *Enforcer) activeMuted(ctx context.Context, userID string) (*model.MutedRecord, error) {
	rec, err := e.store.ActiveMuted(ctx, e.cfg.GuildID, userID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

func (e *Enforcer) activeBanned(ctx context.Context, userID string) (*model.BannedRecord, error) {
	rec, err := e.store.ActiveBanned(ctx, e.cfg.GuildID, userID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

// Mute grants the mute roles, records the episode, renames the member to a placeholder
// and notifies them. A mute with a kick timer counts as a strike.
// It returns false when the member was already fully muted.
func (e *Enforcer) Mute(ctx context.Context, m *discordgo.Member, kickTimer bool, reason string, actor *discordgo.Member) (bool, error) {
	userID := m.User.ID
	rec, err := e.activeMuted(ctx, userID)
	if err != nil {
		return false, err
	}
	missing := platform.MissingRoles(m, e.cfg.MuteRoleIDs()...)
	if rec != nil && len(missing) == 0 {
		return false, nil
	}

	if len(missing) > 0 {
		if err := e.plat.AddRoles(ctx, e.cfg.GuildID, userID, missing...); err != nil {
			actionErrorCount.WithLabelValues("mute").Inc()
			return false, fmt.Errorf("granting mute roles to %s: %w", userID, err)
		}
	}
	if rec != nil {
		// roles were lost while the record stayed active, e.g. across a rejoin
		log.Printf("[Enforce] Re-applied mute roles to %s (case %s)", userID, rec.CaseID)
		return true, nil
	}

	count, err := e.store.CountActiveMuted(ctx, e.cfg.GuildID)
	if err != nil {
		log.Printf("[Enforce] Failed to count active mutes: %v", err)
	}
	strikes, err := e.store.MaxStrikeCount(ctx, e.cfg.GuildID, userID)
	if err != nil {
		log.Printf("[Enforce] Failed to read strike count for %s: %v", userID, err)
	}
	if kickTimer {
		strikes++
	}

	rec = &model.MutedRecord{
		CaseID:      uuid.NewString(),
		UserID:      userID,
		GuildID:     e.cfg.GuildID,
		Username:    platform.Username(m),
		Reason:      reason,
		KickTimer:   kickTimer,
		StrikeCount: strikes,
	}
	if err := e.store.InsertMuted(ctx, rec); err != nil {
		if errors.Is(err, model.ErrAlreadyActive) {
			log.Printf("[Enforce] Mute for %s already recorded concurrently", userID)
			return false, nil
		}
		actionErrorCount.WithLabelValues("mute").Inc()
		// 没有记录的禁言不会被巡检发现，撤回刚授予的身份组
		if len(missing) > 0 {
			if rerr := e.plat.RemoveRoles(ctx, e.cfg.GuildID, userID, missing...); rerr != nil {
				log.Printf("[Enforce] Failed to roll back mute roles on %s: %v", userID, rerr)
			} else {
				log.Printf("[Enforce] Rolled back mute roles on %s after the record could not be stored", userID)
			}
		}
		return false, fmt.Errorf("recording mute of %s: %w", userID, err)
	}

	if err := e.plat.SetNickname(ctx, e.cfg.GuildID, userID, fmt.Sprintf("Automute[%d]", count+1)); err != nil {
		log.Printf("[Enforce] Failed to set placeholder nickname for %s: %v", userID, err)
	}
	e.dm(ctx, userID, muteDM(kickTimer, e.cfg.KickGrace))
	e.audit(ctx, muteNotice(m.User, actor, reason))

	actionCount.WithLabelValues("mute").Inc()
	log.Printf("[Enforce] Muted %s (%s), case %s, kick timer %t", userID, rec.Username, rec.CaseID, kickTimer)
	return true, nil
}

// UpdateMute supersedes old with a record for the member's new, still violating, username.
// The grace timer is re-armed only when the new name is escalate-tier; arming it counts a strike.
func (e *Enforcer) UpdateMute(ctx context.Context, m *discordgo.Member, old *model.MutedRecord, cls model.Classification, actor *discordgo.Member) error {
	userID := m.User.ID
	username := platform.Username(m)
	strikes := old.StrikeCount
	if cls.Escalate && !old.KickTimer {
		strikes++
	}
	next := &model.MutedRecord{
		CaseID:      uuid.NewString(),
		UserID:      userID,
		GuildID:     e.cfg.GuildID,
		Username:    username,
		Reason:      reasonFor(username),
		KickTimer:   cls.Escalate,
		StrikeCount: strikes,
	}
	if err := e.store.SupersedeMuted(ctx, old.ID, next); err != nil {
		actionErrorCount.WithLabelValues("update").Inc()
		return fmt.Errorf("superseding mute of %s: %w", userID, err)
	}

	if missing := platform.MissingRoles(m, e.cfg.MuteRoleIDs()...); len(missing) > 0 {
		if err := e.plat.AddRoles(ctx, e.cfg.GuildID, userID, missing...); err != nil {
			log.Printf("[Enforce] Failed to restore mute roles on %s: %v", userID, err)
		}
	}
	e.dm(ctx, userID, updateDM(next.KickTimer, e.cfg.KickGrace))
	e.audit(ctx, updateNotice(m.User, actor, old.Reason, next.Reason))

	actionCount.WithLabelValues("update").Inc()
	log.Printf("[Enforce] Updated mute of %s: %q -> %q", userID, old.Username, username)
	return nil
}

// Unmute revokes the mute roles and retires rec (looked up when nil). Roles that are
// already gone are not an error. Returns false when there was nothing to undo.
func (e *Enforcer) Unmute(ctx context.Context, m *discordgo.Member, rec *model.MutedRecord, actor *discordgo.Member) (bool, error) {
	userID := m.User.ID
	if rec == nil {
		var err error
		if rec, err = e.activeMuted(ctx, userID); err != nil {
			return false, err
		}
	}

	roles := e.cfg.MuteRoleIDs()
	missing := platform.MissingRoles(m, roles...)
	held := make([]string, 0, len(roles))
	for _, r := range roles {
		if !slices.Contains(missing, r) {
			held = append(held, r)
		}
	}
	if rec == nil && len(held) == 0 {
		return false, nil
	}

	if len(held) > 0 {
		if err := e.plat.RemoveRoles(ctx, e.cfg.GuildID, userID, held...); err != nil {
			actionErrorCount.WithLabelValues("unmute").Inc()
			return false, fmt.Errorf("revoking mute roles from %s: %w", userID, err)
		}
	} else {
		log.Printf("[Enforce] Member %s already unmuted", userID)
	}

	if rec != nil {
		if err := e.store.DeactivateMuted(ctx, rec.ID, false); err != nil && !errors.Is(err, model.ErrNotFound) {
			actionErrorCount.WithLabelValues("unmute").Inc()
			return false, err
		}
	}

	if err := e.plat.SetNickname(ctx, e.cfg.GuildID, userID, platform.Username(m)); err != nil {
		log.Printf("[Enforce] Failed to restore nickname of %s: %v", userID, err)
	}
	e.dm(ctx, userID, dmUnmute)
	e.audit(ctx, unmuteNotice(m.User, actor))

	actionCount.WithLabelValues("unmute").Inc()
	log.Printf("[Enforce] Unmuted %s (%s)", userID, platform.Username(m))
	return true, nil
}

// Kick notifies the member and removes them from the guild. Records are the caller's business.
func (e *Enforcer) Kick(ctx context.Context, m *discordgo.Member, reason string, actor *discordgo.Member) error {
	userID := m.User.ID
	e.dm(ctx, userID, fmt.Sprintf(dmKick, reason))
	e.audit(ctx, kickNotice(m.User, actor, reason))
	if err := e.plat.Kick(ctx, e.cfg.GuildID, userID, reason); err != nil {
		actionErrorCount.WithLabelValues("kick").Inc()
		return fmt.Errorf("kicking %s: %w", userID, err)
	}
	actionCount.WithLabelValues("kick").Inc()
	log.Printf("[Enforce] Kicked %s (%s)", userID, user(m).Username)
	return nil
}

// Ban records and applies a ban of days length; days <= 0 is permanent.
// Returns false when an active ban already exists.
func (e *Enforcer) Ban(ctx context.Context, u *discordgo.User, days int, reason string, actor *discordgo.Member) (bool, error) {
	existing, err := e.activeBanned(ctx, u.ID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	// sent first: once banned the member may no longer share a server with the bot
	e.dm(ctx, u.ID, banDM(days))

	rec := &model.BannedRecord{
		CaseID:    uuid.NewString(),
		UserID:    u.ID,
		GuildID:   e.cfg.GuildID,
		Username:  u.Username,
		Reason:    reason,
		ExpiresAt: model.BanExpiry(e.now(), days),
	}
	if err := e.store.InsertBanned(ctx, rec); err != nil {
		if errors.Is(err, model.ErrAlreadyActive) {
			return false, nil
		}
		actionErrorCount.WithLabelValues("ban").Inc()
		return false, err
	}
	e.audit(ctx, banNotice(u, actor, reason, days))

	if err := e.plat.Ban(ctx, e.cfg.GuildID, u.ID, reason); err != nil {
		actionErrorCount.WithLabelValues("ban").Inc()
		if derr := e.store.DeactivateBanned(ctx, rec.ID); derr != nil {
			log.Printf("[Enforce] Failed to retire ban record %d after platform error: %v", rec.ID, derr)
		}
		return false, fmt.Errorf("banning %s: %w", u.ID, err)
	}

	actionCount.WithLabelValues("ban").Inc()
	log.Printf("[Enforce] Banned %s (%s) for %d days, case %s", u.ID, u.Username, days, rec.CaseID)
	return true, nil
}

// Unban retires the ban record, lifting the platform ban first when performPlatform is set.
// A platform ban that is already gone is not an error.
func (e *Enforcer) Unban(ctx context.Context, u *discordgo.User, rec *model.BannedRecord, performPlatform bool, actor *discordgo.Member) error {
	if rec == nil {
		var err error
		if rec, err = e.activeBanned(ctx, u.ID); err != nil {
			return err
		}
	}
	if rec == nil && !performPlatform {
		return nil
	}

	if performPlatform {
		if err := e.plat.Unban(ctx, e.cfg.GuildID, u.ID); err != nil {
			if !errors.Is(err, platform.ErrNotFound) {
				actionErrorCount.WithLabelValues("unban").Inc()
				return fmt.Errorf("unbanning %s: %w", u.ID, err)
			}
			log.Printf("[Enforce] Ban of %s already lifted on the platform", u.ID)
		}
	}

	reason := ""
	if rec != nil {
		if err := e.store.DeactivateBanned(ctx, rec.ID); err != nil && !errors.Is(err, model.ErrNotFound) {
			actionErrorCount.WithLabelValues("unban").Inc()
			return err
		}
		reason = rec.Reason
	}
	e.audit(ctx, unbanNotice(u, actor, reason))

	actionCount.WithLabelValues("unban").Inc()
	log.Printf("[Enforce] Unbanned %s (%s)", u.ID, u.Username)
	return nil
}

// Retire deactivates a muted record without touching the platform.
func (e *Enforcer) Retire(ctx context.Context, rec *model.MutedRecord, keepKickTimer bool) error {
	if err := e.store.DeactivateMuted(ctx, rec.ID, keepKickTimer); err != nil && !errors.Is(err, model.ErrNotFound) {
		return err
	}
	return nil
}

// RetireMutedExternally retires a mute that someone else already lifted.
func (e *Enforcer) RetireMutedExternally(ctx context.Context, u *discordgo.User, rec *model.MutedRecord) error {
	if err := e.Retire(ctx, rec, false); err != nil {
		return err
	}
	discrepancyCount.WithLabelValues("mute").Inc()
	log.Printf("[Enforce] Member %s already unmuted externally, retired case %s", rec.UserID, rec.CaseID)
	e.audit(ctx, discrepancyNotice(u, "already unmuted",
		"The mute roles were removed outside the bot. The mute record has been closed."))
	return nil
}

// RetireBanExternally retires a ban that is no longer present on the platform.
func (e *Enforcer) RetireBanExternally(ctx context.Context, u *discordgo.User, rec *model.BannedRecord) error {
	if err := e.store.DeactivateBanned(ctx, rec.ID); err != nil && !errors.Is(err, model.ErrNotFound) {
		return err
	}
	discrepancyCount.WithLabelValues("ban").Inc()
	log.Printf("[Enforce] Ban of %s already lifted externally, retired case %s", rec.UserID, rec.CaseID)
	e.audit(ctx, discrepancyNotice(u, "already unbanned",
		"The ban was lifted outside the bot. The ban record has been closed."))
	return nil
}

func user(m *discordgo.Member) *discordgo.User {
	if m == nil || m.User == nil {
		return &discordgo.User{}
	}
	return m.User
}
