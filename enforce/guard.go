package enforce

import (
	"context"
	"errors"
	"fmt"
	"log"

	"namewatch/model"
	"namewatch/platform"
	"namewatch/tasks/decision"
	"namewatch/utils"

	"github.com/bwmarrin/discordgo"
)

// Classifier is the username policy.
type Classifier interface {
	Classify(ctx context.Context, username string) (model.Classification, error)
}

// Reviewer hands a violation to a human moderator.
type Reviewer interface {
	Open(ctx context.Context, m *discordgo.Member, reason string) error
	Active(guildID, userID string) bool
}

// Guard turns triggers into enforcement. Every entry point takes the member lock, so
// events, reconciliation and review decisions for one member never interleave.
type Guard struct {
	enf      *Enforcer
	cls      Classifier
	store    Store
	plat     platform.Platform
	locks    *utils.MemberLocks
	cfg      model.GuardConfig
	reviewer Reviewer
}

func NewGuard(enf *Enforcer, cls Classifier, store Store, plat platform.Platform, locks *utils.MemberLocks, cfg model.GuardConfig) *Guard {
	return &Guard{enf: enf, cls: cls, store: store, plat: plat, locks: locks, cfg: cfg}
}

// SetReviewer wires the review workflow. Without one, privileged violations are only logged.
func (g *Guard) SetReviewer(r Reviewer) {
	g.reviewer = r
}

func (g *Guard) Enforcer() *Enforcer {
	return g.enf
}

func (g *Guard) Locks() *utils.MemberLocks {
	return g.locks
}

// Handle evaluates the member under their lock.
func (g *Guard) Handle(ctx context.Context, m *discordgo.Member, trig model.Trigger) error {
	if m == nil || m.User == nil {
		return nil
	}
	unlock := g.locks.Lock(g.cfg.GuildID, m.User.ID)
	defer unlock()
	return g.Evaluate(ctx, m, trig)
}

// Evaluate brings the member in line with policy. The caller must hold the member lock.
func (g *Guard) Evaluate(ctx context.Context, m *discordgo.Member, trig model.Trigger) error {
	if m == nil || m.User == nil || m.User.Bot {
		return nil
	}
	triggerCount.WithLabelValues(trig.String()).Inc()

	_, joined := trig.(model.Joined)
	if joined {
		banned, err := g.checkRejoin(ctx, m)
		if err != nil || banned {
			return err
		}
	}

	username := platform.Username(m)
	if r, ok := trig.(model.RenamedFrom); ok && r.Old != "" {
		log.Printf("[Guard] %s renamed %q -> %q", m.User.ID, r.Old, username)
	}
	rec, err := g.enf.activeMuted(ctx, m.User.ID)
	if err != nil {
		return err
	}

	if rec != nil {
		if username == rec.Username {
			if joined {
				_, err := g.enf.Mute(ctx, m, rec.KickTimer, rec.Reason, nil)
				return err
			}
			return nil
		}
		cls, err := g.cls.Classify(ctx, username)
		if err != nil {
			return fmt.Errorf("re-classifying %s: %w", m.User.ID, err)
		}
		if !cls.ShouldAct {
			_, err := g.enf.Unmute(ctx, m, rec, nil)
			return err
		}
		return g.enf.UpdateMute(ctx, m, rec, cls, nil)
	}

	cls, err := g.cls.Classify(ctx, username)
	if err != nil {
		return fmt.Errorf("classifying %s: %w", m.User.ID, err)
	}
	if !cls.ShouldAct {
		return nil
	}

	reason := reasonFor(username)
	if cls.Escalate || !utils.IsPrivileged(m, g.cfg.PrivilegedRoleIDs) {
		_, err := g.enf.Mute(ctx, m, cls.Escalate, reason, nil)
		return err
	}
	if g.reviewer == nil {
		log.Printf("[Guard] No reviewer configured, privileged member %s (%s) left for manual review", m.User.ID, username)
		return nil
	}
	if g.reviewer.Active(g.cfg.GuildID, m.User.ID) {
		return nil
	}
	return g.reviewer.Open(ctx, m, reason)
}

// HandleRoleChange retires the active mute when the mute roles were removed by someone else.
// The member is re-fetched because role events can arrive out of order.
func (g *Guard) HandleRoleChange(ctx context.Context, userID string) error {
	unlock := g.locks.Lock(g.cfg.GuildID, userID)
	defer unlock()

	rec, err := g.enf.activeMuted(ctx, userID)
	if err != nil || rec == nil {
		return err
	}
	m, err := g.plat.Member(ctx, g.cfg.GuildID, userID)
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			return nil
		}
		return err
	}
	if platform.HasRoles(m, g.cfg.MuteRoleIDs()...) {
		return nil
	}
	return g.enf.RetireMutedExternally(ctx, m.User, rec)
}

// HandleBanRemoved retires the active ban after a platform-side unban.
func (g *Guard) HandleBanRemoved(ctx context.Context, u *discordgo.User) error {
	unlock := g.locks.Lock(g.cfg.GuildID, u.ID)
	defer unlock()

	rec, err := g.enf.activeBanned(ctx, u.ID)
	if err != nil || rec == nil {
		return err
	}
	return g.enf.RetireBanExternally(ctx, u, rec)
}

// Dispatch carries out a moderator's review decision.
func (g *Guard) Dispatch(ctx context.Context, d decision.Decision) error {
	unlock := g.locks.Lock(d.GuildID, d.UserID)
	defer unlock()

	m, err := g.plat.Member(ctx, d.GuildID, d.UserID)
	if err != nil && !errors.Is(err, platform.ErrNotFound) {
		return err
	}
	u := &discordgo.User{ID: d.UserID, Username: d.Username}
	if m != nil {
		u = m.User
	}

	switch d.Action {
	case decision.ActionMute:
		if m == nil {
			return fmt.Errorf("member %s left before mute: %w", d.UserID, platform.ErrNotFound)
		}
		_, err = g.enf.Mute(ctx, m, false, d.Reason, d.Actor)
	case decision.ActionKick:
		if m == nil {
			return fmt.Errorf("member %s left before kick: %w", d.UserID, platform.ErrNotFound)
		}
		err = g.enf.Kick(ctx, m, d.Reason, d.Actor)
	case decision.ActionBan7, decision.ActionBan15, decision.ActionBan30, decision.ActionPermaban:
		_, err = g.enf.Ban(ctx, u, d.Action.BanDays(), d.Reason, d.Actor)
	}
	return err
}
