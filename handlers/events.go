package handlers

import (
	"context"
	"errors"
	"log"
	"slices"
	"time"

	"namewatch/enforce"
	"namewatch/model"
	"namewatch/platform"
	"namewatch/policy"
	"namewatch/tasks/decision"
	"namewatch/utils"

	"github.com/bwmarrin/discordgo"
)

// Events turns gateway events of the watched guild into guard triggers.
type Events struct {
	ctx          context.Context
	guard        *enforce.Guard
	decisions    *decision.Manager
	plat         platform.Platform
	cfg          model.GuardConfig
	logChannelID string
}

func NewEvents(ctx context.Context, guard *enforce.Guard, decisions *decision.Manager, plat platform.Platform, cfg model.GuardConfig, logChannelID string) *Events {
	return &Events{
		ctx:          ctx,
		guard:        guard,
		decisions:    decisions,
		plat:         plat,
		cfg:          cfg,
		logChannelID: logChannelID,
	}
}

func (e *Events) report(operation, userID string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, policy.ErrListsUnavailable) {
		utils.LogWarn(e.plat, e.logChannelID, "Guard", operation, "forbidden word lists unavailable, no action taken for "+userID)
		return
	}
	log.Printf("[Guard] %s for %s failed: %v", operation, userID, err)
}

func (e *Events) Ready(username string) {
	log.Printf("Logged in as: %s", username)
	utils.LogInfo(e.plat, e.logChannelID, "System", "Startup", utils.SystemInfo())
}

// MemberAdd waits JoinDelay so other bots can assign roles first, then evaluates the member.
func (e *Events) MemberAdd(ev *discordgo.GuildMemberAdd) {
	if ev.Member == nil || ev.User == nil || ev.GuildID != e.cfg.GuildID {
		return
	}
	if e.cfg.JoinDelay > 0 {
		select {
		case <-time.After(e.cfg.JoinDelay):
		case <-e.ctx.Done():
			return
		}
	}

	// 等待期间角色可能已变化，重新获取
	m, err := e.plat.Member(e.ctx, e.cfg.GuildID, ev.User.ID)
	if errors.Is(err, platform.ErrNotFound) {
		return
	}
	if err != nil {
		log.Printf("[Guard] Failed to refetch joining member %s, using event payload: %v", ev.User.ID, err)
		m = ev.Member
	}
	e.report("join", ev.User.ID, e.guard.Handle(e.ctx, m, model.Joined{}))
}

// MemberUpdate handles renames and role changes. Without the previous state both are checked.
func (e *Events) MemberUpdate(ev *discordgo.GuildMemberUpdate) {
	if ev.Member == nil || ev.User == nil || ev.GuildID != e.cfg.GuildID || ev.User.Bot {
		return
	}
	before := ev.BeforeUpdate

	if before == nil || !sameRoles(before.Roles, ev.Roles) {
		e.report("role change", ev.User.ID, e.guard.HandleRoleChange(e.ctx, ev.User.ID))
	}

	old := ""
	if before != nil && before.User != nil {
		old = before.User.Username
	}
	if before == nil || old != ev.User.Username {
		e.report("rename", ev.User.ID, e.guard.Handle(e.ctx, ev.Member, model.RenamedFrom{Old: old}))
	}
}

func sameRoles(a, b []string) bool {
	sa, sb := slices.Clone(a), slices.Clone(b)
	slices.Sort(sa)
	slices.Sort(sb)
	return slices.Equal(sa, sb)
}

func (e *Events) ReactionAdd(ev *discordgo.MessageReactionAdd) {
	if ev.MessageReaction == nil || ev.GuildID != e.cfg.GuildID {
		return
	}
	member := ev.Member
	if member == nil && ev.UserID != e.plat.BotUserID() {
		m, err := e.plat.Member(e.ctx, ev.GuildID, ev.UserID)
		if err != nil {
			log.Printf("[Decision] Could not resolve reacting member %s: %v", ev.UserID, err)
			return
		}
		member = m
	}
	e.decisions.HandleReaction(decision.Reaction{
		MessageID: ev.MessageID,
		UserID:    ev.UserID,
		Emoji:     ev.Emoji.Name,
		Member:    member,
	})
}

func (e *Events) BanRemove(ev *discordgo.GuildBanRemove) {
	if ev.User == nil || ev.GuildID != e.cfg.GuildID {
		return
	}
	e.report("unban", ev.User.ID, e.guard.HandleBanRemoved(e.ctx, ev.User))
}
