package handlers

import (
	"namewatch/bot"

	"github.com/bwmarrin/discordgo"
)

// Register subscribes the guard to the gateway events it reacts to.
func Register(b *bot.Bot) {
	cfg := b.GetConfig()
	e := NewEvents(b.Context(), b.Guard, b.Decisions, b.Platform, cfg.Guard, cfg.LogChannelID)

	b.Session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		e.Ready(r.User.Username)
	})
	b.Session.AddHandler(func(_ *discordgo.Session, ev *discordgo.GuildMemberAdd) {
		e.MemberAdd(ev)
	})
	b.Session.AddHandler(func(_ *discordgo.Session, ev *discordgo.GuildMemberUpdate) {
		e.MemberUpdate(ev)
	})
	b.Session.AddHandler(func(_ *discordgo.Session, ev *discordgo.MessageReactionAdd) {
		e.ReactionAdd(ev)
	})
	b.Session.AddHandler(func(_ *discordgo.Session, ev *discordgo.GuildBanRemove) {
		e.BanRemove(ev)
	})
}
