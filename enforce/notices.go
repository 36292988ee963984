package enforce

import (
	"fmt"
	"time"

	"namewatch/utils"

	"github.com/bwmarrin/discordgo"
)

// Member-facing direct messages.
const (
	dmMute = "You have been muted for having an inappropriate username. " +
		"We have changed your nickname for you. Please change your username as soon as possible!"
	dmMuteKick = " Since your username contains really offensive words, you will be kicked within %s if you don't change it."
	dmUpdate   = "Your changed username is still inappropriate. Please change your username to something appropriate!"
	dmUnmute   = "You have been unmuted. Your new username is your nickname for now."
	dmKick     = "You have been kicked from the server for: %s. Please change your username before joining again!"
	dmBanTemp  = "You will be temporarily (%d days) banned for having an inappropriate username."
	dmBanPerm  = "You will be permanently banned for having an inappropriate username."
)

func muteDM(kickTimer bool, grace time.Duration) string {
	if kickTimer {
		return dmMute + fmt.Sprintf(dmMuteKick, utils.FormatDuration(grace))
	}
	return dmMute
}

func updateDM(kickTimer bool, grace time.Duration) string {
	if kickTimer {
		return dmUpdate + fmt.Sprintf(dmMuteKick, utils.FormatDuration(grace))
	}
	return dmUpdate
}

func banDM(days int) string {
	if days <= 0 {
		return dmBanPerm
	}
	return fmt.Sprintf(dmBanTemp, days)
}

func reasonFor(username string) string {
	return "Inappropriate username: " + username
}

// notice builds an audit embed. auto and manual are the title suffixes with and without an actor.
func notice(user *discordgo.User, actor *discordgo.Member, color int, auto, manual string, fields ...*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	title := auto
	if actor != nil {
		title = manual
	}
	embed := &discordgo.MessageEmbed{
		Title:     "**Inappropriate username " + title + "**",
		Color:     color,
		Timestamp: time.Now().Format(time.RFC3339),
		Footer:    &discordgo.MessageEmbedFooter{Text: "ID: " + user.ID},
	}
	if user.Avatar != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: user.AvatarURL("")}
	}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:  "Offender:",
		Value: fmt.Sprintf("%s <@%s>", user.Username, user.ID),
	})
	embed.Fields = append(embed.Fields, fields...)
	if actor != nil && actor.User != nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Action performed by:",
			Value: fmt.Sprintf("%s <@%s>", actor.User.Username, actor.User.ID),
		})
	}
	return embed
}

func field(name, value string) *discordgo.MessageEmbedField {
	return &discordgo.MessageEmbedField{Name: name, Value: value}
}

func muteNotice(u *discordgo.User, actor *discordgo.Member, reason string) *discordgo.MessageEmbed {
	return notice(u, actor, utils.ColorMute, "automute", "mute", field("Reason:", reason))
}

func updateNotice(u *discordgo.User, actor *discordgo.Member, oldReason, newReason string) *discordgo.MessageEmbed {
	return notice(u, actor, utils.ColorMute, "autoupdate", "update",
		field("Old reason:", oldReason), field("New reason:", newReason))
}

func unmuteNotice(u *discordgo.User, actor *discordgo.Member) *discordgo.MessageEmbed {
	return notice(u, actor, utils.ColorUnmute, "auto unmute", "unmute")
}

func kickNotice(u *discordgo.User, actor *discordgo.Member, reason string) *discordgo.MessageEmbed {
	return notice(u, actor, utils.ColorKick, "kick", "kick", field("Reason:", reason))
}

func banNotice(u *discordgo.User, actor *discordgo.Member, reason string, days int) *discordgo.MessageEmbed {
	duration := "Permanently banned"
	if days > 0 {
		duration = fmt.Sprintf("%dd", days)
	}
	return notice(u, actor, utils.ColorBan, "autoban", "ban", field("Reason:", reason), field("Banned for:", duration))
}

func unbanNotice(u *discordgo.User, actor *discordgo.Member, reason string) *discordgo.MessageEmbed {
	return notice(u, actor, utils.ColorUnmute, "auto unban", "unban", field("Reason:", reason))
}

func discrepancyNotice(u *discordgo.User, what, detail string) *discordgo.MessageEmbed {
	return notice(u, nil, utils.ColorNotice, what, what, field("Details:", detail))
}
