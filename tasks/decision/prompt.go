package decision

import (
	"fmt"
	"strings"
	"time"

	"namewatch/utils"

	"github.com/bwmarrin/discordgo"
)

// promptEmbed 构建发往审核频道的提示消息
func promptEmbed(m *discordgo.Member, reason string) *discordgo.MessageEmbed {
	roles := make([]string, 0, len(m.Roles))
	for _, r := range m.Roles {
		roles = append(roles, fmt.Sprintf("<@&%s>", r))
	}
	roleList := strings.Join(roles, " , ")
	if roleList == "" {
		roleList = "-"
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Offender:", Value: fmt.Sprintf("%s <@%s>", m.User.Username, m.User.ID)},
		{Name: "Reason:", Value: reason},
		{Name: "User roles:", Value: roleList},
	}
	for _, o := range options {
		fields = append(fields, &discordgo.MessageEmbedField{Name: o.Label, Value: o.Emoji, Inline: true})
	}

	embed := &discordgo.MessageEmbed{
		Title:     "**Inappropriate username**",
		Color:     utils.ColorPrompt,
		Fields:    fields,
		Timestamp: time.Now().Format(time.RFC3339),
		Footer:    &discordgo.MessageEmbedFooter{Text: "ID: " + m.User.ID},
	}
	if avatar := m.User.AvatarURL(""); avatar != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: avatar}
	}
	return embed
}
