// Package platform abstracts the chat platform primitives the moderation engine consumes.
package platform

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
)

// ErrNotFound is returned when a member, ban entry or message does not exist.
var ErrNotFound = errors.New("not found on platform")

// Platform is everything the engine needs from the chat platform.
// SendDM is best effort: callers log its error and carry on.
type Platform interface {
	BotUserID() string

	Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error)
	BanEntry(ctx context.Context, guildID, userID string) (*discordgo.GuildBan, error)

	AddRoles(ctx context.Context, guildID, userID string, roleIDs ...string) error
	RemoveRoles(ctx context.Context, guildID, userID string, roleIDs ...string) error
	SetNickname(ctx context.Context, guildID, userID, nickname string) error

	SendDM(ctx context.Context, userID, content string) error
	Kick(ctx context.Context, guildID, userID, reason string) error
	Ban(ctx context.Context, guildID, userID, reason string) error
	Unban(ctx context.Context, guildID, userID string) error

	SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error)
	SendPrompt(ctx context.Context, channelID string, embed *discordgo.MessageEmbed, reactions []string) (*discordgo.Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

// HasRoles reports whether the member carries every role in roleIDs.
func HasRoles(m *discordgo.Member, roleIDs ...string) bool {
	return len(MissingRoles(m, roleIDs...)) == 0
}

// MissingRoles returns the roles from roleIDs the member does not carry.
func MissingRoles(m *discordgo.Member, roleIDs ...string) []string {
	have := make(map[string]struct{}, len(m.Roles))
	for _, r := range m.Roles {
		have[r] = struct{}{}
	}
	var missing []string
	for _, id := range roleIDs {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// Username is the name policy is evaluated against.
func Username(m *discordgo.Member) string {
	if m == nil || m.User == nil {
		return ""
	}
	return m.User.Username
}
