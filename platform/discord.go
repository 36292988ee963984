package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// Discord implements Platform on a discordgo session.
type Discord struct {
	s *discordgo.Session
}

func NewDiscord(s *discordgo.Session) *Discord {
	return &Discord{s: s}
}

func (d *Discord) BotUserID() string {
	if d.s.State == nil || d.s.State.User == nil {
		return ""
	}
	return d.s.State.User.ID
}

// translate maps "unknown X" REST errors onto ErrNotFound.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Message != nil {
			switch restErr.Message.Code {
			case discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownBan,
				discordgo.ErrCodeUnknownUser, discordgo.ErrCodeUnknownMessage:
				return fmt.Errorf("%w: %v", ErrNotFound, err)
			}
		}
		if restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		}
	}
	return err
}

func (d *Discord) Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	m, err := d.s.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, translate(err)
	}
	return m, nil
}

func (d *Discord) BanEntry(ctx context.Context, guildID, userID string) (*discordgo.GuildBan, error) {
	ban, err := d.s.GuildBan(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, translate(err)
	}
	return ban, nil
}

func (d *Discord) AddRoles(ctx context.Context, guildID, userID string, roleIDs ...string) error {
	for _, roleID := range roleIDs {
		if err := d.s.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("adding role %s: %w", roleID, translate(err))
		}
	}
	return nil
}

func (d *Discord) RemoveRoles(ctx context.Context, guildID, userID string, roleIDs ...string) error {
	for _, roleID := range roleIDs {
		if err := d.s.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("removing role %s: %w", roleID, translate(err))
		}
	}
	return nil
}

func (d *Discord) SetNickname(ctx context.Context, guildID, userID, nickname string) error {
	return translate(d.s.GuildMemberNickname(guildID, userID, nickname, discordgo.WithContext(ctx)))
}

func (d *Discord) SendDM(ctx context.Context, userID, content string) error {
	channel, err := d.s.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("creating private channel with user %s: %w", userID, translate(err))
	}
	if _, err := d.s.ChannelMessageSend(channel.ID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("sending private message to user %s: %w", userID, translate(err))
	}
	return nil
}

func (d *Discord) Kick(ctx context.Context, guildID, userID, reason string) error {
	return translate(d.s.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx)))
}

func (d *Discord) Ban(ctx context.Context, guildID, userID, reason string) error {
	return translate(d.s.GuildBanCreateWithReason(guildID, userID, reason, 0, discordgo.WithContext(ctx)))
}

func (d *Discord) Unban(ctx context.Context, guildID, userID string) error {
	return translate(d.s.GuildBanDelete(guildID, userID, discordgo.WithContext(ctx)))
}

func (d *Discord) SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error) {
	msg, err := d.s.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx))
	if err != nil {
		return nil, translate(err)
	}
	return msg, nil
}

// SendPrompt posts the embed and seeds it with the option reactions in order.
func (d *Discord) SendPrompt(ctx context.Context, channelID string, embed *discordgo.MessageEmbed, reactions []string) (*discordgo.Message, error) {
	msg, err := d.SendEmbed(ctx, channelID, embed)
	if err != nil {
		return nil, err
	}
	for _, emoji := range reactions {
		if err := d.s.MessageReactionAdd(channelID, msg.ID, emoji, discordgo.WithContext(ctx)); err != nil {
			return msg, fmt.Errorf("adding reaction %s: %w", emoji, translate(err))
		}
	}
	return msg, nil
}

func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return translate(d.s.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)))
}
