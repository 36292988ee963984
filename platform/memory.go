package platform

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Call is one recorded mutation against Memory.
type Call struct {
	Op      string
	GuildID string
	UserID  string
	Arg     string
}

// Memory is an in-process Platform. It keeps members, bans and sent messages in maps,
// records every mutating call and can be told to fail specific operations.
type Memory struct {
	mu sync.Mutex

	botID    string
	members  map[string]map[string]*discordgo.Member
	bans     map[string]map[string]*discordgo.GuildBan
	messages map[string][]*discordgo.Message
	dms      map[string][]string
	calls    []Call
	failures map[string]error
	nextID   int
}

func NewMemory(botID string) *Memory {
	return &Memory{
		botID:    botID,
		members:  make(map[string]map[string]*discordgo.Member),
		bans:     make(map[string]map[string]*discordgo.GuildBan),
		messages: make(map[string][]*discordgo.Message),
		dms:      make(map[string][]string),
		failures: make(map[string]error),
	}
}

func cloneMember(m *discordgo.Member) *discordgo.Member {
	c := *m
	c.Roles = slices.Clone(m.Roles)
	if m.User != nil {
		u := *m.User
		c.User = &u
	}
	return &c
}

// PutMember adds or replaces a guild member.
func (p *Memory) PutMember(guildID string, m *discordgo.Member) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.members[guildID] == nil {
		p.members[guildID] = make(map[string]*discordgo.Member)
	}
	c := cloneMember(m)
	c.GuildID = guildID
	p.members[guildID][m.User.ID] = c
}

// RemoveMember drops a member as if they left the guild.
func (p *Memory) RemoveMember(guildID, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.members[guildID], userID)
}

// PutBan adds a ban entry without recording a call.
func (p *Memory) PutBan(guildID, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.putBanLocked(guildID, userID, "")
}

// Fail makes every later call of op return err. A nil err clears it.
func (p *Memory) Fail(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failures, op)
		return
	}
	p.failures[op] = err
}

// Calls returns the recorded calls of op, or all calls when op is empty.
func (p *Memory) Calls(op string) []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Call
	for _, c := range p.calls {
		if op == "" || c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// CallCount is len(Calls(op)).
func (p *Memory) CallCount(op string) int {
	return len(p.Calls(op))
}

// DMs returns the direct messages delivered to a user.
func (p *Memory) DMs(userID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.dms[userID])
}

// Messages returns the messages currently present in a channel.
func (p *Memory) Messages(channelID string) []*discordgo.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.messages[channelID])
}

// Banned reports whether the user has a ban entry.
func (p *Memory) Banned(guildID, userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.bans[guildID][userID]
	return ok
}

func (p *Memory) record(op, guildID, userID, arg string) error {
	p.calls = append(p.calls, Call{Op: op, GuildID: guildID, UserID: userID, Arg: arg})
	return p.failures[op]
}

func (p *Memory) memberLocked(guildID, userID string) (*discordgo.Member, error) {
	m, ok := p.members[guildID][userID]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", userID, ErrNotFound)
	}
	return m, nil
}

func (p *Memory) putBanLocked(guildID, userID, reason string) {
	if p.bans[guildID] == nil {
		p.bans[guildID] = make(map[string]*discordgo.GuildBan)
	}
	p.bans[guildID][userID] = &discordgo.GuildBan{Reason: reason, User: &discordgo.User{ID: userID}}
}

func (p *Memory) BotUserID() string {
	return p.botID
}

func (p *Memory) Member(_ context.Context, guildID, userID string) (*discordgo.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failures["Member"]; err != nil {
		return nil, err
	}
	m, err := p.memberLocked(guildID, userID)
	if err != nil {
		return nil, err
	}
	return cloneMember(m), nil
}

func (p *Memory) BanEntry(_ context.Context, guildID, userID string) (*discordgo.GuildBan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failures["BanEntry"]; err != nil {
		return nil, err
	}
	ban, ok := p.bans[guildID][userID]
	if !ok {
		return nil, fmt.Errorf("ban %s: %w", userID, ErrNotFound)
	}
	c := *ban
	return &c, nil
}

func (p *Memory) AddRoles(_ context.Context, guildID, userID string, roleIDs ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, roleID := range roleIDs {
		if err := p.record("AddRole", guildID, userID, roleID); err != nil {
			return err
		}
		m, err := p.memberLocked(guildID, userID)
		if err != nil {
			return err
		}
		if !slices.Contains(m.Roles, roleID) {
			m.Roles = append(m.Roles, roleID)
		}
	}
	return nil
}

func (p *Memory) RemoveRoles(_ context.Context, guildID, userID string, roleIDs ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, roleID := range roleIDs {
		if err := p.record("RemoveRole", guildID, userID, roleID); err != nil {
			return err
		}
		m, err := p.memberLocked(guildID, userID)
		if err != nil {
			return err
		}
		m.Roles = slices.DeleteFunc(m.Roles, func(r string) bool { return r == roleID })
	}
	return nil
}

func (p *Memory) SetNickname(_ context.Context, guildID, userID, nickname string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("SetNickname", guildID, userID, nickname); err != nil {
		return err
	}
	m, err := p.memberLocked(guildID, userID)
	if err != nil {
		return err
	}
	m.Nick = nickname
	return nil
}

func (p *Memory) SendDM(_ context.Context, userID, content string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("SendDM", "", userID, content); err != nil {
		return err
	}
	p.dms[userID] = append(p.dms[userID], content)
	return nil
}

func (p *Memory) Kick(_ context.Context, guildID, userID, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("Kick", guildID, userID, reason); err != nil {
		return err
	}
	if _, err := p.memberLocked(guildID, userID); err != nil {
		return err
	}
	delete(p.members[guildID], userID)
	return nil
}

func (p *Memory) Ban(_ context.Context, guildID, userID, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("Ban", guildID, userID, reason); err != nil {
		return err
	}
	delete(p.members[guildID], userID)
	p.putBanLocked(guildID, userID, reason)
	return nil
}

func (p *Memory) Unban(_ context.Context, guildID, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("Unban", guildID, userID, ""); err != nil {
		return err
	}
	if _, ok := p.bans[guildID][userID]; !ok {
		return fmt.Errorf("ban %s: %w", userID, ErrNotFound)
	}
	delete(p.bans[guildID], userID)
	return nil
}

func (p *Memory) SendEmbed(_ context.Context, channelID string, embed *discordgo.MessageEmbed) (*discordgo.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("SendEmbed", "", "", channelID); err != nil {
		return nil, err
	}
	return p.storeMessageLocked(channelID, embed), nil
}

func (p *Memory) SendPrompt(_ context.Context, channelID string, embed *discordgo.MessageEmbed, reactions []string) (*discordgo.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("SendPrompt", "", "", channelID); err != nil {
		return nil, err
	}
	msg := p.storeMessageLocked(channelID, embed)
	for _, emoji := range reactions {
		msg.Reactions = append(msg.Reactions, &discordgo.MessageReactions{Count: 1, Me: true, Emoji: &discordgo.Emoji{Name: emoji}})
	}
	return msg, nil
}

func (p *Memory) storeMessageLocked(channelID string, embed *discordgo.MessageEmbed) *discordgo.Message {
	p.nextID++
	msg := &discordgo.Message{
		ID:        "m" + strconv.Itoa(p.nextID),
		ChannelID: channelID,
		Embeds:    []*discordgo.MessageEmbed{embed},
	}
	p.messages[channelID] = append(p.messages[channelID], msg)
	return msg
}

func (p *Memory) DeleteMessage(_ context.Context, channelID, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("DeleteMessage", "", "", messageID); err != nil {
		return err
	}
	msgs := p.messages[channelID]
	idx := slices.IndexFunc(msgs, func(m *discordgo.Message) bool { return m.ID == messageID })
	if idx < 0 {
		return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	p.messages[channelID] = slices.Delete(msgs, idx, idx+1)
	return nil
}
