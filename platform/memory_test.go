package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRolesAndNick(t *testing.T) {
	ctx := context.Background()
	p := NewMemory("bot")
	p.PutMember("g", &discordgo.Member{User: &discordgo.User{ID: "u", Username: "name"}})

	require.NoError(t, p.AddRoles(ctx, "g", "u", "r1", "r2"))
	m, err := p.Member(ctx, "g", "u")
	require.NoError(t, err)
	assert.True(t, HasRoles(m, "r1", "r2"))

	// returned members are copies
	m.Roles = nil
	m, _ = p.Member(ctx, "g", "u")
	assert.Len(t, m.Roles, 2)

	require.NoError(t, p.RemoveRoles(ctx, "g", "u", "r1"))
	m, _ = p.Member(ctx, "g", "u")
	assert.Equal(t, []string{"r1"}, MissingRoles(m, "r1", "r2"))

	require.NoError(t, p.SetNickname(ctx, "g", "u", "Automute[1]"))
	m, _ = p.Member(ctx, "g", "u")
	assert.Equal(t, "Automute[1]", m.Nick)
	assert.Equal(t, "name", Username(m))
}

func TestMemoryNotFound(t *testing.T) {
	ctx := context.Background()
	p := NewMemory("bot")

	_, err := p.Member(ctx, "g", "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, p.Unban(ctx, "g", "ghost"), ErrNotFound)
	_, err = p.BanEntry(ctx, "g", "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryBanKick(t *testing.T) {
	ctx := context.Background()
	p := NewMemory("bot")
	p.PutMember("g", &discordgo.Member{User: &discordgo.User{ID: "u"}})

	require.NoError(t, p.Ban(ctx, "g", "u", "reason"))
	assert.True(t, p.Banned("g", "u"))
	_, err := p.Member(ctx, "g", "u")
	assert.ErrorIs(t, err, ErrNotFound)

	ban, err := p.BanEntry(ctx, "g", "u")
	require.NoError(t, err)
	assert.Equal(t, "u", ban.User.ID)

	require.NoError(t, p.Unban(ctx, "g", "u"))
	assert.False(t, p.Banned("g", "u"))
	assert.Equal(t, 1, p.CallCount("Ban"))
	assert.Equal(t, 1, p.CallCount("Unban"))
}

func TestMemoryFailureInjection(t *testing.T) {
	ctx := context.Background()
	p := NewMemory("bot")
	boom := errors.New("rate limited")
	p.Fail("SendDM", boom)

	assert.ErrorIs(t, p.SendDM(ctx, "u", "hi"), boom)
	assert.Empty(t, p.DMs("u"))

	p.Fail("SendDM", nil)
	require.NoError(t, p.SendDM(ctx, "u", "hi"))
	assert.Equal(t, []string{"hi"}, p.DMs("u"))
}

func TestMemoryPrompt(t *testing.T) {
	ctx := context.Background()
	p := NewMemory("bot")

	msg, err := p.SendPrompt(ctx, "review", &discordgo.MessageEmbed{Title: "t"}, []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, msg.Reactions, 2)
	assert.Len(t, p.Messages("review"), 1)

	require.NoError(t, p.DeleteMessage(ctx, "review", msg.ID))
	assert.Empty(t, p.Messages("review"))
	assert.ErrorIs(t, p.DeleteMessage(ctx, "review", msg.ID), ErrNotFound)
}
