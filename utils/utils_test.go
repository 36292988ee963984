package utils

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"1s", time.Second},
		{"30m", 30 * time.Minute},
		{"7d", 7 * 24 * time.Hour},
		{"1d12h", 36 * time.Hour},
		{" 2d ", 48 * time.Hour},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"xd", "-1d", "1dzz", "soon"} {
		_, err := ParseDuration(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "30 minutes", FormatDuration(30*time.Minute))
	assert.Equal(t, "1 hour", FormatDuration(time.Hour))
	assert.Equal(t, "2 days", FormatDuration(48*time.Hour))
	assert.Equal(t, "1.5s", FormatDuration(1500*time.Millisecond))
}

func TestRoles(t *testing.T) {
	m := &discordgo.Member{Roles: []string{"a", "b"}}
	assert.True(t, IsModerator(m, []string{"b"}))
	assert.False(t, IsPrivileged(m, []string{"c"}))
	assert.False(t, HasAnyRole(nil, []string{"a"}))
}

func TestMemberLocksSerialize(t *testing.T) {
	locks := NewMemberLocks()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("g", "u")
			n := atomic.AddInt32(&inside, 1)
			if n > atomic.LoadInt32(&maxInside) {
				atomic.StoreInt32(&maxInside, n)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

type recordingPoster struct {
	mu     sync.Mutex
	embeds []*discordgo.MessageEmbed
}

func (r *recordingPoster) SendEmbed(_ context.Context, _ string, e *discordgo.MessageEmbed) (*discordgo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeds = append(r.embeds, e)
	return &discordgo.Message{}, nil
}

func TestLogPostsToChannel(t *testing.T) {
	p := &recordingPoster{}
	LogWarn(p, "logs", "Reconcile", "MutePass", "boom")
	LogInfo(p, "", "Reconcile", "MutePass", "not posted")
	require.Len(t, p.embeds, 1)
	assert.Equal(t, "WARN Log", p.embeds[0].Title)
	assert.Equal(t, 15105570, p.embeds[0].Color)
}

func TestSystemInfo(t *testing.T) {
	info := SystemInfo()
	assert.Contains(t, info, "Go: ")
	assert.Contains(t, info, "Goroutines:")
}

func TestNewHTTPClient(t *testing.T) {
	c := NewHTTPClient(5 * time.Second)
	assert.Equal(t, 5*time.Second, c.Timeout)
	require.NotNil(t, c.Transport)
}
