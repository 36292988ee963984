package bot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"namewatch/model"
	"namewatch/platform"
	"namewatch/policy"
	"namewatch/utils/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBot(t *testing.T, standard, escalate []string) *Bot {
	t.Helper()
	db, err := database.Init(database.DriverSQLite, filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	cfg := &model.Config{Guard: model.GuardConfig{
		GuildID:          "g",
		MutedRoleID:      "muted",
		VoiceMutedRoleID: "vmuted",
		AuditChannelID:   "audit",
		ReviewChannelID:  "review",
		ModeratorRoleIDs: []string{"mod"},
		StandardWords:    standard,
		EscalateWords:    escalate,
		CheckInterval:    time.Second,
		KickGrace:        30 * time.Minute,
		DecisionWindow:   time.Hour,
	}}
	b := Assemble(cfg, database.NewStore(db), platform.NewMemory("bot"))
	t.Cleanup(b.Close)
	return b
}

func TestPrepareWordsSeedsConfiguredLists(t *testing.T) {
	b := newTestBot(t, []string{"toxic"}, []string{"slur"})

	require.NoError(t, b.prepareWords())

	words, err := b.Store.ListWords(context.Background())
	require.NoError(t, err)
	assert.Len(t, words, 2)
}

func TestPrepareWordsRequiresBothTiers(t *testing.T) {
	for name, lists := range map[string][2][]string{
		"nothing":       {nil, nil},
		"standard only": {{"toxic"}, nil},
		"escalate only": {nil, {"slur"}},
	} {
		t.Run(name, func(t *testing.T) {
			b := newTestBot(t, lists[0], lists[1])
			assert.ErrorIs(t, b.prepareWords(), policy.ErrListsUnavailable)
		})
	}
}

func TestPrepareWordsAcceptsStoredLists(t *testing.T) {
	ctx := context.Background()
	b := newTestBot(t, nil, nil)
	// 先缓存空列表，确认启动时会重新读取
	require.Error(t, policy.CheckLists(ctx, b.Words))

	_, err := b.Store.SeedWords(ctx, policy.Merge([]string{"toxic"}, []string{"slur"}))
	require.NoError(t, err)

	assert.NoError(t, b.prepareWords())
}
