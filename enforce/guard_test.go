package enforce

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"namewatch/model"
	"namewatch/platform"
	"namewatch/policy"
	"namewatch/tasks/decision"
	"namewatch/utils"
	"namewatch/utils/database"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func testConfig() model.GuardConfig {
	return model.GuardConfig{
		GuildID:           "g",
		MutedRoleID:       "muted",
		VoiceMutedRoleID:  "vmuted",
		AuditChannelID:    "audit",
		ReviewChannelID:   "review",
		ModeratorRoleIDs:  []string{"mod"},
		PrivilegedRoleIDs: []string{"tier"},
		CheckInterval:     time.Second,
		KickGrace:         30 * time.Minute,
		DecisionWindow:    time.Hour,
	}
}

type fixture struct {
	guard *Guard
	plat  *platform.Memory
	store *database.Store
	cfg   model.GuardConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Init(database.DriverSQLite, filepath.Join(t.TempDir(), "guard.db"))
	require.NoError(t, err)
	store := database.NewStore(db)
	t.Cleanup(func() { store.Close() })

	cfg := testConfig()
	plat := platform.NewMemory("bot")
	cls := policy.NewClassifier(policy.StaticSource{Standard: []string{"toxic"}, Escalate: []string{"slur"}})
	enf := NewEnforcer(plat, store, cfg)
	enf.now = func() time.Time { return testNow }
	return &fixture{
		guard: NewGuard(enf, cls, store, plat, utils.NewMemberLocks(), cfg),
		plat:  plat,
		store: store,
		cfg:   cfg,
	}
}

func (f *fixture) join(id, username string, roles ...string) *discordgo.Member {
	m := &discordgo.Member{User: &discordgo.User{ID: id, Username: username}, Roles: roles}
	f.plat.PutMember(f.cfg.GuildID, m)
	return m
}

func (f *fixture) member(t *testing.T, id string) *discordgo.Member {
	t.Helper()
	m, err := f.plat.Member(context.Background(), f.cfg.GuildID, id)
	require.NoError(t, err)
	return m
}

func auditTitles(p *platform.Memory) []string {
	var out []string
	for _, msg := range p.Messages("audit") {
		out = append(out, msg.Embeds[0].Title)
	}
	return out
}

type fakeReviewer struct {
	mu     sync.Mutex
	opened []string
}

func (r *fakeReviewer) Open(_ context.Context, m *discordgo.Member, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened = append(r.opened, m.User.ID)
	return nil
}

func (r *fakeReviewer) Active(_, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.opened, userID)
}

func TestToxicUsernameIsMuted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := f.join("u1", "xXToxicXx")

	require.NoError(t, f.guard.Handle(ctx, m, model.Joined{}))

	got := f.member(t, "u1")
	assert.True(t, platform.HasRoles(got, "muted", "vmuted"))
	assert.Equal(t, "Automute[1]", got.Nick)

	rec, err := f.store.ActiveMuted(ctx, "g", "u1")
	require.NoError(t, err)
	assert.False(t, rec.KickTimer)
	assert.Equal(t, "xXToxicXx", rec.Username)
	assert.Equal(t, "Inappropriate username: xXToxicXx", rec.Reason)

	assert.Len(t, f.plat.DMs("u1"), 1)
	assert.Equal(t, []string{"**Inappropriate username automute**"}, auditTitles(f.plat))
}

func TestPlaceholderNumbering(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.guard.Handle(ctx, f.join("u1", "toxic1"), model.Joined{}))
	require.NoError(t, f.guard.Handle(ctx, f.join("u2", "toxic2"), model.Joined{}))
	assert.Equal(t, "Automute[2]", f.member(t, "u2").Nick)
}

func TestMuteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	enf := f.guard.Enforcer()
	f.join("u1", "toxic")

	did, err := enf.Mute(ctx, f.member(t, "u1"), false, "r", nil)
	require.NoError(t, err)
	assert.True(t, did)

	did, err = enf.Mute(ctx, f.member(t, "u1"), false, "r", nil)
	require.NoError(t, err)
	assert.False(t, did)

	assert.Equal(t, 2, f.plat.CallCount("AddRole"), "one grant per mute role")
	n, err := f.store.CountActiveMuted(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, f.plat.DMs("u1"), 1)
}

func TestMuteRoleFailureLeavesNoRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.join("u1", "toxic")
	f.plat.Fail("AddRole", errors.New("missing permissions"))

	_, err := f.guard.Enforcer().Mute(ctx, f.member(t, "u1"), false, "r", nil)
	assert.Error(t, err)
	_, err = f.store.ActiveMuted(ctx, "g", "u1")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

type failingInsertStore struct {
	*database.Store
}

func (failingInsertStore) InsertMuted(context.Context, *model.MutedRecord) error {
	return errors.New("database is locked")
}

func TestMuteStoreFailureRevokesRoles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.join("u1", "toxic")
	enf := NewEnforcer(f.plat, failingInsertStore{f.store}, f.cfg)

	_, err := enf.Mute(ctx, f.member(t, "u1"), false, "r", nil)
	assert.Error(t, err)

	got := f.member(t, "u1")
	assert.False(t, platform.HasRoles(got, "muted"))
	assert.False(t, platform.HasRoles(got, "vmuted"))
	assert.Equal(t, 2, f.plat.CallCount("RemoveRole"))
	assert.Empty(t, f.plat.DMs("u1"))
}

func TestUnmuteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	enf := f.guard.Enforcer()
	f.join("u1", "toxic")
	_, err := enf.Mute(ctx, f.member(t, "u1"), false, "r", nil)
	require.NoError(t, err)

	did, err := enf.Unmute(ctx, f.member(t, "u1"), nil, nil)
	require.NoError(t, err)
	assert.True(t, did)
	assert.Equal(t, 2, f.plat.CallCount("RemoveRole"))
	assert.Equal(t, "toxic", f.member(t, "u1").Nick)

	did, err = enf.Unmute(ctx, f.member(t, "u1"), nil, nil)
	require.NoError(t, err)
	assert.False(t, did)
	assert.Equal(t, 2, f.plat.CallCount("RemoveRole"))
}

func TestUnmuteWithRolesAlreadyGone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	enf := f.guard.Enforcer()
	f.join("u1", "toxic")
	_, err := enf.Mute(ctx, f.member(t, "u1"), false, "r", nil)
	require.NoError(t, err)
	require.NoError(t, f.plat.RemoveRoles(ctx, "g", "u1", "muted", "vmuted"))

	did, err := enf.Unmute(ctx, f.member(t, "u1"), nil, nil)
	require.NoError(t, err)
	assert.True(t, did)
	assert.Equal(t, 2, f.plat.CallCount("RemoveRole"), "no extra revoke calls")

	_, err = f.store.ActiveMuted(ctx, "g", "u1")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRenameStillViolatingSupersedes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.guard.Handle(ctx, f.join("u1", "xXToxicXx"), model.Joined{}))
	old, err := f.store.ActiveMuted(ctx, "g", "u1")
	require.NoError(t, err)

	m := f.member(t, "u1")
	m.User.Username = "StillToxicGuy"
	f.plat.PutMember("g", m)
	require.NoError(t, f.guard.Handle(ctx, m, model.RenamedFrom{Old: "xXToxicXx"}))

	cur, err := f.store.ActiveMuted(ctx, "g", "u1")
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, cur.ID)
	assert.Equal(t, "StillToxicGuy", cur.Username)
	assert.Equal(t, "Inappropriate username: StillToxicGuy", cur.Reason)
	assert.True(t, platform.HasRoles(f.member(t, "u1"), "muted", "vmuted"))
	assert.Contains(t, auditTitles(f.plat), "**Inappropriate username autoupdate**")
}

func TestRenameToEscalateArmsKickTimer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.guard.Handle(ctx, f.join("u1", "toxic"), model.Joined{}))

	m := f.member(t, "u1")
	m.User.Username = "slurbo"
	f.plat.PutMember("g", m)
	require.NoError(t, f.guard.Handle(ctx, m, model.RenamedFrom{Old: "toxic"}))

	cur, err := f.store.ActiveMuted(ctx, "g", "u1")
	require.NoError(t, err)
	assert.True(t, cur.KickTimer)
}

func TestRenameCleanUnmutes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.guard.Handle(ctx, f.join("u1", "toxic"), model.Joined{}))

	m := f.member(t, "u1")
	m.User.Username = "friendly"
	f.plat.PutMember("g", m)
	require.NoError(t, f.guard.Handle(ctx, m, model.RenamedFrom{Old: "toxic"}))

	_, err := f.store.ActiveMuted(ctx, "g", "u1")
	assert.ErrorIs(t, err, model.ErrNotFound)
	got := f.member(t, "u1")
	assert.False(t, platform.HasRoles(got, "muted"))
	assert.Equal(t, "friendly", got.Nick)
}

func TestEscalateTierSkipsReview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rev := &fakeReviewer{}
	f.guard.SetReviewer(rev)

	require.NoError(t, f.guard.Handle(ctx, f.join("u1", "slurmaster", "tier"), model.Joined{}))

	rec, err := f.store.ActiveMuted(ctx, "g", "u1")
	require.NoError(t, err)
	assert.True(t, rec.KickTimer)
	assert.Empty(t, rev.opened)
	assert.Contains(t, f.plat.DMs("u1")[0], "kicked within 30 minutes")
}

func TestPrivilegedStandardTierGoesToReview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rev := &fakeReviewer{}
	f.guard.SetReviewer(rev)

	require.NoError(t, f.guard.Handle(ctx, f.join("u1", "toxic", "tier"), model.Joined{}))

	assert.Equal(t, []string{"u1"}, rev.opened)
	assert.Zero(t, f.plat.CallCount("AddRole"))

	// a pending review is not reopened
	require.NoError(t, f.guard.Handle(ctx, f.member(t, "u1"), model.ReconciliationTick{}))
	assert.Equal(t, []string{"u1"}, rev.opened)
}

func TestUnavailableListsTakeNoAction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.guard.cls = policy.NewClassifier(policy.StaticSource{Standard: []string{"toxic"}})

	err := f.guard.Handle(ctx, f.join("u1", "toxic"), model.Joined{})
	assert.ErrorIs(t, err, policy.ErrListsUnavailable)
	assert.Zero(t, f.plat.CallCount("AddRole"))
}

func TestBotsAreIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := f.join("b1", "toxicbot")
	m.User.Bot = true
	require.NoError(t, f.guard.Handle(ctx, m, model.Joined{}))
	assert.Empty(t, f.plat.Calls(""))
}

func seedKickTimer(t *testing.T, f *fixture, userID, username string, strikes int) *model.MutedRecord {
	t.Helper()
	ctx := context.Background()
	rec := &model.MutedRecord{CaseID: "c", UserID: userID, GuildID: "g", Username: username,
		Reason: "Inappropriate username: " + username, KickTimer: true, StrikeCount: strikes}
	require.NoError(t, f.store.InsertMuted(ctx, rec))
	require.NoError(t, f.store.DeactivateMuted(ctx, rec.ID, true))
	return rec
}

func TestRejoinSameNameBansByStrikes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedKickTimer(t, f, "u1", "slurry", 2)

	require.NoError(t, f.guard.Handle(ctx, f.join("u1", "slurry"), model.Joined{}))

	ban, err := f.store.ActiveBanned(ctx, "g", "u1")
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(60*24*time.Hour).Unix(), ban.ExpiresAt)
	assert.True(t, f.plat.Banned("g", "u1"))

	strikes, err := f.store.MaxStrikeCount(ctx, "g", "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, strikes)
	_, err = f.store.LatestKickTimerMuted(ctx, "g", "u1")
	assert.ErrorIs(t, err, model.ErrNotFound, "kick timer consumed")
}

func TestBanDaysForStrikes(t *testing.T) {
	assert.Equal(t, 30, BanDaysForStrikes(1))
	assert.Equal(t, 60, BanDaysForStrikes(2))
	assert.Equal(t, 90, BanDaysForStrikes(3))
}

func TestKickTimerMutesCountStrikes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.guard.Handle(ctx, f.join("u1", "slurry"), model.Joined{}))
	first, err := f.store.ActiveMuted(ctx, "g", "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.StrikeCount)

	// kicked after the grace period, came back under the same name: first strike, 30 days
	require.NoError(t, f.store.DeactivateMuted(ctx, first.ID, true))
	f.plat.RemoveMember("g", "u1")
	require.NoError(t, f.guard.Handle(ctx, f.join("u1", "slurry"), model.Joined{}))
	ban, err := f.store.ActiveBanned(ctx, "g", "u1")
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(30*24*time.Hour).Unix(), ban.ExpiresAt)

	// after the ban runs out the next kick-timer mute is the second strike
	require.NoError(t, f.guard.Enforcer().Unban(ctx, &discordgo.User{ID: "u1"}, nil, true, nil))
	require.NoError(t, f.guard.Handle(ctx, f.join("u1", "slurry2"), model.Joined{}))
	second, err := f.store.ActiveMuted(ctx, "g", "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, second.StrikeCount)
}

func TestRejoinNewNameClearsTimer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedKickTimer(t, f, "u1", "slurry", 0)

	require.NoError(t, f.guard.Handle(ctx, f.join("u1", "friendly"), model.Joined{}))

	assert.False(t, f.plat.Banned("g", "u1"))
	_, err := f.store.LatestKickTimerMuted(ctx, "g", "u1")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Zero(t, f.plat.CallCount("AddRole"))
}

func TestRejoinWithActiveRecordRestoresRoles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.guard.Handle(ctx, f.join("u1", "toxic"), model.Joined{}))

	// left and came back before reconciliation noticed; roles are gone
	f.plat.RemoveMember("g", "u1")
	m := f.join("u1", "toxic")
	require.NoError(t, f.guard.Handle(ctx, m, model.Joined{}))

	assert.True(t, platform.HasRoles(f.member(t, "u1"), "muted", "vmuted"))
	n, err := f.store.CountActiveMuted(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBanAndUnbanAreIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	enf := f.guard.Enforcer()
	u := f.join("u1", "toxic").User

	did, err := enf.Ban(ctx, u, 7, "r", nil)
	require.NoError(t, err)
	assert.True(t, did)
	did, err = enf.Ban(ctx, u, 7, "r", nil)
	require.NoError(t, err)
	assert.False(t, did)
	assert.Equal(t, 1, f.plat.CallCount("Ban"))

	require.NoError(t, enf.Unban(ctx, u, nil, true, nil))
	assert.False(t, f.plat.Banned("g", "u1"))
	_, err = f.store.ActiveBanned(ctx, "g", "u1")
	assert.ErrorIs(t, err, model.ErrNotFound)

	// platform ban already gone and no record: nothing to do
	require.NoError(t, enf.Unban(ctx, u, nil, false, nil))
	assert.Equal(t, 1, f.plat.CallCount("Unban"))
}

func TestBanPlatformFailureRetiresRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.join("u1", "toxic").User
	f.plat.Fail("Ban", errors.New("missing permissions"))

	_, err := f.guard.Enforcer().Ban(ctx, u, 0, "r", nil)
	assert.Error(t, err)
	_, err = f.store.ActiveBanned(ctx, "g", "u1")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestExternalRoleRemovalRetiresMute(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.guard.Handle(ctx, f.join("u1", "toxic"), model.Joined{}))

	// unrelated role change keeps the record
	require.NoError(t, f.guard.HandleRoleChange(ctx, "u1"))
	_, err := f.store.ActiveMuted(ctx, "g", "u1")
	require.NoError(t, err)

	require.NoError(t, f.plat.RemoveRoles(ctx, "g", "u1", "vmuted"))
	require.NoError(t, f.guard.HandleRoleChange(ctx, "u1"))
	_, err = f.store.ActiveMuted(ctx, "g", "u1")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Contains(t, auditTitles(f.plat), "**Inappropriate username already unmuted**")
}

func TestExternalUnbanRetiresBan(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.join("u1", "toxic").User
	_, err := f.guard.Enforcer().Ban(ctx, u, 30, "r", nil)
	require.NoError(t, err)

	require.NoError(t, f.guard.HandleBanRemoved(ctx, u))
	_, err = f.store.ActiveBanned(ctx, "g", "u1")
	assert.ErrorIs(t, err, model.ErrNotFound)
	require.NoError(t, f.guard.HandleBanRemoved(ctx, u))
}

func TestDispatchDecisions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mod := &discordgo.Member{User: &discordgo.User{ID: "m1", Username: "mod"}, Roles: []string{"mod"}}

	f.join("u1", "toxic", "tier")
	require.NoError(t, f.guard.Dispatch(ctx, decision.Decision{Action: decision.ActionMute, GuildID: "g", UserID: "u1", Reason: "r", Actor: mod}))
	assert.True(t, platform.HasRoles(f.member(t, "u1"), "muted", "vmuted"))
	assert.Contains(t, auditTitles(f.plat), "**Inappropriate username mute**")

	f.join("u2", "toxic", "tier")
	require.NoError(t, f.guard.Dispatch(ctx, decision.Decision{Action: decision.ActionBan15, GuildID: "g", UserID: "u2", Reason: "r", Actor: mod}))
	ban, err := f.store.ActiveBanned(ctx, "g", "u2")
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(15*24*time.Hour).Unix(), ban.ExpiresAt)

	f.join("u3", "toxic", "tier")
	require.NoError(t, f.guard.Dispatch(ctx, decision.Decision{Action: decision.ActionKick, GuildID: "g", UserID: "u3", Reason: "r", Actor: mod}))
	_, err = f.plat.Member(ctx, "g", "u3")
	assert.ErrorIs(t, err, platform.ErrNotFound)

	// permaban still applies after the member left
	require.NoError(t, f.guard.Dispatch(ctx, decision.Decision{Action: decision.ActionPermaban, GuildID: "g", UserID: "u3", Username: "toxic", Reason: "r", Actor: mod}))
	ban, err = f.store.ActiveBanned(ctx, "g", "u3")
	require.NoError(t, err)
	assert.True(t, ban.IsPermanent())

	err = f.guard.Dispatch(ctx, decision.Decision{Action: decision.ActionMute, GuildID: "g", UserID: "gone", Reason: "r"})
	assert.ErrorIs(t, err, platform.ErrNotFound)
}
