package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"namewatch/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := Init(DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	s := NewStore(db)
	t.Cleanup(func() { s.Close() })
	return s
}

func mutedFor(userID, username string) *model.MutedRecord {
	return &model.MutedRecord{
		CaseID:   "case-" + userID,
		UserID:   userID,
		GuildID:  "g1",
		Username: username,
		Reason:   "Inappropriate username: " + username,
	}
}

func TestInitRejectsUnknownDriver(t *testing.T) {
	_, err := Init("mysql", "whatever")
	assert.Error(t, err)
}

func TestInitIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	db, err := Init(DriverSQLite, path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Init(DriverSQLite, path)
	require.NoError(t, err)
	db.Close()
}

func TestMutedAtMostOneActive(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	first := mutedFor("u1", "toxic")
	require.NoError(t, s.InsertMuted(ctx, first))
	assert.NotZero(t, first.ID)
	assert.True(t, first.IsActive)

	err := s.InsertMuted(ctx, mutedFor("u1", "toxic2"))
	assert.ErrorIs(t, err, model.ErrAlreadyActive)

	// a different member is unaffected
	require.NoError(t, s.InsertMuted(ctx, mutedFor("u2", "toxic")))

	n, err := s.CountActiveMuted(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.DeactivateMuted(ctx, first.ID, false))
	require.NoError(t, s.InsertMuted(ctx, mutedFor("u1", "toxic3")))
}

func TestDeactivateMutedIsConditioned(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	rec := mutedFor("u1", "toxic")
	require.NoError(t, s.InsertMuted(ctx, rec))
	require.NoError(t, s.DeactivateMuted(ctx, rec.ID, false))

	err := s.DeactivateMuted(ctx, rec.ID, false)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = s.ActiveMuted(ctx, "g1", "u1")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestDeactivateMutedKeepsKickTimer(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	rec := mutedFor("u1", "slur")
	rec.KickTimer = true
	require.NoError(t, s.InsertMuted(ctx, rec))
	require.NoError(t, s.DeactivateMuted(ctx, rec.ID, true))

	got, err := s.LatestKickTimerMuted(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.False(t, got.IsActive)
	assert.Equal(t, "slur", got.Username)

	other := mutedFor("u2", "slur")
	other.KickTimer = true
	require.NoError(t, s.InsertMuted(ctx, other))
	require.NoError(t, s.DeactivateMuted(ctx, other.ID, false))

	_, err = s.LatestKickTimerMuted(ctx, "g1", "u2")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSupersedeMuted(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	old := mutedFor("u1", "xXToxicXx")
	require.NoError(t, s.InsertMuted(ctx, old))

	next := mutedFor("u1", "StillToxicGuy")
	require.NoError(t, s.SupersedeMuted(ctx, old.ID, next))
	assert.NotEqual(t, old.ID, next.ID)

	active, err := s.ActiveMuted(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, next.ID, active.ID)
	assert.Equal(t, "StillToxicGuy", active.Username)

	// superseding a retired record fails and inserts nothing
	err = s.SupersedeMuted(ctx, old.ID, mutedFor("u1", "again"))
	assert.ErrorIs(t, err, model.ErrNotFound)

	n, err := s.CountActiveMuted(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStrikes(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	n, err := s.MaxStrikeCount(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Zero(t, n)

	rec := mutedFor("u1", "slur")
	rec.KickTimer = true
	require.NoError(t, s.InsertMuted(ctx, rec))
	require.NoError(t, s.UpdateStrikes(ctx, rec.ID, 2, false))

	n, err = s.MaxStrikeCount(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.LatestKickTimerMuted(ctx, "g1", "u1")
	assert.ErrorIs(t, err, model.ErrNotFound)

	assert.ErrorIs(t, s.UpdateStrikes(ctx, 9999, 1, false), model.ErrNotFound)
}

func TestBannedLifecycle(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	now := time.Now()

	expired := &model.BannedRecord{CaseID: "c1", UserID: "u1", GuildID: "g1", Username: "a", Reason: "r", ExpiresAt: now.Add(-time.Minute).Unix()}
	pending := &model.BannedRecord{CaseID: "c2", UserID: "u2", GuildID: "g1", Username: "b", Reason: "r", ExpiresAt: now.Add(time.Hour).Unix()}
	forever := &model.BannedRecord{CaseID: "c3", UserID: "u3", GuildID: "g1", Username: "c", Reason: "r", ExpiresAt: model.BanPermanent}
	for _, rec := range []*model.BannedRecord{expired, pending, forever} {
		require.NoError(t, s.InsertBanned(ctx, rec))
	}

	dup := &model.BannedRecord{CaseID: "c4", UserID: "u1", GuildID: "g1", Username: "a", Reason: "r", ExpiresAt: model.BanPermanent}
	assert.ErrorIs(t, s.InsertBanned(ctx, dup), model.ErrAlreadyActive)

	got, err := s.ListExpiredBanned(ctx, "g1", now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, expired.ID, got[0].ID)

	require.NoError(t, s.DeactivateBanned(ctx, expired.ID))
	assert.ErrorIs(t, s.DeactivateBanned(ctx, expired.ID), model.ErrNotFound)

	got, err = s.ListExpiredBanned(ctx, "g1", now.Add(100*365*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, pending.ID, got[0].ID)

	active, err := s.ActiveBanned(ctx, "g1", "u3")
	require.NoError(t, err)
	assert.True(t, active.IsPermanent())
}

func TestSeedWords(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	n, err := s.SeedWords(ctx, []model.Word{{Word: "toxic"}, {Word: "slur", Escalate: true}, {Word: ""}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.SeedWords(ctx, []model.Word{{Word: "toxic", Escalate: true}})
	require.NoError(t, err)
	assert.Zero(t, n)

	words, err := s.ListWords(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Word{{Word: "slur", Escalate: true}, {Word: "toxic"}}, words)
}
