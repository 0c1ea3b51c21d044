package note_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/serroba/notesync/internal/acl"
	"github.com/serroba/notesync/internal/note"
	"github.com/serroba/notesync/internal/storage"
	"github.com/stretchr/testify/require"
)

func TestService_ShareScenario(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	doc := f.create(t, "alice", "T", "B")

	grant, err := f.svc.GenerateShareToken(ctx, doc.ID, "alice", 7)
	require.NoError(t, err)
	require.Len(t, grant.Code, 8)
	require.Equal(t, f.clock.Now().AddDate(0, 0, 7), grant.ExpiresAt)

	joined, err := f.svc.JoinByShareToken(ctx, grant.Code, "bob")
	require.NoError(t, err)
	require.True(t, joined.IsShared)
	require.Len(t, joined.Collaborators, 1)
	require.Equal(t, "bob", joined.Collaborators[0].UserID)
	require.Equal(t, acl.Write, joined.Collaborators[0].Role)
	require.True(t, acl.CanEdit(joined, "bob"))
}

func TestService_JoinByShareToken_Idempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	doc := f.create(t, "alice", "T", "B")
	grant := f.share(t, doc, "bob", "bob")

	// The owner joining is a no-op too.
	_, err := f.svc.JoinByShareToken(ctx, grant.Code, "alice")
	require.NoError(t, err)

	stored, err := f.svc.Get(ctx, doc.ID, "alice")
	require.NoError(t, err)
	require.Len(t, stored.Collaborators, 1)
}

func TestService_GenerateShareToken_OwnerOnly(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	doc := f.create(t, "alice", "T", "B")
	f.share(t, doc, "bob")

	_, err := f.svc.GenerateShareToken(ctx, doc.ID, "bob", 7)
	requireIs(t, err, note.ErrNotFound)

	_, err = f.svc.GenerateShareToken(ctx, doc.ID, "alice", -1)
	requireIs(t, err, note.ErrValidation)

	_, err = f.svc.GenerateShareToken(ctx, doc.ID, "alice", note.MaxShareExpiryDays+1)
	requireIs(t, err, note.ErrValidation)
}

func TestService_GenerateShareToken_ReplacesPreviousCode(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	doc := f.create(t, "alice", "T", "B")
	first := f.share(t, doc)

	second, err := f.svc.GenerateShareToken(ctx, doc.ID, "alice", 1)
	require.NoError(t, err)
	require.NotEqual(t, first.Code, second.Code)

	_, err = f.svc.JoinByShareToken(ctx, first.Code, "bob")
	requireIs(t, err, note.ErrInvalidOrExpired)

	_, err = f.svc.JoinByShareToken(ctx, second.Code, "bob")
	require.NoError(t, err)
}

func TestService_GenerateShareToken_RetriesCollisions(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(c *note.Config) { c.GenerateCode = codes("TAKEN001", "TAKEN001", "FRESH001") })
	ctx := context.Background()

	other := f.create(t, "carol", "other", "")
	_, err := f.svc.GenerateShareToken(ctx, other.ID, "carol", 7)
	require.NoError(t, err)

	doc := f.create(t, "alice", "T", "B")

	grant, err := f.svc.GenerateShareToken(ctx, doc.ID, "alice", 7)
	require.NoError(t, err)
	require.Equal(t, "FRESH001", grant.Code)
}

func TestService_GenerateShareToken_Exhausted(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(c *note.Config) {
		c.GenerateCode = func() (string, error) { return "SAMECODE", nil }
	})
	ctx := context.Background()

	other := f.create(t, "carol", "other", "")
	_, err := f.svc.GenerateShareToken(ctx, other.ID, "carol", 7)
	require.NoError(t, err)

	doc := f.create(t, "alice", "T", "B")

	_, err = f.svc.GenerateShareToken(ctx, doc.ID, "alice", 7)
	requireIs(t, err, note.ErrShareCodeExhausted)

	stored, err := f.svc.Get(ctx, doc.ID, "alice")
	require.NoError(t, err)
	require.False(t, stored.IsShared)
	require.Empty(t, stored.ShareCode)
}

func TestService_JoinByShareToken_Expired(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	doc := f.create(t, "alice", "T", "B")
	grant := f.share(t, doc)

	f.clock.Advance(8 * 24 * time.Hour)

	_, err := f.svc.JoinByShareToken(ctx, grant.Code, "bob")
	requireIs(t, err, note.ErrInvalidOrExpired)

	stored, err := f.svc.Get(ctx, doc.ID, "alice")
	require.NoError(t, err)
	require.Empty(t, stored.ShareCode)
	require.Nil(t, stored.ShareCodeExpires)
	require.False(t, stored.IsShared)

	exists, err := f.store.ShareCodeExists(ctx, grant.Code)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestService_JoinByShareToken_Unknown(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	for _, code := range []string{"", "   ", "NOPE0000"} {
		_, err := f.svc.JoinByShareToken(ctx, code, "bob")
		requireIs(t, err, note.ErrInvalidOrExpired)
	}
}

func TestService_StopSharingScenario(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	doc := f.create(t, "alice", "T", "B")
	grant := f.share(t, doc, "bob", "carol")

	_, err := f.svc.StopSharing(ctx, doc.ID, "bob")
	requireIs(t, err, note.ErrNotFound)

	stopped, err := f.svc.StopSharing(ctx, doc.ID, "alice")
	require.NoError(t, err)
	require.Empty(t, stopped.Collaborators)
	require.False(t, stopped.IsShared)
	require.Empty(t, stopped.ShareCode)
	require.Equal(t, []string{doc.ID}, f.notifier.revalidated)

	_, err = f.svc.JoinByShareToken(ctx, grant.Code, "dave")
	requireIs(t, err, note.ErrInvalidOrExpired)

	_, err = f.svc.Get(ctx, doc.ID, "bob")
	requireIs(t, err, note.ErrNotFound)
}

func TestService_JoinByShareToken_StaleCacheFallsBackToStore(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	clk := newClock()

	// Two service instances share one store but cache separately.
	first := newFixture(t, func(c *note.Config) {
		c.Store = store
		c.Now = clk.Now
		c.GenerateCode = codes("REUSED01")
	})
	second := newFixture(t, func(c *note.Config) {
		c.Store = store
		c.Now = clk.Now
		c.GenerateCode = codes("REUSED01")
	})
	ctx := context.Background()

	a := first.create(t, "alice", "A", "")
	b := second.create(t, "bob", "B", "")

	first.share(t, a)

	_, err := second.svc.StopSharing(ctx, a.ID, "alice")
	require.NoError(t, err)

	reused := second.share(t, b)
	require.Equal(t, "REUSED01", reused.Code)

	joined, err := first.svc.JoinByShareToken(ctx, "REUSED01", "carol")
	require.NoError(t, err)
	require.Equal(t, b.ID, joined.ID)
}

func TestService_SweepExpiredShares(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	short := f.create(t, "alice", "short", "")
	long := f.create(t, "alice", "long", "")

	_, err := f.svc.GenerateShareToken(ctx, short.ID, "alice", 1)
	require.NoError(t, err)

	longGrant, err := f.svc.GenerateShareToken(ctx, long.ID, "alice", 30)
	require.NoError(t, err)

	f.clock.Advance(2 * 24 * time.Hour)

	cleared, err := f.svc.SweepExpiredShares(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, cleared)

	stored, err := f.svc.Get(ctx, short.ID, "alice")
	require.NoError(t, err)
	require.Empty(t, stored.ShareCode)

	stored, err = f.svc.Get(ctx, long.ID, "alice")
	require.NoError(t, err)
	require.Equal(t, longGrant.Code, stored.ShareCode)

	cleared, err = f.svc.SweepExpiredShares(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, cleared)
}

func TestRandomCode(t *testing.T) {
	t.Parallel()

	pattern := regexp.MustCompile(`^[A-Za-z0-9]{8}$`)
	seen := make(map[string]struct{})

	for range 200 {
		code, err := note.RandomCode()
		require.NoError(t, err)
		require.Regexp(t, pattern, code)

		seen[code] = struct{}{}
	}

	require.Greater(t, len(seen), 190)
}
