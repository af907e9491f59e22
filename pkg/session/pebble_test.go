package session_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartlink/pkg/models"
	"heartlink/pkg/session"
)

// openStore opens a fresh store in a temp dir and closes it on cleanup.
// The store handle is package-global, so tests must not run in parallel.
func openStore(t *testing.T) {
	t.Helper()
	require.NoError(t, session.Open(t.TempDir()))
	t.Cleanup(func() { _ = session.Close() })
}

func TestSessionRoundTrip(t *testing.T) {
	openStore(t)

	_, err := session.LoadSession()
	assert.ErrorIs(t, err, session.ErrNotFound)

	require.NoError(t, session.SaveSession(models.Session{UserID: "u-42", Token: "tok"}))
	s, err := session.LoadSession()
	require.NoError(t, err)
	assert.Equal(t, "u-42", s.UserID)
	assert.False(t, s.SignedInAt.IsZero(), "SignedInAt is stamped when omitted")

	require.NoError(t, session.ClearSession())
	_, err = session.LoadSession()
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestResolverLocalUserID(t *testing.T) {
	openStore(t)

	var r session.Resolver
	_, err := r.LocalUserID()
	assert.ErrorIs(t, err, session.ErrSignedOut)

	require.NoError(t, session.SaveSession(models.Session{UserID: "u-42"}))
	id, err := r.LocalUserID()
	require.NoError(t, err)
	assert.Equal(t, "u-42", id)
}

func TestProfileRoundTrip(t *testing.T) {
	openStore(t)

	require.NoError(t, session.SaveProfile(models.Profile{UserID: "p1", DisplayName: "Sam"}))
	p, err := session.LoadProfile("p1")
	require.NoError(t, err)
	assert.Equal(t, "Sam", p.DisplayName)
	assert.False(t, p.FetchedAt.IsZero())

	_, err = session.LoadProfile("missing")
	assert.ErrorIs(t, err, session.ErrNotFound)

	assert.Error(t, session.SaveProfile(models.Profile{}), "profile needs a user id")
}

func TestWatermarkRoundTrip(t *testing.T) {
	openStore(t)
	key := models.KeyOf("a", "b")

	_, err := session.LoadWatermark(key)
	assert.ErrorIs(t, err, session.ErrNotFound)

	at := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	require.NoError(t, session.SaveWatermark(key, at))
	got, err := session.LoadWatermark(key)
	require.NoError(t, err)
	assert.True(t, got.Equal(at))
}

func TestSweepOlderThan(t *testing.T) {
	openStore(t)
	old := time.Now().UTC().Add(-48 * time.Hour)
	fresh := time.Now().UTC()

	require.NoError(t, session.SaveProfile(models.Profile{UserID: "old", FetchedAt: old}))
	require.NoError(t, session.SaveProfile(models.Profile{UserID: "fresh", FetchedAt: fresh}))
	require.NoError(t, session.SaveWatermark(models.KeyOf("a", "b"), old))
	require.NoError(t, session.SaveSession(models.Session{UserID: "me", SignedInAt: old}))

	cutoff := time.Now().UTC().Add(-24 * time.Hour)

	// dry run counts without deleting
	n, err := session.SweepOlderThan(cutoff, true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = session.LoadProfile("old")
	assert.NoError(t, err)

	n, err = session.SweepOlderThan(cutoff, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = session.LoadProfile("old")
	assert.ErrorIs(t, err, session.ErrNotFound)
	_, err = session.LoadProfile("fresh")
	assert.NoError(t, err)
	_, err = session.LoadWatermark(models.KeyOf("a", "b"))
	assert.ErrorIs(t, err, session.ErrNotFound)

	// the session record itself is never swept
	s, err := session.LoadSession()
	require.NoError(t, err)
	assert.Equal(t, "me", s.UserID)
}

func TestCacheLimitRejectsOversizedRecords(t *testing.T) {
	openStore(t)
	session.SetCacheLimit(128)
	t.Cleanup(func() { session.SetCacheLimit(0) })

	big := strings.Repeat("x", 4096)
	err := session.SaveProfile(models.Profile{UserID: "big", Bio: big})
	assert.ErrorIs(t, err, session.ErrValueTooLarge)
	_, err = session.LoadProfile("big")
	assert.ErrorIs(t, err, session.ErrNotFound, "rejected record must not be stored")

	require.NoError(t, session.SaveProfile(models.Profile{UserID: "small"}))

	// the sign-in record is exempt from the cap
	require.NoError(t, session.SaveSession(models.Session{UserID: "me", Token: big}))
}

func TestListByPrefix(t *testing.T) {
	openStore(t)
	require.NoError(t, session.SaveProfile(models.Profile{UserID: "a"}))
	require.NoError(t, session.SaveProfile(models.Profile{UserID: "b"}))
	require.NoError(t, session.SaveSession(models.Session{UserID: "me"}))

	entries, err := session.List("profile:")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "profile:a", entries[0].Key)
	assert.Equal(t, "profile:b", entries[1].Key)
}

func TestNotOpenErrors(t *testing.T) {
	// no Open in this test
	_, err := session.LoadSession()
	assert.ErrorIs(t, err, session.ErrNotOpen)
	assert.False(t, session.Ready())
}
