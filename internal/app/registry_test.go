package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mkurev/avagate/internal/domain"
)

func TestRegistryRegisterReplacesHandle(t *testing.T) {
	r := NewRegistry()
	first := &fakeConn{}
	second := &fakeConn{}

	old := r.Register("s1", first, nil)
	require.Nil(t, old)

	old = r.Register("s1", second, nil)
	require.Same(t, first, old.(*fakeConn))

	conn, ok := r.Get("s1")
	require.True(t, ok)
	require.Same(t, second, conn.(*fakeConn))
}

func TestRegistryUnregisterIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Register("s1", &fakeConn{}, nil)

	conn, changed := r.Unregister("s1")
	require.True(t, changed)
	require.NotNil(t, conn)

	conn, changed = r.Unregister("s1")
	require.False(t, changed)
	require.Nil(t, conn)

	_, changed = r.Unregister("never-seen")
	require.False(t, changed)
}

func TestRegistryListOnline(t *testing.T) {
	r := NewRegistry()
	r.Register("s1", &fakeConn{}, nil)
	r.Register("s2", &fakeConn{}, nil)
	require.ElementsMatch(t, sids("s1", "s2"), r.ListOnline())

	r.Unregister("s1")
	require.ElementsMatch(t, sids("s2"), r.ListOnline())
}

func TestRegistryTouchUpdatesStatusAndActivity(t *testing.T) {
	r := NewRegistry()
	r.Register("s1", &fakeConn{}, nil)

	r.sessions["s1"].lastActivity = time.Now().Add(-time.Minute)

	require.True(t, r.Touch("s1", domain.StatusAway))
	info, ok := r.Info("s1")
	require.True(t, ok)
	require.Equal(t, domain.StatusAway, info.Status)
	require.True(t, info.LastActivity.After(time.Now().Add(-time.Second)))

	require.False(t, r.Touch("unknown", domain.StatusOnline))
}

func TestRegistryIdleSince(t *testing.T) {
	r := NewRegistry()
	r.Register("stale", &fakeConn{}, nil)
	r.Register("fresh", &fakeConn{}, nil)
	r.sessions["stale"].lastActivity = time.Now().Add(-121 * time.Second)
	r.sessions["fresh"].lastActivity = time.Now().Add(-60 * time.Second)

	idle := r.IdleSince(time.Now().Add(-120 * time.Second))
	require.ElementsMatch(t, sids("stale"), idle)
}

func TestRegistryPruneOffline(t *testing.T) {
	r := NewRegistry()
	r.Register("gone", &fakeConn{}, nil)
	r.Register("recent", &fakeConn{}, nil)
	r.Register("live", &fakeConn{}, nil)
	r.Unregister("gone")
	r.Unregister("recent")
	r.sessions["gone"].disconnectedAt = time.Now().Add(-10 * time.Minute)

	pruned := r.PruneOffline(time.Now().Add(-2 * time.Minute))
	require.Equal(t, 1, pruned)

	_, ok := r.Info("gone")
	require.False(t, ok)
	// Recently disconnected and live entries survive.
	_, ok = r.Info("recent")
	require.True(t, ok)
	_, ok = r.Info("live")
	require.True(t, ok)
}

func TestRegistryOwns(t *testing.T) {
	r := NewRegistry()
	first := &fakeConn{}
	second := &fakeConn{}
	r.Register("s1", first, nil)
	require.True(t, r.Owns("s1", first))

	r.Register("s1", second, nil)
	require.False(t, r.Owns("s1", first))
	require.True(t, r.Owns("s1", second))
}
