package room

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swapwatch/swapwatch-backend/internal/data"
)

type indexSyncerSpy struct {
	calls chan struct{}
}

func newIndexSyncerSpy() *indexSyncerSpy {
	return &indexSyncerSpy{calls: make(chan struct{}, 8)}
}

func (s *indexSyncerSpy) TriggerSync(context.Context) {
	s.calls <- struct{}{}
}

func Test_Registry_Room(t *testing.T) {
	registry := newTestRegistry(t, nil)

	t.Run("returns the same actor for the same code", func(t *testing.T) {
		assert.Same(t, registry.Room("abc123"), registry.Room("abc123"))
	})

	t.Run("codes are case-insensitive", func(t *testing.T) {
		assert.Same(t, registry.Room("abc123"), registry.Room("ABC123"))
	})

	t.Run("distinct codes get distinct actors", func(t *testing.T) {
		assert.NotSame(t, registry.Room("abc123"), registry.Room("xyz789"))
	})
}

func Test_Registry_AlarmExpiry(t *testing.T) {
	ctx := context.Background()
	models := openTestModels(t)
	syncer := newIndexSyncerSpy()
	registry := NewRegistry(models, nil, nil, syncer)
	t.Cleanup(registry.Shutdown)

	actor := registry.Room("expiring")
	_, err := actor.CreateRoom(ctx, CreateRoomAttributes{})
	require.NoError(t, err)
	_, err = actor.AddWallet(ctx, testWallet, "")
	require.NoError(t, err)
	require.NoError(t, models.WalletIndex.AddWalletToRoom(ctx, testWallet, "expiring"))

	// Pull the alarm in so the test does not wait a day.
	registry.Arm("expiring", time.Now().Add(50*time.Millisecond))

	require.Eventually(t, func() bool {
		_, gErr := models.Rooms.GetConfig(ctx, "expiring")
		return gErr != nil
	}, 3*time.Second, 20*time.Millisecond, "room storage should be wiped after the alarm fires")

	t.Run("index entries are cleaned up", func(t *testing.T) {
		rooms, iErr := models.WalletIndex.GetRoomsForWallet(ctx, testWallet)
		require.NoError(t, iErr)
		assert.Empty(t, rooms)
	})

	t.Run("filter sync is triggered", func(t *testing.T) {
		select {
		case <-syncer.calls:
		case <-time.After(2 * time.Second):
			t.Fatal("expected a filter sync trigger")
		}
	})

	t.Run("operations after destruction observe missing state", func(t *testing.T) {
		_, gErr := registry.Room("expiring").GetConfig(ctx)
		assert.ErrorIs(t, gErr, data.ErrRecordNotFound)
	})
}

func Test_Registry_RearmAlarms(t *testing.T) {
	ctx := context.Background()
	models := openTestModels(t)

	// Persist a config that is already past its expiry, simulating a missed
	// alarm across a restart.
	expired := &data.RoomConfig{
		Code:      "stale",
		CreatedAt: time.Now().UTC().Add(-25 * time.Hour),
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, models.Rooms.SetConfig(ctx, "stale", expired))

	registry := NewRegistry(models, nil, nil, nil)
	t.Cleanup(registry.Shutdown)

	require.NoError(t, registry.RearmAlarms(ctx))

	require.Eventually(t, func() bool {
		_, err := models.Rooms.GetConfig(ctx, "stale")
		return err != nil
	}, 3*time.Second, 20*time.Millisecond, "stale room should be destroyed right after rearming")
}

func Test_Registry_Destroy(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(t, nil)

	actor := registry.Room("doomed")
	_, err := actor.CreateRoom(ctx, CreateRoomAttributes{})
	require.NoError(t, err)

	require.NoError(t, registry.Destroy(ctx, "doomed", "explicit", "Room closed"))

	// The retired actor is replaced by a fresh one that observes empty state.
	revived := registry.Room("doomed")
	assert.NotSame(t, actor, revived)
	_, err = revived.GetConfig(ctx)
	assert.ErrorIs(t, err, data.ErrRecordNotFound)
}

func Test_Registry_Shutdown(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry(openTestModels(t), nil, nil, nil)

	actor := registry.Room("closing")
	_, err := actor.CreateRoom(ctx, CreateRoomAttributes{})
	require.NoError(t, err)

	registry.Shutdown()

	_, err = actor.GetConfig(ctx)
	assert.ErrorIs(t, err, ErrActorStopped)
}
