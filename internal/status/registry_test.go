package status

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qtosh1/cats-farmer/internal/cats"
	"github.com/qtosh1/cats-farmer/internal/farmer"
	"github.com/qtosh1/cats-farmer/internal/telegram"
)

func TestRegistryTracksEvents(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	next := at.Add(10 * time.Hour)

	r.StateChanged(ctx, farmer.StateChange{Session: "alice", State: farmer.StateError, Err: errors.New("boom"), At: at})
	r.Authorized(ctx, farmer.Account{Session: "alice", Profile: telegram.Profile{ID: 42, Username: "al"}, At: at})
	r.TaskCompleted(ctx, farmer.TaskCompletion{Session: "alice", At: at})
	r.TaskCompleted(ctx, farmer.TaskCompletion{Session: "alice", At: at})
	r.CycleFinished(ctx, farmer.CycleReport{Session: "alice", User: &cats.User{TotalRewards: 500, TelegramAge: 4}, At: at})
	r.StateChanged(ctx, farmer.StateChange{Session: "alice", State: farmer.StateSleeping, NextRunAt: next, At: at})

	got, ok := r.Get("alice")
	require.True(t, ok)
	assert.Equal(t, farmer.StateSleeping, got.State)
	assert.Equal(t, int64(42), got.UserID)
	assert.Equal(t, "al", got.Username)
	assert.Equal(t, 2, got.TasksDone)
	assert.Equal(t, int64(500), got.Balance)
	assert.Equal(t, float64(4), got.TelegramAge)
	assert.Empty(t, got.LastError)
	assert.Equal(t, at, got.UpdatedAt)
	require.NotNil(t, got.NextRunAt)
	assert.Equal(t, next, *got.NextRunAt)

	r.StateChanged(ctx, farmer.StateChange{Session: "alice", State: farmer.StateFarming, At: at})
	got, _ = r.Get("alice")
	assert.Nil(t, got.NextRunAt)
}

func TestRegistryKeepsBalanceWithoutUserInfo(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	r.CycleFinished(ctx, farmer.CycleReport{Session: "alice", User: &cats.User{TotalRewards: 500, TelegramAge: 4}})
	r.StateChanged(ctx, farmer.StateChange{Session: "alice", State: farmer.StateError, Err: errors.New("timeout")})
	r.CycleFinished(ctx, farmer.CycleReport{Session: "alice", TasksDone: 1})

	got, ok := r.Get("alice")
	require.True(t, ok)
	assert.Equal(t, int64(500), got.Balance)
	assert.Equal(t, float64(4), got.TelegramAge)
	assert.Empty(t, got.LastError)
}

func TestRegistryGetUnknown(t *testing.T) {
	_, ok := NewRegistry().Get("nobody")
	assert.False(t, ok)
}

func TestRegistryListSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"carol", "alice", "bob"} {
		r.Register(name)
	}
	r.Register("alice")

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "alice", list[0].Session)
	assert.Equal(t, "bob", list[1].Session)
	assert.Equal(t, "carol", list[2].Session)
	assert.Equal(t, farmer.StateStarting, list[0].State)
}

func TestRegistrySnapshotsAreCopies(t *testing.T) {
	r := NewRegistry()
	r.StateChanged(context.Background(), farmer.StateChange{Session: "a", State: farmer.StateSleeping, NextRunAt: time.Unix(100, 0)})

	got, _ := r.Get("a")
	*got.NextRunAt = time.Unix(0, 0)

	again, _ := r.Get("a")
	assert.Equal(t, time.Unix(100, 0), *again.NextRunAt)
}

func TestRegistryConcurrentUpdates(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.TaskCompleted(context.Background(), farmer.TaskCompletion{Session: "a"})
			_ = r.List()
		}()
	}
	wg.Wait()

	got, _ := r.Get("a")
	assert.Equal(t, 50, got.TasksDone)
}
