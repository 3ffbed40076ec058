package jobqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/fantasy-roster/internal/platform/logging"
)

func TestLocalQueue_RunsHandlerWithPayload(t *testing.T) {
	q := NewLocalQueue(logging.NewNop())
	t.Cleanup(func() { _ = q.Close(context.Background()) })

	got := make(chan map[string]any, 1)
	q.Handle("/v1/internal/jobs/process-waivers", func(_ context.Context, payload map[string]any) error {
		got <- payload
		return nil
	})

	err := q.Enqueue(t.Context(), "/v1/internal/jobs/process-waivers", map[string]any{"league_id": "lg-1"}, 0, "d-1")
	require.NoError(t, err)

	select {
	case payload := <-got:
		assert.Equal(t, "lg-1", PayloadString(payload, "league_id"))
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not run")
	}
}

func TestLocalQueue_DeduplicatesByID(t *testing.T) {
	q := NewLocalQueue(logging.NewNop())
	t.Cleanup(func() { _ = q.Close(context.Background()) })

	var mu sync.Mutex
	calls := 0
	done := make(chan struct{}, 2)
	q.Handle("/v1/internal/jobs/clear-waivers", func(context.Context, map[string]any) error {
		mu.Lock()
		calls++
		mu.Unlock()
		done <- struct{}{}
		return nil
	})

	require.NoError(t, q.Enqueue(t.Context(), "/v1/internal/jobs/clear-waivers", nil, 0, "same"))
	require.NoError(t, q.Enqueue(t.Context(), "/v1/internal/jobs/clear-waivers", nil, 0, "same"))

	<-done
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestLocalQueue_UnknownPathFails(t *testing.T) {
	q := NewLocalQueue(logging.NewNop())
	t.Cleanup(func() { _ = q.Close(context.Background()) })

	err := q.Enqueue(t.Context(), "/v1/internal/jobs/unknown", nil, 0, "")
	require.Error(t, err)
}

func TestLocalQueue_CloseDropsDelayedJobs(t *testing.T) {
	q := NewLocalQueue(logging.NewNop())

	ran := make(chan struct{}, 1)
	q.Handle("/v1/internal/jobs/lock-day", func(context.Context, map[string]any) error {
		ran <- struct{}{}
		return errors.New("should not run")
	})

	require.NoError(t, q.Enqueue(t.Context(), "/v1/internal/jobs/lock-day", map[string]any{"day": "2026-10-21"}, time.Hour, "late"))
	assert.Equal(t, 1, q.Pending())

	require.NoError(t, q.Close(t.Context()))
	assert.Equal(t, 0, q.Pending())
	assert.ErrorIs(t, q.Enqueue(t.Context(), "/v1/internal/jobs/lock-day", nil, 0, ""), errQueueClosed)

	select {
	case <-ran:
		t.Fatal("delayed job ran after close")
	default:
	}
}

func TestToPayloadMap_Struct(t *testing.T) {
	out, err := toPayloadMap(struct {
		LeagueID string `json:"league_id"`
		Force    bool   `json:"force"`
	}{LeagueID: "lg-2", Force: true})
	require.NoError(t, err)
	assert.Equal(t, "lg-2", out["league_id"])
	assert.Equal(t, true, out["force"])
}
