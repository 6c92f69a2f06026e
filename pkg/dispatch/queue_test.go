package dispatch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas/pkg/contextmgr"
	"atlas/pkg/orch"
	"atlas/pkg/persistence"
)

// The persistence singleton initializes once per test binary, so the database
// is shared across all tests in this package. Each test drains what it enqueues.
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "dispatch-test-*")
	if err != nil {
		panic(err)
	}
	if err := persistence.Initialize(filepath.Join(dir, "queue.db")); err != nil {
		panic(err)
	}

	code := m.Run()

	_ = persistence.Close()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

func TestQueueFIFOOrder(t *testing.T) {
	q := NewSQLiteQueue(time.Second)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(orch.Turn{ID: id, RawMessage: "msg " + id}))
	}

	for _, want := range []string{"a", "b", "c"} {
		turn, ok, err := q.DequeueOne()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, turn.ID)
	}

	_, ok, err := q.DequeueOne()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueueRoundTripPreservesTurn(t *testing.T) {
	q := NewSQLiteQueue(time.Second)
	in := orch.Turn{
		ID:          "t1",
		SpaceID:     "spaces/AAA",
		ThreadID:    "spaces/AAA/threads/BBB",
		RawMessage:  "why does backend-core restart?",
		RequesterID: "user@example.com",
		PriorMessages: []contextmgr.Message{
			{Role: "user", Text: "is it down?"},
			{Role: "assistant", Text: "checking"},
		},
	}
	require.NoError(t, q.Enqueue(in))

	out, ok, err := q.DequeueOne()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in, out)
}

func TestQueueConcurrentEnqueue(t *testing.T) {
	q := NewSQLiteQueue(5 * time.Second)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- q.Enqueue(orch.Turn{ID: fmt.Sprintf("turn-%d", i)})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	seen := make(map[string]bool)
	for {
		turn, ok, err := q.DequeueOne()
		require.NoError(t, err)
		if !ok {
			break
		}
		assert.False(t, seen[turn.ID], "duplicate turn %s", turn.ID)
		seen[turn.ID] = true
	}
	assert.Len(t, seen, n)
}

func TestTimedLockBoundedAcquire(t *testing.T) {
	l := newTimedLock()
	require.NoError(t, l.acquire(time.Millisecond))

	err := l.acquire(10 * time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)

	l.release()
	require.NoError(t, l.acquire(time.Millisecond))
	l.release()
}

func TestEnqueueLockTimeoutIsHardFailure(t *testing.T) {
	q := NewSQLiteQueue(10 * time.Millisecond)
	require.NoError(t, q.lock.acquire(time.Second)) // hold the lock
	defer q.lock.release()

	err := q.Enqueue(orch.Turn{ID: "blocked"})
	assert.ErrorIs(t, err, ErrLockTimeout)

	_, _, err = q.DequeueOne()
	assert.ErrorIs(t, err, ErrLockTimeout)
}
