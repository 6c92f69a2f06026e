// Package dispatch provides the durable FIFO turn queue and its single
// consumer drain loop.
package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"atlas/pkg/orch"
	"atlas/pkg/persistence"
)

// DefaultLockTimeout bounds the wait for the queue lock.
const DefaultLockTimeout = 10 * time.Second

// ErrLockTimeout is returned when the queue lock cannot be acquired in time.
// Callers must treat it as a hard failure; silently skipping could lose or
// duplicate a turn.
var ErrLockTimeout = errors.New("queue lock wait timed out")

// Queue is the durable FIFO of pending turns. Enqueue and DequeueOne never
// interleave; both serialize on the same bounded-wait lock.
type Queue interface {
	Enqueue(turn orch.Turn) error
	DequeueOne() (orch.Turn, bool, error)
}

// timedLock is a mutex with a bounded acquire wait.
type timedLock struct {
	ch chan struct{}
}

func newTimedLock() *timedLock {
	l := &timedLock{ch: make(chan struct{}, 1)}
	l.ch <- struct{}{}
	return l
}

func (l *timedLock) acquire(timeout time.Duration) error {
	select {
	case <-l.ch:
		return nil
	case <-time.After(timeout):
		return ErrLockTimeout
	}
}

func (l *timedLock) release() {
	l.ch <- struct{}{}
}

// SQLiteQueue stores serialized turns in the message_queue table.
type SQLiteQueue struct {
	lock        *timedLock
	lockTimeout time.Duration
}

// NewSQLiteQueue creates the queue. persistence.Initialize must have run.
func NewSQLiteQueue(lockTimeout time.Duration) *SQLiteQueue {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &SQLiteQueue{
		lock:        newTimedLock(),
		lockTimeout: lockTimeout,
	}
}

// Enqueue appends one turn to the tail. A lock timeout fails the whole
// inbound event; the queued state is untouched.
func (q *SQLiteQueue) Enqueue(turn orch.Turn) error {
	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to serialize turn: %w", err)
	}

	if err := q.lock.acquire(q.lockTimeout); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	defer q.lock.release()

	return persistence.AppendQueueRow(payload)
}

// DequeueOne pops the head turn. ok is false when the queue is empty.
func (q *SQLiteQueue) DequeueOne() (orch.Turn, bool, error) {
	if err := q.lock.acquire(q.lockTimeout); err != nil {
		return orch.Turn{}, false, fmt.Errorf("dequeue: %w", err)
	}
	defer q.lock.release()

	payload, ok, err := persistence.PopHeadQueueRow()
	if err != nil || !ok {
		return orch.Turn{}, false, err
	}

	var turn orch.Turn
	if err := json.Unmarshal(payload, &turn); err != nil {
		return orch.Turn{}, false, fmt.Errorf("failed to deserialize turn: %w", err)
	}
	return turn, true, nil
}
