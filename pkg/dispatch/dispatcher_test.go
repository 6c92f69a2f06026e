package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas/pkg/orch"
)

type fakeQueue struct {
	turns []orch.Turn
	err   error
}

func (q *fakeQueue) Enqueue(turn orch.Turn) error {
	q.turns = append(q.turns, turn)
	return nil
}

func (q *fakeQueue) DequeueOne() (orch.Turn, bool, error) {
	if q.err != nil {
		return orch.Turn{}, false, q.err
	}
	if len(q.turns) == 0 {
		return orch.Turn{}, false, nil
	}
	turn := q.turns[0]
	q.turns = q.turns[1:]
	return turn, true, nil
}

type fakeProcessor struct {
	run func(ctx context.Context, turn orch.Turn) (string, error)
}

func (p *fakeProcessor) Run(ctx context.Context, turn orch.Turn) (string, error) {
	return p.run(ctx, turn)
}

type recordedReply struct {
	spaceID  string
	threadID string
	text     string
}

type fakeReplier struct {
	replies []recordedReply
	err     error
}

func (r *fakeReplier) Reply(_ context.Context, spaceID, threadID, text string) error {
	r.replies = append(r.replies, recordedReply{spaceID, threadID, text})
	return r.err
}

func TestTickProcessesOneTurnAndReplies(t *testing.T) {
	queue := &fakeQueue{turns: []orch.Turn{
		{ID: "t1", SpaceID: "spaces/A", ThreadID: "threads/B"},
		{ID: "t2", SpaceID: "spaces/A", ThreadID: "threads/C"},
	}}
	replier := &fakeReplier{}
	d := NewDispatcher(queue, &fakeProcessor{
		run: func(_ context.Context, turn orch.Turn) (string, error) {
			return "answer for " + turn.ID, nil
		},
	}, replier, 0)

	d.Tick(context.Background())
	require.Len(t, replier.replies, 1)
	assert.Equal(t, recordedReply{"spaces/A", "threads/B", "answer for t1"}, replier.replies[0])
	assert.Len(t, queue.turns, 1)
}

func TestTickEmptyQueueDoesNothing(t *testing.T) {
	replier := &fakeReplier{}
	d := NewDispatcher(&fakeQueue{}, &fakeProcessor{
		run: func(_ context.Context, _ orch.Turn) (string, error) {
			t.Fatal("processor must not run on an empty queue")
			return "", nil
		},
	}, replier, 0)

	d.Tick(context.Background())
	assert.Empty(t, replier.replies)
}

func TestTickProcessingErrorSendsFailureReply(t *testing.T) {
	queue := &fakeQueue{turns: []orch.Turn{{ID: "t1", SpaceID: "s", ThreadID: "th"}}}
	replier := &fakeReplier{}
	d := NewDispatcher(queue, &fakeProcessor{
		run: func(_ context.Context, _ orch.Turn) (string, error) {
			return "", errors.New("model unavailable")
		},
	}, replier, 0)

	d.Tick(context.Background())
	require.Len(t, replier.replies, 1)
	assert.Equal(t, FailureReply, replier.replies[0].text)
}

func TestTickPanicIsContained(t *testing.T) {
	queue := &fakeQueue{turns: []orch.Turn{{ID: "t1"}, {ID: "t2"}}}
	replier := &fakeReplier{}
	d := NewDispatcher(queue, &fakeProcessor{
		run: func(_ context.Context, turn orch.Turn) (string, error) {
			if turn.ID == "t1" {
				panic("nil map write")
			}
			return "recovered", nil
		},
	}, replier, 0)

	d.Tick(context.Background())
	d.Tick(context.Background())

	require.Len(t, replier.replies, 2)
	assert.Equal(t, FailureReply, replier.replies[0].text)
	assert.Equal(t, "recovered", replier.replies[1].text)
}

func TestTickDequeueErrorSkipsProcessing(t *testing.T) {
	replier := &fakeReplier{}
	d := NewDispatcher(&fakeQueue{err: ErrLockTimeout}, &fakeProcessor{
		run: func(_ context.Context, _ orch.Turn) (string, error) {
			t.Fatal("processor must not run when dequeue fails")
			return "", nil
		},
	}, replier, 0)

	d.Tick(context.Background())
	assert.Empty(t, replier.replies)
}
