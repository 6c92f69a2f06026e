package dispatch

import (
	"context"
	"fmt"
	"time"

	"atlas/pkg/logx"
	"atlas/pkg/orch"
)

// FailureReply is the fixed message sent when processing a turn fails.
const FailureReply = "Sorry, I ran into a problem while processing your request. Please try again."

// Processor runs one turn to completion. Satisfied by *orch.Orchestrator.
type Processor interface {
	Run(ctx context.Context, turn orch.Turn) (string, error)
}

// Replier delivers the final reply back to the chat transport.
type Replier interface {
	Reply(ctx context.Context, spaceID, threadID, text string) error
}

// Dispatcher drains the queue one turn per tick and runs the orchestrator.
// A single consumer goroutine serializes all turn processing.
type Dispatcher struct {
	queue     Queue
	processor Processor
	replier   Replier
	logger    *logx.Logger
	interval  time.Duration
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(queue Queue, processor Processor, replier Replier, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Dispatcher{
		queue:     queue,
		processor: processor,
		replier:   replier,
		logger:    logx.NewLogger("dispatch"),
		interval:  interval,
	}
}

// Start runs the drain loop until ctx is canceled. The in-flight turn always
// finishes; cancellation is honored between ticks.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("drain loop started (interval %s)", d.interval)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("drain loop stopped")
			return
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick drains at most one turn. Errors and panics are contained here; the
// next tick always runs.
func (d *Dispatcher) Tick(ctx context.Context) {
	turn, ok, err := d.queue.DequeueOne()
	if err != nil {
		d.logger.Error("dequeue failed: %v", err)
		return
	}
	if !ok {
		return
	}

	d.logger.Info("processing turn %s (space=%s thread=%s)", turn.ID, turn.SpaceID, turn.ThreadID)
	reply, err := d.process(ctx, turn)
	if err != nil {
		d.logger.Error("turn %s failed: %v", turn.ID, err)
		reply = FailureReply
	}

	if err := d.replier.Reply(ctx, turn.SpaceID, turn.ThreadID, reply); err != nil {
		d.logger.Error("turn %s reply delivery failed: %v", turn.ID, err)
	}
}

// process runs the orchestrator with a panic boundary.
func (d *Dispatcher) process(ctx context.Context, turn orch.Turn) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing turn: %v", r)
		}
	}()
	return d.processor.Run(ctx, turn)
}
