package session

import (
	"context"
	"errors"

	"github.com/mgpai22/shadowplay/internal/clock"
	"github.com/mgpai22/shadowplay/internal/command"
	"github.com/mgpai22/shadowplay/internal/cueindex"
	"github.com/mgpai22/shadowplay/internal/logging"
	"github.com/mgpai22/shadowplay/internal/player"
)

// ErrPlayerGone is returned by Run when the player event stream ends.
var ErrPlayerGone = errors.New("player event stream closed")

// ErrStopped is returned when submitting work to a runner that has exited.
var ErrStopped = errors.New("session runner stopped")

const inboxSize = 64

// Runner executes everything that touches a Session on one goroutine.
type Runner struct {
	inbox  chan func(*Session)
	done   chan struct{}
	logger *logging.Logger
}

func NewRunner(logger *logging.Logger) *Runner {
	return &Runner{
		inbox:  make(chan func(*Session), inboxSize),
		done:   make(chan struct{}),
		logger: logging.OrNop(logger).Named("runner"),
	}
}

// Clock wraps c so timer callbacks run on the runner goroutine.
func (r *Runner) Clock(c clock.Clock) clock.Clock {
	return clock.Posting(c, r.post)
}

func (r *Runner) post(fn func()) {
	if r.stopped() {
		return
	}
	select {
	case r.inbox <- func(*Session) { fn() }:
	case <-r.done:
	}
}

func (r *Runner) stopped() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Done is closed once Run returns.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Run processes player events and submitted work until ctx is cancelled or
// events is closed. A nil events channel is never read.
func (r *Runner) Run(ctx context.Context, s *Session, events <-chan player.Event) error {
	defer close(r.done)
	defer s.Close()
	s.ctx = ctx

	r.logger.Debugw("Session runner started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Debugw("Session runner stopping", "reason", ctx.Err())
			return nil
		case ev, ok := <-events:
			if !ok {
				return ErrPlayerGone
			}
			s.HandleEvent(ev)
		case fn := <-r.inbox:
			fn(s)
		}
	}
}

// Submit queues fn without waiting for it to run.
func (r *Runner) Submit(ctx context.Context, fn func(*Session)) error {
	if r.stopped() {
		return ErrStopped
	}
	select {
	case r.inbox <- fn:
		return nil
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Call runs fn on the runner goroutine and waits for its result.
func (r *Runner) Call(ctx context.Context, fn func(*Session) error) error {
	result := make(chan error, 1)
	if err := r.Submit(ctx, func(s *Session) { result <- fn(s) }); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) Key(ctx context.Context, key command.Key) error {
	return r.Submit(ctx, func(s *Session) { s.HandleKey(key) })
}

func (r *Runner) Gesture(ctx context.Context) error {
	return r.Submit(ctx, func(s *Session) { s.Gesture() })
}

func (r *Runner) ReloadCues(ctx context.Context, cues *cueindex.Index) error {
	return r.Submit(ctx, func(s *Session) { s.ReloadCues(cues) })
}

// Snapshot fetches the current state from the runner goroutine.
func (r *Runner) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := r.Call(ctx, func(s *Session) error {
		snap = s.Snapshot()
		return nil
	})
	return snap, err
}
