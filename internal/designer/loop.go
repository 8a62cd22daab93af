package designer

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned by Dispatch after the loop has exited.
var ErrStopped = errors.New("designer loop stopped")

// Listener is notified after every successfully applied command.
// It runs on the loop goroutine and must not call Dispatch.
type Listener func(Event, State)

type request struct {
	cmd   Command
	reply chan response
}

type response struct {
	state State
	err   error
}

// Loop owns one State and applies commands one at a time on its own goroutine.
type Loop struct {
	requests  chan request
	done      chan struct{}
	listeners []Listener
	mu        sync.Mutex
}

// NewLoop starts a loop with a fresh state. It runs until ctx is cancelled.
func NewLoop(ctx context.Context) *Loop {
	l := &Loop{
		requests: make(chan request),
		done:     make(chan struct{}),
	}
	go l.run(ctx, NewState())
	return l
}

// On registers a listener.
func (l *Loop) On(fn Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// Done is closed once the loop has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Dispatch applies cmd and returns the resulting state.
func (l *Loop) Dispatch(ctx context.Context, cmd Command) (State, error) {
	req := request{cmd: cmd, reply: make(chan response, 1)}

	select {
	case l.requests <- req:
	case <-l.done:
		return State{}, ErrStopped
	case <-ctx.Done():
		return State{}, ctx.Err()
	}

	// once accepted the command is always answered
	resp := <-req.reply
	return resp.state, resp.err
}

// Snapshot returns the current state without changing it.
func (l *Loop) Snapshot(ctx context.Context) (State, error) {
	return l.Dispatch(ctx, Command{})
}

func (l *Loop) run(ctx context.Context, s *State) {
	defer close(l.done)

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-l.requests:
			if req.cmd.Kind == "" {
				req.reply <- response{state: s.Snapshot()}
				continue
			}

			ev, err := Apply(s, req.cmd)
			snap := s.Snapshot()
			if err == nil {
				l.notify(ev, snap)
			}
			req.reply <- response{state: snap, err: err}
		}
	}
}

func (l *Loop) notify(ev Event, snap State) {
	l.mu.Lock()
	listeners := l.listeners
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(ev, snap)
	}
}
