// Package dispatch takes the browser to the provider consent page and, in
// popup mode, waits for the callback leg to report back. The coordinator
// owns no HTTP surface of its own: the host supplies a window opener or a
// navigator, and the callback handler feeds completions in by state.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-authflow/core"
	glog "github.com/goliatone/go-logger/glog"
)

// Window is one open consent popup. Closed fires when the user dismisses
// the window before the flow completes.
type Window interface {
	Closed() <-chan struct{}
	Close() error
}

// WindowOpener opens a consent popup at the given URL.
type WindowOpener interface {
	Open(ctx context.Context, url string) (Window, error)
}

// Navigator performs a full-page navigation for redirect mode.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// Coordinator implements core.Dispatcher. Popup dispatches block until
// Complete delivers the callback for the same state, the user closes the
// window, the context ends, or the coordinator shuts down. Redirect
// dispatches return as soon as navigation is underway.
type Coordinator struct {
	opener    WindowOpener
	navigator Navigator
	logger    core.Logger

	mu      sync.Mutex
	waiters map[string]chan core.Completion
	done    chan struct{}
	closed  bool
}

type Option func(*Coordinator)

func WithWindowOpener(opener WindowOpener) Option {
	return func(c *Coordinator) {
		if opener != nil {
			c.opener = opener
		}
	}
}

func WithNavigator(navigator Navigator) Option {
	return func(c *Coordinator) {
		if navigator != nil {
			c.navigator = navigator
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewCoordinator(options ...Option) *Coordinator {
	coordinator := &Coordinator{
		waiters: map[string]chan core.Completion{},
		done:    make(chan struct{}),
	}
	for _, option := range options {
		if option != nil {
			option(coordinator)
		}
	}
	coordinator.logger = glog.Ensure(coordinator.logger)
	return coordinator
}

var _ core.Dispatcher = (*Coordinator)(nil)

func (c *Coordinator) Dispatch(ctx context.Context, req core.DispatchRequest) (core.Completion, error) {
	if c == nil {
		return core.Completion{}, fmt.Errorf("dispatch: coordinator is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(req.AuthorizationURL) == "" {
		return core.Completion{}, fmt.Errorf("dispatch: authorization url is required")
	}

	if req.Mode == core.DispatchModeRedirect {
		if c.navigator == nil {
			return core.Completion{}, fmt.Errorf("dispatch: redirect mode requires a navigator")
		}
		if err := c.navigator.Navigate(ctx, req.AuthorizationURL); err != nil {
			return core.Completion{}, fmt.Errorf("dispatch: navigate to consent page: %w", err)
		}
		return core.Completion{}, nil
	}

	if c.opener == nil {
		return core.Completion{}, fmt.Errorf("dispatch: popup mode requires a window opener")
	}
	state := strings.TrimSpace(req.State)
	if state == "" {
		return core.Completion{}, fmt.Errorf("dispatch: popup mode requires a state")
	}

	waiter, err := c.register(state)
	if err != nil {
		return core.Completion{}, err
	}
	defer c.unregister(state)

	window, err := c.opener.Open(ctx, req.AuthorizationURL)
	if err != nil {
		return core.Completion{}, fmt.Errorf("dispatch: open consent window: %w", err)
	}
	defer func() {
		if closeErr := window.Close(); closeErr != nil {
			c.logger.Debug("consent window close failed", "state", state, "error", closeErr.Error())
		}
	}()

	select {
	case completion := <-waiter:
		return completion, nil
	case <-window.Closed():
		return core.Completion{
			Err: fmt.Errorf("dispatch: consent window closed: %w", core.ErrDispatchCanceled),
		}, nil
	case <-c.done:
		return core.Completion{
			Err: fmt.Errorf("dispatch: coordinator shut down: %w", core.ErrDispatchCanceled),
		}, nil
	case <-ctx.Done():
		return core.Completion{}, ctx.Err()
	}
}

// Complete hands the callback outcome to the popup waiting on state. It
// reports false when no dispatch is waiting, which callers treat as "the
// callback arrived through the redirect path instead".
func (c *Coordinator) Complete(state string, completion core.Completion) bool {
	if c == nil {
		return false
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return false
	}

	c.mu.Lock()
	waiter, ok := c.waiters[state]
	if ok {
		delete(c.waiters, state)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}

	// Buffered with room for exactly one completion, so this never blocks.
	waiter <- completion
	return true
}

func (c *Coordinator) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)
	return nil
}

func (c *Coordinator) register(state string) (chan core.Completion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("dispatch: coordinator is closed")
	}
	if _, exists := c.waiters[state]; exists {
		return nil, fmt.Errorf("dispatch: a dispatch for state %q is already in flight", state)
	}
	waiter := make(chan core.Completion, 1)
	c.waiters[state] = waiter
	return waiter, nil
}

func (c *Coordinator) unregister(state string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.waiters, state)
}
