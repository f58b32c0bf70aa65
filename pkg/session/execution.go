package session

import (
	"context"
	"errors"
	"sync"

	"github.com/go-go-golems/turnweaver/pkg/turns"
)

var ErrExecutionHandleNil = errors.New("execution handle is nil")

// ExecutionHandle represents a single in-flight turn.
//
// It is cancelable and waitable. A cancelled turn is still finalized and its message
// is returned together with an error wrapping context.Canceled.
type ExecutionHandle struct {
	SessionID string
	TurnID    string

	done chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	out    *turns.Message
	err    error
}

func newExecutionHandle(sessionID, turnID string, cancel context.CancelFunc) *ExecutionHandle {
	return &ExecutionHandle{
		SessionID: sessionID,
		TurnID:    turnID,
		done:      make(chan struct{}),
		cancel:    cancel,
	}
}

func (h *ExecutionHandle) setResult(out *turns.Message, err error) {
	h.mu.Lock()
	h.out = out
	h.err = err
	close(h.done)
	h.cancel = nil
	h.mu.Unlock()
}

// Cancel interrupts the turn. It is safe to call multiple times.
func (h *ExecutionHandle) Cancel() {
	if h == nil {
		return
	}
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the turn is finalized and returns its message.
func (h *ExecutionHandle) Wait() (*turns.Message, error) {
	if h == nil {
		return nil, ErrExecutionHandleNil
	}
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.out, h.err
}

// Done is closed once the turn is finalized.
func (h *ExecutionHandle) Done() <-chan struct{} {
	return h.done
}

func (h *ExecutionHandle) IsRunning() bool {
	if h == nil {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}
