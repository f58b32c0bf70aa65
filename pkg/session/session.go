package session

import (
	"context"
	"io"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/turnweaver/pkg/conversation"
	"github.com/go-go-golems/turnweaver/pkg/events"
	"github.com/go-go-golems/turnweaver/pkg/stream"
	"github.com/go-go-golems/turnweaver/pkg/turns"
)

var (
	ErrSessionNil           = errors.New("session is nil")
	ErrSessionBuilderNil    = errors.New("session builder is nil")
	ErrSessionAlreadyActive = errors.New("session already has an active turn")
	ErrSessionNoActive      = errors.New("session has no active turn")
	ErrSessionIDEmpty       = errors.New("session has empty SessionID")
	ErrSourceNil            = errors.New("chunk source is nil")
)

// Session represents a long-lived, multi-turn interaction.
//
// It owns:
// - a stable SessionID, reported to coordinators to gate usage chunks
// - the conversation history (finished messages, append-only)
// - the invariant that only one turn is active at a time
// - the inbox of out-of-band subagent updates
type Session struct {
	SessionID    string
	Conversation *conversation.Conversation

	Builder CoordinatorBuilder
	// Sinks receive every chunk of every turn, in order.
	Sinks []events.EventSink

	mu     sync.Mutex
	active *ExecutionHandle
	turn   *liveTurn
}

var _ stream.SessionIdentity = (*Session)(nil)

type Option func(*Session)

func WithSessionID(id string) Option {
	return func(s *Session) {
		s.SessionID = id
	}
}

func WithBuilder(b CoordinatorBuilder) Option {
	return func(s *Session) {
		s.Builder = b
	}
}

func WithConversation(c *conversation.Conversation) Option {
	return func(s *Session) {
		s.Conversation = c
	}
}

func WithSinks(sinks ...events.EventSink) Option {
	return func(s *Session) {
		s.Sinks = append(s.Sinks, sinks...)
	}
}

// NewSession constructs a Session with a generated SessionID and an empty
// conversation.
func NewSession(options ...Option) *Session {
	s := &Session{
		SessionID: uuid.NewString(),
	}
	for _, o := range options {
		o(s)
	}
	if s.Conversation == nil {
		s.Conversation = conversation.New(conversation.WithSessionID(s.SessionID))
	}
	return s
}

func (s *Session) CurrentSessionID() string {
	if s == nil {
		return ""
	}
	return s.SessionID
}

// IsRunning reports whether the session currently has an active turn.
func (s *Session) IsRunning() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil && s.active.IsRunning()
}

// StartTurn consumes source on a new goroutine, rendering into container. The
// finished message is appended to the conversation, whether the turn completed,
// failed or was cancelled.
func (s *Session) StartTurn(ctx context.Context, source ChunkSource, container stream.Handle) (*ExecutionHandle, error) {
	if s == nil {
		return nil, ErrSessionNil
	}
	if s.SessionID == "" {
		return nil, ErrSessionIDEmpty
	}
	if s.Builder == nil {
		return nil, ErrSessionBuilderNil
	}
	if source == nil {
		return nil, ErrSourceNil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if s.IsRunning() {
		return nil, ErrSessionAlreadyActive
	}

	coordinator, err := s.Builder.Build(ctx, s)
	if err != nil {
		return nil, errors.Wrap(err, "could not build coordinator")
	}

	msg := turns.NewMessage()
	runCtx, cancel := context.WithCancel(WithSessionMeta(ctx, s.SessionID, msg.ID))
	handle := newExecutionHandle(s.SessionID, msg.ID, cancel)
	lt := newLiveTurn()

	s.mu.Lock()
	// another goroutine may have started a turn while we were building
	if s.active != nil && s.active.IsRunning() {
		s.mu.Unlock()
		cancel()
		return nil, ErrSessionAlreadyActive
	}
	s.active = handle
	s.turn = lt
	s.mu.Unlock()

	if len(s.Sinks) > 0 {
		runCtx = events.WithEventSinks(runCtx, s.Sinks...)
	}
	coordinator.BeginTurn(msg, container)

	go func() {
		err := s.run(runCtx, coordinator, source, lt, msg)
		s.Conversation.Append(msg)

		s.mu.Lock()
		s.turn = nil
		s.active = nil
		s.mu.Unlock()
		close(lt.stopped)

		cancel()
		handle.setResult(msg, err)
	}()

	return handle, nil
}

// CancelActive interrupts the current turn, if any.
func (s *Session) CancelActive() error {
	if s == nil {
		return ErrSessionNil
	}
	s.mu.Lock()
	h := s.active
	s.mu.Unlock()
	if h == nil || !h.IsRunning() {
		return ErrSessionNoActive
	}
	h.Cancel()
	return nil
}

// SubmitSubagentUpdate delivers an out-of-band update. While a turn runs, it is
// applied on the turn goroutine; otherwise it goes straight to the conversation. It
// reports whether a subagent record changed.
func (s *Session) SubmitSubagentUpdate(ctx context.Context, u turns.SubagentUpdate) bool {
	if s == nil || u.ID == "" {
		return false
	}
	s.mu.Lock()
	lt := s.turn
	s.mu.Unlock()

	if lt != nil {
		req := updateRequest{update: u, reply: make(chan bool, 1)}
		select {
		case lt.updates <- req:
			select {
			case applied := <-req.reply:
				return applied
			case <-ctx.Done():
				return false
			}
		case <-lt.stopped:
			// the turn ended, its message is in the conversation by now
		case <-ctx.Done():
			return false
		}
	}
	return s.Conversation.ApplySubagentUpdate(u)
}

func (s *Session) Latest() *turns.Message {
	if s == nil {
		return nil
	}
	return s.Conversation.Latest()
}

type updateRequest struct {
	update turns.SubagentUpdate
	reply  chan bool
}

type liveTurn struct {
	updates chan updateRequest
	stopped chan struct{}
}

func newLiveTurn() *liveTurn {
	return &liveTurn{
		updates: make(chan updateRequest),
		stopped: make(chan struct{}),
	}
}

type chunkResult struct {
	event events.Event
	err   error
}

// pump moves chunks from source onto a channel so the turn loop can wait on them
// together with updates and cancellation.
func pump(ctx context.Context, source ChunkSource, out chan<- chunkResult) {
	for {
		e, err := source.Next(ctx)
		select {
		case out <- chunkResult{event: e, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) run(ctx context.Context, c *stream.Coordinator, source ChunkSource, lt *liveTurn, msg *turns.Message) error {
	pumpCtx, stopPump := context.WithCancel(ctx)
	defer stopPump()
	chunks := make(chan chunkResult)
	go pump(pumpCtx, source, chunks)

	var (
		sourceErr   error
		interrupted bool
	)

loop:
	for {
		select {
		case <-ctx.Done():
			interrupted = true
			break loop

		case req := <-lt.updates:
			applied := c.ApplySubagentUpdate(ctx, req.update)
			if !applied {
				applied = s.Conversation.ApplySubagentUpdate(req.update)
			}
			req.reply <- applied

		case r := <-chunks:
			// select picks randomly among ready cases; a cancelled turn consumes nothing more
			if ctx.Err() != nil {
				interrupted = true
				break loop
			}
			if r.err != nil {
				switch {
				case errors.Is(r.err, io.EOF):
				default:
					sourceErr = r.err
					log.Error().Err(r.err).Str("session_id", s.SessionID).Msg("chunk source failed")
				}
				break loop
			}
			if r.event == nil {
				continue
			}
			events.PublishEventToContext(ctx, r.event)
			c.Handle(ctx, r.event, msg)
			if c.State().Done {
				break loop
			}
		}
	}

	// finalizing must not be cut short by the cancellation that ended the turn
	finishCtx := context.WithoutCancel(ctx)
	c.Finish(finishCtx, msg, stream.FinishOptions{Err: sourceErr, Interrupted: interrupted})

	switch {
	case sourceErr != nil:
		return errors.Wrap(sourceErr, "turn failed")
	case interrupted:
		return errors.Wrap(ctx.Err(), "turn interrupted")
	}
	return nil
}

// UpdateHandler returns a watermill handler submitting subagent_state messages to
// the session.
func (s *Session) UpdateHandler() func(msg *message.Message) error {
	return conversation.SubagentUpdateHandler(func(msg *message.Message, u turns.SubagentUpdate) bool {
		return s.SubmitSubagentUpdate(msg.Context(), u)
	})
}
