package stream

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/turnweaver/pkg/config"
	"github.com/go-go-golems/turnweaver/pkg/events"
	"github.com/go-go-golems/turnweaver/pkg/turns"
)

// Coordinator assembles a turn's message from its chunks and drives the renderer.
// It is not safe for concurrent use: one goroutine feeds it chunks and
// out-of-band updates for the whole turn.
type Coordinator struct {
	renderer  Renderer
	identity  SessionIdentity
	indicator *Indicator
	writeEdit config.ToolMatcher
	detector  *BlockedDetector
	markers   *config.Markers
	now       func() time.Time

	state     *TurnState
	subagents *Subagents
}

type CoordinatorOption func(*Coordinator)

func WithSessionIdentity(identity SessionIdentity) CoordinatorOption {
	return func(c *Coordinator) {
		c.identity = identity
	}
}

// WithIndicator replaces the indicator built from the settings.
func WithIndicator(indicator *Indicator) CoordinatorOption {
	return func(c *Coordinator) {
		c.indicator = indicator
	}
}

// WithIndicatorHost builds the indicator from the settings on top of host.
func WithIndicatorHost(host IndicatorHost) CoordinatorOption {
	return func(c *Coordinator) {
		c.indicator = NewIndicator(host, 0, 0)
	}
}

func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.now = now
	}
}

func NewCoordinator(renderer Renderer, settings *config.Settings, options ...CoordinatorOption) (*Coordinator, error) {
	if renderer == nil {
		return nil, errors.New("coordinator needs a renderer")
	}
	if settings == nil {
		var err error
		settings, err = config.NewSettings()
		if err != nil {
			return nil, err
		}
	}
	markers, err := settings.CompileMarkers()
	if err != nil {
		return nil, err
	}

	c := &Coordinator{
		renderer:  renderer,
		writeEdit: settings.WriteEditTools(),
		detector:  NewBlockedDetectorFromSettings(settings),
		markers:   markers,
		now:       time.Now,
		state:     NewTurnState(),
	}
	for _, o := range options {
		o(c)
	}
	if c.indicator == nil {
		c.indicator = NewIndicator(nil, 0, 0)
	} else if c.indicator.debounce == 0 && c.indicator.interval == 0 {
		c.indicator.debounce = settings.Indicator.Debounce
		c.indicator.interval = settings.Indicator.Interval
	}
	c.subagents = NewSubagents(renderer, settings.SubagentTools(), c.detector, c.state)
	return c, nil
}

func (c *Coordinator) State() *TurnState {
	return c.state
}

func (c *Coordinator) Subagents() *Subagents {
	return c.subagents
}

func (c *Coordinator) Indicator() *Indicator {
	return c.indicator
}

func (c *Coordinator) currentSessionID() string {
	if c.identity == nil {
		return ""
	}
	return c.identity.CurrentSessionID()
}

// Reset abandons any turn in progress without rendering buffered tool calls.
func (c *Coordinator) Reset() {
	c.state.Reset()
	c.subagents.Reset()
	c.indicator.Hide()
	c.indicator.SetThinking(false)
	c.indicator.SetResponseStart(time.Time{})
}

// BeginTurn resets the state and starts assembling msg into container.
func (c *Coordinator) BeginTurn(msg *turns.Message, container Handle) {
	c.Reset()
	c.state.Message = msg
	c.state.Container = container
	c.state.ResponseStart = c.now()
	c.indicator.SetResponseStart(c.state.ResponseStart)
}

// Handle applies one chunk to msg. It never fails: protocol misses are logged and
// renderer failures are contained.
func (c *Coordinator) Handle(ctx context.Context, e events.Event, msg *turns.Message) {
	if e == nil || msg == nil {
		return
	}
	c.state.Message = msg
	log.Trace().Str("event_type", string(e.Type())).Msg("handling chunk")

	if parent := e.ParentID(); parent != "" {
		c.subagents.Route(ctx, parent, e, msg)
		return
	}

	// a repeated tool_use may still settle the mode of a pending launch; anything
	// else means the launch runs inline
	if tu, ok := e.(*events.EventToolUse); ok && c.subagents.IsUndetermined(tu.ID) {
		c.subagents.UpdateLaunch(ctx, tu, msg)
		return
	}
	if c.subagents.HasUndetermined() {
		c.subagents.ResolveUndetermined(ctx, msg)
	}

	switch ev := e.(type) {
	case *events.EventText:
		c.handleText(ctx, ev.Content, msg)
	case *events.EventThinking:
		c.handleThinking(ctx, ev.Content, msg)
	case *events.EventToolUse:
		c.handleToolUse(ctx, ev, msg)
	case *events.EventToolResult:
		c.handleToolResult(ctx, ev, msg)
	case *events.EventUsage:
		c.handleUsage(ctx, ev, msg)
	case *events.EventError:
		c.handleMarker(ctx, config.MarkerError, ev.Content, msg)
	case *events.EventBlocked:
		c.handleMarker(ctx, config.MarkerBlocked, ev.Content, msg)
	case *events.EventDone:
		c.handleDone(ctx, msg)
	default:
		log.Debug().Str("event_type", string(e.Type())).Msg("ignoring unsupported chunk")
	}
}

func (c *Coordinator) handleText(ctx context.Context, content string, msg *turns.Message) {
	c.finalizeThinking(ctx, msg)
	c.flushPending(ctx)
	c.indicator.Hide()
	if content == "" {
		return
	}

	sp := c.state.text
	if sp == nil {
		container := c.state.Container
		sp = &span{kind: turns.BlockKindText, started: c.now()}
		sp.handle = guardHandle("OpenText", func() Handle {
			return c.renderer.OpenText(ctx, container)
		})
		c.state.text = sp
	}
	sp.content.WriteString(content)
	msg.Content += content
	c.renderSpan(ctx, sp)
}

func (c *Coordinator) handleThinking(ctx context.Context, content string, msg *turns.Message) {
	if c.state.Container == nil {
		log.Debug().Msg("dropping thinking chunk without a content container")
		return
	}
	c.finalizeText(ctx, msg)
	c.flushPending(ctx)

	sp := c.state.thinking
	if sp == nil {
		c.indicator.Hide()
		container := c.state.Container
		sp = &span{kind: turns.BlockKindThinking, started: c.now()}
		sp.handle = guardHandle("OpenThinking", func() Handle {
			return c.renderer.OpenThinking(ctx, container)
		})
		c.state.thinking = sp
		c.indicator.SetThinking(true)
		c.indicator.StartElapsed(sp.started)
	}
	sp.content.WriteString(content)
	c.renderSpan(ctx, sp)
}

func (c *Coordinator) renderSpan(ctx context.Context, sp *span) {
	content := sp.content.String()
	var renderErr error
	err := guard("RenderContent", func() {
		renderErr = c.renderer.RenderContent(ctx, sp.handle, content)
	})
	if err == nil {
		err = renderErr
	}
	if err == nil {
		return
	}
	log.Warn().Err(err).Str("span", string(sp.kind)).Msg("could not render content")
	_ = guard("RenderPlaceholder", func() {
		c.renderer.RenderPlaceholder(ctx, sp.handle, err)
	})
}

func (c *Coordinator) finalizeText(ctx context.Context, msg *turns.Message) {
	sp := c.state.text
	if sp == nil {
		return
	}
	c.state.text = nil
	content := sp.content.String()
	if content != "" {
		msg.Blocks = append(msg.Blocks, turns.NewTextBlock(content))
	}
	_ = guard("FinalizeText", func() {
		c.renderer.FinalizeText(ctx, sp.handle, content)
	})
}

func (c *Coordinator) finalizeThinking(ctx context.Context, msg *turns.Message) {
	sp := c.state.thinking
	if sp == nil {
		return
	}
	c.state.thinking = nil
	elapsed := c.now().Sub(sp.started)
	c.indicator.StopElapsed()
	c.indicator.SetThinking(false)
	content := sp.content.String()
	if content != "" {
		msg.Blocks = append(msg.Blocks, turns.NewThinkingBlock(content, elapsed))
	}
	_ = guard("FinalizeThinking", func() {
		c.renderer.FinalizeThinking(ctx, sp.handle, content, elapsed)
	})
}

func (c *Coordinator) handleToolUse(ctx context.Context, ev *events.EventToolUse, msg *turns.Message) {
	if ev.ID == "" {
		log.Debug().Str("tool_name", ev.Name).Msg("ignoring tool_use without id")
		return
	}
	if c.subagents.Owns(ev.ID) {
		c.subagents.UpdateLaunch(ctx, ev, msg)
		return
	}
	if call := msg.FindToolCall(ev.ID); call != nil {
		call.MergeInput(ev.Input)
		if call.Name == "" && ev.Name != "" {
			call.Name = ev.Name
		}
		if c.state.pending.Has(ev.ID) {
			log.Trace().Str("tool_id", ev.ID).Msg("merged input into buffered tool call")
			return
		}
		if h, ok := c.state.handles.Get(ev.ID); ok {
			_ = guard("UpdateToolLabel", func() {
				c.renderer.UpdateToolLabel(ctx, h, call)
			})
		}
		return
	}

	c.finalizeThinking(ctx, msg)
	c.finalizeText(ctx, msg)

	call := turns.NewToolCall(ev.ID, ev.Name, ev.Input)
	if c.subagents.IsSubagentTool(ev.Name) {
		c.subagents.Launch(ctx, call, msg)
		c.indicator.Schedule()
		return
	}

	msg.ToolCalls = append(msg.ToolCalls, call)
	c.state.pending.Add(call)
	msg.Blocks = append(msg.Blocks, turns.NewToolUseBlock(call.ID))
	c.indicator.Schedule()
}

// flushPending renders every buffered tool call in arrival order.
func (c *Coordinator) flushPending(ctx context.Context) {
	if c.state.pending.Len() == 0 {
		return
	}
	log.Debug().Strs("tool_ids", c.state.pending.IDs()).Msg("flushing buffered tool calls")
	for _, call := range c.state.pending.Drain() {
		c.renderToolCall(ctx, call)
	}
}

func (c *Coordinator) renderToolCall(ctx context.Context, call *turns.ToolCall) {
	container := c.state.Container
	if c.writeEdit.Match(call.Name) {
		h := guardHandle("RenderWriteEdit", func() Handle {
			return c.renderer.RenderWriteEdit(ctx, container, call)
		})
		c.state.handles.Set(call.ID, h, true)
		return
	}
	h := guardHandle("RenderToolCall", func() Handle {
		return c.renderer.RenderToolCall(ctx, container, call)
	})
	c.state.handles.Set(call.ID, h, false)
}

func (c *Coordinator) handleToolResult(ctx context.Context, ev *events.EventToolResult, msg *turns.Message) {
	if c.subagents.Owns(ev.ID) {
		c.subagents.HandleResult(ctx, ev, msg)
		c.indicator.Schedule()
		return
	}

	call := msg.FindToolCall(ev.ID)
	if call == nil {
		log.Debug().Str("tool_id", ev.ID).Msg("tool result for unknown tool call")
		return
	}
	if pendingCall, ok := c.state.pending.Take(ev.ID); ok {
		c.renderToolCall(ctx, pendingCall)
	}
	if call.IsFinished() {
		log.Debug().Str("tool_id", ev.ID).Msg("ignoring repeated tool result")
		return
	}

	call.Result = ev.Content
	call.Status = c.detector.Status(call.Name, ev.Content, ev.IsError)

	h, _ := c.state.handles.Get(ev.ID)
	if c.state.handles.IsWriteEdit(ev.ID) {
		_ = guard("FinalizeWriteEdit", func() {
			c.renderer.FinalizeWriteEdit(ctx, h, call)
		})
	} else {
		_ = guard("FinalizeToolCall", func() {
			c.renderer.FinalizeToolCall(ctx, h, call)
		})
	}
	c.indicator.Schedule()
}

func (c *Coordinator) handleUsage(ctx context.Context, ev *events.EventUsage, msg *turns.Message) {
	if c.state.SubagentSpawned || c.state.IgnoreUsage {
		log.Debug().Bool("subagent_spawned", c.state.SubagentSpawned).Msg("dropping usage chunk")
		return
	}
	if ev.SessionID != "" && ev.SessionID != c.currentSessionID() {
		log.Debug().Str("session_id", ev.SessionID).Msg("dropping usage chunk from another session")
		return
	}
	u := ev.Usage
	snapshot := turns.NewUsageSnapshot(u.Model, u.InputTokens, u.CacheCreationInputTokens, u.CacheReadInputTokens, u.ContextWindow)
	c.state.Usage = snapshot
	msg.Usage = snapshot.Clone()
	_ = guard("RenderUsage", func() {
		c.renderer.RenderUsage(ctx, snapshot.Clone())
	})
}

// handleMarker appends an inline marker line through the text path so it renders
// together with the surrounding text.
func (c *Coordinator) handleMarker(ctx context.Context, kind config.MarkerKind, content string, msg *turns.Message) {
	c.flushPending(ctx)
	c.finalizeThinking(ctx, msg)
	c.handleText(ctx, c.markers.Render(kind, content), msg)
}

func (c *Coordinator) handleDone(ctx context.Context, msg *turns.Message) {
	c.flushPending(ctx)
	c.finalizeThinking(ctx, msg)
	c.finalizeText(ctx, msg)
	c.indicator.Hide()
	c.state.Done = true
}

// FinishOptions describes how a turn ended.
type FinishOptions struct {
	// Err is the source failure that ended the turn, if any.
	Err error
	// Interrupted is set when the turn was cancelled.
	Interrupted bool
}

// Finish finalizes msg after the chunk sequence ended, whether or not a done chunk
// arrived. It is safe to call after done.
func (c *Coordinator) Finish(ctx context.Context, msg *turns.Message, opts FinishOptions) {
	if msg == nil {
		return
	}
	c.state.Message = msg
	c.subagents.ResolveUndetermined(ctx, msg)
	if opts.Err != nil {
		c.handleMarker(ctx, config.MarkerError, opts.Err.Error(), msg)
	}
	if opts.Interrupted {
		c.handleMarker(ctx, config.MarkerInterrupted, "", msg)
		msg.Interrupted = true
	}
	c.handleDone(ctx, msg)
	c.subagents.Finalize(ctx)
	if !c.state.ResponseStart.IsZero() {
		msg.DurationSeconds = c.now().Sub(c.state.ResponseStart).Seconds()
	}
	c.indicator.Hide()
	c.indicator.SetResponseStart(time.Time{})
}

// ApplySubagentUpdate applies an out-of-band update to a subagent of the live turn.
// It reports false when the subagent belongs to another message.
func (c *Coordinator) ApplySubagentUpdate(ctx context.Context, u turns.SubagentUpdate) bool {
	return c.subagents.ApplyUpdate(ctx, u)
}
