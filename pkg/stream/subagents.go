package stream

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/turnweaver/pkg/config"
	"github.com/go-go-golems/turnweaver/pkg/events"
	"github.com/go-go-golems/turnweaver/pkg/turns"
)

const (
	inputRunInBackground = "run_in_background"
	inputPrompt          = "prompt"
	inputDescription     = "description"
	inputSubagentType    = "subagent_type"
)

var agentIDPattern = regexp.MustCompile(`(?i)agent[ _-]?id["']?\s*[:=]\s*["']?([A-Za-z0-9_.\-]+)`)

type subagentEntry struct {
	record *turns.SubagentRecord
	call   *turns.ToolCall
	handle Handle
	// undetermined until the input reveals whether the agent runs in the background
	undetermined bool
}

// Subagents tracks the nested agent executions started during the current turn.
// Sync executions finish with the tool_result of their invocation; async ones are
// confirmed by that result and then updated out of band.
type Subagents struct {
	renderer SubagentRenderer
	tools    config.ToolMatcher
	detector *BlockedDetector
	state    *TurnState

	entries map[string]*subagentEntry
	order   []string
}

func NewSubagents(renderer SubagentRenderer, tools config.ToolMatcher, detector *BlockedDetector, state *TurnState) *Subagents {
	return &Subagents{
		renderer: renderer,
		tools:    tools,
		detector: detector,
		state:    state,
		entries:  map[string]*subagentEntry{},
	}
}

func (s *Subagents) Reset() {
	s.entries = map[string]*subagentEntry{}
	s.order = nil
}

func (s *Subagents) IsSubagentTool(name string) bool {
	return s.tools.Match(name)
}

// Owns reports whether id is a subagent invocation of this turn.
func (s *Subagents) Owns(id string) bool {
	_, ok := s.entries[id]
	return ok
}

func (s *Subagents) IsUndetermined(id string) bool {
	e, ok := s.entries[id]
	return ok && e.undetermined
}

func (s *Subagents) HasUndetermined() bool {
	for _, e := range s.entries {
		if e.undetermined {
			return true
		}
	}
	return false
}

func (s *Subagents) Record(id string) *turns.SubagentRecord {
	if e, ok := s.entries[id]; ok {
		return e.record
	}
	return nil
}

// modeFromInput reports the execution mode once the input says so.
func modeFromInput(input map[string]interface{}) (turns.SubagentMode, bool) {
	if v, ok := input[inputRunInBackground]; ok {
		if b, ok := v.(bool); ok && b {
			return turns.SubagentModeAsync, true
		}
		return turns.SubagentModeSync, true
	}
	if _, ok := input[inputPrompt]; ok {
		return turns.SubagentModeSync, true
	}
	return "", false
}

func describe(call *turns.ToolCall) string {
	if d := strings.TrimSpace(call.InputString(inputDescription)); d != "" {
		return d
	}
	if t := strings.TrimSpace(call.InputString(inputSubagentType)); t != "" {
		return t
	}
	return call.Name
}

// Launch records a new invocation. The record is appended to the message right
// away; its content block is appended once the mode is known.
func (s *Subagents) Launch(ctx context.Context, call *turns.ToolCall, msg *turns.Message) {
	s.state.SubagentSpawned = true
	rec := &turns.SubagentRecord{
		ID:           call.ID,
		Description:  describe(call),
		SubagentType: call.InputString(inputSubagentType),
		Prompt:       call.InputString(inputPrompt),
		Status:       turns.SubagentStatusPending,
	}
	msg.Subagents = append(msg.Subagents, rec)
	e := &subagentEntry{record: rec, call: call}
	s.entries[call.ID] = e
	s.order = append(s.order, call.ID)

	mode, known := modeFromInput(call.Input)
	if !known {
		e.undetermined = true
		log.Debug().Str("tool_id", call.ID).Msg("subagent launch waiting for mode")
		return
	}
	s.start(ctx, e, mode, msg)
}

func (s *Subagents) start(ctx context.Context, e *subagentEntry, mode turns.SubagentMode, msg *turns.Message) {
	e.undetermined = false
	rec := e.record
	rec.Mode = mode
	msg.Blocks = append(msg.Blocks, turns.NewSubagentBlock(rec.ID, mode))
	container := s.state.Container
	if mode == turns.SubagentModeAsync {
		rec.Status = turns.SubagentStatusPending
		e.handle = guardHandle("RenderAsyncSubagent", func() Handle {
			return s.renderer.RenderAsyncSubagent(ctx, container, rec)
		})
		return
	}
	rec.Status = turns.SubagentStatusRunning
	e.handle = guardHandle("RenderSubagent", func() Handle {
		return s.renderer.RenderSubagent(ctx, container, rec)
	})
}

// UpdateLaunch handles a repeated tool_use for an invocation. While the mode is
// unknown only the label changes, unless the new input settles the mode.
func (s *Subagents) UpdateLaunch(ctx context.Context, ev *events.EventToolUse, msg *turns.Message) {
	e, ok := s.entries[ev.ID]
	if !ok {
		return
	}
	e.call.MergeInput(ev.Input)
	if e.call.Name == "" && ev.Name != "" {
		e.call.Name = ev.Name
	}
	rec := e.record
	labelChanged := false
	if d := describe(e.call); d != rec.Description {
		rec.Description = d
		labelChanged = true
	}
	if t := e.call.InputString(inputSubagentType); t != "" {
		rec.SubagentType = t
	}
	if p := e.call.InputString(inputPrompt); p != "" {
		rec.Prompt = p
	}

	if e.undetermined {
		if mode, known := modeFromInput(e.call.Input); known {
			s.start(ctx, e, mode, msg)
		}
		return
	}
	if labelChanged {
		_ = guard("UpdateSubagent", func() {
			s.renderer.UpdateSubagent(ctx, e.handle, rec)
		})
	}
}

// ResolveUndetermined starts every launch whose mode is still unknown as a sync
// execution, in launch order.
func (s *Subagents) ResolveUndetermined(ctx context.Context, msg *turns.Message) {
	for _, id := range s.order {
		e := s.entries[id]
		if e.undetermined {
			log.Debug().Str("tool_id", id).Msg("resolving subagent launch as sync")
			s.start(ctx, e, turns.SubagentModeSync, msg)
		}
	}
}

// Route applies a chunk emitted by a nested execution. Chunks for unknown or
// finished executions are dropped.
func (s *Subagents) Route(ctx context.Context, parentID string, ev events.Event, msg *turns.Message) {
	e, ok := s.entries[parentID]
	if !ok {
		log.Debug().Str("parent_tool_use_id", parentID).Str("event_type", string(ev.Type())).Msg("dropping chunk for unknown subagent")
		return
	}
	if e.undetermined {
		s.start(ctx, e, turns.SubagentModeSync, msg)
	}
	rec := e.record
	if rec.Status.IsTerminal() {
		log.Debug().Str("parent_tool_use_id", parentID).Msg("dropping chunk for finished subagent")
		return
	}

	switch ev_ := ev.(type) {
	case *events.EventToolUse:
		if existing := rec.FindToolCall(ev_.ID); existing != nil {
			existing.MergeInput(ev_.Input)
			_ = guard("UpdateSubagentToolCall", func() {
				s.renderer.UpdateSubagentToolCall(ctx, e.handle, rec, existing)
			})
			return
		}
		call := turns.NewToolCall(ev_.ID, ev_.Name, ev_.Input)
		rec.ToolCalls = append(rec.ToolCalls, call)
		_ = guard("AddSubagentToolCall", func() {
			s.renderer.AddSubagentToolCall(ctx, e.handle, rec, call)
		})
	case *events.EventToolResult:
		call := rec.FindToolCall(ev_.ID)
		if call == nil {
			log.Debug().Str("parent_tool_use_id", parentID).Str("tool_id", ev_.ID).Msg("nested result for unknown tool call")
			return
		}
		if call.IsFinished() {
			return
		}
		call.Result = ev_.Content
		call.Status = s.detector.Status(call.Name, ev_.Content, ev_.IsError)
		_ = guard("UpdateSubagentToolCall", func() {
			s.renderer.UpdateSubagentToolCall(ctx, e.handle, rec, call)
		})
	default:
		log.Trace().Str("parent_tool_use_id", parentID).Str("event_type", string(ev.Type())).Msg("ignoring nested chunk")
	}
}

// HandleResult applies the tool_result of an invocation. For async launches it
// confirms or fails the launch; for sync executions it is the final outcome.
// Duplicate results are ignored.
func (s *Subagents) HandleResult(ctx context.Context, ev *events.EventToolResult, msg *turns.Message) {
	e, ok := s.entries[ev.ID]
	if !ok {
		return
	}
	if e.undetermined {
		s.start(ctx, e, turns.SubagentModeSync, msg)
	}
	rec := e.record

	if rec.Mode == turns.SubagentModeAsync {
		if rec.Status != turns.SubagentStatusPending {
			log.Debug().Str("tool_id", ev.ID).Msg("ignoring repeated async launch result")
			return
		}
		if ev.IsError {
			rec.Status = turns.SubagentStatusError
			rec.Result = ev.Content
		} else {
			rec.Status = turns.SubagentStatusRunning
			rec.AgentID = ParseAgentID(ev.Content)
		}
		_ = guard("UpdateSubagent", func() {
			s.renderer.UpdateSubagent(ctx, e.handle, rec)
		})
		return
	}

	if rec.Status != turns.SubagentStatusRunning {
		log.Debug().Str("tool_id", ev.ID).Msg("ignoring repeated subagent result")
		return
	}
	rec.Result = ev.Content
	if ev.IsError {
		rec.Status = turns.SubagentStatusError
	} else {
		rec.Status = turns.SubagentStatusCompleted
	}
	_ = guard("FinalizeSubagent", func() {
		s.renderer.FinalizeSubagent(ctx, e.handle, rec)
	})
}

// ApplyUpdate applies an out-of-band update to a record of this turn. It reports
// false when the record does not belong to the turn.
func (s *Subagents) ApplyUpdate(ctx context.Context, u turns.SubagentUpdate) bool {
	e, ok := s.entries[u.ID]
	if !ok {
		return false
	}
	if e.record.ApplyUpdate(u) && !e.undetermined {
		_ = guard("UpdateSubagent", func() {
			s.renderer.UpdateSubagent(ctx, e.handle, e.record)
		})
	}
	return true
}

// Finalize runs when the turn ends: background launches that were never confirmed
// become orphaned. Sync executions keep their status.
func (s *Subagents) Finalize(ctx context.Context) {
	for _, id := range s.order {
		e := s.entries[id]
		rec := e.record
		if rec.Mode != turns.SubagentModeAsync || rec.Status != turns.SubagentStatusPending {
			continue
		}
		rec.Status = turns.SubagentStatusOrphaned
		_ = guard("UpdateSubagent", func() {
			s.renderer.UpdateSubagent(ctx, e.handle, rec)
		})
	}
}

// ParseAgentID extracts the background agent id from a launch result, or "".
func ParseAgentID(content string) string {
	m := agentIDPattern.FindStringSubmatch(content)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
