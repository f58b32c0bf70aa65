package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-go-golems/turnweaver/pkg/turns"
)

type fakeSpan struct {
	kind    string
	content string
	failed  bool
}

type fakeToolHandle struct {
	id        string
	writeEdit bool
}

type fakeSubagentHandle struct {
	id    string
	async bool
}

// recordingRenderer records every renderer call as a short string.
type recordingRenderer struct {
	mu    sync.Mutex
	calls []string

	failRender bool
	panicOn    string
	usage      []*turns.UsageSnapshot
}

func (r *recordingRenderer) record(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	call := fmt.Sprintf(format, args...)
	if r.panicOn != "" && r.panicOn == call {
		panic("boom: " + call)
	}
	r.calls = append(r.calls, call)
}

func (r *recordingRenderer) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recordingRenderer) CallsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range r.Calls() {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			out = append(out, c)
		}
	}
	return out
}

func (r *recordingRenderer) OpenText(ctx context.Context, container Handle) Handle {
	r.record("open-text")
	return &fakeSpan{kind: "text"}
}

func (r *recordingRenderer) OpenThinking(ctx context.Context, container Handle) Handle {
	r.record("open-thinking")
	return &fakeSpan{kind: "thinking"}
}

func (r *recordingRenderer) RenderContent(ctx context.Context, span Handle, markdown string) error {
	r.record("render %s", markdown)
	if r.failRender {
		return fmt.Errorf("bad markdown")
	}
	if s, ok := span.(*fakeSpan); ok {
		s.content = markdown
	}
	return nil
}

func (r *recordingRenderer) RenderPlaceholder(ctx context.Context, span Handle, err error) {
	r.record("placeholder %v", err)
	if s, ok := span.(*fakeSpan); ok {
		s.failed = true
	}
}

func (r *recordingRenderer) FinalizeText(ctx context.Context, span Handle, content string) {
	r.record("finalize-text %s", content)
}

func (r *recordingRenderer) FinalizeThinking(ctx context.Context, span Handle, content string, elapsed time.Duration) {
	r.record("finalize-thinking %s", content)
}

func (r *recordingRenderer) RenderToolCall(ctx context.Context, container Handle, call *turns.ToolCall) Handle {
	r.record("tool %s", call.ID)
	return &fakeToolHandle{id: call.ID}
}

func (r *recordingRenderer) UpdateToolLabel(ctx context.Context, h Handle, call *turns.ToolCall) {
	r.record("label %s", call.ID)
}

func (r *recordingRenderer) FinalizeToolCall(ctx context.Context, h Handle, call *turns.ToolCall) {
	r.record("finalize-tool %s %s", call.ID, call.Status)
}

func (r *recordingRenderer) RenderWriteEdit(ctx context.Context, container Handle, call *turns.ToolCall) Handle {
	r.record("write-edit %s", call.ID)
	return &fakeToolHandle{id: call.ID, writeEdit: true}
}

func (r *recordingRenderer) FinalizeWriteEdit(ctx context.Context, h Handle, call *turns.ToolCall) {
	r.record("finalize-write-edit %s %s", call.ID, call.Status)
}

func (r *recordingRenderer) RenderSubagent(ctx context.Context, container Handle, rec *turns.SubagentRecord) Handle {
	r.record("subagent %s", rec.ID)
	return &fakeSubagentHandle{id: rec.ID}
}

func (r *recordingRenderer) RenderAsyncSubagent(ctx context.Context, container Handle, rec *turns.SubagentRecord) Handle {
	r.record("async-subagent %s", rec.ID)
	return &fakeSubagentHandle{id: rec.ID, async: true}
}

func (r *recordingRenderer) AddSubagentToolCall(ctx context.Context, h Handle, rec *turns.SubagentRecord, call *turns.ToolCall) {
	r.record("subagent-tool %s %s", rec.ID, call.ID)
}

func (r *recordingRenderer) UpdateSubagentToolCall(ctx context.Context, h Handle, rec *turns.SubagentRecord, call *turns.ToolCall) {
	r.record("subagent-tool-update %s %s %s", rec.ID, call.ID, call.Status)
}

func (r *recordingRenderer) UpdateSubagent(ctx context.Context, h Handle, rec *turns.SubagentRecord) {
	r.record("subagent-update %s %s", rec.ID, rec.Status)
}

func (r *recordingRenderer) FinalizeSubagent(ctx context.Context, h Handle, rec *turns.SubagentRecord) {
	r.record("finalize-subagent %s %s", rec.ID, rec.Status)
}

func (r *recordingRenderer) RenderUsage(ctx context.Context, usage *turns.UsageSnapshot) {
	r.record("usage %d", usage.Percentage)
	r.mu.Lock()
	r.usage = append(r.usage, usage)
	r.mu.Unlock()
}

var _ Renderer = &recordingRenderer{}

// fakeHost records indicator calls.
type fakeHost struct {
	mu       sync.Mutex
	attached bool
	shown    int
	moved    int
	hidden   int
	elapsed  []time.Duration
}

func newFakeHost() *fakeHost {
	return &fakeHost{attached: true}
}

func (h *fakeHost) Attached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attached
}

func (h *fakeHost) Detach() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attached = false
}

func (h *fakeHost) ShowIndicator() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shown++
}

func (h *fakeHost) MoveIndicatorToBottom() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.moved++
}

func (h *fakeHost) HideIndicator() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hidden++
}

func (h *fakeHost) UpdateElapsed(elapsed time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.elapsed = append(h.elapsed, elapsed)
}

func (h *fakeHost) Shown() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.shown
}

func (h *fakeHost) Ticks() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.elapsed)
}

var _ IndicatorHost = &fakeHost{}
