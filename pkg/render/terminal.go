package render

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/turnweaver/pkg/config"
	"github.com/go-go-golems/turnweaver/pkg/stream"
	"github.com/go-go-golems/turnweaver/pkg/turns"
)

var (
	_ stream.Renderer      = (*Terminal)(nil)
	_ stream.IndicatorHost = (*Terminal)(nil)
)

const clearLine = "\r\033[K"

// Terminal renders a turn as append-only output. Spans are written once they are
// finalized, tool calls and subagents as soon as they are seen. The indicator and
// usage readout go to the status writer.
type Terminal struct {
	mu sync.Mutex

	out    io.Writer
	status io.Writer
	tty    bool

	markdown *MarkdownRenderer
	labels   *LabelFormatter
	styles   *Styles

	diffContext    int
	maxResultLines int

	closed           bool
	indicatorVisible bool
	// elapsedVisible is set while the thinking readout occupies the indicator line
	// without the affordance being shown.
	elapsedVisible bool
	elapsed        time.Duration
}

type TerminalOption func(*Terminal)

func WithStatusWriter(w io.Writer) TerminalOption {
	return func(t *Terminal) {
		t.status = w
	}
}

// WithTTY overrides terminal detection.
func WithTTY(tty bool) TerminalOption {
	return func(t *Terminal) {
		t.tty = tty
	}
}

func WithStyles(s *Styles) TerminalOption {
	return func(t *Terminal) {
		t.styles = s
	}
}

type spanHandle struct {
	thinking bool
	raw      string
	rendered string
	failed   error
}

type toolHandle struct {
	id        string
	label     string
	writeEdit bool
}

type subagentHandle struct {
	id          string
	async       bool
	description string
	status      turns.SubagentStatus
}

func NewTerminal(out io.Writer, settings config.RenderSettings, options ...TerminalOption) (*Terminal, error) {
	if out == nil {
		return nil, errors.New("terminal output writer is nil")
	}
	t := &Terminal{
		out:            out,
		status:         out,
		tty:            isTerminal(out),
		diffContext:    settings.DiffContext,
		maxResultLines: settings.MaxResultLines,
	}
	for _, o := range options {
		o(t)
	}

	md, err := NewMarkdownRenderer(settings.WordWrap, settings.Style)
	if err != nil {
		return nil, errors.Wrap(err, "could not create markdown renderer")
	}
	t.markdown = md

	labels, err := NewLabelFormatter(settings.ToolLabel)
	if err != nil {
		return nil, err
	}
	t.labels = labels

	if t.styles == nil {
		if settings.Style == StylePlain || !t.tty {
			t.styles = PlainStyles()
		} else {
			t.styles = DefaultStyles()
		}
	}
	return t, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Close detaches the terminal; the indicator stops drawing afterwards.
func (t *Terminal) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hideIndicatorLocked()
	t.closed = true
}

func (t *Terminal) writeLocked(s string) {
	if t.closed {
		return
	}
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	t.aboveIndicatorLocked(t.out, s)
}

// aboveIndicatorLocked writes s so that a visible indicator stays on the last line.
func (t *Terminal) aboveIndicatorLocked(w io.Writer, s string) {
	redraw := t.lineVisibleLocked() && t.tty
	if redraw {
		_, _ = io.WriteString(t.status, clearLine)
	}
	if _, err := io.WriteString(w, s); err != nil {
		log.Debug().Err(err).Msg("could not write to terminal")
	}
	if redraw {
		t.drawIndicatorLocked()
	}
}

func (t *Terminal) write(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeLocked(s)
}

func (t *Terminal) label(call *turns.ToolCall) string {
	return t.labels.Format(call)
}

func (t *Terminal) statusStyle(status turns.ToolCallStatus) string {
	switch status {
	case turns.ToolCallStatusCompleted:
		return t.styles.ToolCompleted.Render(string(status))
	case turns.ToolCallStatusError:
		return t.styles.ToolError.Render(string(status))
	case turns.ToolCallStatusBlocked:
		return t.styles.ToolBlocked.Render(string(status))
	default:
		return t.styles.Dim.Render(string(status))
	}
}

func (t *Terminal) resultLine(prefix string, status string, result string) string {
	line := prefix + status
	if r := FirstLines(result, t.maxResultLines); r != "" {
		line += ": " + indent(r, strings.Repeat(" ", len([]rune(prefix))+2))
	}
	return line
}

func indent(s string, pad string) string {
	return strings.ReplaceAll(s, "\n", "\n"+pad)
}

// Spans

func (t *Terminal) OpenText(ctx context.Context, container stream.Handle) stream.Handle {
	return &spanHandle{}
}

func (t *Terminal) OpenThinking(ctx context.Context, container stream.Handle) stream.Handle {
	return &spanHandle{thinking: true}
}

func (t *Terminal) RenderContent(ctx context.Context, span stream.Handle, markdown string) error {
	s, ok := span.(*spanHandle)
	if !ok {
		return errors.Errorf("unexpected span handle %T", span)
	}
	s.raw = markdown
	if s.thinking {
		return nil
	}
	out, err := t.markdown.Render(markdown)
	if err != nil {
		return errors.Wrap(err, "could not render markdown")
	}
	s.rendered = out
	s.failed = nil
	return nil
}

func (t *Terminal) RenderPlaceholder(ctx context.Context, span stream.Handle, err error) {
	s, ok := span.(*spanHandle)
	if !ok {
		return
	}
	s.failed = err
	if s.failed == nil {
		s.failed = errors.New("unknown error")
	}
}

func (t *Terminal) FinalizeText(ctx context.Context, span stream.Handle, content string) {
	s, ok := span.(*spanHandle)
	if !ok {
		return
	}
	if s.raw != content {
		if err := t.RenderContent(ctx, s, content); err != nil {
			t.RenderPlaceholder(ctx, s, err)
		}
	}
	if s.failed != nil {
		t.write(t.styles.Dim.Render(fmt.Sprintf("[render failed: %v]", s.failed)) + "\n" + content)
		return
	}
	t.write(s.rendered)
}

func (t *Terminal) FinalizeThinking(ctx context.Context, span stream.Handle, content string, elapsed time.Duration) {
	header := t.styles.Thinking.Render(fmt.Sprintf("∴ Thinking (%.1fs)", elapsed.Seconds()))
	out := header
	if body := PlainText(content); body != "" {
		out += "\n  " + t.styles.Thinking.Render(indent(body, "  "))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearElapsedLocked()
	t.writeLocked(out)
}

// Tool calls

func (t *Terminal) RenderToolCall(ctx context.Context, container stream.Handle, call *turns.ToolCall) stream.Handle {
	h := &toolHandle{id: call.ID, label: t.label(call)}
	t.write("● " + t.styles.ToolLabel.Render(h.label))
	return h
}

func (t *Terminal) UpdateToolLabel(ctx context.Context, h stream.Handle, call *turns.ToolCall) {
	th, ok := h.(*toolHandle)
	if !ok {
		return
	}
	label := t.label(call)
	if label == th.label {
		return
	}
	th.label = label
	out := "  ↻ " + t.styles.ToolLabel.Render(label)
	if th.writeEdit {
		if d := t.diff(call); d != "" {
			out += "\n" + d
		}
	}
	t.write(out)
}

func (t *Terminal) FinalizeToolCall(ctx context.Context, h stream.Handle, call *turns.ToolCall) {
	t.write(t.resultLine("  ⎿ ", t.statusStyle(call.Status), call.Result))
}

func (t *Terminal) RenderWriteEdit(ctx context.Context, container stream.Handle, call *turns.ToolCall) stream.Handle {
	h := &toolHandle{id: call.ID, label: t.label(call), writeEdit: true}
	out := "● " + t.styles.ToolLabel.Render(h.label)
	if d := t.diff(call); d != "" {
		out += "\n" + d
	}
	t.write(out)
	return h
}

func (t *Terminal) FinalizeWriteEdit(ctx context.Context, h stream.Handle, call *turns.ToolCall) {
	// results of file edits are noise, only the outcome is shown
	result := ""
	if call.Status != turns.ToolCallStatusCompleted {
		result = call.Result
	}
	t.write(t.resultLine("  ⎿ ", t.statusStyle(call.Status), result))
}

func (t *Terminal) diff(call *turns.ToolCall) string {
	d := DiffPreview(call, t.diffContext)
	if d == "" {
		return ""
	}
	lines := strings.Split(strings.TrimRight(d, "\n"), "\n")
	for i, l := range lines {
		switch {
		case strings.HasPrefix(l, "+++"), strings.HasPrefix(l, "---"), strings.HasPrefix(l, "@@"):
			l = t.styles.Dim.Render(l)
		case strings.HasPrefix(l, "+"):
			l = t.styles.DiffAdd.Render(l)
		case strings.HasPrefix(l, "-"):
			l = t.styles.DiffRemove.Render(l)
		}
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}

// Subagents

func subagentTitle(rec *turns.SubagentRecord) string {
	title := rec.Description
	if title == "" {
		title = "subagent"
	}
	if rec.SubagentType != "" {
		title += " (" + rec.SubagentType + ")"
	}
	return title
}

func (t *Terminal) RenderSubagent(ctx context.Context, container stream.Handle, rec *turns.SubagentRecord) stream.Handle {
	h := &subagentHandle{id: rec.ID, description: rec.Description, status: rec.Status}
	t.write("▸ " + t.styles.Subagent.Render(subagentTitle(rec)))
	return h
}

func (t *Terminal) RenderAsyncSubagent(ctx context.Context, container stream.Handle, rec *turns.SubagentRecord) stream.Handle {
	h := &subagentHandle{id: rec.ID, async: true, description: rec.Description, status: rec.Status}
	t.write("▸ " + t.styles.Subagent.Render(subagentTitle(rec)) + " " + t.styles.Dim.Render("[background]"))
	return h
}

func (t *Terminal) AddSubagentToolCall(ctx context.Context, h stream.Handle, rec *turns.SubagentRecord, call *turns.ToolCall) {
	t.write("  │ ● " + t.label(call))
}

func (t *Terminal) UpdateSubagentToolCall(ctx context.Context, h stream.Handle, rec *turns.SubagentRecord, call *turns.ToolCall) {
	if !call.IsFinished() {
		return
	}
	t.write(t.resultLine("  │ ⎿ ", t.statusStyle(call.Status), ""))
}

func (t *Terminal) UpdateSubagent(ctx context.Context, h stream.Handle, rec *turns.SubagentRecord) {
	sh, ok := h.(*subagentHandle)
	if !ok {
		return
	}
	if sh.description == rec.Description && sh.status == rec.Status {
		return
	}
	sh.description = rec.Description
	sh.status = rec.Status

	line := "  ↻ " + t.styles.Subagent.Render(subagentTitle(rec)) + " " + t.styles.Dim.Render(string(rec.Status))
	if rec.AgentID != "" {
		line += t.styles.Dim.Render(" agent=" + rec.AgentID)
	}
	t.write(line)
}

func (t *Terminal) FinalizeSubagent(ctx context.Context, h stream.Handle, rec *turns.SubagentRecord) {
	status := string(rec.Status)
	switch rec.Status {
	case turns.SubagentStatusCompleted:
		status = t.styles.ToolCompleted.Render(status)
	case turns.SubagentStatusError:
		status = t.styles.ToolError.Render(status)
	default:
		status = t.styles.Dim.Render(status)
	}
	if sh, ok := h.(*subagentHandle); ok {
		sh.status = rec.Status
	}
	t.write(t.resultLine("  └ ", status, rec.Result))
}

// Usage

func (t *Terminal) RenderUsage(ctx context.Context, usage *turns.UsageSnapshot) {
	if usage == nil {
		return
	}
	line := fmt.Sprintf("context: %d", usage.ContextTokens)
	if usage.ContextWindow > 0 {
		line += fmt.Sprintf("/%d tokens (%d%%)", usage.ContextWindow, usage.Percentage)
	} else {
		line += " tokens"
	}
	if usage.Model != "" {
		line += " · " + usage.Model
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.aboveIndicatorLocked(t.status, t.styles.Usage.Render(line)+"\n")
}

// Indicator host

func (t *Terminal) Attached() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}

func (t *Terminal) ShowIndicator() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.indicatorVisible = true
	t.elapsedVisible = false
	t.elapsed = 0
	t.drawIndicatorLocked()
}

func (t *Terminal) MoveIndicatorToBottom() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || !t.indicatorVisible {
		return
	}
	t.drawIndicatorLocked()
}

func (t *Terminal) HideIndicator() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hideIndicatorLocked()
	t.elapsed = 0
}

func (t *Terminal) UpdateElapsed(elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.elapsed = elapsed
	if elapsed > 0 && !t.indicatorVisible {
		t.elapsedVisible = true
	}
	if t.lineVisibleLocked() {
		t.drawIndicatorLocked()
	}
}

// ElapsedVisible reports whether the thinking readout is on screen on its own.
func (t *Terminal) ElapsedVisible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsedVisible
}

func (t *Terminal) lineVisibleLocked() bool {
	return t.indicatorVisible || t.elapsedVisible
}

// clearElapsedLocked removes a standalone thinking readout.
func (t *Terminal) clearElapsedLocked() {
	t.elapsed = 0
	if !t.elapsedVisible {
		return
	}
	t.elapsedVisible = false
	if t.indicatorVisible || !t.tty {
		return
	}
	if _, err := io.WriteString(t.status, clearLine); err != nil {
		log.Debug().Err(err).Msg("could not clear elapsed readout")
	}
}

func (t *Terminal) IndicatorVisible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.indicatorVisible
}

func (t *Terminal) indicatorText() string {
	if t.elapsed > 0 {
		return fmt.Sprintf("∴ Thinking %ds", int(t.elapsed.Seconds()))
	}
	return "∴ Thinking…"
}

// drawIndicatorLocked redraws the indicator line. Without a tty there is no line to
// redraw, so only the state is tracked.
func (t *Terminal) drawIndicatorLocked() {
	if !t.tty {
		return
	}
	if _, err := io.WriteString(t.status, clearLine+t.styles.Thinking.Render(t.indicatorText())); err != nil {
		log.Debug().Err(err).Msg("could not draw indicator")
	}
}

func (t *Terminal) hideIndicatorLocked() {
	if !t.lineVisibleLocked() {
		return
	}
	t.indicatorVisible = false
	t.elapsedVisible = false
	if !t.tty {
		return
	}
	if _, err := io.WriteString(t.status, clearLine); err != nil {
		log.Debug().Err(err).Msg("could not clear indicator")
	}
}
