package turns

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// PrettyPrinter renders a Message in a configurable human-friendly way.
type PrettyPrinter struct {
	IncludeIDs        bool
	IncludeToolDetail bool
	IncludeSubagents  bool
	IndentSpaces      int
	MaxTextLines      int // 0 => unlimited
}

// PrintOption configures a PrettyPrinter.
type PrintOption func(*PrettyPrinter)

// WithIDs toggles inclusion of message and tool ids.
func WithIDs(include bool) PrintOption { return func(p *PrettyPrinter) { p.IncludeIDs = include } }

// WithToolDetail toggles inclusion of tool input/result details.
func WithToolDetail(include bool) PrintOption {
	return func(p *PrettyPrinter) { p.IncludeToolDetail = include }
}

// WithSubagents toggles printing of nested subagent tool calls.
func WithSubagents(include bool) PrintOption {
	return func(p *PrettyPrinter) { p.IncludeSubagents = include }
}

// WithIndent sets the number of spaces used for indentation.
func WithIndent(spaces int) PrintOption { return func(p *PrettyPrinter) { p.IndentSpaces = spaces } }

// WithMaxTextLines limits how many lines of text to print for text and thinking blocks (0 = unlimited).
func WithMaxTextLines(n int) PrintOption { return func(p *PrettyPrinter) { p.MaxTextLines = n } }

// NewPrettyPrinter creates a PrettyPrinter with sensible defaults.
func NewPrettyPrinter(opts ...PrintOption) *PrettyPrinter {
	p := &PrettyPrinter{
		IncludeIDs:        false,
		IncludeToolDetail: true,
		IncludeSubagents:  true,
		IndentSpaces:      0,
		MaxTextLines:      0,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FprintfMessage prints the provided Message using an ephemeral PrettyPrinter configured via options.
func FprintfMessage(w io.Writer, m *Message, opts ...PrintOption) {
	pp := NewPrettyPrinter(opts...)
	pp.FprintMessage(w, m)
}

// FprintMessage walks the content blocks in order, resolving tool and subagent
// references against the message.
func (p *PrettyPrinter) FprintMessage(w io.Writer, m *Message) {
	if m == nil {
		return
	}
	pad := strings.Repeat(" ", p.IndentSpaces)
	if p.IncludeIDs {
		fmt.Fprintf(w, "%smessage id=%s role=%s\n", pad, m.ID, m.Role)
	}
	for i, b := range m.Blocks {
		prefix := pad
		if p.IncludeIDs {
			prefix = fmt.Sprintf("%s[%02d] ", pad, i)
		}

		switch b.Kind {
		case BlockKindText:
			p.fprintText(w, prefix+"text:", b.Content)
		case BlockKindThinking:
			head := "thinking:"
			if b.DurationSeconds > 0 {
				head = fmt.Sprintf("thinking (%.1fs):", b.DurationSeconds)
			}
			p.fprintText(w, prefix+head, b.Content)
		case BlockKindToolUse:
			call := m.FindToolCall(b.ToolID)
			if call == nil {
				fmt.Fprintf(w, "%stool_use: id=%s <missing>\n", prefix, b.ToolID)
				continue
			}
			p.fprintToolCall(w, prefix, pad, call)
		case BlockKindSubagent:
			rec := m.FindSubagent(b.SubagentID)
			if rec == nil {
				fmt.Fprintf(w, "%ssubagent: id=%s <missing>\n", prefix, b.SubagentID)
				continue
			}
			p.fprintSubagent(w, prefix, pad, b, rec)
		default:
			fmt.Fprintf(w, "%s%s\n", prefix, b.Kind)
		}
	}
	if m.Usage != nil {
		fmt.Fprintf(w, "%susage: %d/%d tokens (%d%%)", pad, m.Usage.ContextTokens, m.Usage.ContextWindow, m.Usage.Percentage)
		if m.Usage.Model != "" {
			fmt.Fprintf(w, " model=%s", m.Usage.Model)
		}
		fmt.Fprintln(w)
	}
	if m.Interrupted {
		fmt.Fprintf(w, "%sinterrupted\n", pad)
	}
	if m.DurationSeconds > 0 {
		fmt.Fprintf(w, "%sduration: %.1fs\n", pad, m.DurationSeconds)
	}
}

func (p *PrettyPrinter) fprintToolCall(w io.Writer, prefix string, pad string, call *ToolCall) {
	if p.IncludeIDs {
		fmt.Fprintf(w, "%stool_use: name=%s id=%s status=%s\n", prefix, call.Name, call.ID, call.Status)
	} else {
		fmt.Fprintf(w, "%stool_use: %s [%s]\n", prefix, call.Name, call.Status)
	}
	if !p.IncludeToolDetail {
		return
	}
	if len(call.Input) > 0 {
		fmt.Fprintf(w, "%s  input: %s\n", pad, toOneLineJSON(call.Input))
	}
	if call.Result != "" {
		fmt.Fprintf(w, "%s  result: %s\n", pad, p.clip(call.Result))
	}
}

func (p *PrettyPrinter) fprintSubagent(w io.Writer, prefix string, pad string, b ContentBlock, rec *SubagentRecord) {
	mode := rec.Mode
	if b.Mode != "" {
		mode = b.Mode
	}
	fmt.Fprintf(w, "%ssubagent: %s [%s, %s]\n", prefix, rec.Description, mode, rec.Status)
	if p.IncludeIDs {
		fmt.Fprintf(w, "%s  id=%s", pad, rec.ID)
		if rec.AgentID != "" {
			fmt.Fprintf(w, " agent_id=%s", rec.AgentID)
		}
		fmt.Fprintln(w)
	}
	if p.IncludeSubagents {
		nested := &PrettyPrinter{
			IncludeIDs:        p.IncludeIDs,
			IncludeToolDetail: p.IncludeToolDetail,
			MaxTextLines:      p.MaxTextLines,
		}
		for _, c := range rec.ToolCalls {
			nested.fprintToolCall(w, pad+"    ", pad+"    ", c)
		}
	}
	if rec.Result != "" && p.IncludeToolDetail {
		fmt.Fprintf(w, "%s  result: %s\n", pad, p.clip(rec.Result))
	}
}

func (p *PrettyPrinter) fprintText(w io.Writer, head string, text string) {
	fmt.Fprintf(w, "%s %s\n", head, p.clip(text))
}

func (p *PrettyPrinter) clip(text string) string {
	if p.MaxTextLines <= 0 {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) <= p.MaxTextLines {
		return text
	}
	return strings.Join(lines[:p.MaxTextLines], "\n")
}

func toOneLineJSON(v any) string {
	// Already a string? Return directly
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	// collapse whitespace
	out := string(b)
	out = strings.ReplaceAll(out, "\n", " ")
	out = strings.ReplaceAll(out, "\t", " ")
	return out
}
