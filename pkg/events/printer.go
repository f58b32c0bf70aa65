package events

import (
	"fmt"
	"io"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"gopkg.in/yaml.v3"
)

// PrinterFunc returns a watermill handler that writes a short human readable line for
// every chunk or lifecycle update it receives. Undecodable payloads are acked and skipped.
func PrinterFunc(name string, w io.Writer) func(msg *message.Message) error {
	isFirst := true

	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			return nil
		}

		if isFirst && name != "" {
			isFirst = false
			if _, err := fmt.Fprintf(w, "\n%s:\n", name); err != nil {
				return err
			}
		}

		return PrintEvent(w, e)
	}
}

// PrintEvent writes one line (or a small YAML document for tool input) describing e.
func PrintEvent(w io.Writer, e Event) error {
	prefix := ""
	if p := e.ParentID(); p != "" {
		prefix = "  [" + p + "] "
	}

	var err error
	switch p_ := e.(type) {
	case *EventText:
		_, err = fmt.Fprintf(w, "%stext: %s\n", prefix, oneLine(p_.Content))
	case *EventThinking:
		_, err = fmt.Fprintf(w, "%sthinking: %s\n", prefix, oneLine(p_.Content))
	case *EventToolUse:
		_, err = fmt.Fprintf(w, "%stool_use %s (%s)\n", prefix, p_.Name, p_.ID)
		if err == nil && len(p_.Input) > 0 {
			var v_ []byte
			v_, err = yaml.Marshal(p_.Input)
			if err == nil {
				_, err = fmt.Fprintf(w, "%s", indent(string(v_), prefix+"    "))
			}
		}
	case *EventToolResult:
		status := "ok"
		if p_.IsError {
			status = "error"
		}
		_, err = fmt.Fprintf(w, "%stool_result %s [%s]: %s\n", prefix, p_.ID, status, oneLine(p_.Content))
	case *EventUsage:
		_, err = fmt.Fprintf(w, "%susage: in=%d cache_create=%d cache_read=%d window=%d\n",
			prefix, p_.Usage.InputTokens, p_.Usage.CacheCreationInputTokens, p_.Usage.CacheReadInputTokens, p_.Usage.ContextWindow)
	case *EventError:
		_, err = fmt.Fprintf(w, "%serror: %s\n", prefix, oneLine(p_.Content))
	case *EventBlocked:
		_, err = fmt.Fprintf(w, "%sblocked: %s\n", prefix, oneLine(p_.Content))
	case *EventDone:
		_, err = fmt.Fprintf(w, "%sdone\n", prefix)
	case *EventSubagentState:
		_, err = fmt.Fprintf(w, "subagent %s -> %s", p_.ID, p_.Status)
		if err == nil && p_.Result != "" {
			_, err = fmt.Fprintf(w, ": %s", oneLine(p_.Result))
		}
		if err == nil {
			_, err = fmt.Fprintln(w)
		}
	default:
		_, err = fmt.Fprintf(w, "%s%s\n", prefix, e.Type())
	}
	return err
}

func oneLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + " …"
	}
	if len(s) > 120 {
		s = s[:117] + "..."
	}
	return s
}

func indent(s string, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n") + "\n"
}
