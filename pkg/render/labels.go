package render

import (
	"sort"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"

	"github.com/go-go-golems/turnweaver/pkg/turns"
)

// summaryKeys are the input keys that best describe a call, most telling first.
var summaryKeys = []string{
	"file_path",
	"notebook_path",
	"path",
	"command",
	"pattern",
	"url",
	"query",
	"description",
	"prompt",
}

const maxSummary = 60

// LabelFormatter renders the one-line label of a tool call from a template.
type LabelFormatter struct {
	tmpl *template.Template
}

type labelData struct {
	Name    string
	Summary string
	Status  string
	Input   map[string]interface{}
}

func NewLabelFormatter(src string) (*LabelFormatter, error) {
	if src == "" {
		src = "{{ .Name }}{{ with .Summary }} {{ . }}{{ end }}"
	}
	t, err := template.New("tool-label").Funcs(sprig.TxtFuncMap()).Parse(src)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse tool label template")
	}
	return &LabelFormatter{tmpl: t}, nil
}

func (f *LabelFormatter) Format(call *turns.ToolCall) string {
	data := labelData{
		Name:    call.Name,
		Summary: ToolSummary(call),
		Status:  string(call.Status),
		Input:   call.Input,
	}
	var sb strings.Builder
	if err := f.tmpl.Execute(&sb, data); err != nil {
		return strings.TrimSpace(data.Name + " " + data.Summary)
	}
	return strings.TrimSpace(sb.String())
}

// ToolSummary picks the most descriptive input value of a call.
func ToolSummary(call *turns.ToolCall) string {
	if call == nil || len(call.Input) == 0 {
		return ""
	}
	for _, k := range summaryKeys {
		if s := strings.TrimSpace(call.InputString(k)); s != "" {
			return truncate(firstLine(s), maxSummary)
		}
	}
	keys := make([]string, 0, len(call.Input))
	for k := range call.Input {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s, ok := call.Input[k].(string); ok && strings.TrimSpace(s) != "" {
			return truncate(HumanizeKey(k)+": "+firstLine(s), maxSummary)
		}
	}
	return ""
}

// HumanizeKey turns input keys such as "old_string" or "subagentType" into words.
func HumanizeKey(key string) string {
	return strcase.ToDelimited(key, ' ')
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
