package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/turnweaver/pkg/turns"
)

func TestToolSummary(t *testing.T) {
	tests := []struct {
		name  string
		input map[string]interface{}
		want  string
	}{
		{"empty", nil, ""},
		{"file path first", map[string]interface{}{"command": "x", "file_path": "main.go"}, "main.go"},
		{"first line only", map[string]interface{}{"command": "echo a\necho b"}, "echo a"},
		{"humanized fallback", map[string]interface{}{"searchTerm": "needle"}, "search term: needle"},
		{"non string ignored", map[string]interface{}{"limit": 3}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToolSummary(turns.NewToolCall("id", "Tool", tt.input)))
		})
	}
}

func TestToolSummary_Truncates(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "x"
	}
	s := ToolSummary(turns.NewToolCall("id", "Bash", map[string]interface{}{"command": long}))
	assert.Equal(t, maxSummary, len([]rune(s)))
	assert.Equal(t, "…", string([]rune(s)[maxSummary-1:]))
}

func TestLabelFormatter_Template(t *testing.T) {
	f, err := NewLabelFormatter(`{{ .Name | upper }}{{ with .Summary }} ({{ . }}){{ end }}`)
	require.NoError(t, err)
	call := turns.NewToolCall("id", "Glob", map[string]interface{}{"pattern": "**/*.go"})
	assert.Equal(t, "GLOB (**/*.go)", f.Format(call))

	def, err := NewLabelFormatter("")
	require.NoError(t, err)
	assert.Equal(t, "Glob **/*.go", def.Format(call))
	assert.Equal(t, "Glob", def.Format(turns.NewToolCall("id", "Glob", nil)))
}

func TestDiffPreview(t *testing.T) {
	write := turns.NewToolCall("w", "Write", map[string]interface{}{"file_path": "x.txt", "content": "one\ntwo\n"})
	d := DiffPreview(write, 3)
	assert.Contains(t, d, "+++ b/x.txt")
	assert.Contains(t, d, "+one")
	assert.Contains(t, d, "+two")

	multi := turns.NewToolCall("m", "MultiEdit", map[string]interface{}{
		"file_path": "y.txt",
		"edits": []interface{}{
			map[string]interface{}{"old_string": "a\n", "new_string": "b\n"},
			map[string]interface{}{"old_string": "c\n", "new_string": "d\n"},
			"garbage",
		},
	})
	d = DiffPreview(multi, 0)
	assert.Contains(t, d, "-a")
	assert.Contains(t, d, "+b")
	assert.Contains(t, d, "-c")
	assert.Contains(t, d, "+d")

	same := turns.NewToolCall("s", "Edit", map[string]interface{}{"old_string": "a", "new_string": "a"})
	assert.Empty(t, DiffPreview(same, 3))
	assert.Empty(t, DiffPreview(turns.NewToolCall("n", "Edit", nil), 3))
	assert.Empty(t, DiffPreview(nil, 3))
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "Title\nSome bold text.", PlainText("# Title\n\nSome **bold** text."))
	assert.Equal(t, "x := 1", PlainText("```go\nx := 1\n```"))
	assert.Equal(t, "", PlainText(""))
}

func TestFirstLines(t *testing.T) {
	assert.Equal(t, "a\nb …", FirstLines("a\n\nb\nc", 2))
	assert.Equal(t, "a\nb\nc", FirstLines("a\nb\nc", 0))
	assert.Equal(t, "", FirstLines("  \n", 3))
}
