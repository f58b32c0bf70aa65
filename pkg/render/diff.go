package render

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/turnweaver/pkg/turns"
)

// DiffPreview renders a unified diff of the change a write/edit call is about to
// make, or "" when the input does not describe one yet.
func DiffPreview(call *turns.ToolCall, context int) string {
	if call == nil {
		return ""
	}
	path := call.InputString("file_path")
	if path == "" {
		path = call.InputString("notebook_path")
	}

	switch {
	case call.Input["edits"] != nil:
		edits, _ := call.Input["edits"].([]interface{})
		parts := make([]string, 0, len(edits))
		for _, e := range edits {
			m, ok := e.(map[string]interface{})
			if !ok {
				continue
			}
			oldS, _ := m["old_string"].(string)
			newS, _ := m["new_string"].(string)
			if d := unifiedDiff(path, oldS, newS, context); d != "" {
				parts = append(parts, d)
			}
		}
		return strings.Join(parts, "")
	case call.Input["old_string"] != nil || call.Input["new_string"] != nil:
		return unifiedDiff(path, call.InputString("old_string"), call.InputString("new_string"), context)
	case call.Input["content"] != nil:
		return unifiedDiff(path, "", call.InputString("content"), context)
	case call.Input["new_source"] != nil:
		return unifiedDiff(path, "", call.InputString("new_source"), context)
	}
	return ""
}

func unifiedDiff(path string, a string, b string, context int) string {
	if a == b {
		return ""
	}
	if path == "" {
		path = "file"
	}
	d := difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  context,
	}
	out, err := difflib.GetUnifiedDiffString(d)
	if err != nil {
		log.Debug().Err(err).Str("file_path", path).Msg("could not build diff preview")
		return ""
	}
	return out
}
