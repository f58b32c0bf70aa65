package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	s, err := NewSettings()
	require.NoError(t, err)
	require.NoError(t, s.Validate())

	assert.Equal(t, 400*time.Millisecond, s.Indicator.Debounce)
	assert.Equal(t, time.Second, s.Indicator.Interval)
	assert.True(t, s.SubagentTools().Match("Task"))
	assert.True(t, s.WriteEditTools().Match("MultiEdit"))
	assert.False(t, s.WriteEditTools().Match("Read"))
	assert.True(t, s.BlockedExemptTools().Match("ExitPlanMode"))
}

func TestToolMatcherGlobs(t *testing.T) {
	m := NewToolMatcher("Write", "mcp__fs__*")
	assert.True(t, m.Match("Write"))
	assert.True(t, m.Match("mcp__fs__write_file"))
	assert.False(t, m.Match("mcp__web__fetch"))
	assert.False(t, m.Match(""))
}

func TestCloneIsIndependent(t *testing.T) {
	s, err := NewSettings()
	require.NoError(t, err)
	cp := s.Clone()
	cp.Tools.Subagent[0] = "Other"
	assert.Equal(t, "Task", s.Tools.Subagent[0])
}

func TestMarkers(t *testing.T) {
	s, err := NewSettings()
	require.NoError(t, err)
	m, err := s.CompileMarkers()
	require.NoError(t, err)

	assert.Equal(t, "\n\n> **Error:** boom\n\n", m.Render(MarkerError, "  boom \n"))
	assert.Contains(t, m.Render(MarkerBlocked, "rm -rf"), "**Blocked:** rm -rf")
	assert.Equal(t, "\n\n> *Interrupted*\n\n", m.Render(MarkerInterrupted, ""))

	s.Markers.Error = "{{ .Content | nosuchfunc }}"
	_, err = s.CompileMarkers()
	require.Error(t, err)
	require.Error(t, s.Validate())
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("indicator:\n  debounce: 50ms\ntools:\n  subagent: [Delegate]\n"), 0o644))

	s, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, s.Indicator.Debounce)
	assert.Equal(t, time.Second, s.Indicator.Interval)
	assert.Equal(t, []string{"Delegate"}, s.Tools.Subagent)
	assert.Contains(t, s.Tools.WriteEdit, "Write")

	require.NoError(t, os.WriteFile(path, []byte("indicator:\n  debounce: -1s\n"), 0o644))
	_, err = LoadFile(path)
	require.Error(t, err)
}

func TestFromViper(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader("render:\n  style: plain\n  word_wrap: 60\nindicator:\n  interval: 250ms\n")))

	s, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "plain", s.Render.Style)
	assert.Equal(t, 60, s.Render.WordWrap)
	assert.Equal(t, 250*time.Millisecond, s.Indicator.Interval)
	assert.Equal(t, 400*time.Millisecond, s.Indicator.Debounce)

	s, err = FromViper(nil)
	require.NoError(t, err)
	assert.Equal(t, "auto", s.Render.Style)
}

func TestFromViperReplacesLists(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader("tools:\n  write_edit: [Patch]\n")))

	s, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"Patch"}, s.Tools.WriteEdit)
	assert.Equal(t, []string{"Task", "Agent"}, s.Tools.Subagent)
}
