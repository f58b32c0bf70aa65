package config

import (
	_ "embed"
	"os"
	"time"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type ToolSettings struct {
	Subagent            []string `yaml:"subagent" mapstructure:"subagent"`
	WriteEdit           []string `yaml:"write_edit" mapstructure:"write_edit"`
	BlockedExempt       []string `yaml:"blocked_exempt" mapstructure:"blocked_exempt"`
	BlockedPhrases      []string `yaml:"blocked_phrases" mapstructure:"blocked_phrases"`
	BlockedErrorPhrases []string `yaml:"blocked_error_phrases" mapstructure:"blocked_error_phrases"`
}

type IndicatorSettings struct {
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

type MarkerSettings struct {
	Error       string `yaml:"error" mapstructure:"error"`
	Blocked     string `yaml:"blocked" mapstructure:"blocked"`
	Interrupted string `yaml:"interrupted" mapstructure:"interrupted"`
}

type RenderSettings struct {
	// Style is a glamour style name, "auto" or "plain".
	Style          string `yaml:"style" mapstructure:"style"`
	WordWrap       int    `yaml:"word_wrap" mapstructure:"word_wrap"`
	DiffContext    int    `yaml:"diff_context" mapstructure:"diff_context"`
	MaxResultLines int    `yaml:"max_result_lines" mapstructure:"max_result_lines"`
	ToolLabel      string `yaml:"tool_label" mapstructure:"tool_label"`
}

type Settings struct {
	Tools     ToolSettings      `yaml:"tools" mapstructure:"tools"`
	Indicator IndicatorSettings `yaml:"indicator" mapstructure:"indicator"`
	Markers   MarkerSettings    `yaml:"markers" mapstructure:"markers"`
	Render    RenderSettings    `yaml:"render" mapstructure:"render"`
}

// NewSettings returns the embedded defaults.
func NewSettings() (*Settings, error) {
	s := &Settings{}
	if err := yaml.Unmarshal(defaultsYAML, s); err != nil {
		return nil, errors.Wrap(err, "could not parse default settings")
	}
	return s, nil
}

// LoadFile overlays the YAML file at path onto the defaults.
func LoadFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s", path)
	}
	s, err := NewSettings()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, errors.Wrapf(err, "could not parse %s", path)
	}
	if err := s.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid settings in %s", path)
	}
	return s, nil
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}

func (s *Settings) Validate() error {
	if s.Indicator.Debounce < 0 {
		return errors.Errorf("indicator debounce must not be negative, got %s", s.Indicator.Debounce)
	}
	if s.Indicator.Interval < 0 {
		return errors.Errorf("indicator interval must not be negative, got %s", s.Indicator.Interval)
	}
	if _, err := s.CompileMarkers(); err != nil {
		return err
	}
	for _, p := range [][]string{s.Tools.Subagent, s.Tools.WriteEdit, s.Tools.BlockedExempt} {
		if err := validatePatterns(p); err != nil {
			return err
		}
	}
	return nil
}

// SubagentTools matches tool names that start a nested agent.
func (s *Settings) SubagentTools() ToolMatcher {
	return NewToolMatcher(s.Tools.Subagent...)
}

// WriteEditTools matches tool names rendered with a diff preview.
func (s *Settings) WriteEditTools() ToolMatcher {
	return NewToolMatcher(s.Tools.WriteEdit...)
}

// BlockedExemptTools matches tool names that are never marked blocked.
func (s *Settings) BlockedExemptTools() ToolMatcher {
	return NewToolMatcher(s.Tools.BlockedExempt...)
}
