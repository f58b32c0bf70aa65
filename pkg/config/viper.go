package config

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// FromViper overlays the keys known to v onto the defaults. Lists replace the default
// lists instead of extending them.
func FromViper(v *viper.Viper) (*Settings, error) {
	s, err := NewSettings()
	if err != nil {
		return nil, err
	}
	if v == nil {
		return s, nil
	}
	lists := map[string]*[]string{
		"tools.subagent":              &s.Tools.Subagent,
		"tools.write_edit":            &s.Tools.WriteEdit,
		"tools.blocked_exempt":        &s.Tools.BlockedExempt,
		"tools.blocked_phrases":       &s.Tools.BlockedPhrases,
		"tools.blocked_error_phrases": &s.Tools.BlockedErrorPhrases,
	}
	for key, list := range lists {
		if v.IsSet(key) {
			*list = nil
		}
	}
	if err := v.Unmarshal(s); err != nil {
		return nil, errors.Wrap(err, "could not decode settings")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
