package cmds

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/turnweaver/pkg/config"
)

// addRenderFlags registers the render flags and binds them onto the settings keys.
func addRenderFlags(cmd *cobra.Command) {
	cmd.Flags().String("style", "", "Markdown style (auto, dark, light, notty, plain)")
	cmd.Flags().Int("width", 0, "Word wrap width")
	cmd.Flags().String("settings", "", "Settings file overlaid onto the defaults")
}

// loadSettings resolves the settings: --settings file, else the config file and
// environment through viper, then the render flags.
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	var (
		s   *config.Settings
		err error
	)
	path, _ := cmd.Flags().GetString("settings")
	if path != "" {
		s, err = config.LoadFile(path)
	} else {
		s, err = config.FromViper(viper.GetViper())
	}
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("style") {
		s.Render.Style, _ = cmd.Flags().GetString("style")
	}
	if cmd.Flags().Changed("width") {
		s.Render.WordWrap, _ = cmd.Flags().GetInt("width")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
