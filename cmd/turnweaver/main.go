package main

import (
	"fmt"
	"os"
	"strings"

	clay "github.com/go-go-golems/clay/pkg"
	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/turnweaver/cmd/turnweaver/cmds"
)

var rootCmd = &cobra.Command{
	Use:   "turnweaver",
	Short: "turnweaver assembles and renders streamed agent turns",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// reinitialize the logger because we can now parse --log-level and co
		// from the command line flag
		initLogger()
	},
	SilenceUsage: true,
}

func initLogger() {
	err := clay.InitLogger()
	cobra.CheckErr(err)
	if viper.GetBool("verbose") && zerolog.GlobalLevel() > zerolog.DebugLevel {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// loadConfigFile replaces the config found on the search path with an explicit file.
func loadConfigFile(path string) error {
	if path == "" {
		return nil
	}
	viper.SetConfigFile(path)
	return viper.ReadInConfig()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default ~/.turnweaver/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Verbose output")

	err := clay.InitViper("turnweaver", rootCmd)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error initializing config: %s\n", err)
		os.Exit(1)
	}
	// nested settings keys such as render.style map to TURNWEAVER_RENDER_STYLE
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	// parse the flags one time just to catch --config
	configFile := ""
	for idx, arg := range os.Args {
		if arg == "--config" && len(os.Args) > idx+1 {
			configFile = os.Args[idx+1]
		}
	}
	if err := loadConfigFile(configFile); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error reading config %s: %s\n", configFile, err)
		os.Exit(1)
	}

	// --verbose on the command line is only seen in PersistentPreRun, this picks up
	// the config file
	initLogger()
	log.Debug().
		Str("config", viper.ConfigFileUsed()).
		Msg("Loaded configuration")

	rootCmd.AddCommand(
		cmds.NewReplayCommand(),
		cmds.NewSchemaCommand(),
	)

	printCmd, err := cmds.NewPrintCommand()
	cobra.CheckErr(err)
	printCobraCmd, err := cli.BuildCobraCommandFromGlazeCommand(printCmd)
	cobra.CheckErr(err)

	statsCmd, err := cmds.NewStatsCommand()
	cobra.CheckErr(err)
	statsCobraCmd, err := cli.BuildCobraCommandFromGlazeCommand(statsCmd)
	cobra.CheckErr(err)

	rootCmd.AddCommand(printCobraCmd, statsCobraCmd)
}
