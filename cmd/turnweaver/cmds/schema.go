package cmds

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/turnweaver/pkg/events"
)

func NewSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the chunk protocol",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			names, _ := flags.GetStringSlice("types")
			updates, _ := flags.GetBool("updates")
			asYAML, _ := flags.GetBool("yaml")

			types := make([]events.EventType, 0, len(names)+1)
			for _, n := range names {
				types = append(types, events.EventType(n))
			}
			if len(types) == 0 {
				types = append(types, events.ChunkTypes...)
			}
			if updates {
				types = append(types, events.EventTypeSubagentState)
			}

			s, err := events.ChunkSchema(types...)
			if err != nil {
				return err
			}
			var b []byte
			if asYAML {
				b, err = yaml.Marshal(s)
			} else {
				b, err = json.MarshalIndent(s, "", "  ")
				b = append(b, '\n')
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
	cmd.Flags().StringSlice("types", nil, "Chunk types to include (default: all turn chunks)")
	cmd.Flags().Bool("updates", false, "Include the subagent_state update chunk")
	cmd.Flags().Bool("yaml", false, "Print YAML instead of JSON")
	return cmd
}
