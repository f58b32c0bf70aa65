package cmds

import (
	"context"
	"strings"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/pkg/errors"
	"github.com/tiktoken-go/tokenizer"

	"github.com/go-go-golems/turnweaver/pkg/conversation"
	"github.com/go-go-golems/turnweaver/pkg/render"
	"github.com/go-go-golems/turnweaver/pkg/turns"
)

type StatsSettings struct {
	Encoding string `glazed.parameter:"encoding"`
	Path     string `glazed.parameter:"path"`
}

type StatsCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = (*StatsCommand)(nil)

func NewStatsCommand() (*StatsCommand, error) {
	glazedParameterLayer, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, errors.Wrap(err, "could not create Glazed parameter layer")
	}

	return &StatsCommand{
		CommandDescription: cmds.NewCommandDescription(
			"stats",
			cmds.WithShort("Count blocks, tool outcomes and tokens of a saved conversation"),
			cmds.WithLong("Emits one row per message of a saved conversation. Use the glazed output flags to pick a format."),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"encoding",
					parameters.ParameterTypeString,
					parameters.WithHelp("Tokenizer encoding used for token estimates"),
					parameters.WithDefault(string(turns.DefaultEncoding)),
				),
			),
			cmds.WithArguments(
				parameters.NewParameterDefinition(
					"path",
					parameters.ParameterTypeString,
					parameters.WithHelp("Saved conversation YAML"),
					parameters.WithRequired(true),
				),
			),
			cmds.WithLayersList(glazedParameterLayer),
		),
	}, nil
}

func (c *StatsCommand) RunIntoGlazeProcessor(ctx context.Context, parsedLayers *layers.ParsedLayers, gp middlewares.Processor) error {
	s := &StatsSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "could not initialize stats settings")
	}

	conv, err := conversation.LoadFromFile(s.Path)
	if err != nil {
		return err
	}
	return addStatsRows(ctx, gp, conv, tokenizer.Encoding(s.Encoding))
}

type rowSink interface {
	AddRow(ctx context.Context, row types.Row) error
}

func addStatsRows(ctx context.Context, gp rowSink, conv *conversation.Conversation, encoding tokenizer.Encoding) error {
	for _, m := range conv.Messages() {
		st, err := turns.ComputeStats(m, encoding)
		if err != nil {
			return errors.Wrapf(err, "could not compute stats for %s", m.ID)
		}
		row := types.NewRow(
			types.MRP("conversation_id", conv.ID.String()),
			types.MRP("message_id", m.ID),
			types.MRP("preview", preview(m.Content)),
			types.MRP("interrupted", m.Interrupted),
			types.MRP("text_blocks", st.Blocks[turns.BlockKindText]),
			types.MRP("thinking_blocks", st.Blocks[turns.BlockKindThinking]),
			types.MRP("tool_use_blocks", st.Blocks[turns.BlockKindToolUse]),
			types.MRP("subagent_blocks", st.Blocks[turns.BlockKindSubagent]),
			types.MRP("tools_completed", st.ToolCalls[turns.ToolCallStatusCompleted]),
			types.MRP("tools_error", st.ToolCalls[turns.ToolCallStatusError]),
			types.MRP("tools_blocked", st.ToolCalls[turns.ToolCallStatusBlocked]),
			types.MRP("subagents", len(m.Subagents)),
			types.MRP("nested_tool_calls", st.NestedTools),
			types.MRP("content_tokens", st.ContentTokens),
			types.MRP("thinking_tokens", st.ThinkingTokens),
		)
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func preview(content string) string {
	text := render.PlainText(content)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	r := []rune(text)
	if len(r) > 60 {
		return string(r[:59]) + "…"
	}
	return text
}
