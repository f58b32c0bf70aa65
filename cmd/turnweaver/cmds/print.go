package cmds

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/pkg/errors"

	"github.com/go-go-golems/turnweaver/pkg/conversation"
	"github.com/go-go-golems/turnweaver/pkg/render"
	"github.com/go-go-golems/turnweaver/pkg/turns"
)

type PrintSettings struct {
	IDs          bool   `glazed.parameter:"ids"`
	ToolDetail   bool   `glazed.parameter:"tool-detail"`
	Subagents    bool   `glazed.parameter:"subagents"`
	MaxTextLines int    `glazed.parameter:"max-text-lines"`
	Plain        bool   `glazed.parameter:"plain"`
	Glazed       bool   `glazed.parameter:"glazed"`
	Path         string `glazed.parameter:"path"`
}

// PrintCommand pretty-prints a saved conversation, or with --glazed emits one row
// per content block.
type PrintCommand struct {
	*cmds.CommandDescription
	out io.Writer
}

var _ cmds.GlazeCommand = (*PrintCommand)(nil)

func NewPrintCommand() (*PrintCommand, error) {
	glazedParameterLayer, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, errors.Wrap(err, "could not create Glazed parameter layer")
	}

	return &PrintCommand{
		out: os.Stdout,
		CommandDescription: cmds.NewCommandDescription(
			"print",
			cmds.WithShort("Pretty-print a saved conversation"),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"ids",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Show block and tool ids"),
					parameters.WithDefault(false),
				),
				parameters.NewParameterDefinition(
					"tool-detail",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Show tool inputs and results"),
					parameters.WithDefault(false),
				),
				parameters.NewParameterDefinition(
					"subagents",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Show nested subagent tool calls"),
					parameters.WithDefault(true),
				),
				parameters.NewParameterDefinition(
					"max-text-lines",
					parameters.ParameterTypeInteger,
					parameters.WithHelp("Clip text blocks to this many lines (0 = no limit)"),
					parameters.WithDefault(0),
				),
				parameters.NewParameterDefinition(
					"plain",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Strip markdown from text"),
					parameters.WithDefault(false),
				),
				parameters.NewParameterDefinition(
					"glazed",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Emit one row per content block instead of the pretty output"),
					parameters.WithDefault(false),
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

func (c *PrintCommand) RunIntoGlazeProcessor(ctx context.Context, parsedLayers *layers.ParsedLayers, gp middlewares.Processor) error {
	s := &PrintSettings{}
	if err := parsedLayers.InitializeStruct(layers.DefaultSlug, s); err != nil {
		return errors.Wrap(err, "could not initialize print settings")
	}

	conv, err := conversation.LoadFromFile(s.Path)
	if err != nil {
		return err
	}
	msgs := conv.Messages()
	if s.Plain {
		for i, m := range msgs {
			msgs[i] = plainMessage(m)
		}
	}

	if s.Glazed {
		return addBlockRows(ctx, gp, msgs, s.MaxTextLines)
	}
	printMessages(c.out, msgs, s)
	return nil
}

func printMessages(w io.Writer, msgs []*turns.Message, s *PrintSettings) {
	opts := []turns.PrintOption{
		turns.WithIDs(s.IDs),
		turns.WithToolDetail(s.ToolDetail),
		turns.WithSubagents(s.Subagents),
		turns.WithMaxTextLines(s.MaxTextLines),
	}
	for i, m := range msgs {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		turns.FprintfMessage(w, m, opts...)
	}
}

func plainMessage(m *turns.Message) *turns.Message {
	m = m.Clone()
	m.Content = render.PlainText(m.Content)
	for j, b := range m.Blocks {
		if b.Kind == turns.BlockKindText || b.Kind == turns.BlockKindThinking {
			m.Blocks[j].Content = render.PlainText(b.Content)
		}
	}
	return m
}

func addBlockRows(ctx context.Context, gp rowSink, msgs []*turns.Message, maxLines int) error {
	for _, m := range msgs {
		for i, b := range m.Blocks {
			row := types.NewRow(
				types.MRP("message_id", m.ID),
				types.MRP("index", i),
				types.MRP("kind", string(b.Kind)),
			)
			switch b.Kind {
			case turns.BlockKindText, turns.BlockKindThinking:
				row.Set("content", render.FirstLines(b.Content, maxLines))
			case turns.BlockKindToolUse:
				row.Set("tool_id", b.ToolID)
				if call := m.FindToolCall(b.ToolID); call != nil {
					row.Set("name", call.Name)
					row.Set("status", string(call.Status))
				}
			case turns.BlockKindSubagent:
				row.Set("tool_id", b.SubagentID)
				if rec := m.FindSubagent(b.SubagentID); rec != nil {
					row.Set("name", rec.Description)
					row.Set("status", string(rec.Status))
				}
			}
			if err := gp.AddRow(ctx, row); err != nil {
				return err
			}
		}
	}
	return nil
}
