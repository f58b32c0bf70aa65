package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/turnweaver/pkg/conversation"
	"github.com/go-go-golems/turnweaver/pkg/events"
	"github.com/go-go-golems/turnweaver/pkg/render"
	"github.com/go-go-golems/turnweaver/pkg/session"
	"github.com/go-go-golems/turnweaver/pkg/turns/serde"
)

func NewReplayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <chunks.jsonl>",
		Short: "Render a recorded chunk stream as a live turn",
		Long: `Replays one JSON chunk per line ("-" reads stdin) through the stream
coordinator and renders it to the terminal. Subagent updates from --updates are
published on the update bus once the turn has finished.`,
		Args: cobra.ExactArgs(1),
		RunE: runReplay,
	}
	addRenderFlags(cmd)
	cmd.Flags().String("updates", "", "JSONL file of subagent_state chunks published after the turn")
	cmd.Flags().Bool("validate", false, "Validate every chunk against the chunk schema")
	cmd.Flags().String("session-id", "", "Session id; usage chunks from other sessions are dropped")
	cmd.Flags().String("save", "", "Save the conversation as YAML to this file")
	cmd.Flags().Bool("dump", false, "Print the assembled message as YAML")
	cmd.Flags().Bool("omit-tool-detail", false, "Leave tool inputs and results out of --save and --dump")
	cmd.Flags().String("tap", "", "Copy every chunk to this JSONL file")
	cmd.Flags().Bool("print-updates", false, "Print bus messages to stderr")
	return cmd
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", path)
	}
	return f, nil
}

func runReplay(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	updatesPath, _ := flags.GetString("updates")
	validate, _ := flags.GetBool("validate")
	sessionID, _ := flags.GetString("session-id")
	savePath, _ := flags.GetString("save")
	dump, _ := flags.GetBool("dump")
	omitDetail, _ := flags.GetBool("omit-tool-detail")
	tapPath, _ := flags.GetString("tap")
	printUpdates, _ := flags.GetBool("print-updates")

	in, err := openInput(args[0])
	if err != nil {
		return err
	}
	defer in.Close()

	var sourceOpts []session.JSONLOption
	if validate {
		v, err := events.NewValidator()
		if err != nil {
			return err
		}
		sourceOpts = append(sourceOpts, session.WithValidator(v))
	}
	source := session.NewJSONLSource(in, sourceOpts...)

	term, err := render.NewTerminal(cmd.OutOrStdout(), settings.Render, render.WithStatusWriter(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer term.Close()

	sessOpts := []session.Option{
		session.WithBuilder(session.NewRendererBuilder(term, settings)),
	}
	if sessionID != "" {
		sessOpts = append(sessOpts, session.WithSessionID(sessionID))
	}
	if tapPath != "" {
		f, err := os.Create(tapPath)
		if err != nil {
			return errors.Wrapf(err, "could not create %s", tapPath)
		}
		defer f.Close()
		sessOpts = append(sessOpts, session.WithSinks(events.NewJSONLSink(f)))
	}
	sess := session.NewSession(sessOpts...)

	router, err := events.NewEventRouter(events.WithVerbose(viper.GetBool("verbose")))
	if err != nil {
		return err
	}
	defer func() {
		_ = router.Close()
	}()
	router.AddHandler("subagent-updates", events.TopicSubagentUpdates, sess.UpdateHandler())
	if printUpdates {
		router.AddHandler("print-updates", events.TopicSubagentUpdates, events.PrinterFunc("update", cmd.ErrOrStderr()))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return router.Run(ctx)
	})
	eg.Go(func() error {
		defer cancel()
		<-router.Running()

		h, err := sess.StartTurn(ctx, source, term)
		if err != nil {
			return err
		}
		_, err = h.Wait()
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				return err
			}
			log.Warn().Str("session_id", sess.SessionID).Msg("turn interrupted")
		}

		if updatesPath != "" {
			if err := publishUpdates(ctx, router, sess.SessionID, updatesPath); err != nil {
				return err
			}
		}
		return nil
	})
	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	opt := serde.Options{OmitToolDetail: omitDetail}
	if dump {
		b, err := serde.ToYAML(sess.Latest(), opt)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "---\n%s", b)
	}
	if savePath != "" {
		if err := saveConversation(sess.Conversation, savePath, opt); err != nil {
			return err
		}
		log.Info().Str("path", savePath).Msg("saved conversation")
	}
	return nil
}

func publishUpdates(ctx context.Context, router *events.EventRouter, sessionID string, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "could not open %s", path)
	}
	defer f.Close()

	v, err := events.NewValidator(events.EventTypeSubagentState)
	if err != nil {
		return err
	}
	src := session.NewJSONLSource(f, session.WithValidator(v))
	sink := router.Sink(events.TopicSubagentUpdates, events.WithCorrelationID(sessionID))
	for {
		e, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "could not read %s", path)
		}
		if err := sink.PublishEvent(e); err != nil {
			return err
		}
	}
}

func saveConversation(c *conversation.Conversation, path string, opt serde.Options) error {
	return serde.SaveDocumentYAML(path, c.Document(), opt)
}
