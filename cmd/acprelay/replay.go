package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bazelment/yoloswe/acprelay/coalesce"
	"github.com/bazelment/yoloswe/acprelay/projection"
	"github.com/bazelment/yoloswe/acprelay/rawlog"
	"github.com/bazelment/yoloswe/acprelay/sink"
)

var (
	replayMinChars int
	replayMaxChars int
)

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Project a recorded frame log onto the terminal",
	Long: `Replay reads a JSONL file of ACP frames, either bare JSON-RPC lines or
entries written by --raw-log, and prints what a chat user would have seen.
A new turn starts at the first frame of each session and after every
prompt result.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(os.Stderr)
		resolver, _, err := newResolver(logger)
		if err != nil {
			return err
		}
		opts, closeLog, err := routerOptions(logger)
		if err != nil {
			return err
		}
		err = runReplay(cmd.Context(), args[0], os.Stdout, resolver, logger, opts...)
		if cerr := closeLog(); err == nil {
			err = cerr
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().IntVar(&replayMinChars, "min-chars", 80, "Minimum characters per streamed text segment")
	replayCmd.Flags().IntVar(&replayMaxChars, "max-chars", 1200, "Maximum characters per streamed text segment")
}

func runReplay(ctx context.Context, path string, out io.Writer, resolver projection.ConfigResolver, logger *slog.Logger, opts ...projection.Option) error {
	if ctx == nil {
		ctx = context.Background()
	}
	term := sink.NewTerminal(out)
	bind := func(sessionKey string) (projection.Binding, error) {
		return projection.Binding{
			Stream:      coalesce.New(term, coalesce.WithMinChars(replayMinChars), coalesce.WithMaxChars(replayMaxChars)),
			Sender:      term,
			Typing:      sink.NewLogTyping(logger, sessionKey),
			Destination: projection.Destination{Channel: "terminal", Target: sessionKey},
		}, nil
	}
	opts = append(opts, projection.WithLogger(logger), projection.WithCanceler(sink.NopCanceler{}))
	f := newFeeder(projection.NewRouter(resolver, bind, opts...), logger)

	err := rawlog.ReadFile(path, func(e rawlog.Entry) error {
		return f.feed(ctx, e.Session, e.Bytes())
	})
	f.router.Close(ctx)
	if err != nil {
		return err
	}
	logger.Info("replay finished", "frames", f.frames, "skipped", f.skipped, "turns", f.turns)
	return nil
}
