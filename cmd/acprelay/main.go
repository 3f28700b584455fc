// Command acprelay projects ACP agent turns onto chat-style destinations.
package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bazelment/yoloswe/acprelay/config"
	"github.com/bazelment/yoloswe/acprelay/projection"
	"github.com/bazelment/yoloswe/acprelay/rawlog"
)

var (
	configPath string
	rawLogPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "acprelay",
	Short: "Project ACP agent turns onto chat destinations",
	Long: `acprelay reads ACP session/update notifications and prompt results,
decides which of them a chat user should see, and delivers them with
streaming text, in-place tool status edits, typing indicators and abort
handling.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Projection config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&rawLogPath, "raw-log", "", "Append every received frame to this JSONL file (.zst to compress)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newResolver returns the config resolver for --config, or the built-in
// defaults when no file is given. The returned FileResolver is nil in the
// latter case.
func newResolver(logger *slog.Logger) (projection.ConfigResolver, *config.FileResolver, error) {
	if configPath == "" {
		return projection.StaticConfig(projection.DefaultConfig()), nil, nil
	}
	r, err := config.NewFileResolver(configPath, logger)
	if err != nil {
		return nil, nil, err
	}
	return r, r, nil
}

// routerOptions builds the raw log option from --raw-log. The returned
// close func flushes the log, if any.
func routerOptions(logger *slog.Logger) ([]projection.Option, func() error, error) {
	var opts []projection.Option
	if rawLogPath == "" {
		return opts, func() error { return nil }, nil
	}
	w, err := rawlog.Create(rawLogPath)
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, projection.WithRawLog(w))
	return opts, func() error {
		s := w.Summary()
		logger.Debug("raw log closed", "path", rawLogPath, "entries", s.Entries, "bytes", s.Bytes)
		return w.Close()
	}, nil
}
