package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bazelment/yoloswe/acprelay/acp"
	"github.com/bazelment/yoloswe/acprelay/coalesce"
	"github.com/bazelment/yoloswe/acprelay/config"
	"github.com/bazelment/yoloswe/acprelay/projection"
	"github.com/bazelment/yoloswe/acprelay/sink"
)

var (
	relayListen   string
	relayMinChars int
	relayMaxChars int
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Project a live ACP stream to websocket clients",
	Long: `Relay reads ACP frames from stdin, one JSON-RPC message per line, and
broadcasts the projected output to websocket clients connected to
--listen. A client message whose text is an abort trigger (stop, wait,
/stop, abort, cancel) cancels the session's turn; the session/cancel
notification is written to stdout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := newLogger(os.Stderr)
		resolver, watched, err := newResolver(logger)
		if err != nil {
			return err
		}
		opts, closeLog, err := routerOptions(logger)
		if err != nil {
			return err
		}
		ln, err := net.Listen("tcp", relayListen)
		if err != nil {
			closeLog()
			return fmt.Errorf("listening on %s: %w", relayListen, err)
		}
		logger.Info("relay listening", "addr", ln.Addr().String())

		err = runRelay(ctx, relayParams{
			in:       os.Stdin,
			cancels:  os.Stdout,
			listener: ln,
			resolver: resolver,
			watched:  watched,
			logger:   logger,
			opts:     opts,
		})
		if cerr := closeLog(); err == nil {
			err = cerr
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(relayCmd)
	relayCmd.Flags().StringVar(&relayListen, "listen", "127.0.0.1:7420", "Websocket listen address")
	relayCmd.Flags().IntVar(&relayMinChars, "min-chars", 80, "Minimum characters per streamed text segment")
	relayCmd.Flags().IntVar(&relayMaxChars, "max-chars", 1200, "Maximum characters per streamed text segment")
}

type relayParams struct {
	in       io.Reader
	cancels  io.Writer
	listener net.Listener
	resolver projection.ConfigResolver
	watched  *config.FileResolver
	logger   *slog.Logger
	opts     []projection.Option
}

// runRelay serves until in is exhausted or ctx is cancelled.
func runRelay(ctx context.Context, p relayParams) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var router *projection.Router
	hub := sink.NewHub(p.logger, func(ctx context.Context, ev sink.Event) {
		handleInbound(ctx, router, p.logger, ev)
	})
	bind := func(sessionKey string) (projection.Binding, error) {
		return projection.Binding{
			Stream:      coalesce.New(hub.TextSink(sessionKey), coalesce.WithMinChars(relayMinChars), coalesce.WithMaxChars(relayMaxChars)),
			Sender:      hub,
			Typing:      sink.NewLogTyping(p.logger, sessionKey),
			Destination: projection.Destination{Channel: "websocket", Target: sessionKey},
		}, nil
	}
	opts := append([]projection.Option{}, p.opts...)
	opts = append(opts, projection.WithLogger(p.logger), projection.WithCanceler(acp.NewCancelWriter(p.cancels)))
	router = projection.NewRouter(p.resolver, bind, opts...)
	f := newFeeder(router, p.logger)

	if p.watched != nil {
		if err := p.watched.Start(ctx); err != nil {
			return err
		}
		defer p.watched.Stop()
	}

	server := &http.Server{Handler: hub, ReadHeaderTimeout: 10 * time.Second}
	lines := readLines(ctx, p.in, p.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Serve(p.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving websocket: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		// Feeding runs on its own goroutine so Turn.Handle is never called
		// concurrently for a session.
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					p.logger.Info("input closed")
					return nil
				}
				if err := f.feed(gctx, "", line); err != nil {
					return err
				}
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		// Turns are cancelled while clients are still connected so they
		// see the final flush.
		router.Close(context.Background())
		hub.Close()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return server.Shutdown(shutdownCtx)
	})
	err := g.Wait()
	p.logger.Info("relay stopped", "frames", f.frames, "skipped", f.skipped, "turns", f.turns)
	return err
}

// handleInbound turns a client message into an abort request.
func handleInbound(ctx context.Context, router *projection.Router, logger *slog.Logger, ev sink.Event) {
	switch ev.Type {
	case sink.EventAbort, sink.EventMessage:
	default:
		logger.Debug("ignoring client event", "type", ev.Type)
		return
	}
	text := ev.Text
	if ev.Type == sink.EventAbort && text == "" {
		text = "abort"
	}
	err := router.Abort(ctx, projection.AbortRequest{SessionKey: ev.Session, Text: text})
	switch {
	case err == nil:
	case errors.Is(err, projection.ErrNotAbortTrigger):
		logger.Debug("client message is not an abort", "session", ev.Session)
	case errors.Is(err, projection.ErrNoActiveTurn), errors.Is(err, projection.ErrTurnClosed):
		logger.Info("abort with no active turn", "session", ev.Session)
	default:
		logger.Warn("abort failed", "session", ev.Session, "err", err)
	}
}

// readLines delivers each line of r on the returned channel and closes it
// at EOF or when ctx is done. Each line is a fresh slice.
func readLines(ctx context.Context, r io.Reader, logger *slog.Logger) <-chan []byte {
	out := make(chan []byte)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			select {
			case out <- append([]byte(nil), scanner.Bytes()...):
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			logger.Warn("reading input", "err", err)
		}
	}()
	return out
}
