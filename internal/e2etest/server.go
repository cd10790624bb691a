package e2etest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/myrjola/repsched/internal/logging"
)

// LogAddrKey is the log attribute key under which the application reports its listen address.
const LogAddrKey = "addr"

// RunFunc starts the application and blocks until ctx is done. It has the signature of the run function in cmd/web.
type RunFunc func(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error

// Server is a running instance of the application under test.
type Server struct {
	url     string
	client  *Client
	cancel  context.CancelCauseFunc
	done    chan struct{}
	runErr  error
	stopped bool
}

// StartServer runs the application in a goroutine and returns once /api/healthy responds.
//
// logSink receives the application logs, usually a testhelpers.NewWriter. The listen address is picked up from the
// LogAddrKey attribute so lookupEnv can request a dynamic port with localhost:0. The server is shut down when the
// test finishes.
func StartServer(
	t *testing.T,
	logSink io.Writer,
	lookupEnv func(string) (string, bool),
	run RunFunc,
) (*Server, error) {
	ctx, cancel := context.WithCancelCause(t.Context())
	server := &Server{
		url:     "",
		client:  nil,
		cancel:  cancel,
		done:    make(chan struct{}),
		runErr:  nil,
		stopped: false,
	}
	t.Cleanup(server.Shutdown)

	addrCh := make(chan string, 1)
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(logSink, &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelDebug,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == LogAddrKey {
				select {
				case addrCh <- a.Value.String():
				default:
				}
			}
			return a
		},
	})))

	go func() {
		defer close(server.done)
		if err := run(ctx, logger, lookupEnv); err != nil {
			server.runErr = err
			cancel(err)
		}
	}()

	var addr string
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("server stopped before listening: %w", context.Cause(ctx))
	case addr = <-addrCh:
	}

	server.url = "http://" + addr
	server.client = NewClient(server.url)
	if err := server.client.WaitForReady(ctx, "/api/healthy"); err != nil {
		return nil, fmt.Errorf("wait for ready: %w", err)
	}
	return server, nil
}

// Client returns a client for the server's JSON API.
func (s *Server) Client() *Client {
	return s.client
}

func (s *Server) URL() string {
	return s.url
}

// Shutdown cancels the application context and waits for run to return. It is safe to call more than once.
func (s *Server) Shutdown() {
	if s.stopped {
		return
	}
	s.stopped = true
	s.cancel(nil)
	<-s.done
}

// Err returns the error run returned, if it has returned. Call it after Shutdown.
func (s *Server) Err() error {
	return s.runErr
}
