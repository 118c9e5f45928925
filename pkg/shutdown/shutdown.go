// Package shutdown coordinates graceful process teardown on SIGINT and
// SIGTERM.
package shutdown

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// CreateGracefulShutdownChannel returns a channel wired to the
// termination signals.
func CreateGracefulShutdownChannel() chan os.Signal {
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	return gracefulShutdown
}

// ListenForShutdown blocks until a termination signal arrives, runs the
// handler, then waits at most timeout for done before exiting.
func ListenForShutdown(
	signals chan os.Signal,
	done chan bool,
	handler func(),
	timeout time.Duration,
	l *zap.Logger,
) {
	<-signals
	handler()

	select {
	case <-done:
		l.Sugar().Infow("Shutdown complete")
	case <-time.After(timeout):
		l.Sugar().Warnw("Shutdown timed out, exiting",
			zap.Duration("timeout", timeout),
		)
	}
}
