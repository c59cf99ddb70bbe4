package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cloo-solutions/newsweave/internal/logging"
)

// JobProcessor drains whatever work is queued when it is called.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker calls a JobProcessor once on start and then on every poll tick until
// it is stopped or its context ends.
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration
	logger       *zap.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a new Worker instance
func NewWorker(processor JobProcessor, pollInterval time.Duration, logger *zap.Logger) *Worker {
	return &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		logger:       logging.Component(logger, "worker"),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start blocks until Stop is called or ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	defer close(w.done)

	w.logger.Info("worker started", zap.Duration("poll_interval", w.pollInterval))
	w.drain(ctx)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped", zap.String("reason", "context cancelled"))
			return
		case <-w.stop:
			w.logger.Info("worker stopped", zap.String("reason", "stop requested"))
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	if err := w.processor.ProcessJobs(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error("error processing jobs", zap.Error(err))
	}
}

// Stop signals the loop and waits for the in-flight pass to finish. It is safe
// to call more than once, but only after Start.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}
