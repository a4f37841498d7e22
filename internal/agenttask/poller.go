// Package agenttask reconciles fire-and-forget background agent work
// with the client by polling task status on a fixed interval.
package agenttask

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dreampath/chatcore/internal/domain"
)

const (
	// DefaultInterval is the pause between status queries.
	DefaultInterval = 500 * time.Millisecond
	// DefaultMaxAttempts bounds the number of status queries per task,
	// giving a worst-case polling horizon of 15 seconds.
	DefaultMaxAttempts = 30
)

// ResultFetcher queries the agent service for a task's status.
type ResultFetcher interface {
	AgentResult(ctx context.Context, taskID string) (*domain.AgentTask, error)
}

// Sink receives the payload of a completed task. Skipped, failed and
// timed-out tasks never reach the sink.
type Sink interface {
	Ingest(action domain.AgentAction)
}

// Poller runs one bounded poll loop per task id. Status queries within
// a loop are strictly sequential, and every loop carries its own cancel
// function so teardown, reset and timeout paths can all stop it.
type Poller struct {
	fetcher     ResultFetcher
	sink        Sink
	interval    time.Duration
	maxAttempts int
	logger      *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New creates a poller with the default pacing (500ms, 30 attempts).
func New(fetcher ResultFetcher, sink Sink, logger *slog.Logger) *Poller {
	return NewWithPacing(fetcher, sink, DefaultInterval, DefaultMaxAttempts, logger)
}

// NewWithPacing creates a poller with explicit pacing. Tests shrink the
// interval to keep loops fast.
func NewWithPacing(fetcher ResultFetcher, sink Sink, interval time.Duration, maxAttempts int, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Poller{
		fetcher:     fetcher,
		sink:        sink,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logger,
		cancels:     make(map[string]context.CancelFunc),
	}
}

// Start launches the poll loop for taskID. Exactly one loop is
// associated with a given task id; starting an already-tracked id is a
// no-op. Distinct ids run independent loops.
func (p *Poller) Start(ctx context.Context, taskID string) {
	if taskID == "" {
		return
	}

	p.mu.Lock()
	if _, exists := p.cancels[taskID]; exists {
		p.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancels[taskID] = cancel
	p.mu.Unlock()

	go p.run(loopCtx, taskID)
}

// Stop cancels the loop for taskID. Idempotent; unknown ids are a no-op.
func (p *Poller) Stop(taskID string) {
	p.mu.Lock()
	cancel, ok := p.cancels[taskID]
	if ok {
		delete(p.cancels, taskID)
	}
	p.mu.Unlock()

	if ok {
		cancel()
	}
}

// StopAll cancels every active loop. Called from session teardown and
// new-chat paths.
func (p *Poller) StopAll() {
	p.mu.Lock()
	cancels := p.cancels
	p.cancels = make(map[string]context.CancelFunc)
	p.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// ActiveCount returns the number of tracked poll loops.
func (p *Poller) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cancels)
}

func (p *Poller) run(ctx context.Context, taskID string) {
	defer p.remove(taskID)

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		task, err := p.fetcher.AgentResult(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Transport hiccups count against the attempt budget so a
			// dead agent service cannot poll forever.
			p.logger.Debug("agent task poll failed", "task_id", taskID, "attempt", attempt, "error", err)
		} else if task.Status.Terminal() {
			switch task.Status {
			case domain.TaskCompleted:
				if task.AgentAction == nil {
					p.logger.Warn("completed agent task carried no action", "task_id", taskID)
					return
				}
				p.sink.Ingest(*task.AgentAction)
			case domain.TaskFailed:
				// Background enrichment is advisory; log for
				// diagnostics, show nothing to the user.
				p.logger.Warn("agent task failed", "task_id", taskID, "error", task.Error)
			}
			// Skipped tasks end the loop silently.
			return
		}

		if attempt == p.maxAttempts {
			p.logger.Debug("agent task polling gave up", "task_id", taskID, "attempts", attempt)
			return
		}

		timer := time.NewTimer(p.interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (p *Poller) remove(taskID string) {
	p.mu.Lock()
	cancel, ok := p.cancels[taskID]
	if ok {
		delete(p.cancels, taskID)
	}
	p.mu.Unlock()

	if ok {
		cancel()
	}
}
