package classifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"trustchat/internal/observability"
)

const (
	DefaultTimeout   = 20 * time.Second
	DefaultWorkers   = 4
	DefaultQueueSize = 256
)

// Verdicts receives scam decisions.
type Verdicts interface {
	ApplyVerdict(ctx context.Context, messageID string, isScam bool) error
}

// Job is one message awaiting classification.
type Job struct {
	MessageID string
	Text      string
}

// Config sizes the pool.
type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// Pool runs classification on a fixed number of workers fed by a bounded queue.
// Submissions never block; when the queue is full the job is dropped and the
// message simply stays unflagged.
type Pool struct {
	oracle  Oracle
	jobs    chan Job
	workers int
	timeout time.Duration
	log     *slog.Logger
	wg      sync.WaitGroup
}

// NewPool builds a pool. Zero config values take defaults.
func NewPool(oracle Oracle, cfg Config, log *slog.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Pool{
		oracle:  oracle,
		jobs:    make(chan Job, cfg.QueueSize),
		workers: cfg.Workers,
		timeout: cfg.Timeout,
		log:     log,
	}
}

// Submit enqueues a job and reports whether it was accepted.
func (p *Pool) Submit(messageID, text string) bool {
	select {
	case p.jobs <- Job{MessageID: messageID, Text: text}:
		return true
	default:
		observability.ObserveClassification("dropped", 0)
		p.log.Warn("classification queue full, dropping job", "message_id", messageID)
		return false
	}
}

// Start launches the workers. They stop when ctx is cancelled; queued jobs are abandoned.
func (p *Pool) Start(ctx context.Context, verdicts Verdicts) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-p.jobs:
					p.process(ctx, verdicts, job)
				}
			}
		}()
	}
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) process(ctx context.Context, verdicts Verdicts, job Job) {
	jobCtx, cancel := context.WithTimeout(ctx, p.timeout)
	start := time.Now()
	isScam, err := p.oracle.Classify(jobCtx, job.Text)
	took := time.Since(start)
	cancel()

	if err != nil {
		observability.ObserveClassification("failed", took)
		p.log.Warn("classification failed, treating as clean", "message_id", job.MessageID, "error", err)
		return
	}
	if !isScam {
		observability.ObserveClassification("clean", took)
		return
	}
	observability.ObserveClassification("scam", took)
	if err := verdicts.ApplyVerdict(ctx, job.MessageID, true); err != nil {
		p.log.Error("apply verdict failed", "message_id", job.MessageID, "error", err)
	}
}
