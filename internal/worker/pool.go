package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/forPelevin/clipforge/internal/apperr"
)

// Job is a unit of background work. ID doubles as the in-flight key: two jobs
// with the same ID never run or wait in the queue at the same time.
type Job interface {
	ID() string
	Execute(ctx context.Context) error
}

// JobFunc adapts a function to Job.
type JobFunc struct {
	Key string
	Fn  func(ctx context.Context) error
}

func (j JobFunc) ID() string                        { return j.Key }
func (j JobFunc) Execute(ctx context.Context) error { return j.Fn(ctx) }

type queued struct {
	job     Job
	timeout time.Duration
}

// Pool runs jobs on a fixed set of workers fed by a bounded queue.
type Pool struct {
	workers int
	queue   chan queued
	log     logrus.FieldLogger

	mu       sync.Mutex
	inflight map[string]struct{}
	closed   bool
	started  bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewPool(workers, queueSize int, log logrus.FieldLogger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		workers:  workers,
		queue:    make(chan queued, queueSize),
		log:      log.WithField("component", "worker_pool"),
		inflight: map[string]struct{}{},
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the workers. It is safe to call more than once.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.log.WithField("workers", p.workers).Info("starting worker pool")
	for i := 1; i <= p.workers; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
}

// Submit enqueues job without blocking. It fails with StageInProgress when a
// job with the same ID is queued or running and with QueueFull when the queue
// has no room. timeout <= 0 means no deadline.
func (p *Pool) Submit(job Job, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return apperr.New(apperr.ErrQueueFull, "worker pool is shutting down")
	}
	if _, ok := p.inflight[job.ID()]; ok {
		return apperr.New(apperr.ErrStageInProgress, "job %s is already queued or running", job.ID())
	}
	select {
	case p.queue <- queued{job: job, timeout: timeout}:
		p.inflight[job.ID()] = struct{}{}
		p.log.WithField("job", job.ID()).Debug("job queued")
		return nil
	default:
		p.log.WithField("job", job.ID()).Warn("job queue full")
		return apperr.New(apperr.ErrQueueFull, "job queue is full (%d)", cap(p.queue))
	}
}

// InFlight reports whether a job with id is queued or running.
func (p *Pool) InFlight(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.inflight[id]
	return ok
}

func (p *Pool) run(worker int) {
	defer p.wg.Done()
	for q := range p.queue {
		p.execute(worker, q)
	}
}

func (p *Pool) execute(worker int, q queued) {
	id := q.job.ID()
	defer func() {
		p.mu.Lock()
		delete(p.inflight, id)
		p.mu.Unlock()
	}()

	ctx, cancel := p.ctx, context.CancelFunc(func() {})
	if q.timeout > 0 {
		ctx, cancel = context.WithTimeout(p.ctx, q.timeout)
	}
	defer cancel()

	log := p.log.WithFields(logrus.Fields{"worker": worker, "job": id})
	start := time.Now()
	log.Info("job started")
	if err := safeExecute(ctx, q.job); err != nil {
		log.WithError(err).WithField("elapsed_ms", time.Since(start).Milliseconds()).Error("job failed")
		return
	}
	log.WithField("elapsed_ms", time.Since(start).Milliseconds()).Info("job finished")
}

func safeExecute(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.ID(), r)
		}
	}()
	return job.Execute(ctx)
}

// Stop refuses new jobs and waits for queued and running ones to finish. When
// ctx expires first, running jobs are cancelled and Stop returns ctx.Err()
// once they have returned.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	p.log.Info("draining worker pool")

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.cancel()
		p.log.Info("worker pool stopped")
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		p.log.Warn("worker pool stopped before queue drained")
		return ctx.Err()
	}
}
