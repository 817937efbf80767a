package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FinSelect/pkg/logger"
)

// MemoryQueue is an in-process Queue backed by a buffered channel. Messages
// are lost on restart.
type MemoryQueue struct {
	logger *logger.Logger
	config QueueConfig

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool
	dead    []Message

	msgs   chan Message
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewMemoryQueue(lgr *logger.Logger, config *QueueConfig) *MemoryQueue {
	cfg := config.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &MemoryQueue{
		logger: lgr,
		config: cfg,
		jobs:   make(map[string]Job),
		msgs:   make(chan Message, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (q *MemoryQueue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.jobs[job.Type()]; exists {
		q.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	q.jobs[job.Type()] = job
	q.logger.Info("job registered", logger.String("job", job.Name()), logger.String("type", job.Type()))
}

func (q *MemoryQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return ErrAlreadyRunning
	}
	q.running = true
	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.logger.Info("memory queue started", logger.Int("workers", q.config.Workers))
	return nil
}

func (q *MemoryQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		q.logger.Info("memory queue stopped")
		return nil
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error) {
	q.mu.RLock()
	running := q.running
	_, known := q.jobs[msgType]
	q.mu.RUnlock()
	if !running {
		return "", ErrNotRunning
	}
	if !known {
		return "", fmt.Errorf("%w: %s", ErrUnknownType, msgType)
	}

	msg, err := newMessage(msgType, payload)
	if err != nil {
		return "", err
	}
	select {
	case q.msgs <- msg:
		return msg.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-q.ctx.Done():
		return "", ErrNotRunning
	}
}

// DeadLetters returns messages that exhausted their retries.
func (q *MemoryQueue) DeadLetters() []Message {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return append([]Message(nil), q.dead...)
}

func (q *MemoryQueue) worker(id int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case msg := <-q.msgs:
			q.process(id, msg)
		}
	}
}

func (q *MemoryQueue) process(worker int, msg Message) {
	q.mu.RLock()
	job := q.jobs[msg.Type]
	q.mu.RUnlock()

	start := time.Now()
	err := job.Handle(q.ctx, msg.Payload)
	if err == nil {
		q.logger.Debug("message processed",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int("worker_id", worker),
			logger.Duration("elapsed_ms", time.Since(start)))
		return
	}

	q.logger.Error("message processing error",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))

	if !shouldRetry(msg, err, q.config.RetryLimit) {
		q.mu.Lock()
		q.dead = append(q.dead, msg)
		q.mu.Unlock()
		return
	}
	msg.Attempts++
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		t := time.NewTimer(q.config.RetryDelay)
		defer t.Stop()
		select {
		case <-t.C:
			select {
			case q.msgs <- msg:
			case <-q.ctx.Done():
			}
		case <-q.ctx.Done():
		}
	}()
}
