package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"FinSelect/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trainPayload struct {
	ReportID string `json:"report_id"`
	Symbol   string `json:"symbol"`
}

type recordingJob struct {
	mu    sync.Mutex
	seen  []trainPayload
	calls atomic.Int32
	fail  func(call int32) error
}

func (j *recordingJob) Name() string { return "recording" }
func (j *recordingJob) Type() string { return "model.train" }

func (j *recordingJob) Handle(_ context.Context, payload json.RawMessage) error {
	n := j.calls.Add(1)
	if j.fail != nil {
		if err := j.fail(n); err != nil {
			return err
		}
	}
	p, err := Decode[trainPayload](payload)
	if err != nil {
		return Permanent(err)
	}
	j.mu.Lock()
	j.seen = append(j.seen, *p)
	j.mu.Unlock()
	return nil
}

func (j *recordingJob) payloads() []trainPayload {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]trainPayload(nil), j.seen...)
}

func startQueue(t *testing.T, job Job, cfg *QueueConfig) *MemoryQueue {
	t.Helper()
	q := NewMemoryQueue(logger.Nop(), cfg)
	q.RegisterJob(job)
	require.NoError(t, q.Start())
	t.Cleanup(func() { _ = q.Stop(context.Background()) })
	return q
}

func TestMemoryQueue_Delivers(t *testing.T) {
	job := &recordingJob{}
	q := startQueue(t, job, &QueueConfig{Workers: 2})

	id, err := q.Enqueue(context.Background(), "model.train", trainPayload{ReportID: "r1", Symbol: "BTC"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Eventually(t, func() bool { return len(job.payloads()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, trainPayload{ReportID: "r1", Symbol: "BTC"}, job.payloads()[0])
}

func TestMemoryQueue_RetriesThenSucceeds(t *testing.T) {
	job := &recordingJob{fail: func(call int32) error {
		if call < 3 {
			return errors.New("transient")
		}
		return nil
	}}
	q := startQueue(t, job, &QueueConfig{RetryLimit: 3, RetryDelay: time.Millisecond})

	_, err := q.Enqueue(context.Background(), "model.train", trainPayload{ReportID: "r2"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(job.payloads()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), job.calls.Load())
	assert.Empty(t, q.DeadLetters())
}

func TestMemoryQueue_PermanentErrorsSkipRetry(t *testing.T) {
	job := &recordingJob{fail: func(int32) error { return Permanent(errors.New("bad input")) }}
	q := startQueue(t, job, &QueueConfig{RetryLimit: 5, RetryDelay: time.Millisecond})

	_, err := q.Enqueue(context.Background(), "model.train", trainPayload{ReportID: "r3"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(q.DeadLetters()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), job.calls.Load())
	assert.Equal(t, 0, q.DeadLetters()[0].Attempts)
}

func TestMemoryQueue_ExhaustedRetriesGoToDeadLetters(t *testing.T) {
	job := &recordingJob{fail: func(int32) error { return errors.New("always") }}
	q := startQueue(t, job, &QueueConfig{RetryLimit: 2, RetryDelay: time.Millisecond})

	_, err := q.Enqueue(context.Background(), "model.train", trainPayload{})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(q.DeadLetters()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), job.calls.Load())
	assert.Equal(t, 2, q.DeadLetters()[0].Attempts)
}

func TestMemoryQueue_Errors(t *testing.T) {
	q := NewMemoryQueue(logger.Nop(), nil)
	q.RegisterJob(&recordingJob{})

	_, err := q.Enqueue(context.Background(), "model.train", nil)
	assert.ErrorIs(t, err, ErrNotRunning)

	require.NoError(t, q.Start())
	assert.ErrorIs(t, q.Start(), ErrAlreadyRunning)

	_, err = q.Enqueue(context.Background(), "other", nil)
	assert.ErrorIs(t, err, ErrUnknownType)

	require.NoError(t, q.Stop(context.Background()))
	require.NoError(t, q.Stop(context.Background()))
}

func TestPermanent(t *testing.T) {
	assert.NoError(t, Permanent(nil))
	base := errors.New("x")
	err := Permanent(base)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsPermanent(base))

	msg := Message{Attempts: 1}
	assert.True(t, shouldRetry(msg, base, 2))
	assert.False(t, shouldRetry(msg, base, 1))
	assert.False(t, shouldRetry(msg, err, 5))
	assert.False(t, shouldRetry(msg, context.Canceled, 5))
}
