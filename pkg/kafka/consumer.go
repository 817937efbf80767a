package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	applogger "FinSelect/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// ConsumerOption configures Consumer.
type ConsumerOption func(*ConsumerConfig)

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	WorkerCount int
	RetryMax    int
	BackoffMin  time.Duration
	BackoffMax  time.Duration
	DLQTopic    string
	MinBytes    int
	MaxBytes    int
	// RetryIf decides whether a failed message is handled again. Nil retries
	// every error.
	RetryIf    func(error) bool
	Registerer prometheus.Registerer
}

// WithConsumerBrokers sets Kafka brokers.
func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.Brokers = brokers
	}
}

// WithConsumerGroupID sets consumer group ID.
func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.GroupID = groupID
	}
}

// WithConsumerWorkers sets the number of reader goroutines per topic.
func WithConsumerWorkers(count int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if count > 0 {
			c.WorkerCount = count
		}
	}
}

// WithConsumerRetry configures retry attempts and backoff range.
func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.RetryMax = max
		c.BackoffMin = backoffMin
		c.BackoffMax = backoffMax
	}
}

// WithConsumerRetryIf sets the predicate for retrying a failed message.
func WithConsumerRetryIf(fn func(error) bool) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.RetryIf = fn
	}
}

// WithConsumerDLQ sets a Kafka topic name for DLQ.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.DLQTopic = topic
	}
}

// WithConsumerFetch sets fetch min/max bytes.
func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.MinBytes = minBytes
		c.MaxBytes = maxBytes
	}
}

// WithConsumerRegisterer sets where consumer metrics are registered.
func WithConsumerRegisterer(reg prometheus.Registerer) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.Registerer = reg
	}
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads registered topics in a consumer group. Offsets are committed
// after a message is handled or parked on the DLQ, so a crash replays at most
// the in-flight messages.
type Consumer struct {
	cfg      *ConsumerConfig
	log      *applogger.Logger
	handlers map[string]MessageHandler
	readers  []messageReader
	dlq      messageWriter
	metrics  *consumerMetrics

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(log *applogger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "finselect",
		WorkerCount: 1,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    1,
		MaxBytes:    10e6,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if log == nil {
		log = applogger.Nop()
	}

	c := &Consumer{
		cfg:      cfg,
		log:      log,
		handlers: make(map[string]MessageHandler),
		metrics:  newConsumerMetrics(cfg.Registerer),
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}
	return c, nil
}

// RegisterHandler registers a message handler for a specific topic.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("kafka handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// Start opens one group reader per worker and topic.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered")
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	for topic, h := range c.handlers {
		for i := 0; i < c.cfg.WorkerCount; i++ {
			r := kafka.NewReader(kafka.ReaderConfig{
				Brokers:  c.cfg.Brokers,
				Topic:    topic,
				GroupID:  c.cfg.GroupID,
				MinBytes: c.cfg.MinBytes,
				MaxBytes: c.cfg.MaxBytes,
			})
			c.readers = append(c.readers, r)
			c.wg.Add(1)
			go c.consume(ctx, r, h)
		}
		c.log.Info("kafka consumer started",
			applogger.String("topic", topic),
			applogger.String("group", c.cfg.GroupID),
			applogger.Int("workers", c.cfg.WorkerCount),
		)
	}
	return nil
}

// Stop cancels the readers and waits for in-flight messages.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.once.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-ctx.Done():
			stopErr = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		case <-done:
		}

		for _, r := range c.readers {
			if err := r.Close(); err != nil {
				c.log.Warn("kafka reader close failed", applogger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.log.Warn("kafka dlq close failed", applogger.Error(err))
			}
		}
	})
	return stopErr
}

func (c *Consumer) consume(ctx context.Context, r messageReader, h MessageHandler) {
	defer c.wg.Done()
	for {
		km, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("kafka fetch failed", applogger.String("topic", h.Topic()), applogger.Error(err))
			if !sleepCtx(ctx, c.cfg.BackoffMax) {
				return
			}
			continue
		}
		if c.process(ctx, h, km) {
			if err := c.commitWithRetry(ctx, r, km, 3); err != nil {
				c.log.Error("kafka commit failed",
					applogger.String("topic", h.Topic()),
					applogger.Int64("offset", km.Offset),
					applogger.Error(err),
				)
			}
		}
	}
}

// process handles one message with retries and reports whether its offset
// may be committed.
func (c *Consumer) process(ctx context.Context, h MessageHandler, km kafka.Message) bool {
	start := time.Now()
	topic := h.Topic()

	var err error
	attempts := 0
	for {
		attempts++
		err = c.safeHandle(ctx, h, km.Value)
		if err == nil || attempts > c.cfg.RetryMax || !c.retryable(err) {
			break
		}
		if !sleepCtx(ctx, backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts)) {
			// Shutting down mid-retry: leave the offset for the next owner.
			return false
		}
	}
	c.metrics.observe(topic, err, time.Since(start))
	if err == nil {
		return true
	}

	c.log.Error("kafka message failed",
		applogger.String("topic", topic),
		applogger.Int("partition", km.Partition),
		applogger.Int64("offset", km.Offset),
		applogger.Int("attempts", attempts),
		applogger.Error(err),
	)
	if c.dlq == nil {
		return false
	}
	if dlqErr := c.dlq.WriteMessages(context.WithoutCancel(ctx), kafka.Message{
		Topic: c.cfg.DLQTopic,
		Key:   km.Key,
		Value: km.Value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "source_topic", Value: []byte(topic)},
			{Key: "error", Value: []byte(err.Error())},
		},
	}); dlqErr != nil {
		c.log.Error("kafka dlq write failed", applogger.String("topic", c.cfg.DLQTopic), applogger.Error(dlqErr))
		return false
	}
	c.metrics.dlq.WithLabelValues(topic).Inc()
	return true
}

func (c *Consumer) retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return c.cfg.RetryIf == nil || c.cfg.RetryIf(err)
}

func (c *Consumer) safeHandle(ctx context.Context, h MessageHandler, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in handler for topic %s: %v", h.Topic(), r)
		}
	}()
	return h.Handle(ctx, data)
}

// commitWithRetry commits a single message offset with bounded retries.
func (c *Consumer) commitWithRetry(ctx context.Context, r messageReader, km kafka.Message, max int) error {
	if max <= 0 {
		max = 1
	}
	var err error
	for attempt := 1; attempt <= max; attempt++ {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		err = r.CommitMessages(cctx, km)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	if attempt < 1 {
		attempt = 1
	}
	exp := max
	if attempt < 31 {
		if e := min * time.Duration(1<<uint(attempt-1)); e > 0 && e < max {
			exp = e
		}
	}
	// jitter up to 50%
	jitter := time.Duration(rand.Int63n(int64(exp)/2 + 1))
	return exp - jitter
}

type consumerMetrics struct {
	handled *prometheus.CounterVec
	dlq     *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

var (
	defaultConsumerMetrics     *consumerMetrics
	defaultConsumerMetricsOnce sync.Once
)

// newConsumerMetrics registers on reg, or once on the default registry when
// reg is nil.
func newConsumerMetrics(reg prometheus.Registerer) *consumerMetrics {
	if reg == nil {
		defaultConsumerMetricsOnce.Do(func() {
			defaultConsumerMetrics = buildConsumerMetrics(prometheus.DefaultRegisterer)
		})
		return defaultConsumerMetrics
	}
	return buildConsumerMetrics(reg)
}

func buildConsumerMetrics(reg prometheus.Registerer) *consumerMetrics {
	f := promauto.With(reg)
	return &consumerMetrics{
		handled: f.NewCounterVec(
			prometheus.CounterOpts{Name: "finselect_kafka_consumer_messages_total", Help: "Messages handled by topic and result"},
			[]string{"topic", "result"},
		),
		dlq: f.NewCounterVec(
			prometheus.CounterOpts{Name: "finselect_kafka_consumer_dlq_total", Help: "Messages parked on the DLQ"},
			[]string{"topic"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{Name: "finselect_kafka_consumer_handle_seconds", Help: "Handling time per message"},
			[]string{"topic"},
		),
	}
}

func (m *consumerMetrics) observe(topic string, err error, dur time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.handled.WithLabelValues(topic, result).Inc()
	m.latency.WithLabelValues(topic).Observe(dur.Seconds())
}
