package repository

import (
	"context"
	"fmt"

	"FinSelect/internal/domain/models"
	domrepo "FinSelect/internal/domain/repository"
	pkgkafka "FinSelect/pkg/kafka"
)

// messageWriter is the part of pkg/kafka.Producer the publisher needs.
type messageWriter interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaReportPublisher publishes finished model reports keyed by symbol.
type KafkaReportPublisher struct {
	producer messageWriter
	topic    string
}

func NewKafkaReportPublisher(producer *pkgkafka.Producer, topic string) domrepo.ReportPublisher {
	return &KafkaReportPublisher{producer: producer, topic: topic}
}

func (p *KafkaReportPublisher) PublishReport(ctx context.Context, r *models.ModelReport) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(r.Symbol), r); err != nil {
		return fmt.Errorf("publish report %s: %w", r.ID, err)
	}
	return nil
}

func (p *KafkaReportPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopReportPublisher drops reports; used when Kafka is disabled.
type NopReportPublisher struct{}

func (NopReportPublisher) PublishReport(context.Context, *models.ModelReport) error { return nil }
func (NopReportPublisher) Close() error                                             { return nil }
