package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/models"
	"github.com/NYPL/sfr-ingest-pipeline-sub000/pkg/tracing"
)

// Emitter is the outbound channel surface the record processor depends on.
type Emitter interface {
	Requeue(ctx context.Context, topic string, envelope *models.RecordEnvelope) error
	PublishUpdate(ctx context.Context, entityID string, envelope *models.RecordEnvelope) error
	PublishCover(ctx context.Context, envelope *models.RecordEnvelope) error
	PublishRecluster(ctx context.Context, workID string) error
}

// Producer handles Kafka event emission
type Producer struct {
	writer       *kafka.Writer
	logger       ectologger.Logger
	updateTopic  string
	coverTopic   string
	clusterTopic string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	UpdateTopic  string
	CoverTopic   string
	ClusterTopic string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer:       writer,
		logger:       logger,
		updateTopic:  cfg.UpdateTopic,
		coverTopic:   cfg.CoverTopic,
		clusterTopic: cfg.ClusterTopic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Requeue re-emits an envelope onto its own record-type topic so a later
// worker retries the lookup. The caller increments Attempts before the call.
func (p *Producer) Requeue(ctx context.Context, topic string, envelope *models.RecordEnvelope) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.Requeue")
	defer span.End()

	data, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: topic,
		Value: data,
		Headers: []kafka.Header{
			{Key: "record_type", Value: []byte(envelope.Type)},
			{Key: "source", Value: []byte(envelope.Source)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to requeue envelope")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"record_type": envelope.Type,
		"attempts":    envelope.Attempts,
		"topic":       topic,
	}).Info("Requeued envelope")

	return nil
}

// PublishUpdate re-emits a successfully applied envelope on the application
// update channel with attempts reset to 0, keyed by the matched entity.
func (p *Producer) PublishUpdate(ctx context.Context, entityID string, envelope *models.RecordEnvelope) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishUpdate")
	defer span.End()

	out := *envelope
	out.Attempts = 0

	data, err := json.Marshal(out)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.updateTopic,
		Key:   []byte(entityID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "record_type", Value: []byte(out.Type)},
			{Key: "entity_id", Value: []byte(entityID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish update")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"record_type": out.Type,
		"entity_id":   entityID,
	}).Debug("Published update")

	return nil
}

// PublishCover defers a cover sub-payload to the cover channel so image
// fetching never runs inside a record's processing transaction.
func (p *Producer) PublishCover(ctx context.Context, envelope *models.RecordEnvelope) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishCover")
	defer span.End()

	data, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.coverTopic,
		Value: data,
		Headers: []kafka.Header{
			{Key: "record_type", Value: []byte(models.RecordTypeCover)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish cover envelope")
		return err
	}

	return nil
}

// PublishRecluster emits a clustering control message for a work
func (p *Producer) PublishRecluster(ctx context.Context, workID string) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishRecluster")
	defer span.End()

	data, err := json.Marshal(models.ReclusterMessage{
		Type:       models.RecordTypeRecluster,
		Identifier: workID,
	})
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.clusterTopic,
		Key:   []byte(workID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(models.RecordTypeRecluster)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish recluster message")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"work_id": workID,
	}).Debug("Published recluster message")

	return nil
}
