package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/tvtantrum/tantrum/internal/config"
	"github.com/tvtantrum/tantrum/pkg/models"
)

// ErrNonRetryable marks handler failures that retrying cannot fix, such as
// schema violations. Such messages go straight to the DLQ.
var ErrNonRetryable = errors.New("non-retryable")

const maxFetchBackoff = 30 * time.Second

// ShowIngestionMessage carries one raw import record. Record is kept as raw
// JSON so the consumer can validate it before decoding.
type ShowIngestionMessage struct {
	BatchID    uuid.UUID       `json:"batch_id"`
	Source     string          `json:"source"`
	Record     json.RawMessage `json:"record"`
	Timestamp  time.Time       `json:"timestamp"`
	RetryCount int             `json:"retry_count"`
}

// Handler processes one ingestion message.
type Handler func(ctx context.Context, msg ShowIngestionMessage) error

// DeadLetterHook observes decoded messages that were sent to the DLQ.
type DeadLetterHook func(ctx context.Context, msg ShowIngestionMessage, cause error)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Stats() kafka.ReaderStats
	Close() error
}

type MessageBus struct {
	writer     messageWriter
	reader     messageReader
	dlqWriter  messageWriter
	topic      string
	dlqTopic   string
	maxRetries int
	baseDelay  time.Duration
	onDLQ      DeadLetterHook
	logger     *logrus.Logger
}

func NewMessageBus(cfg *config.Config, logger *logrus.Logger) (*MessageBus, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("no Kafka brokers configured")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topics.ShowIngestion,
		Balancer:     &kafka.Hash{}, // same show name, same partition
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          cfg.Kafka.Topics.ShowIngestion,
		GroupID:        cfg.Kafka.ConsumerGroup,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	})

	dlqWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topics.ShowIngestionDLQ,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	return newMessageBus(writer, reader, dlqWriter, cfg, logger), nil
}

func newMessageBus(writer messageWriter, reader messageReader, dlqWriter messageWriter, cfg *config.Config, logger *logrus.Logger) *MessageBus {
	maxRetries := cfg.Ingestion.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	baseDelay := cfg.Ingestion.RetryDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}

	return &MessageBus{
		writer:     writer,
		reader:     reader,
		dlqWriter:  dlqWriter,
		topic:      cfg.Kafka.Topics.ShowIngestion,
		dlqTopic:   cfg.Kafka.Topics.ShowIngestionDLQ,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
	}
}

// OnDeadLetter registers hook. It must be called before ConsumeMessages.
func (mb *MessageBus) OnDeadLetter(hook DeadLetterHook) {
	mb.onDLQ = hook
}

// PublishShowRecords queues every record under batchID in a single write.
func (mb *MessageBus) PublishShowRecords(ctx context.Context, batchID uuid.UUID, source string, records []models.ShowImportRecord) error {
	now := time.Now().UTC()
	messages := make([]kafka.Message, 0, len(records))

	for _, record := range records {
		raw, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal record %q: %w", record.Name, err)
		}

		value, err := json.Marshal(ShowIngestionMessage{
			BatchID:   batchID,
			Source:    source,
			Record:    raw,
			Timestamp: now,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}

		messages = append(messages, kafka.Message{
			Key:   []byte(strings.ToLower(strings.TrimSpace(record.Name))),
			Value: value,
			Headers: []kafka.Header{
				{Key: "batch_id", Value: []byte(batchID.String())},
				{Key: "source", Value: []byte(source)},
				{Key: "timestamp", Value: []byte(now.Format(time.RFC3339))},
			},
		})
	}

	if err := mb.writer.WriteMessages(ctx, messages...); err != nil {
		mb.logger.WithError(err).WithField("batch_id", batchID).Error("Failed to publish show records to Kafka")
		return fmt.Errorf("failed to write messages to Kafka: %w", err)
	}

	mb.logger.WithFields(logrus.Fields{
		"batch_id": batchID,
		"source":   source,
		"records":  len(messages),
		"topic":    mb.topic,
	}).Info("Show records published to Kafka")

	return nil
}

// ConsumeMessages runs handler over the ingestion topic until ctx is done or
// the reader is closed. Messages are committed once handled or dead-lettered.
func (mb *MessageBus) ConsumeMessages(ctx context.Context, handler Handler) error {
	var backoff time.Duration
	for {
		message, err := mb.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}

			backoff = nextFetchBackoff(backoff, mb.baseDelay)
			mb.logger.WithError(err).WithField("backoff", backoff).Error("Failed to read message from Kafka")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0

		var ingestion ShowIngestionMessage
		if err := json.Unmarshal(message.Value, &ingestion); err != nil {
			mb.logger.WithError(err).WithField("offset", message.Offset).Error("Failed to unmarshal Kafka message")
			mb.deadLetter(ctx, message.Value, fmt.Errorf("%w: %v", ErrNonRetryable, err))
		} else if err := mb.processWithRetry(ctx, ingestion, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			mb.logger.WithError(err).WithField("batch_id", ingestion.BatchID).Error("Failed to process message")
			mb.deadLetter(ctx, message.Value, err)
			if mb.onDLQ != nil {
				mb.onDLQ(ctx, ingestion, err)
			}
		}

		if err := mb.reader.CommitMessages(ctx, message); err != nil {
			mb.logger.WithError(err).WithField("offset", message.Offset).Error("Failed to commit Kafka message")
		}
	}
}

// nextFetchBackoff doubles the wait after each consecutive fetch failure,
// starting at base and capped at maxFetchBackoff.
func nextFetchBackoff(current, base time.Duration) time.Duration {
	if current <= 0 {
		return base
	}
	if current >= maxFetchBackoff/2 {
		return maxFetchBackoff
	}
	return current * 2
}

func (mb *MessageBus) processWithRetry(ctx context.Context, message ShowIngestionMessage, handler Handler) error {
	for attempt := 0; attempt <= mb.maxRetries; attempt++ {
		if attempt > 0 {
			delay := mb.baseDelay * time.Duration(1<<uint(attempt-1))
			mb.logger.WithFields(logrus.Fields{
				"batch_id": message.BatchID,
				"attempt":  attempt,
				"delay":    delay,
			}).Info("Retrying message processing")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		message.RetryCount = attempt
		err := handler(ctx, message)
		if err == nil {
			return nil
		}

		mb.logger.WithError(err).WithFields(logrus.Fields{
			"batch_id": message.BatchID,
			"attempt":  attempt,
		}).Warn("Message processing failed")

		if errors.Is(err, ErrNonRetryable) {
			return err
		}
		if attempt == mb.maxRetries {
			return fmt.Errorf("max retries exceeded: %w", err)
		}
	}

	return fmt.Errorf("unexpected retry loop exit")
}

func (mb *MessageBus) deadLetter(ctx context.Context, original json.RawMessage, cause error) {
	if err := mb.sendToDLQ(ctx, original, cause); err != nil {
		mb.logger.WithError(err).Error("Failed to send message to DLQ")
	}
}

func (mb *MessageBus) sendToDLQ(ctx context.Context, original json.RawMessage, cause error) error {
	if !json.Valid(original) {
		quoted, _ := json.Marshal(string(original))
		original = quoted
	}

	dlqBytes, err := json.Marshal(map[string]interface{}{
		"original_message": original,
		"error":            cause.Error(),
		"dlq_timestamp":    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ message: %w", err)
	}

	message := kafka.Message{
		Value: dlqBytes,
		Headers: []kafka.Header{
			{Key: "original_topic", Value: []byte(mb.topic)},
			{Key: "error", Value: []byte(cause.Error())},
		},
	}

	if err := mb.dlqWriter.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to DLQ: %w", err)
	}

	mb.logger.WithFields(logrus.Fields{
		"topic": mb.dlqTopic,
		"error": cause.Error(),
	}).Warn("Message sent to DLQ")

	return nil
}

func (mb *MessageBus) Close() error {
	var errs []error

	if err := mb.writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close producer: %w", err))
	}

	if err := mb.reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close consumer: %w", err))
	}

	if err := mb.dlqWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close DLQ writer: %w", err))
	}

	return errors.Join(errs...)
}

// GetMetrics returns consumer statistics for the health endpoint.
func (mb *MessageBus) GetMetrics() map[string]interface{} {
	stats := mb.reader.Stats()
	return map[string]interface{}{
		"consumer_lag":    stats.Lag,
		"consumer_offset": stats.Offset,
		"messages_read":   stats.Messages,
		"bytes_read":      stats.Bytes,
		"rebalances":      stats.Rebalances,
		"timeouts":        stats.Timeouts,
		"errors":          stats.Errors,
	}
}
