package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Ramsey-B/banksia/pkg/models"
	"github.com/Ramsey-B/banksia/pkg/tracing"
)

// RecordHandler processes an ingest request read from the input topic.
type RecordHandler func(ctx context.Context, req *models.IngestRecordRequest) error

// Consumer reads patient record ingest requests off Kafka.
type Consumer struct {
	reader   *kafka.Reader
	logger   *zap.Logger
	handler  RecordHandler
	validate *validator.Validate
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

// ConsumerConfig holds Kafka consumer configuration
type ConsumerConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg ConsumerConfig, logger *zap.Logger, handler RecordHandler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.ConsumerGroup,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        500 * time.Millisecond,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader:   reader,
		logger:   logger.Named("kafka.consumer"),
		handler:  handler,
		validate: validator.New(),
	}
}

// Start begins consuming messages
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.Info("kafka consumer started", zap.String("topic", c.reader.Config().Topic))
	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.reader.Close()
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer loop stopping")
			return
		default:
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
					return
				}
				c.logger.Error("failed to fetch message", zap.Error(err))
				continue
			}

			c.processMessage(ctx, msg)
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) {
	ctx, span := tracing.StartSpan(ctx, "kafka.Consumer.processMessage")
	defer span.End()

	log := c.logger.With(
		zap.String("topic", msg.Topic),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset))

	var req models.IngestRecordRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		log.Error("failed to parse record message", zap.Error(err))
		// Malformed payloads cannot succeed on retry; commit and move on.
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			log.Error("failed to commit message", zap.Error(err))
		}
		return
	}
	if err := c.validate.Struct(&req); err != nil {
		log.Error("record message failed validation", zap.Error(err))
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			log.Error("failed to commit message", zap.Error(err))
		}
		return
	}

	if err := c.handler(ctx, &req); err != nil {
		// Do NOT commit on processing failure; at-least-once keeps ingestion
		// from silently dropping records.
		log.Error("failed to process record (not committing)", zap.Error(err))
		return
	}

	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		log.Error("failed to commit message", zap.Error(err))
	}
}

// Health returns the consumer health status
func (c *Consumer) Health() bool {
	return c.reader != nil
}
