package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Shopify/sarama"

	"metering-aggregations/internal/aggregation/application"
	aggregation "metering-aggregations/internal/aggregation/domain"
)

// Config holds the producer settings.
type Config struct {
	Brokers []string
	Topic   string
}

// Message is the JSON value published for each aggregated group.
type Message struct {
	Aggregation             string    `json:"aggregation"`
	PeriodStart             time.Time `json:"periodStart"`
	PeriodEnd               time.Time `json:"periodEnd"`
	GridArea                string    `json:"gridArea"`
	EnergySupplier          string    `json:"energySupplier"`
	BalanceResponsibleParty string    `json:"balanceResponsibleParty"`
	SumQuantity             string    `json:"sumQuantity"`
	ComputedAt              time.Time `json:"computedAt"`
}

// Publisher sends aggregation results to a Kafka topic.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *log.Logger
}

// NewPublisher creates a synchronous producer that waits for all in-sync replicas.
func NewPublisher(cfg Config, logger *log.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("kafka publisher: brokers and topic are required")
	}
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner
	saramaConfig.Producer.Retry.Max = 0

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("kafka publisher: %w", err)
	}
	return NewPublisherWithProducer(producer, cfg.Topic, logger)
}

// NewPublisherWithProducer wraps an existing producer.
func NewPublisherWithProducer(producer sarama.SyncProducer, topic string, logger *log.Logger) (*Publisher, error) {
	if producer == nil {
		return nil, errors.New("kafka publisher: nil producer")
	}
	if topic == "" {
		return nil, errors.New("kafka publisher: topic is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Publisher{producer: producer, topic: topic, logger: logger}, nil
}

// Write publishes one message per group in a single batch.
func (p *Publisher) Write(ctx context.Context, result application.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(result.Records) == 0 {
		return nil
	}

	msgs := make([]*sarama.ProducerMessage, 0, len(result.Records))
	for _, rec := range result.Records {
		value, err := json.Marshal(NewMessage(result, rec))
		if err != nil {
			return err
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic: p.topic,
			Key:   sarama.StringEncoder(MessageKey(rec.GroupKey)),
			Value: sarama.ByteEncoder(value),
		})
	}

	if err := p.producer.SendMessages(msgs); err != nil {
		return fmt.Errorf("kafka publisher: %w", err)
	}
	p.logger.Printf("kafka published: topic=%s period_start=%s messages=%d",
		p.topic, result.Period.Start.Format(time.RFC3339), len(msgs))
	return nil
}

// Close closes the producer.
func (p *Publisher) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

// MessageKey partitions messages by group.
func MessageKey(key aggregation.GroupKey) string {
	return strings.Join([]string{key.GridArea, key.EnergySupplier, key.BalanceResponsibleParty}, "|")
}

// NewMessage builds the message value for one record.
func NewMessage(result application.Result, rec aggregation.AggregatedConsumptionRecord) Message {
	return Message{
		Aggregation:             application.AggregationName,
		PeriodStart:             result.Period.Start.UTC(),
		PeriodEnd:               result.Period.End.UTC(),
		GridArea:                rec.GridArea,
		EnergySupplier:          rec.EnergySupplier,
		BalanceResponsibleParty: rec.BalanceResponsibleParty,
		SumQuantity:             rec.SumQuantity.String(),
		ComputedAt:              result.ComputedAt.UTC(),
	}
}
