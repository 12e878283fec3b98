package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"go.uber.org/zap"

	"github.com/turbolytics/registrar/pkg/reconciler"
	"github.com/turbolytics/registrar/pkg/reporter"
)

// Message is the payload published for every processed candidate.
type Message struct {
	RunID     string        `json:"run_id"`
	Line      reporter.Line `json:"line"`
	Timestamp time.Time     `json:"timestamp"`
}

type PublisherStats struct {
	TotalMessages   int64     `json:"total_messages"`
	WriteErrorCount int64     `json:"write_error_count"`
	LastWriteAt     time.Time `json:"last_write_at,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
}

// Publisher produces per-item outcomes to a Kafka topic. It implements
// reconciler.Recorder so it can sit next to the console reporter.
type Publisher struct {
	config   kafka.ConfigMap
	producer *kafka.Producer
	topic    string
	brokers  string
	runID    string
	logger   *zap.Logger

	statsMu sync.RWMutex
	stats   PublisherStats
}

// NewPublisher parses kafka://broker:port/topic?key=value. Query parameters
// are passed through as librdkafka settings.
func NewPublisher(uri *url.URL, runID string, logger *zap.Logger) (*Publisher, error) {
	topic := strings.TrimPrefix(uri.Path, "/")
	if topic == "" {
		return nil, fmt.Errorf("topic must be specified in URL path")
	}

	brokers := uri.Host
	if brokers == "" {
		return nil, fmt.Errorf("broker must be specified in URL host")
	}

	config := kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"client.id":         "registrar",
		"acks":              "all",

		"request.timeout.ms":  "5000",
		"delivery.timeout.ms": "10000",
	}

	for key, values := range uri.Query() {
		if len(values) > 0 {
			config[key] = values[0]
		}
	}

	return &Publisher{
		config:  config,
		topic:   topic,
		brokers: brokers,
		runID:   runID,
		logger:  logger,
	}, nil
}

func (p *Publisher) Connect(ctx context.Context) error {
	producer, err := kafka.NewProducer(&p.config)
	if err != nil {
		p.recordError(err)
		return err
	}
	p.producer = producer

	go func() {
		defer p.logger.Debug("Producer event loop closed")

		for e := range producer.Events() {
			switch ev := e.(type) {
			case *kafka.Message:
				if ev.TopicPartition.Error != nil {
					p.recordError(ev.TopicPartition.Error)
					p.logger.Error("Delivery failed", zap.Error(ev.TopicPartition.Error))
				}
			case kafka.Error:
				p.logger.Error("Producer error", zap.Error(ev))
			}
		}
	}()

	p.logger.Info("Kafka publisher connected",
		zap.String("topic", p.topic),
		zap.String("brokers", p.brokers))

	return nil
}

func (p *Publisher) RecordAttempt(reconciler.Asset, reconciler.Step) {}

func (p *Publisher) RecordCreated(reconciler.Asset, string) {}

func (p *Publisher) RecordOutcome(o reconciler.Outcome) {
	if err := p.publish(o); err != nil {
		p.recordError(err)
		p.logger.Error("Failed to publish outcome",
			zap.String("name", o.Asset.Name),
			zap.Error(err),
		)
	}
}

func (p *Publisher) publish(o reconciler.Outcome) error {
	if p.producer == nil {
		return fmt.Errorf("publisher is not connected")
	}

	value, err := json.Marshal(NewMessage(p.runID, o, time.Now()))
	if err != nil {
		return err
	}

	err = p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &p.topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(o.Asset.ID),
		Value: value,
	}, nil)
	if err != nil {
		return err
	}

	p.statsMu.Lock()
	p.stats.TotalMessages++
	p.stats.LastWriteAt = time.Now()
	p.statsMu.Unlock()
	return nil
}

func NewMessage(runID string, o reconciler.Outcome, ts time.Time) Message {
	return Message{
		RunID:     runID,
		Line:      reporter.NewLine(o),
		Timestamp: ts,
	}
}

func (p *Publisher) recordError(err error) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	p.stats.WriteErrorCount++
	p.stats.LastError = err.Error()
}

// Close flushes pending messages, waiting at most five seconds.
func (p *Publisher) Close(ctx context.Context) error {
	if p.producer == nil {
		return nil
	}
	if remaining := p.producer.Flush(5000); remaining > 0 {
		p.logger.Warn("Messages not delivered before close", zap.Int("remaining", remaining))
	}
	p.producer.Close()
	p.producer = nil
	return nil
}

func (p *Publisher) Stats() PublisherStats {
	p.statsMu.RLock()
	defer p.statsMu.RUnlock()
	return p.stats
}
