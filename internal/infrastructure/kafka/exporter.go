// Package kafka publishes work-instruction export records to the EDI topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"

	"github.com/wms-platform/che-controller/internal/config"
	"github.com/wms-platform/che-controller/internal/domain"
	"github.com/wms-platform/che-controller/internal/metrics"
	"github.com/wms-platform/che-controller/pkg/logging"
)

// Exporter publishes one message per terminal work instruction, keyed by
// order id so per-order records stay in partition order. A circuit breaker
// keeps a broker outage from stalling pick flow: the engine logs the failure
// and retries on the next terminal transition.
type Exporter struct {
	writer  *kafka.Writer
	breaker *gobreaker.CircuitBreaker
	topic   string
	log     *logging.Logger
	met     *metrics.Metrics
}

// NewExporter creates the export publisher. Metrics may be nil.
func NewExporter(cfg config.KafkaConfig, log *logging.Logger, met *metrics.Metrics) *Exporter {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 50 * time.Millisecond
	}
	logger := log.WithComponent("kafka-exporter")
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "edi-export",
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				"name", name, "from", from.String(), "to", to.String())
			if met != nil {
				met.SetCircuitBreakerState(name, int(to))
				if to == gobreaker.StateOpen {
					met.RecordCircuitBreakerTrip(name)
				}
			}
		},
	})
	return &Exporter{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.ExportTopic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: batchTimeout,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
		},
		breaker: breaker,
		topic:   cfg.ExportTopic,
		log:     logger,
		met:     met,
	}
}

// Publish implements engine.ExportSink.
func (e *Exporter) Publish(ctx context.Context, record domain.ExportRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal export record: %w", err)
	}

	start := time.Now()
	_, err = e.breaker.Execute(func() (any, error) {
		return nil, e.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(record.OrderID),
			Value: data,
			Headers: []kafka.Header{
				{Key: "type", Value: []byte("work_instruction." + string(record.Status))},
				{Key: "content-type", Value: []byte("application/json")},
			},
			Time: record.CompletedAt,
		})
	})
	duration := time.Since(start)

	if e.met != nil {
		e.met.RecordExport(e.topic, err == nil, duration)
	}
	e.log.ExportPublish(ctx, e.topic, record.SequenceID, err == nil, duration)
	if err != nil {
		return fmt.Errorf("publish export to %s: %w", e.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (e *Exporter) Close() error {
	return e.writer.Close()
}
