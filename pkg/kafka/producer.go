package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Header is a string-valued message header.
type Header struct {
	Key   string
	Value string
}

// Producer publishes JSON payloads through a kafka-go writer.
type Producer struct {
	w       *kafka.Writer
	metrics *producerMetrics
	codec   string
	async   bool
}

// NewProducer builds a writer from the options. At least one broker is required.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	p := &Producer{metrics: sharedProducerMetrics(), codec: cfg.Compression, async: cfg.Async}
	p.w = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     balancerFor(cfg.HashByKey),
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  parseCompression(cfg.Compression),
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		BatchSize:    cfg.BatchSize,
		BatchBytes:   int64(cfg.BatchBytes),
		BatchTimeout: cfg.BatchTimeout,
		Async:        cfg.Async,
	}
	if cfg.Async {
		// Async writes return before delivery; outcomes arrive here instead.
		p.w.Completion = func(msgs []kafka.Message, err error) {
			for _, m := range msgs {
				p.metrics.result(m.Topic, p.codec, err)
			}
		}
	}
	return p, nil
}

func balancerFor(byKey bool) kafka.Balancer {
	if byKey {
		return &kafka.Hash{}
	}
	return &kafka.LeastBytes{}
}

// Publish writes one message. []byte and string values are sent as is,
// anything else is JSON encoded.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}, headers ...Header) error {
	payload, err := encodeValue(value)
	if err != nil {
		return err
	}

	msg := kafka.Message{Topic: topic, Key: key, Value: payload, Time: time.Now().UTC()}
	if len(headers) > 0 {
		msg.Headers = make([]kafka.Header, len(headers))
		for i, h := range headers {
			msg.Headers[i] = kafka.Header{Key: h.Key, Value: []byte(h.Value)}
		}
	}

	start := time.Now()
	err = p.w.WriteMessages(ctx, msg)
	p.metrics.latency.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	p.metrics.bytes.WithLabelValues(topic, p.codec).Add(float64(len(payload)))
	if !p.async || err != nil {
		p.metrics.result(topic, p.codec, err)
	}
	if err != nil {
		return fmt.Errorf("kafka publish to %s: %w", topic, err)
	}
	return nil
}

// Close flushes buffered messages and releases the writer.
func (p *Producer) Close() error {
	if p == nil || p.w == nil {
		return nil
	}
	return p.w.Close()
}

func encodeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode kafka payload: %w", err)
	}
	return b, nil
}

type producerMetrics struct {
	messages *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func (m *producerMetrics) result(topic, codec string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.messages.WithLabelValues(topic, codec, outcome).Inc()
}

var (
	producerMetricsOnce sync.Once
	producerMetricsVal  *producerMetrics
)

// sharedProducerMetrics registers the producer collectors once per process.
func sharedProducerMetrics() *producerMetrics {
	producerMetricsOnce.Do(func() {
		producerMetricsVal = &producerMetrics{
			messages: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "signalflow_kafka_producer_messages_total",
				Help: "Messages published to Kafka by outcome",
			}, []string{"topic", "compression", "result"}),
			bytes: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "signalflow_kafka_producer_bytes_total",
				Help: "Payload bytes handed to the Kafka writer",
			}, []string{"topic", "compression"}),
			latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "signalflow_kafka_producer_publish_seconds",
				Help:    "Time spent in WriteMessages",
				Buckets: prometheus.DefBuckets,
			}, []string{"topic"}),
		}
	})
	return producerMetricsVal
}
