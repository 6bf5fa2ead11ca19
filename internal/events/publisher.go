// Package events publishes pipeline events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"meeting-audio-pipeline/internal/models"
	"meeting-audio-pipeline/internal/observability/metrics"
	"meeting-audio-pipeline/internal/schema"
)

// Publisher publishes transcript and callout events to separate Kafka
// topics, keyed by meeting ID so one meeting's events stay ordered within
// a partition. With Kafka disabled it degrades to log-only mode.
type Publisher struct {
	writerPartial *kafka.Writer
	writerFinal   *kafka.Writer
	writerCallout *kafka.Writer
	topicPartial  string
	topicFinal    string
	topicCallout  string
	enabled       bool
	validator     *schema.Validator
	metrics       *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers      []string `yaml:"brokers"`
	TopicPartial string   `yaml:"topicPartial"`
	TopicFinal   string   `yaml:"topicFinal"`
	TopicCallout string   `yaml:"topicCallout"`
	Enabled      bool     `yaml:"enabled"`
}

// New creates a Kafka event publisher. A nil or disabled config yields a
// log-only publisher that still validates and counts events.
func New(cfg *Config) *Publisher {
	m := metrics.Default
	v := schema.New()

	if cfg == nil || !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		p := &Publisher{enabled: false, validator: v, metrics: m}
		if cfg != nil {
			p.topicPartial = cfg.TopicPartial
			p.topicFinal = cfg.TopicFinal
			p.topicCallout = cfg.TopicCallout
		}
		return p
	}

	// Longer dial timeouts for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicPartial", cfg.TopicPartial).
		Str("topicFinal", cfg.TopicFinal).
		Str("topicCallout", cfg.TopicCallout).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerPartial: newWriter(cfg.TopicPartial),
		writerFinal:   newWriter(cfg.TopicFinal),
		writerCallout: newWriter(cfg.TopicCallout),
		topicPartial:  cfg.TopicPartial,
		topicFinal:    cfg.TopicFinal,
		topicCallout:  cfg.TopicCallout,
		enabled:       true,
		validator:     v,
		metrics:       m,
	}
}

// PublishPartial publishes an interim transcript event.
func (p *Publisher) PublishPartial(ctx context.Context, ev models.TranscriptPartial) error {
	ev.EventType = models.EventTypeTranscriptPartial
	return p.publish(ctx, p.writerPartial, p.topicPartial, "partial", ev.MeetingID, ev)
}

// PublishFinal publishes a final transcript event.
func (p *Publisher) PublishFinal(ctx context.Context, ev models.TranscriptFinal) error {
	ev.EventType = models.EventTypeTranscriptFinal
	return p.publish(ctx, p.writerFinal, p.topicFinal, "final", ev.MeetingID, ev)
}

// PublishCallout publishes a detected callout event.
func (p *Publisher) PublishCallout(ctx context.Context, ev models.Callout) error {
	ev.EventType = models.EventTypeCallout
	return p.publish(ctx, p.writerCallout, p.topicCallout, "callout", ev.MeetingID, ev)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	if err := p.validator.Validate(event); err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Event failed validation")
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes the Kafka writers.
func (p *Publisher) Close() error {
	var err error
	for _, w := range []*kafka.Writer{p.writerPartial, p.writerFinal, p.writerCallout} {
		if w == nil {
			continue
		}
		if e := w.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing Kafka writer")
			err = e
		}
	}
	return err
}
