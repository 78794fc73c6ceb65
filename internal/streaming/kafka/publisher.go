// Package kafka publishes scored events downstream for external consumers
// (SIEM ingestion, long-term archival) once they have been durably stored.
// Publishing is best-effort: a broker outage degrades the collector to
// store-only operation rather than rejecting ingest traffic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/htpot/collector/internal/eventschema"
)

type Config struct {
	Enabled bool
	Brokers []string
	Topic   string
}

func ConfigFromEnv(enabled bool, brokersCSV, topic string) Config {
	if topic == "" {
		topic = "htpot-events"
	}
	return Config{Enabled: enabled, Brokers: splitCSV(brokersCSV), Topic: topic}
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if x := strings.TrimSpace(p); x != "" {
			out = append(out, x)
		}
	}
	return out
}

// wireEvent is the downstream publish envelope: a flattened, stable subset
// of eventschema.Event safe to version independently of the internal type.
type wireEvent struct {
	ID              int64   `json:"id"`
	ObservedAt      string  `json:"observed_at"`
	SourceAddress   string  `json:"source_address"`
	Country         string  `json:"country,omitempty"`
	Protocol        string  `json:"protocol"`
	TargetService   string  `json:"target_service"`
	Action          string  `json:"action"`
	ScoreValue      float64 `json:"score_value"`
	ScoreBand       string  `json:"score_band"`
	IsAnomaly       bool    `json:"is_anomaly"`
	PredictedClass  string  `json:"predicted_class"`
	TrafficClass    string  `json:"traffic_class,omitempty"`
	ContentHash     string  `json:"content_hash"`
}

// Publisher publishes scored events to Kafka.
type Publisher struct {
	logger   *slog.Logger
	producer sarama.SyncProducer
	topic    string
}

// NewPublisher dials the broker set synchronously; the caller should treat
// a connection failure as non-fatal when Kafka publishing is optional.
func NewPublisher(logger *slog.Logger, cfg Config) (*Publisher, error) {
	scfg := sarama.NewConfig()
	scfg.Version = sarama.V2_5_0_0
	scfg.Producer.RequiredAcks = sarama.WaitForLocal
	scfg.Producer.Retry.Max = 3
	scfg.Producer.Return.Successes = true
	scfg.Producer.Timeout = 5 * time.Second

	producer, err := sarama.NewSyncProducer(cfg.Brokers, scfg)
	if err != nil {
		return nil, fmt.Errorf("kafka sync producer: %w", err)
	}
	return &Publisher{logger: logger, producer: producer, topic: cfg.Topic}, nil
}

func (p *Publisher) Publish(ctx context.Context, e eventschema.Event) error {
	body, err := json.Marshal(toWireEvent(e))
	if err != nil {
		return fmt.Errorf("marshal wire event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(e.SourceAddress),
		Value: sarama.ByteEncoder(body),
	}

	done := make(chan error, 1)
	go func() {
		_, _, sendErr := p.producer.SendMessage(msg)
		done <- sendErr
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}

func toWireEvent(e eventschema.Event) wireEvent {
	return wireEvent{
		ID:             e.ID,
		ObservedAt:     e.ObservedAt.Format(time.RFC3339Nano),
		SourceAddress:  e.SourceAddress,
		Country:        e.Geo.Country,
		Protocol:       e.Protocol,
		TargetService:  e.TargetService,
		Action:         e.Action,
		ScoreValue:     e.Score.Value,
		ScoreBand:      string(e.Score.Band),
		IsAnomaly:      e.Score.IsAnomaly,
		PredictedClass: string(e.Score.PredictedClass),
		TrafficClass:   e.Score.TrafficClass,
		ContentHash:    e.ContentHash,
	}
}
