package logkafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"go_trial/ordertaking/logger"
)

// Sink receives one entry per completed request.
type Sink interface {
	WriteLog(ctx context.Context, entry LogEntry) error
}

// KafkaSink ships entries to a kafka topic. The writer is async, so WriteLog does not wait on
// the broker.
type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		Async:                  true,
		AllowAutoTopicCreation: true,
	}}
}

func (s *KafkaSink) WriteLog(ctx context.Context, entry LogEntry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(entry.TraceID),
		Value: b,
		Time:  time.Now(),
	})
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// ConsoleSink prints entries through the service logger.
type ConsoleSink struct {
	Log *logger.Logger
}

func (s ConsoleSink) WriteLog(_ context.Context, entry LogEntry) error {
	x := entry.Extra
	s.Log.LogAPI(x["method"], x["path"], x["status"], x["duration_ms"]+"ms")
	if x["user_id"] != anonymous {
		s.Log.Debug("HTTP", fmt.Sprintf("trace=%s user=%s ip=%s", entry.TraceID, x["user_id"], x["ip"]))
	}
	return nil
}
