package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/segmentio/kafka-go"

	"go_trial/ordertaking/logger"
)

type LogMessage struct {
	Level     string            `json:"level"`
	Module    string            `json:"module"`
	Message   string            `json:"message"`
	TraceID   string            `json:"trace_id"`
	Env       string            `json:"env"`
	Timestamp time.Time         `json:"timestamp"`
	Extra     map[string]string `json:"extra"`
}

// MessageReader is the part of *kafka.Reader the pusher uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// BulkIndexer sends one bulk request body to an index.
type BulkIndexer interface {
	Bulk(ctx context.Context, index string, body []byte) error
}

// ESBulk indexes through the official Elasticsearch client.
type ESBulk struct {
	Client *elasticsearch.Client
}

func NewESBulk(url string) (*ESBulk, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{url}})
	if err != nil {
		return nil, fmt.Errorf("creating Elasticsearch client: %w", err)
	}
	return &ESBulk{Client: es}, nil
}

func (b *ESBulk) Bulk(ctx context.Context, index string, body []byte) error {
	res, err := esapi.BulkRequest{Index: index, Body: bytes.NewReader(body)}.Do(ctx, b.Client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return fmt.Errorf("bulk index: %s: %s", res.Status(), msg)
	}
	return nil
}

// LogPusher drains request logs from kafka into Elasticsearch in batches. Offsets are committed
// only after a batch is indexed, so a failed push is retried from kafka on restart.
type LogPusher struct {
	Reader       MessageReader
	Indexer      BulkIndexer
	Index        string
	BatchSize    int
	BatchTimeout time.Duration
	Log          *logger.Logger
}

func NewKafkaReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
}

func buildBulkBody(batch []LogMessage) ([]byte, error) {
	var buf bytes.Buffer
	for _, msg := range batch {
		doc, err := json.Marshal(msg)
		if err != nil {
			return nil, err
		}
		buf.WriteString("{\"index\":{}}\n")
		buf.Write(doc)
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// Run reads until ctx is cancelled, flushing whenever the batch is full or the timeout passes.
func (p *LogPusher) Run(ctx context.Context) error {
	size := p.BatchSize
	if size <= 0 {
		size = 100
	}
	timeout := p.BatchTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	p.Log.LogProcess("LOGPUSHER", "Starting Kafka → Elasticsearch pusher")

	for {
		batch, msgs, err := p.collect(ctx, size, timeout)
		if len(msgs) > 0 {
			if ferr := p.flush(ctx, batch, msgs); ferr != nil {
				p.Log.Error("LOGPUSHER", ferr.Error())
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// collect gathers up to size messages, stopping early when timeout elapses.
func (p *LogPusher) collect(ctx context.Context, size int, timeout time.Duration) ([]LogMessage, []kafka.Message, error) {
	batchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	batch := make([]LogMessage, 0, size)
	msgs := make([]kafka.Message, 0, size)
	for len(batch) < size {
		m, err := p.Reader.FetchMessage(batchCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return batch, msgs, nil
			}
			return batch, msgs, err
		}
		msgs = append(msgs, m)

		var logMsg LogMessage
		if err := json.Unmarshal(m.Value, &logMsg); err != nil {
			p.Log.Warn("LOGPUSHER", "JSON decode error: "+err.Error())
			continue
		}
		if logMsg.Timestamp.IsZero() {
			logMsg.Timestamp = m.Time
		}
		if logMsg.Timestamp.IsZero() {
			logMsg.Timestamp = time.Now().UTC()
		}
		batch = append(batch, logMsg)
	}
	return batch, msgs, nil
}

func (p *LogPusher) flush(ctx context.Context, batch []LogMessage, msgs []kafka.Message) error {
	// a cancelled run still gets to write what it already read
	writeCtx := context.WithoutCancel(ctx)
	if len(batch) > 0 {
		body, err := buildBulkBody(batch)
		if err != nil {
			return fmt.Errorf("marshal batch: %w", err)
		}
		if err := p.Indexer.Bulk(writeCtx, p.Index, body); err != nil {
			return fmt.Errorf("bulk index error: %w", err)
		}
	}
	if err := p.Reader.CommitMessages(writeCtx, msgs...); err != nil {
		return fmt.Errorf("commit offsets: %w", err)
	}
	p.Log.Info("LOGPUSHER", fmt.Sprintf("Batch of %d logs pushed to ES", len(batch)))
	return nil
}
