package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go_trial/ordertaking/logger"
)

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.queue) > 0 {
		m := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

type fakeIndexer struct {
	mu     sync.Mutex
	bodies [][]byte
	err    error
}

func (f *fakeIndexer) Bulk(_ context.Context, index string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.bodies = append(f.bodies, body)
	return nil
}

func logMsg(t *testing.T, trace string) kafka.Message {
	t.Helper()
	b, err := json.Marshal(LogMessage{Level: "info", Module: "http", TraceID: trace})
	require.NoError(t, err)
	return kafka.Message{Value: b}
}

func TestBuildBulkBody(t *testing.T) {
	body, err := buildBulkBody([]LogMessage{{TraceID: "a"}, {TraceID: "b"}})
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimRight(body, "\n"), []byte("\n"))
	require.Len(t, lines, 4)
	assert.Equal(t, `{"index":{}}`, string(lines[0]))
	assert.Contains(t, string(lines[1]), `"trace_id":"a"`)
	assert.Contains(t, string(lines[3]), `"trace_id":"b"`)
}

func TestLogPusher_FlushesOnSizeAndTimeout(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		logMsg(t, "1"), logMsg(t, "2"), {Value: []byte("not json")}, logMsg(t, "3"),
	}}
	indexer := &fakeIndexer{}
	p := &LogPusher{
		Reader:       reader,
		Indexer:      indexer,
		Index:        "logs",
		BatchSize:    2,
		BatchTimeout: 20 * time.Millisecond,
		Log:          logger.Discard(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return len(reader.committed) == 4
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	indexer.mu.Lock()
	defer indexer.mu.Unlock()
	require.Len(t, indexer.bodies, 2)
	assert.Contains(t, string(indexer.bodies[0]), `"trace_id":"2"`)
	assert.Contains(t, string(indexer.bodies[1]), `"trace_id":"3"`)
}

func TestLogPusher_DoesNotCommitFailedBatch(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{logMsg(t, "1")}}
	p := &LogPusher{
		Reader:       reader,
		Indexer:      &fakeIndexer{err: errors.New("es down")},
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		Log:          logger.Discard(),
	}

	batch, msgs, err := p.collect(context.Background(), 1, time.Second)
	require.NoError(t, err)
	assert.Error(t, p.flush(context.Background(), batch, msgs))
	assert.Empty(t, reader.committed)
}
