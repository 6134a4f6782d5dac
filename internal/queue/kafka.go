package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/segmentio/kafka-go"
)

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// KafkaQueue publishes tasks to a topic and consumes them through a consumer
// group. Workers ack out of order, so offsets are only committed up to the
// lowest message of each partition that is still in flight.
type KafkaQueue struct {
	writer  *kafka.Writer
	reader  *kafka.Reader
	tracker *commitTracker
}

func NewKafkaQueue(cfg KafkaConfig) (*KafkaQueue, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("kafka queue: brokers and topic are required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &KafkaQueue{writer: w, reader: r, tracker: newCommitTracker()}, nil
}

func (q *KafkaQueue) Enqueue(ctx context.Context, tasks ...*Task) error {
	if len(tasks) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, len(tasks))
	for i, t := range tasks {
		msg, err := messageFor(t)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := q.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka enqueue: %w", err)
	}
	return nil
}

func (q *KafkaQueue) Dequeue(ctx context.Context) (*Task, error) {
	msg, err := q.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrClosed
		}
		return nil, err
	}
	q.tracker.fetched(msg.Partition, msg.Offset)
	var t Task
	if err := json.Unmarshal(msg.Value, &t); err != nil {
		_ = q.commit(ctx, msg)
		return nil, fmt.Errorf("decode task at offset %d: %w", msg.Offset, err)
	}
	t.receipt = msg
	return &t, nil
}

func (q *KafkaQueue) Ack(ctx context.Context, t *Task) error {
	msg, ok := t.receipt.(kafka.Message)
	if !ok {
		return nil
	}
	return q.commit(ctx, msg)
}

func (q *KafkaQueue) commit(ctx context.Context, msg kafka.Message) error {
	upTo, ok := q.tracker.done(msg.Partition, msg.Offset)
	if !ok {
		return nil
	}
	return q.reader.CommitMessages(ctx, kafka.Message{Topic: msg.Topic, Partition: msg.Partition, Offset: upTo})
}

func (q *KafkaQueue) Close() error {
	return errors.Join(q.writer.Close(), q.reader.Close())
}

// messageFor keys by task id so the units of one large batch spread over
// every partition.
func messageFor(t *Task) (kafka.Message, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal task %s: %w", t.ID, err)
	}
	return kafka.Message{Key: []byte(t.ID), Value: data}, nil
}

// commitTracker 记录每个分区已拉取未提交的 offset
type commitTracker struct {
	mu    sync.Mutex
	parts map[int]*partitionOffsets
}

type partitionOffsets struct {
	inflight []int64 // ascending
	acked    map[int64]struct{}
}

func newCommitTracker() *commitTracker {
	return &commitTracker{parts: make(map[int]*partitionOffsets)}
}

func (c *commitTracker) fetched(partition int, offset int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.parts[partition]
	if !ok {
		p = &partitionOffsets{acked: make(map[int64]struct{})}
		c.parts[partition] = p
	}
	i, found := slices.BinarySearch(p.inflight, offset)
	if found {
		return
	}
	p.inflight = slices.Insert(p.inflight, i, offset)
}

// done marks offset acked and reports the highest offset whose whole prefix
// is acked. ok is false while a lower offset is still in flight.
func (c *commitTracker) done(partition int, offset int64) (upTo int64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, exists := c.parts[partition]
	if !exists {
		return 0, false
	}
	if _, found := slices.BinarySearch(p.inflight, offset); !found {
		return 0, false
	}
	p.acked[offset] = struct{}{}
	n := 0
	for _, off := range p.inflight {
		if _, acked := p.acked[off]; !acked {
			break
		}
		delete(p.acked, off)
		upTo, ok = off, true
		n++
	}
	p.inflight = p.inflight[n:]
	return upTo, ok
}
