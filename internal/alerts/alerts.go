// Package alerts hands fired deal alerts to downstream messaging.
package alerts

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/kafka-go"

	"homescore/internal/model"
)

type Publisher interface {
	Publish(ctx context.Context, a model.DealAlert) error
}

// MultiPublisher fans out to multiple underlying publishers, stopping at the
// first error.
type MultiPublisher struct {
	pubs []Publisher
}

func NewMultiPublisher(ps ...Publisher) *MultiPublisher {
	return &MultiPublisher{pubs: ps}
}

func (m *MultiPublisher) Publish(ctx context.Context, a model.DealAlert) error {
	for _, p := range m.pubs {
		if err := p.Publish(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Discard drops every alert.
type Discard struct{}

func (Discard) Publish(context.Context, model.DealAlert) error { return nil }

// FilePublisher appends one JSON alert per line.
type FilePublisher struct {
	mu   sync.Mutex
	path string
}

func NewFilePublisher(dir string, filename string) (*FilePublisher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "mkdir")
	}
	return &FilePublisher{path: filepath.Join(dir, filename)}, nil
}

func (w *FilePublisher) Path() string { return w.path }

func (w *FilePublisher) Publish(_ context.Context, a model.DealAlert) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(&a); err != nil {
		return errors.Wrap(err, "encode")
	}
	return nil
}

// KafkaPublisher publishes alerts keyed by listing id, so alerts for one
// listing stay ordered on a partition.
type KafkaPublisher struct {
	writer kafkaMessageWriter
}

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaPublisher creates a synchronous, all-acks publisher.
// bootstrap can be a comma-separated list of host:port.
func NewKafkaPublisher(bootstrap string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(Brokers(bootstrap)...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}}
}

// NewKafkaPublisherWith is only for tests to inject a fake writer.
func NewKafkaPublisherWith(w kafkaMessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (k *KafkaPublisher) Publish(ctx context.Context, a model.DealAlert) error {
	b, err := json.Marshal(&a)
	if err != nil {
		return errors.Wrap(err, "marshal")
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(a.ListingID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "alert-id", Value: []byte(a.ID)},
			{Key: "report-id", Value: []byte(a.ReportID)},
		},
	})
	return errors.Wrapf(err, "publish alert %s", a.ID)
}

// Close releases the underlying writer when it holds connections.
func (k *KafkaPublisher) Close() error {
	if c, ok := k.writer.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Brokers splits a comma-separated bootstrap list, dropping blanks.
func Brokers(bootstrap string) []string {
	var brokers []string
	for _, a := range strings.Split(bootstrap, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			brokers = append(brokers, a)
		}
	}
	return brokers
}
