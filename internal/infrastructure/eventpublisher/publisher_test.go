package eventpublisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/iho/railledger/internal/domain"
)

type fakeStore struct {
	mu        sync.Mutex
	events    []*domain.OutboxEvent
	published map[string]bool
	pruned    bool
}

func newFakeStore(events ...*domain.OutboxEvent) *fakeStore {
	return &fakeStore{events: events, published: make(map[string]bool)}
}

func (s *fakeStore) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.OutboxEvent
	for _, e := range s.events {
		if !s.published[e.ID] {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published[id] = true
	return nil
}

func (s *fakeStore) DeletePublished(ctx context.Context, before time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruned = true
	return nil
}

type fakeSink struct {
	mu       sync.Mutex
	seen     []string
	failIDs  map[string]bool
	failures int
}

func (f *fakeSink) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[event.ID] {
		f.failures++
		return errors.New("sink unavailable")
	}
	f.seen = append(f.seen, event.ID)
	return nil
}

func event(id string) *domain.OutboxEvent {
	return &domain.OutboxEvent{
		ID:            id,
		AggregateID:   "link-1",
		AggregateType: domain.AggregateTypePaymentLink,
		EventType:     domain.EventTypeEntriesPosted,
		Payload:       map[string]any{"entry_count": 2},
		CreatedAt:     time.Now().UTC(),
	}
}

func TestProcessOncePublishesAndMarks(t *testing.T) {
	store := newFakeStore(event("evt-1"), event("evt-2"))
	sink := &fakeSink{}

	ep := NewEventPublisher(Config{
		Store:     store,
		Publisher: sink,
		Logger:    zerolog.Nop(),
		Retention: time.Hour,
	})

	if err := ep.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sink.seen) != 2 {
		t.Fatalf("published %d events, want 2", len(sink.seen))
	}
	if !store.published["evt-1"] || !store.published["evt-2"] {
		t.Error("events not marked published")
	}
	if !store.pruned {
		t.Error("expected retention pruning to run")
	}
}

func TestProcessOnceFailedDeliveryStaysUnpublished(t *testing.T) {
	store := newFakeStore(event("evt-1"), event("evt-2"))
	sink := &fakeSink{failIDs: map[string]bool{"evt-1": true}}

	ep := NewEventPublisher(Config{
		Store:     store,
		Publisher: sink,
		Logger:    zerolog.Nop(),
	})

	if err := ep.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.published["evt-1"] {
		t.Error("failed event must stay unpublished for retry")
	}
	if !store.published["evt-2"] {
		t.Error("one failure must not block the rest of the batch")
	}

	// The failed event is retried on the next poll.
	sink.failIDs = nil
	if err := ep.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !store.published["evt-1"] {
		t.Error("event not published on retry")
	}
}

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaPublisherKeysByAggregate(t *testing.T) {
	writer := &fakeWriter{}
	p := &KafkaPublisher{writer: writer, topic: "railledger.events", logger: zerolog.Nop()}

	if err := p.Publish(context.Background(), event("evt-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(writer.messages) != 1 {
		t.Fatalf("wrote %d messages, want 1", len(writer.messages))
	}
	if string(writer.messages[0].Key) != "link-1" {
		t.Errorf("message key = %s, want aggregate id link-1", writer.messages[0].Key)
	}
}
