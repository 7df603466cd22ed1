package events

import (
	"context"
	mathrand "math/rand"
	"sync"
	"time"

	"loadhub-core-svc/src/internal/models"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Publisher delivers domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, msg *models.EventMessage) error
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewMessage stamps an event with a sortable id and the current time.
func NewMessage(event string) *models.EventMessage {
	entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
	entropyMu.Unlock()

	return &models.EventMessage{
		ID:        id,
		Event:     event,
		Timestamp: time.Now().UTC(),
	}
}

// Emit publishes without letting a delivery failure reach the caller.
// A committed transition is never rolled back because a notification failed.
func Emit(ctx context.Context, p Publisher, msg *models.EventMessage) {
	if p == nil || msg == nil {
		return
	}
	if err := p.Publish(ctx, msg); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"event":   msg.Event,
			"load_id": msg.LoadID,
			"user_id": msg.UserID,
		}).Warn("Event publish failed, continuing")
	}
}

type nopPublisher struct{}

// Nop discards every event; used when the broker is disabled.
func Nop() Publisher {
	return nopPublisher{}
}

func (nopPublisher) Publish(context.Context, *models.EventMessage) error {
	return nil
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []*models.EventMessage
	Err      error
}

func (r *Recorder) Publish(_ context.Context, msg *models.EventMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.messages = append(r.messages, msg)
	return nil
}

func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.messages))
	for _, m := range r.messages {
		names = append(names, m.Event)
	}
	return names
}

func (r *Recorder) Messages() []*models.EventMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.EventMessage, len(r.messages))
	copy(out, r.messages)
	return out
}
