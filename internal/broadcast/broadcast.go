// Package broadcast shares track selections between sessions on the same machine.
//
// A [Selection] is published whenever a session starts a track. Other sessions
// use it to keep their reveal in step. [LocalBus] fans out within one process;
// [MQTTBus] bridges processes through a local MQTT broker.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/hitster/internal/models"
	"github.com/desertthunder/hitster/internal/shared"
)

// DefaultTopic is the MQTT topic carrying selections.
const DefaultTopic = "hitster/selection"

// Selection announces the track a session started.
type Selection struct {
	Origin string          `json:"origin"`
	URI    models.TrackRef `json:"uri"`
	At     time.Time       `json:"at"`
}

// Validate rejects selections without an origin or a canonical track.
func (s Selection) Validate() error {
	if s.Origin == "" {
		return fmt.Errorf("%w: selection origin is required", shared.ErrInvalidInput)
	}
	if !s.URI.Valid() {
		return fmt.Errorf("%w: selection uri %q", shared.ErrInvalidInput, s.URI)
	}
	return nil
}

// Handler receives selections.
type Handler func(s Selection)

// Bus publishes and delivers selections.
type Bus interface {
	Publish(ctx context.Context, s Selection) error
	// Subscribe registers h until the returned function is called.
	Subscribe(h Handler) (unsubscribe func())
	Close() error
}

// LocalBus delivers selections to subscribers in the same process.
type LocalBus struct {
	mu       sync.Mutex
	next     int
	handlers map[int]Handler
	closed   bool
}

func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: map[int]Handler{}}
}

// Publish delivers s to every subscriber synchronously.
func (b *LocalBus) Publish(ctx context.Context, s Selection) error {
	if err := s.Validate(); err != nil {
		return err
	}
	b.dispatch(s)
	return nil
}

func (b *LocalBus) dispatch(s Selection) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	handlers := make([]Handler, 0, len(b.handlers))
	for i := 0; i < b.next; i++ {
		if h, ok := b.handlers[i]; ok {
			handlers = append(handlers, h)
		}
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(s)
	}
}

func (b *LocalBus) Subscribe(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.handlers[id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.handlers, id)
		})
	}
}

// Close drops every subscriber.
func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = map[int]Handler{}
	return nil
}

func encode(s Selection) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal selection: %w", err)
	}
	return data, nil
}

func decode(data []byte) (Selection, error) {
	var s Selection
	if err := json.Unmarshal(data, &s); err != nil {
		return Selection{}, fmt.Errorf("unmarshal selection: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Selection{}, err
	}
	return s, nil
}
