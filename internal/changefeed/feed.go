// Package changefeed turns committed store writes into before/after change
// events, the trigger input of the delivery worker.
package changefeed

import (
	"context"
	"errors"
	"fmt"

	"smsrelay/internal/domain"
	"smsrelay/internal/observability"
	"smsrelay/internal/store"
)

// ErrPublish wraps a failure to publish after the write itself committed.
var ErrPublish = errors.New("change committed but not published")

type Kind int

const (
	KindUnknown Kind = iota
	KindCreated
	KindUpdated
	KindDeleted
)

func (k Kind) String() string {
	switch k {
	case KindCreated:
		return "created"
	case KindUpdated:
		return "updated"
	case KindDeleted:
		return "deleted"
	}
	return "unknown"
}

// Event is one observed change. The kind is derived from which snapshots exist.
type Event struct {
	ID     string         `json:"id"`
	Before *domain.Record `json:"before,omitempty"`
	After  *domain.Record `json:"after,omitempty"`
}

func (e Event) Kind() Kind {
	switch {
	case e.After == nil && e.Before != nil:
		return KindDeleted
	case e.After != nil && e.Before == nil:
		return KindCreated
	case e.After != nil && e.Before != nil:
		return KindUpdated
	}
	return KindUnknown
}

func FromChange(ch store.Change) Event {
	return Event{ID: ch.ID, Before: ch.Before, After: ch.After}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev Event) error

func (f PublisherFunc) Publish(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Feed decorates a store so every successful write is published.
type Feed struct {
	store.Store
	Publisher Publisher
}

func (f *Feed) Create(ctx context.Context, rec *domain.Record) (store.Change, error) {
	ch, err := f.Store.Create(ctx, rec)
	if err != nil {
		return ch, err
	}
	return ch, f.publish(ctx, ch)
}

func (f *Feed) Update(ctx context.Context, id string, p store.Patch) (store.Change, error) {
	ch, err := f.Store.Update(ctx, id, p)
	if err != nil {
		return ch, err
	}
	return ch, f.publish(ctx, ch)
}

func (f *Feed) Delete(ctx context.Context, id string) (store.Change, error) {
	ch, err := f.Store.Delete(ctx, id)
	if err != nil {
		return ch, err
	}
	return ch, f.publish(ctx, ch)
}

func (f *Feed) publish(ctx context.Context, ch store.Change) error {
	if f.Publisher == nil {
		return nil
	}
	if err := f.Publisher.Publish(ctx, FromChange(ch)); err != nil {
		observability.ChangeEvents.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %s: %v", ErrPublish, ch.ID, err)
	}
	observability.ChangeEvents.WithLabelValues("ok").Inc()
	return nil
}

// Chan is an in-process publisher backed by a buffered channel.
type Chan chan Event

func (c Chan) Publish(ctx context.Context, ev Event) error {
	select {
	case c <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
