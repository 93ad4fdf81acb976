// Package service holds the producer-side operations behind the HTTP API.
package service

import (
	"context"
	"errors"
	"log/slog"

	"smsrelay/internal/changefeed"
	"smsrelay/internal/domain"
	"smsrelay/internal/store"
	"smsrelay/internal/util"
)

type MessageService struct {
	Store store.Store
	IDGen func() string
}

// Create stores a new record without a delivery sub-document; the worker
// initializes it when the create event arrives. Recipient and text are not
// validated here, an invalid record ends in ERROR through the worker.
func (s *MessageService) Create(ctx context.Context, req domain.CreateMessageRequest) (domain.CreateResponse, error) {
	rec := &domain.Record{
		ID:        s.newID(),
		To:        util.NormalizePhone(req.To),
		Content:   req.Content,
		ChannelID: req.ChannelID,
	}
	if _, err := s.Store.Create(ctx, rec); err != nil && !committed(err, rec.ID) {
		return domain.CreateResponse{}, err
	}
	return domain.CreateResponse{MessageID: rec.ID}, nil
}

func (s *MessageService) Get(ctx context.Context, id string) (*domain.Record, error) {
	return s.Store.Get(ctx, id)
}

// Retry moves a failed message back to RETRY so the worker attempts it again.
// It returns store.ErrConflict when the message is not in ERROR.
func (s *MessageService) Retry(ctx context.Context, id string) (*domain.Record, error) {
	ch, err := s.Store.Update(ctx, id, store.Patch{
		Require: []domain.State{domain.StateError},
		State:   store.Set(domain.StateRetry),
	})
	if err != nil && !committed(err, id) {
		return nil, err
	}
	return ch.After, nil
}

func (s *MessageService) Delete(ctx context.Context, id string) error {
	if _, err := s.Store.Delete(ctx, id); err != nil && !committed(err, id) {
		return err
	}
	return nil
}

func (s *MessageService) newID() string {
	if s.IDGen != nil {
		return s.IDGen()
	}
	return util.NewMessageID()
}

// committed reports whether err only says the change event was lost.
func committed(err error, id string) bool {
	if !errors.Is(err, changefeed.ErrPublish) {
		return false
	}
	slog.Error("message written but change event not published", "err", err, "message_id", id)
	return true
}
