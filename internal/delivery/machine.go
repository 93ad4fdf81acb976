// Package delivery drives the per-record SMS delivery state machine.
//
// Every observed change is handled independently. The machine performs at most
// one transactional update per change, plus on the PENDING/RETRY branch one
// gateway call and the update that records its outcome. The PROCESSING state
// with an expiry timestamp is a lease: only the invocation whose conditional
// update moved the record into PROCESSING may call the gateway.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"smsrelay/internal/changefeed"
	"smsrelay/internal/domain"
	"smsrelay/internal/gateway"
	"smsrelay/internal/lease"
	"smsrelay/internal/observability"
	"smsrelay/internal/store"
)

type Action string

const (
	ActionNone          Action = "none"
	ActionIgnoreDelete  Action = "ignore_delete"
	ActionInit          Action = "init"
	ActionSkipTerminal  Action = "skip_terminal"
	ActionSkipLeased    Action = "skip_leased"
	ActionReap          Action = "reap"
	ActionLeaseLost     Action = "lease_lost"
	ActionDelivered     Action = "delivered"
	ActionFailed        Action = "failed"
	ActionUnknownState  Action = "unknown_state"
	ActionInternalError Action = "internal_error"
)

type Machine struct {
	Store      store.Store
	Gateway    gateway.Gateway
	Clock      lease.Clock
	Originator string
	Logger     *slog.Logger
}

// Handle processes one change event. It never returns an error: record-level
// failures are persisted as ERROR, anything else is logged and dropped so the
// host does not redeliver the same change forever.
func (m *Machine) Handle(ctx context.Context, ev changefeed.Event) (act Action) {
	ctx = context.WithoutCancel(ctx)
	log := m.logger().With("message_id", eventID(ev))

	defer func() {
		if r := recover(); r != nil {
			log.Error("unexpected panic during execution", "panic", r)
			observability.HandleErrors.WithLabelValues("panic").Inc()
			act = ActionInternalError
		}
		observability.Transitions.WithLabelValues(string(act)).Inc()
	}()

	act, err := m.process(ctx, log, ev)
	if err != nil {
		log.Warn("unexpected error during execution", "err", err, "stage", string(act))
		observability.HandleErrors.WithLabelValues(string(act)).Inc()
		return ActionInternalError
	}
	return act
}

func (m *Machine) process(ctx context.Context, log *slog.Logger, ev changefeed.Event) (Action, error) {
	id := eventID(ev)
	switch ev.Kind() {
	case changefeed.KindDeleted:
		log.Debug("ignoring delete")
		return ActionIgnoreDelete, nil
	case changefeed.KindUnknown:
		log.Warn("change event without snapshots, ignoring")
		return ActionNone, nil
	}

	rec := ev.After
	if rec.Delivery == nil {
		log.Info("new message, initializing delivery", "kind", ev.Kind().String())
		return m.initialize(ctx, log, id)
	}

	d := rec.Delivery
	switch {
	case d.State.Terminal():
		log.Debug("delivery already finished", "state", d.State)
		return ActionSkipTerminal, nil
	case d.State == domain.StateProcessing:
		if !lease.Elapsed(d.LeaseExpireTime, m.now()) {
			log.Debug("delivery lease still held")
			return ActionSkipLeased, nil
		}
		return m.reap(ctx, log, id)
	case d.State == domain.StatePending, d.State == domain.StateRetry:
		return m.acquireAndDeliver(ctx, log, id)
	default:
		log.Warn("unknown delivery state, ignoring", "state", d.State)
		return ActionUnknownState, nil
	}
}

func (m *Machine) initialize(ctx context.Context, log *slog.Logger, id string) (Action, error) {
	_, err := m.write(ctx, log, id, store.Patch{
		RequireUninitialized: true,
		InitDelivery: &domain.Delivery{
			State:     domain.StatePending,
			Attempts:  0,
			StartTime: m.now(),
			Error:     nil,
		},
	})
	if errors.Is(err, store.ErrConflict) {
		log.Info("delivery already initialized")
		return ActionNone, nil
	}
	if err != nil {
		return ActionInit, fmt.Errorf("initialize delivery: %w", err)
	}
	return ActionInit, nil
}

func (m *Machine) reap(ctx context.Context, log *slog.Logger, id string) (Action, error) {
	_, err := m.write(ctx, log, id, store.Patch{
		Require:               []domain.State{domain.StateProcessing},
		RequireLeaseElapsedAt: m.now(),
		State:                 store.Set(domain.StateError),
		Error:                 store.Set(domain.LeaseExpiredMessage),
		LeaseExpireTime:       store.Null[time.Time](),
	})
	if errors.Is(err, store.ErrConflict) {
		log.Info("lease already resolved or renewed")
		return ActionNone, nil
	}
	if err != nil {
		return ActionReap, fmt.Errorf("reap expired lease: %w", err)
	}
	log.Warn("delivery lease expired, marked as error")
	return ActionReap, nil
}

func (m *Machine) acquireAndDeliver(ctx context.Context, log *slog.Logger, id string) (Action, error) {
	ch, err := m.write(ctx, log, id, store.Patch{
		Require:         []domain.State{domain.StatePending, domain.StateRetry},
		State:           store.Set(domain.StateProcessing),
		LeaseExpireTime: store.Set(lease.ExpiryFrom(m.now())),
	})
	if errors.Is(err, store.ErrConflict) {
		log.Info("lease taken by another invocation")
		return ActionLeaseLost, nil
	}
	if err != nil {
		return ActionLeaseLost, fmt.Errorf("acquire lease: %w", err)
	}
	log.Info("record set to PROCESSING state, trying to deliver the message")

	resp, sendErr := m.attempt(ctx, log, ch.After)

	outcome := store.Patch{
		IncrementAttempts: 1,
		EndTime:           store.Set(m.now()),
		Error:             store.Null[string](),
		LeaseExpireTime:   store.Null[time.Time](),
	}
	act := ActionDelivered
	if sendErr != nil {
		act = ActionFailed
		outcome.State = store.Set(domain.StateError)
		outcome.Error = store.Set(sendErr.Error())
	} else {
		outcome.State = store.Set(domain.StateSuccess)
		outcome.MessageID = store.Set(resp.ID)
	}

	if _, err := m.write(ctx, log, id, outcome); err != nil {
		return act, fmt.Errorf("record delivery outcome: %w", err)
	}
	return act, nil
}

// attempt validates the record and calls the gateway exactly once.
func (m *Machine) attempt(ctx context.Context, log *slog.Logger, rec *domain.Record) (gateway.Response, error) {
	if err := rec.Validate(); err != nil {
		log.Warn("message invalid, not sending", "err", err)
		return gateway.Response{}, err
	}
	text, _ := rec.Content.Text()

	log.Info("sending message", "channel_id", rec.ChannelID)
	resp, err := m.Gateway.Send(ctx, gateway.Request{
		Originator: m.Originator,
		Recipients: []string{rec.To},
		Body:       text,
	})
	if err != nil {
		log.Warn("send failed", "err", err)
		return gateway.Response{}, err
	}
	log.Info("send successfully scheduled", "provider_message_id", resp.ID)
	return resp, nil
}

// write applies p; a commit whose change event could not be published is
// logged and treated as written.
func (m *Machine) write(ctx context.Context, log *slog.Logger, id string, p store.Patch) (store.Change, error) {
	ch, err := m.Store.Update(ctx, id, p)
	if errors.Is(err, changefeed.ErrPublish) {
		log.Error("delivery update committed but change event not published", "err", err, "paths", p.Paths())
		observability.HandleErrors.WithLabelValues("publish").Inc()
		return ch, nil
	}
	return ch, err
}

func (m *Machine) now() time.Time {
	if m.Clock == nil {
		return lease.System{}.Now()
	}
	return m.Clock.Now()
}

func (m *Machine) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func eventID(ev changefeed.Event) string {
	if ev.ID != "" {
		return ev.ID
	}
	if ev.After != nil {
		return ev.After.ID
	}
	if ev.Before != nil {
		return ev.Before.ID
	}
	return ""
}
