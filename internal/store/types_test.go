package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smsrelay/internal/domain"
)

func TestApplyInitRequiresUninitialized(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := &domain.Record{ID: "m1", To: "+1555"}
	p := Patch{
		RequireUninitialized: true,
		InitDelivery:         &domain.Delivery{State: domain.StatePending, StartTime: now},
	}

	require.NoError(t, Apply(rec, p))
	require.NotNil(t, rec.Delivery)
	assert.Equal(t, domain.StatePending, rec.Delivery.State)
	assert.Equal(t, 0, rec.Delivery.Attempts)
	assert.Nil(t, rec.Delivery.Error)

	assert.ErrorIs(t, Apply(rec, p), ErrConflict)
}

func TestApplyRequireState(t *testing.T) {
	rec := &domain.Record{ID: "m1", Delivery: &domain.Delivery{State: domain.StateProcessing}}
	err := Apply(rec, Patch{
		Require: []domain.State{domain.StatePending, domain.StateRetry},
		State:   Set(domain.StateProcessing),
	})
	assert.ErrorIs(t, err, ErrConflict)

	noDelivery := &domain.Record{ID: "m2"}
	assert.ErrorIs(t, Apply(noDelivery, Patch{Require: []domain.State{domain.StatePending}}), ErrConflict)
}

func TestApplyRequireLeaseElapsed(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reap := Patch{
		Require:               []domain.State{domain.StateProcessing},
		RequireLeaseElapsedAt: now,
		State:                 Set(domain.StateError),
		LeaseExpireTime:       Null[time.Time](),
	}

	future := now.Add(time.Second)
	live := &domain.Record{ID: "m1", Delivery: &domain.Delivery{State: domain.StateProcessing, LeaseExpireTime: &future}}
	assert.ErrorIs(t, Apply(live, reap), ErrConflict)
	assert.Equal(t, domain.StateProcessing, live.Delivery.State)
	assert.NotNil(t, live.Delivery.LeaseExpireTime)

	atNow := now
	expired := &domain.Record{ID: "m2", Delivery: &domain.Delivery{State: domain.StateProcessing, LeaseExpireTime: &atNow}}
	require.NoError(t, Apply(expired, reap))
	assert.Equal(t, domain.StateError, expired.Delivery.State)
	assert.Nil(t, expired.Delivery.LeaseExpireTime)

	assert.ErrorIs(t, Apply(&domain.Record{ID: "m3"}, Patch{RequireLeaseElapsedAt: now}), ErrConflict)
}

func TestApplyOutcomeFields(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lease := now.Add(time.Minute)
	prev := "old"
	rec := &domain.Record{ID: "m1", Delivery: &domain.Delivery{
		State:           domain.StateProcessing,
		Attempts:        2,
		Error:           &prev,
		LeaseExpireTime: &lease,
	}}

	err := Apply(rec, Patch{
		State:             Set(domain.StateSuccess),
		IncrementAttempts: 1,
		EndTime:           Set(now),
		Error:             Null[string](),
		LeaseExpireTime:   Null[time.Time](),
		MessageID:         Set("mb-1"),
	})
	require.NoError(t, err)

	d := rec.Delivery
	assert.Equal(t, domain.StateSuccess, d.State)
	assert.Equal(t, 3, d.Attempts)
	assert.Nil(t, d.Error)
	assert.Nil(t, d.LeaseExpireTime)
	require.NotNil(t, d.EndTime)
	assert.True(t, d.EndTime.Equal(now))
	assert.Equal(t, "mb-1", d.MessageID)
}

func TestFieldValueIsCopied(t *testing.T) {
	f := Set("a")
	v := f.Value()
	*v = "b"
	assert.Equal(t, "a", *f.Value())
	assert.False(t, Field[string]{}.IsSet())
	assert.True(t, Null[string]().IsSet())
	assert.Nil(t, Null[string]().Value())
}

func TestPatchPaths(t *testing.T) {
	p := Patch{
		State:           Set(domain.StateProcessing),
		LeaseExpireTime: Set(time.Now()),
	}
	assert.Equal(t, []string{"delivery.state", "delivery.leaseExpireTime"}, p.Paths())
	assert.Empty(t, Patch{}.Paths())
}
