package store

import (
	"context"
	"errors"
	"time"

	"smsrelay/internal/domain"
	"smsrelay/internal/lease"
)

var (
	ErrNotFound = errors.New("message not found")
	ErrExists   = errors.New("message already exists")
	// ErrConflict means a patch precondition did not hold inside the transaction.
	ErrConflict = errors.New("message state changed concurrently")
)

// Store is a document store with atomic single-record read-modify-write.
type Store interface {
	Create(ctx context.Context, rec *domain.Record) (Change, error)
	Get(ctx context.Context, id string) (*domain.Record, error)
	Update(ctx context.Context, id string, p Patch) (Change, error)
	Delete(ctx context.Context, id string) (Change, error)
}

// Change carries the snapshots around a committed write. Before is nil for
// creates and After is nil for deletes.
type Change struct {
	ID     string
	Before *domain.Record
	After  *domain.Record
}

// Field is a patch value that is either untouched, set, or set to null.
type Field[T any] struct {
	set bool
	v   *T
}

func Set[T any](v T) Field[T] { return Field[T]{set: true, v: &v} }

func Null[T any]() Field[T] { return Field[T]{set: true} }

func (f Field[T]) IsSet() bool { return f.set }

// Value returns the new value, nil when the field is being cleared.
func (f Field[T]) Value() *T {
	if f.v == nil {
		return nil
	}
	v := *f.v
	return &v
}

// Patch is a partial update of the delivery sub-document.
type Patch struct {
	// Require lists the states delivery.state must be in for the patch to apply.
	Require []domain.State
	// RequireUninitialized demands that the record has no delivery yet.
	RequireUninitialized bool
	// RequireLeaseElapsedAt, when non-zero, demands that the stored lease has
	// elapsed at that instant.
	RequireLeaseElapsedAt time.Time

	InitDelivery      *domain.Delivery
	State             Field[domain.State]
	LeaseExpireTime   Field[time.Time]
	Error             Field[string]
	EndTime           Field[time.Time]
	MessageID         Field[string]
	IncrementAttempts int
}

// Paths lists the dotted field paths the patch writes.
func (p Patch) Paths() []string {
	var out []string
	if p.InitDelivery != nil {
		out = append(out, "delivery")
	}
	if p.State.IsSet() {
		out = append(out, "delivery.state")
	}
	if p.IncrementAttempts != 0 {
		out = append(out, "delivery.attempts")
	}
	if p.EndTime.IsSet() {
		out = append(out, "delivery.endTime")
	}
	if p.Error.IsSet() {
		out = append(out, "delivery.error")
	}
	if p.LeaseExpireTime.IsSet() {
		out = append(out, "delivery.leaseExpireTime")
	}
	if p.MessageID.IsSet() {
		out = append(out, "delivery.messageId")
	}
	return out
}

// Apply checks the preconditions of p against rec and mutates rec in place.
// Backends call it between their locked read and their write.
func Apply(rec *domain.Record, p Patch) error {
	if p.RequireUninitialized && rec.Delivery != nil {
		return ErrConflict
	}
	if len(p.Require) > 0 {
		if rec.Delivery == nil || !stateIn(rec.Delivery.State, p.Require) {
			return ErrConflict
		}
	}
	if !p.RequireLeaseElapsedAt.IsZero() {
		if rec.Delivery == nil || !lease.Elapsed(rec.Delivery.LeaseExpireTime, p.RequireLeaseElapsedAt) {
			return ErrConflict
		}
	}

	if p.InitDelivery != nil {
		d := *p.InitDelivery
		rec.Delivery = &d
	}
	if rec.Delivery == nil {
		if len(p.Paths()) == 0 {
			return nil
		}
		rec.Delivery = &domain.Delivery{}
	}

	d := rec.Delivery
	if p.State.IsSet() {
		if v := p.State.Value(); v != nil {
			d.State = *v
		} else {
			d.State = ""
		}
	}
	d.Attempts += p.IncrementAttempts
	if p.EndTime.IsSet() {
		d.EndTime = p.EndTime.Value()
	}
	if p.Error.IsSet() {
		d.Error = p.Error.Value()
	}
	if p.LeaseExpireTime.IsSet() {
		d.LeaseExpireTime = p.LeaseExpireTime.Value()
	}
	if p.MessageID.IsSet() {
		if v := p.MessageID.Value(); v != nil {
			d.MessageID = *v
		} else {
			d.MessageID = ""
		}
	}
	return nil
}

func stateIn(s domain.State, set []domain.State) bool {
	for _, want := range set {
		if s == want {
			return true
		}
	}
	return false
}
