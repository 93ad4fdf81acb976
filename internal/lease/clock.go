// Package lease holds the time source and lease arithmetic used by the delivery worker.
package lease

import "time"

// Duration is how long a PROCESSING claim stays valid.
const Duration = 60 * time.Second

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// System uses the wall clock in UTC.
type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

// Fixed always returns T.
type Fixed struct{ T time.Time }

func (f Fixed) Now() time.Time { return f.T }

// ExpiryFrom returns the lease expiry for a claim taken at now.
func ExpiryFrom(now time.Time) time.Time {
	return now.Add(Duration)
}

// Elapsed reports whether a lease expiring at expiry is no longer valid at now.
// A missing expiry counts as elapsed.
func Elapsed(expiry *time.Time, now time.Time) bool {
	if expiry == nil {
		return true
	}
	return !expiry.After(now)
}
