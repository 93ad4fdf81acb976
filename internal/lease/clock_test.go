package lease

import (
	"testing"
	"time"
)

func TestExpiryFrom(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if got := ExpiryFrom(now); !got.Equal(now.Add(60 * time.Second)) {
		t.Fatalf("unexpected expiry %v", got)
	}
}

func TestElapsed(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	past := now.Add(-5 * time.Minute)
	future := now.Add(time.Second)

	if !Elapsed(&past, now) {
		t.Fatalf("past expiry must be elapsed")
	}
	if !Elapsed(&now, now) {
		t.Fatalf("expiry equal to now must be elapsed")
	}
	if Elapsed(&future, now) {
		t.Fatalf("future expiry must not be elapsed")
	}
	if !Elapsed(nil, now) {
		t.Fatalf("missing expiry must be elapsed")
	}
}

func TestSystemClockIsUTC(t *testing.T) {
	if loc := (System{}).Now().Location(); loc != time.UTC {
		t.Fatalf("expected UTC, got %v", loc)
	}
}
