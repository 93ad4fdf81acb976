package util

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// NormalizePhone strips surrounding and inner spaces; anything else is left
// for the gateway to judge.
func NormalizePhone(p string) string {
	return strings.ReplaceAll(strings.TrimSpace(p), " ", "")
}

// NewMessageID returns "msg_" plus a ULID; ids sort by creation time and stay
// monotonic within the same millisecond.
func NewMessageID() string {
	return "msg_" + ulid.Make().String()
}
