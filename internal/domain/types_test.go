package domain

import (
	"errors"
	"testing"
	"time"
)

func TestStateTerminal(t *testing.T) {
	cases := []struct {
		state    State
		terminal bool
	}{
		{StatePending, false},
		{StateProcessing, false},
		{StateRetry, false},
		{StateSuccess, true},
		{StateError, true},
		{State("DELIVERED"), false},
	}
	for _, c := range cases {
		if got := c.state.Terminal(); got != c.terminal {
			t.Fatalf("%q Terminal()=%v, want %v", c.state, got, c.terminal)
		}
	}
}

func TestContentText(t *testing.T) {
	if _, ok := Content(nil).Text(); ok {
		t.Fatalf("nil content must not have text")
	}
	if _, ok := (Content{"text": ""}).Text(); ok {
		t.Fatalf("empty text must not count")
	}
	if _, ok := (Content{"text": 42}).Text(); ok {
		t.Fatalf("non-string text must not count")
	}
	got, ok := Content{"text": "hi"}.Text()
	if !ok || got != "hi" {
		t.Fatalf("expected hi, got %q (%v)", got, ok)
	}
}

func TestValidateRecipientFirst(t *testing.T) {
	r := &Record{To: "", Content: nil}
	if err := r.Validate(); !errors.Is(err, ErrRecipientMissing) {
		t.Fatalf("expected recipient error, got %v", err)
	}
	r.To = "   "
	if err := r.Validate(); !errors.Is(err, ErrRecipientMissing) {
		t.Fatalf("whitespace recipient must count as missing, got %v", err)
	}
	r.To = "+1555"
	if err := r.Validate(); !errors.Is(err, ErrContentMissing) {
		t.Fatalf("expected content error, got %v", err)
	}
	r.Content = Content{"text": "hi"}
	if err := r.Validate(); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	lease := time.Now()
	msg := "boom"
	r := &Record{
		ID:      "m1",
		Content: Content{"text": "hi"},
		Delivery: &Delivery{
			State:           StateProcessing,
			LeaseExpireTime: &lease,
			Error:           &msg,
		},
	}
	c := r.Clone()
	c.Content["text"] = "changed"
	c.Delivery.State = StateError
	*c.Delivery.Error = "other"

	if r.Content["text"] != "hi" || r.Delivery.State != StateProcessing || *r.Delivery.Error != "boom" {
		t.Fatalf("clone aliased the original: %+v", r)
	}
}

func TestCloneCopiesNestedContent(t *testing.T) {
	r := &Record{
		ID: "m1",
		Content: Content{
			"text": "hi",
			"meta": map[string]any{"campaign": "spring"},
			"tags": []any{"a", map[string]any{"k": "v"}},
		},
	}
	c := r.Clone()
	c.Content["meta"].(map[string]any)["campaign"] = "autumn"
	c.Content["tags"].([]any)[0] = "changed"
	c.Content["tags"].([]any)[1].(map[string]any)["k"] = "changed"

	if r.Content["meta"].(map[string]any)["campaign"] != "spring" {
		t.Fatalf("nested map aliased: %+v", r.Content)
	}
	tags := r.Content["tags"].([]any)
	if tags[0] != "a" || tags[1].(map[string]any)["k"] != "v" {
		t.Fatalf("nested slice aliased: %+v", tags)
	}
	if (&Record{}).Clone().Content != nil {
		t.Fatalf("nil content must stay nil")
	}
}
