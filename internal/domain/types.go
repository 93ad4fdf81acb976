package domain

import (
	"errors"
	"strings"
	"time"
)

type State string

const (
	StatePending    State = "PENDING"
	StateProcessing State = "PROCESSING"
	StateRetry      State = "RETRY"
	StateSuccess    State = "SUCCESS"
	StateError      State = "ERROR"
)

// Terminal states are never written again by the worker.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateError
}

// Content is the structured message payload. Only "text" is interpreted.
type Content map[string]any

// Text returns content.text when it is a non-empty string.
func (c Content) Text() (string, bool) {
	if c == nil {
		return "", false
	}
	v, ok := c["text"].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Clone copies c including nested JSON objects and arrays.
func (c Content) Clone() Content {
	if c == nil {
		return nil
	}
	out := make(Content, len(c))
	for k, v := range c {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case Content:
		return t.Clone()
	case []any:
		l := make([]any, len(t))
		for i, e := range t {
			l[i] = cloneValue(e)
		}
		return l
	}
	// strings, numbers, bools and nil decoded from JSON are immutable
	return v
}

type Delivery struct {
	State           State      `json:"state"`
	Attempts        int        `json:"attempts"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	Error           *string    `json:"error"`
	LeaseExpireTime *time.Time `json:"leaseExpireTime"`
	MessageID       string     `json:"messageId,omitempty"`
}

type Record struct {
	ID        string    `json:"id"`
	To        string    `json:"to"`
	Content   Content   `json:"content,omitempty"`
	ChannelID string    `json:"channelId,omitempty"`
	Delivery  *Delivery `json:"delivery,omitempty"`
}

// Clone returns a deep copy so snapshots handed out by stores cannot alias each other.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Content = r.Content.Clone()
	if r.Delivery != nil {
		d := *r.Delivery
		if d.EndTime != nil {
			t := *d.EndTime
			d.EndTime = &t
		}
		if d.Error != nil {
			e := *d.Error
			d.Error = &e
		}
		if d.LeaseExpireTime != nil {
			t := *d.LeaseExpireTime
			d.LeaseExpireTime = &t
		}
		out.Delivery = &d
	}
	return &out
}

var (
	ErrRecipientMissing = errors.New("Failed to deliver message. Recipient of the message should be filled.")
	ErrContentMissing   = errors.New("Failed to deliver message. Message content is empty.")
)

const LeaseExpiredMessage = "Message processing lease expired."

// Validate checks the fields a delivery attempt needs, recipient first.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.To) == "" {
		return ErrRecipientMissing
	}
	if _, ok := r.Content.Text(); !ok {
		return ErrContentMissing
	}
	return nil
}

type CreateMessageRequest struct {
	To        string  `json:"to"`
	Content   Content `json:"content"`
	ChannelID string  `json:"channelId,omitempty"`
}

type CreateResponse struct {
	MessageID string `json:"messageId"`
}
