// Package gateway defines the outbound SMS contract the delivery worker depends on.
package gateway

import (
	"context"
	"fmt"
)

type Request struct {
	Originator string
	Recipients []string
	Body       string
}

type Response struct {
	ID string
}

// Gateway sends one message. Any non-nil error is a failed attempt.
type Gateway interface {
	Send(ctx context.Context, req Request) (Response, error)
}

// Error is a rejection reported by the provider.
type Error struct {
	Provider    string
	HTTPStatus  int
	Description string
}

func (e *Error) Error() string {
	if e.Description != "" {
		return e.Description
	}
	return fmt.Sprintf("%s send failed with status %d", e.Provider, e.HTTPStatus)
}

// Func adapts a plain function to Gateway.
type Func func(ctx context.Context, req Request) (Response, error)

func (f Func) Send(ctx context.Context, req Request) (Response, error) { return f(ctx, req) }
