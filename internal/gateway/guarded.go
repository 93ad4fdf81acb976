package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"smsrelay/internal/observability"
)

const limiterWait = 2 * time.Second

// Guarded protects a provider with a local rate limit, a circuit breaker and a
// per-call timeout. It never retries; a refused call is returned as an error.
type Guarded struct {
	Next     Gateway
	Provider string
	Limiter  *rate.Limiter
	Breaker  *gobreaker.CircuitBreaker
	Timeout  time.Duration
}

// NewBreaker returns the breaker settings used for every provider.
func NewBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Timeout:     20 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 10 },
	})
}

func (g *Guarded) Send(ctx context.Context, req Request) (Response, error) {
	if g.Limiter != nil {
		waitCtx, cancel := context.WithTimeout(ctx, limiterWait)
		err := g.Limiter.Wait(waitCtx)
		cancel()
		if err != nil {
			observability.GatewaySend.WithLabelValues(g.Provider, "rate_limited").Inc()
			return Response{}, fmt.Errorf("%s rate limit: %w", g.Provider, err)
		}
	}

	call := func() (any, error) {
		callCtx := ctx
		if g.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.Timeout)
			defer cancel()
		}
		return g.Next.Send(callCtx, req)
	}

	start := time.Now()
	var (
		res any
		err error
	)
	if g.Breaker == nil {
		res, err = call()
	} else {
		res, err = g.Breaker.Execute(call)
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		observability.GatewaySend.WithLabelValues(g.Provider, "cb_open").Inc()
		return Response{}, fmt.Errorf("%s unavailable: %w", g.Provider, err)
	case err != nil:
		observability.GatewaySend.WithLabelValues(g.Provider, "error").Inc()
		return Response{}, err
	}

	observability.GatewaySend.WithLabelValues(g.Provider, "ok").Inc()
	observability.GatewayLatency.Observe(time.Since(start).Seconds())
	resp, _ := res.(Response)
	return resp, nil
}
