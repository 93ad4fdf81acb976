// Package bootstrap builds the process-wide clients once and hands them out
// to whoever needs them.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"smsrelay/internal/awsutil"
	"smsrelay/internal/changefeed"
	"smsrelay/internal/config"
	"smsrelay/internal/gateway"
	"smsrelay/internal/providers/messagebird"
	"smsrelay/internal/providers/twilio"
	sqsqueue "smsrelay/internal/queue/sqs"
	"smsrelay/internal/store"
	"smsrelay/internal/store/mem"
	"smsrelay/internal/store/pg"
	"smsrelay/internal/store/redisdoc"
)

// Handles are the shared, long-lived clients of one process.
type Handles struct {
	// Store publishes a change event after every successful write.
	Store store.Store
	// Gateway is nil unless the initializer was given gateway settings.
	Gateway gateway.Gateway
	// SQS and Consumer are nil when no queue URL is configured.
	SQS      *sqs.Client
	Consumer *sqsqueue.Consumer
	Ready    []func(ctx context.Context) error

	closers []func()
}

func (h *Handles) Close() {
	for i := len(h.closers) - 1; i >= 0; i-- {
		h.closers[i]()
	}
}

// Initializer constructs Handles on first use; later calls return the same
// handles or the same error.
type Initializer struct {
	Store   config.Store
	Queue   config.Queue
	Gateway *config.Gateway
	// Publisher overrides the SQS producer, e.g. an in-process changefeed.Chan.
	Publisher changefeed.Publisher

	once sync.Once
	h    *Handles
	err  error
}

func (i *Initializer) Handles(ctx context.Context) (*Handles, error) {
	i.once.Do(func() {
		i.h, i.err = i.build(ctx)
	})
	return i.h, i.err
}

func (i *Initializer) build(ctx context.Context) (*Handles, error) {
	h := &Handles{}

	base, err := openStore(ctx, i.Store, h)
	if err != nil {
		h.Close()
		return nil, err
	}

	pub := i.Publisher
	if i.Queue.SQSQueueURL != "" {
		client, err := awsutil.NewSQSClient(ctx, i.Queue.AWSRegion, i.Queue.LocalstackEndpoint)
		if err != nil {
			h.Close()
			return nil, fmt.Errorf("sqs client: %w", err)
		}
		if pub == nil {
			pub = &sqsqueue.Producer{SQS: client, QueueURL: i.Queue.SQSQueueURL}
		}
		h.SQS = client
		h.Consumer = &sqsqueue.Consumer{SQS: client, QueueURL: i.Queue.SQSQueueURL}
	}
	if pub == nil {
		slog.Warn("no change event publisher configured, writes will not trigger deliveries")
	}
	h.Store = &changefeed.Feed{Store: base, Publisher: pub}

	if i.Gateway != nil {
		gw, err := NewGateway(*i.Gateway, nil)
		if err != nil {
			h.Close()
			return nil, err
		}
		h.Gateway = gw
	}
	return h, nil
}

func openStore(ctx context.Context, cfg config.Store, h *Handles) (store.Store, error) {
	switch cfg.StoreBackend {
	case "memory":
		return mem.New(), nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		h.closers = append(h.closers, func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		s := redisdoc.New(rdb)
		h.Ready = append(h.Ready, s.Ping)
		return s, nil

	case "", "postgres":
		if cfg.DBDSN == "" {
			return nil, errors.New("DB_DSN is required for the postgres store")
		}
		pool, err := pg.NewPool(ctx, cfg.DBDSN, pg.PoolOptions{
			MaxConns:          cfg.DBPoolMaxConns,
			MinConns:          cfg.DBPoolMinConns,
			MaxConnLifetime:   cfg.DBPoolMaxConnLifetime,
			MaxConnIdleTime:   cfg.DBPoolMaxConnIdleTime,
			HealthCheckPeriod: cfg.DBPoolHealthCheckPeriod,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres pool: %w", err)
		}
		h.closers = append(h.closers, pool.Close)
		s := pg.New(pool)
		h.Ready = append(h.Ready, s.Ping)
		return s, nil
	}
	return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
}

// NewGateway builds the configured provider behind a rate limiter, a circuit
// breaker and a per-call timeout. A nil httpClient gets one bounded by the
// gateway timeout.
func NewGateway(cfg config.Gateway, httpClient *http.Client) (gateway.Gateway, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.GatewayTimeout}
	}

	var next gateway.Gateway
	switch cfg.GatewayProvider {
	case "", messagebird.ProviderName:
		if cfg.MessageBirdAccessKey == "" {
			return nil, errors.New("MESSAGEBIRD_ACCESS_KEY is required")
		}
		next = &messagebird.Client{
			AccessKey: cfg.MessageBirdAccessKey,
			HTTP:      httpClient,
			BaseURL:   cfg.MessageBirdBaseURL,
		}
	case twilio.ProviderName:
		if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" {
			return nil, errors.New("TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN are required")
		}
		next = &twilio.Client{
			AccountSID:          cfg.TwilioAccountSID,
			AuthToken:           cfg.TwilioAuthToken,
			HTTP:                httpClient,
			MessagingServiceSID: cfg.TwilioMessagingServiceSID,
			FromNumber:          cfg.TwilioFromNumber,
			BaseURL:             cfg.TwilioBaseURL,
		}
	default:
		return nil, fmt.Errorf("unknown GATEWAY_PROVIDER %q", cfg.GatewayProvider)
	}

	provider := cfg.GatewayProvider
	if provider == "" {
		provider = messagebird.ProviderName
	}
	g := &gateway.Guarded{
		Next:     next,
		Provider: provider,
		Breaker:  gateway.NewBreaker(provider),
		Timeout:  cfg.GatewayTimeout,
	}
	if cfg.GatewayRPS > 0 {
		g.Limiter = rate.NewLimiter(rate.Limit(cfg.GatewayRPS), max(cfg.GatewayBurst, 1))
	}
	return g, nil
}
