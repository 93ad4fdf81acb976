package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Common struct {
	Port      string `envconfig:"PORT" default:"8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
}

// Store selects and configures the document store backend.
type Store struct {
	StoreBackend string `envconfig:"STORE_BACKEND" default:"postgres"` // postgres|redis|memory

	DBDSN                   string `envconfig:"DB_DSN"`
	DBPoolMaxConns          int32  `envconfig:"DB_POOL_MAX_CONNS"`
	DBPoolMinConns          int32  `envconfig:"DB_POOL_MIN_CONNS"`
	DBPoolMaxConnLifetime   string `envconfig:"DB_POOL_MAX_CONN_LIFETIME"`
	DBPoolMaxConnIdleTime   string `envconfig:"DB_POOL_MAX_CONN_IDLE_TIME"`
	DBPoolHealthCheckPeriod string `envconfig:"DB_POOL_HEALTH_CHECK_PERIOD"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// Queue is the change event transport. An empty SQSQueueURL disables publishing.
type Queue struct {
	AWSRegion          string `envconfig:"AWS_REGION" default:"us-east-1"`
	SQSQueueURL        string `envconfig:"SQS_QUEUE_URL"`
	LocalstackEndpoint string `envconfig:"LOCALSTACK_ENDPOINT"`
}

type Gateway struct {
	GatewayProvider   string        `envconfig:"GATEWAY_PROVIDER" default:"messagebird"` // messagebird|twilio
	GatewayOriginator string        `envconfig:"GATEWAY_ORIGINATOR" default:"InfoSkills Technology"`
	GatewayTimeout    time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"10s"`
	GatewayRPS        float64       `envconfig:"GATEWAY_RPS" default:"5"`
	GatewayBurst      int           `envconfig:"GATEWAY_BURST" default:"10"`

	MessageBirdAccessKey string `envconfig:"MESSAGEBIRD_ACCESS_KEY"`
	MessageBirdBaseURL   string `envconfig:"MESSAGEBIRD_BASE_URL" default:"https://rest.messagebird.com"`

	TwilioAccountSID          string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken           string `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioMessagingServiceSID string `envconfig:"TWILIO_MESSAGING_SERVICE_SID"`
	TwilioFromNumber          string `envconfig:"TWILIO_FROM_NUMBER"`
	TwilioBaseURL             string `envconfig:"TWILIO_BASE_URL" default:"https://api.twilio.com"`
}

type APIConfig struct {
	Common
	Store
	Queue
}

type WorkerConfig struct {
	Common
	Store
	Queue
	Gateway

	SQSWaitTime   int32 `envconfig:"SQS_WAIT_TIME" default:"20"`
	SQSMaxMsgs    int32 `envconfig:"SQS_MAX_MSGS" default:"10"`
	SQSVizTimeout int32 `envconfig:"SQS_VISIBILITY_TIMEOUT" default:"60"`

	WorkerConcurrency int `envconfig:"WORKER_CONCURRENCY" default:"20"`
}

type MockGatewayConfig struct {
	Port        string        `envconfig:"PORT" default:"8090"`
	LogFormat   string        `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel    string        `envconfig:"LOG_LEVEL" default:"info"`
	FailureRate float64       `envconfig:"MOCK_FAILURE_RATE" default:"0"`
	Latency     time.Duration `envconfig:"MOCK_LATENCY" default:"0s"`
	AccessKey   string        `envconfig:"MESSAGEBIRD_ACCESS_KEY"`
}

func LoadAPI() APIConfig {
	var cfg APIConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadWorker() WorkerConfig {
	var cfg WorkerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadMockGateway() MockGatewayConfig {
	var cfg MockGatewayConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}
