package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "smsrelay_api_requests_total", Help: "API requests"},
		[]string{"endpoint", "status"},
	)
	ChangeEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "smsrelay_change_events_published_total", Help: "Change events published to the trigger queue"},
		[]string{"result"},
	)
	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "smsrelay_transitions_total", Help: "Actions taken by the delivery state machine"},
		[]string{"action"},
	)
	HandleErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "smsrelay_handle_errors_total", Help: "Swallowed internal errors while handling a change"},
		[]string{"stage"},
	)
	GatewaySend = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "smsrelay_gateway_send_total", Help: "Gateway send outcomes"},
		[]string{"provider", "result"},
	)
	GatewayLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "smsrelay_gateway_send_latency_seconds", Help: "Gateway send latency"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(APIRequests, ChangeEvents, Transitions, HandleErrors, GatewaySend, GatewayLatency)
}
