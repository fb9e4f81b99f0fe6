package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_http_requests_total",
			Help: "Total number of HTTP requests processed by the gateway.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_client_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_client_active_sessions",
			Help: "Number of live realtime sessions.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_ws_events_total",
			Help: "Total number of inbound realtime events by type.",
		},
		[]string{"event"},
	)
	wsReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_client_ws_reconnect_attempts_total",
			Help: "Total number of scheduled reconnect attempts.",
		},
	)
	wsDroppedSendsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_client_ws_dropped_sends_total",
			Help: "Total number of commands dropped because the connection was not open.",
		},
	)
	wsMalformedFramesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_client_ws_malformed_frames_total",
			Help: "Total number of inbound frames discarded as malformed.",
		},
	)
	typingAutoStopsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_client_typing_auto_stops_total",
			Help: "Total number of typing indicators auto-expired locally.",
		},
	)
	historyFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_client_history_fetch_duration_seconds",
			Help:    "History fetch latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_client_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		sessionsActive,
		wsEventsTotal,
		wsReconnectsTotal,
		wsDroppedSendsTotal,
		wsMalformedFramesTotal,
		typingAutoStopsTotal,
		historyFetchDuration,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncSessionsActive() {
	sessionsActive.Inc()
}

func DecSessionsActive() {
	sessionsActive.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncReconnectAttempt() {
	wsReconnectsTotal.Inc()
}

func IncDroppedSend() {
	wsDroppedSendsTotal.Inc()
}

func IncMalformedFrame() {
	wsMalformedFramesTotal.Inc()
}

func IncTypingAutoStop() {
	typingAutoStopsTotal.Inc()
}

func ObserveHistoryFetch(d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	historyFetchDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
