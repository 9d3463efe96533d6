package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ModerationEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_events_total",
			Help: "Total number of inbound chat events processed by the engine (count)",
		},
		[]string{"type", "status"},
	)

	ModerationActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_actions_total",
			Help: "Total number of moderation actions emitted (count)",
		},
		[]string{"kind", "rule"},
	)

	ModerationEvaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moderation_evaluation_duration_ms",
			Help:    "Rule evaluation duration per inbound event in milliseconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
		},
		[]string{"type"},
	)

	RuleViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_rule_violations_total",
			Help: "Total number of rule violations detected (count)",
		},
		[]string{"rule"},
	)

	WarningsIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "moderation_warnings_issued_total",
			Help: "Total number of warnings issued (count)",
		},
	)

	EscalationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_escalations_total",
			Help: "Total number of escalation tier crossings (count)",
		},
		[]string{"tier"},
	)

	ActiveRestrictions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "moderation_active_restrictions",
			Help: "Number of locally tracked active restrictions (count)",
		},
	)

	ActiveRateWindows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "moderation_active_rate_windows",
			Help: "Number of live sliding windows in the rate tracker (count)",
		},
	)

	ActionDeliveryFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_action_delivery_failures_total",
			Help: "Total number of emitted actions the transport failed to deliver (count)",
		},
		[]string{"kind"},
	)

	ConfigSnapshotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_config_snapshots_total",
			Help: "Total number of group config snapshot reads (count)",
		},
		[]string{"source"}, // "cache", "store", "missing"
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"topic"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"topic"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"service", "database", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"service", "database", "operation"},
	)
)

func RegisterModerationMetrics() {
	prometheus.MustRegister(ModerationEventsTotal)
	prometheus.MustRegister(ModerationActionsTotal)
	prometheus.MustRegister(ModerationEvaluationDuration)
	prometheus.MustRegister(RuleViolationsTotal)
	prometheus.MustRegister(WarningsIssuedTotal)
	prometheus.MustRegister(EscalationsTotal)
	prometheus.MustRegister(ActiveRestrictions)
	prometheus.MustRegister(ActiveRateWindows)
	prometheus.MustRegister(ActionDeliveryFailuresTotal)
	prometheus.MustRegister(ConfigSnapshotsTotal)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(DLQMessagesTotal)
	prometheus.MustRegister(KafkaMessagesReadTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaWriteDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterAPIMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
	prometheus.MustRegister(DatabaseQueriesTotal)
	prometheus.MustRegister(DatabaseQueryDuration)
}

func ObserveEvaluationDuration(eventType string, duration time.Duration) {
	ModerationEvaluationDuration.WithLabelValues(eventType).Observe(float64(duration.Microseconds()) / 1000.0)
}

func IncActionEmitted(kind, rule string) {
	ModerationActionsTotal.WithLabelValues(kind, rule).Inc()
}

func IncRuleViolation(rule string) {
	RuleViolationsTotal.WithLabelValues(rule).Inc()
}

func SetActiveRestrictions(count int) {
	ActiveRestrictions.Set(float64(count))
}

func SetActiveRateWindows(count int) {
	ActiveRateWindows.Set(float64(count))
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(topic).Inc()
}

func ObserveKafkaWriteDuration(topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(topic).Observe(float64(duration.Milliseconds()))
}

func IncDatabaseQuery(service, database, operation, status string) {
	DatabaseQueriesTotal.WithLabelValues(service, database, operation, status).Inc()
}

func ObserveDatabaseQueryDuration(service, database, operation string, duration time.Duration) {
	DatabaseQueryDuration.WithLabelValues(service, database, operation).Observe(float64(duration.Milliseconds()))
}
