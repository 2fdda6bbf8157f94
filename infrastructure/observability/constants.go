package observability

// Metric name prefixes
const (
	MetricPrefix = "lottoclaim"
)

// Metric names
const (
	// Reconciliation metrics
	ReconciliationsTotal       = MetricPrefix + "_reconciliations_total"
	ReconciliationDuration     = MetricPrefix + "_reconciliation_duration_seconds"
	ClaimableRounds            = MetricPrefix + "_claimable_rounds"
	ClaimableAmountTokens      = MetricPrefix + "_claimable_amount_tokens"
	StatusQueryFailuresTotal   = MetricPrefix + "_status_query_failures_total"
	ReconciliationWarningsLast = MetricPrefix + "_reconciliation_warnings"

	// Claim metrics
	ClaimBatchesTotal = MetricPrefix + "_claim_batches_total"
	ClaimRoundsTotal  = MetricPrefix + "_claim_rounds_total"

	// NATS metrics
	NATSMessagesPublishedTotal = MetricPrefix + "_nats_messages_published_total"

	// Database metrics
	DatabaseQueriesTotal  = MetricPrefix + "_database_queries_total"
	DatabaseQueryDuration = MetricPrefix + "_database_query_duration_seconds"
)

// Label keys
const (
	LabelResult    = "result"
	LabelState     = "state"
	LabelReason    = "reason"
	LabelEventType = "event_type"

	// Database labels
	LabelRepository = "repository"
	LabelMethod     = "method"
)

// Reconciliation results
const (
	ResultSuccess = "success"
	ResultError   = "error"
)
