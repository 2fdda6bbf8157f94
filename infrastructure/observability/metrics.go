package observability

import (
	"fmt"
	"math/big"
	"net/http"
	"time"

	"lottoclaim/domain/entities"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsProvider owns the Prometheus collectors of the claim service.
// A nil *MetricsProvider is valid and records nothing.
type MetricsProvider struct {
	registry *prometheus.Registry

	reconciliationsCounter    *prometheus.CounterVec
	reconciliationDuration    prometheus.Histogram
	claimableRoundsGauge      prometheus.Gauge
	claimableAmountGauge      prometheus.Gauge
	statusQueryFailures       prometheus.Counter
	reconciliationWarnings    prometheus.Gauge
	claimBatchesCounter       *prometheus.CounterVec
	claimRoundsCounter        *prometheus.CounterVec
	natsMessagesPublished     *prometheus.CounterVec
	databaseQueriesCounter    *prometheus.CounterVec
	databaseQueryDurationHist *prometheus.HistogramVec
}

// NewMetricsProvider creates and registers all collectors on a fresh registry
func NewMetricsProvider() (*MetricsProvider, error) {
	mp := &MetricsProvider{
		registry: prometheus.NewRegistry(),
		reconciliationsCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: ReconciliationsTotal, Help: "Reconciliation passes by result"},
			[]string{LabelResult},
		),
		reconciliationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    ReconciliationDuration,
			Help:    "Duration of a full reconciliation pass",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		claimableRoundsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: ClaimableRounds,
			Help: "Rounds owed and not yet claimed at the last reconciliation",
		}),
		claimableAmountGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: ClaimableAmountTokens,
			Help: "Total claimable amount in whole tokens at the last reconciliation",
		}),
		statusQueryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: StatusQueryFailuresTotal,
			Help: "Live claim status queries that failed and fell back to claimable",
		}),
		reconciliationWarnings: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: ReconciliationWarningsLast,
			Help: "Warnings raised by the last reconciliation",
		}),
		claimBatchesCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: ClaimBatchesTotal, Help: "Claim batches by final state and failure reason"},
			[]string{LabelState, LabelReason},
		),
		claimRoundsCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: ClaimRoundsTotal, Help: "Rounds in claim batches by final state"},
			[]string{LabelState},
		),
		natsMessagesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: NATSMessagesPublishedTotal, Help: "Events published to NATS"},
			[]string{LabelEventType},
		),
		databaseQueriesCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: DatabaseQueriesTotal, Help: "Total number of database queries"},
			[]string{LabelRepository, LabelMethod},
		),
		databaseQueryDurationHist: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    DatabaseQueryDuration,
				Help:    "Duration of database queries",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{LabelRepository, LabelMethod},
		),
	}

	toRegister := []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		mp.reconciliationsCounter,
		mp.reconciliationDuration,
		mp.claimableRoundsGauge,
		mp.claimableAmountGauge,
		mp.statusQueryFailures,
		mp.reconciliationWarnings,
		mp.claimBatchesCounter,
		mp.claimRoundsCounter,
		mp.natsMessagesPublished,
		mp.databaseQueriesCounter,
		mp.databaseQueryDurationHist,
	}
	for _, c := range toRegister {
		if err := mp.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return mp, nil
}

// Handler serves the registry in the Prometheus exposition format
func (mp *MetricsProvider) Handler() http.Handler {
	if mp == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(mp.registry, promhttp.HandlerOpts{Registry: mp.registry})
}

// RecordReconciliation records a finished pass. snap is nil when the pass failed.
func (mp *MetricsProvider) RecordReconciliation(snap *entities.ReconciliationSnapshot, duration time.Duration) {
	if mp == nil {
		return
	}
	mp.reconciliationDuration.Observe(duration.Seconds())
	if snap == nil {
		mp.reconciliationsCounter.WithLabelValues(ResultError).Inc()
		return
	}
	mp.reconciliationsCounter.WithLabelValues(ResultSuccess).Inc()

	failures := 0
	for _, rec := range snap.History {
		if rec.QueryFailed {
			failures++
		}
	}
	mp.statusQueryFailures.Add(float64(failures))
	mp.claimableRoundsGauge.Set(float64(len(snap.Claimable)))
	mp.claimableAmountGauge.Set(tokensFloat(snap.TotalClaimable))
	mp.reconciliationWarnings.Set(float64(len(snap.Warnings)))
}

// RecordClaimReport counts every batch of a claim run by its final state
func (mp *MetricsProvider) RecordClaimReport(report *entities.ClaimReport) {
	if mp == nil || report == nil {
		return
	}
	for _, b := range report.Batches {
		state := string(b.State)
		mp.claimBatchesCounter.WithLabelValues(state, string(b.Reason)).Inc()
		mp.claimRoundsCounter.WithLabelValues(state).Add(float64(len(b.Selections)))
	}
}

func (mp *MetricsProvider) RecordNATSMessagePublished(eventType string) {
	if mp == nil {
		return
	}
	mp.natsMessagesPublished.WithLabelValues(eventType).Inc()
}

// RecordDatabaseQuery records a database query with duration
func (mp *MetricsProvider) RecordDatabaseQuery(repository, method string, duration time.Duration) {
	if mp == nil {
		return
	}
	mp.databaseQueriesCounter.WithLabelValues(repository, method).Inc()
	mp.databaseQueryDurationHist.WithLabelValues(repository, method).Observe(duration.Seconds())
}

// MeasureDatabaseQuery returns a function to measure database query duration
// Usage:
//
//	defer mp.MeasureDatabaseQuery("claim_receipt", "GetAll")()
func (mp *MetricsProvider) MeasureDatabaseQuery(repository, method string) func() {
	start := time.Now()
	return func() {
		mp.RecordDatabaseQuery(repository, method, time.Since(start))
	}
}

// tokensFloat converts base units to whole tokens for gauges
func tokensFloat(amount *big.Int) float64 {
	if amount == nil {
		return 0
	}
	f, _ := new(big.Rat).SetFrac(amount, new(big.Int).Exp(big.NewInt(10), big.NewInt(entities.TokenDecimals), nil)).Float64()
	return f
}
