package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	styleforge = "styleforge"
	poller     = "poller"

	// Poller metrics
	fetchesTotal      = "fetches_total"
	pollOutcomesTotal = "outcomes_total"
	activePolls       = "active"

	// Labels
	familyLabel  = "family"
	resultLabel  = "result"
	outcomeLabel = "outcome"
)

// Fetch results
const (
	FetchSuccess = "success"
	FetchError   = "error"
)

// Poll outcomes. A terminal job status is recorded under its own name
// ("completed" or "failed").
const (
	OutcomeTimedOut  = "timed_out"
	OutcomeErrored   = "errored"
	OutcomeCancelled = "cancelled"
)

/**
* Metrics definition
**/
var fetchesTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: styleforge,
		Subsystem: poller,
		Name:      fetchesTotal,
		Help:      "number of job status fetches partitioned by job family and result",
	},
	[]string{familyLabel, resultLabel},
)

var pollOutcomesTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: styleforge,
		Subsystem: poller,
		Name:      pollOutcomesTotal,
		Help:      "number of finished polls partitioned by job family and outcome",
	},
	[]string{familyLabel, outcomeLabel},
)

var activePollsMetric = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: styleforge,
		Subsystem: poller,
		Name:      activePolls,
		Help:      "number of polls currently running",
	},
	[]string{familyLabel},
)

func IncreaseFetchMetric(family, result string) {
	fetchesTotalMetric.With(prometheus.Labels{
		familyLabel: family,
		resultLabel: result,
	}).Inc()
}

func IncreasePollOutcome(family, outcome string) {
	pollOutcomesTotalMetric.With(prometheus.Labels{
		familyLabel:  family,
		outcomeLabel: outcome,
	}).Inc()
}

func IncreaseActivePolls(family string) {
	activePollsMetric.With(prometheus.Labels{familyLabel: family}).Inc()
}

func DecreaseActivePolls(family string) {
	activePollsMetric.With(prometheus.Labels{familyLabel: family}).Dec()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(fetchesTotalMetric)
	prometheus.MustRegister(pollOutcomesTotalMetric)
	prometheus.MustRegister(activePollsMetric)
}
