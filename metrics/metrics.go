package metrics

import (
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "tapzero"
)

var (
	Debug bool = false

	assertionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "assertions_total",
		Help:      "Count of assertions",
	}, []string{
		"run_id",
		"test",
		"operator",
		"result",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Result of test runs",
	}, []string{
		"run_id",
		"result",
	})

	runAssertionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_assertions_total",
		Help:      "Total number of assertions in a run",
	}, []string{
		"run_id",
	})

	runAssertionsPassed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_assertions_passed",
		Help:      "Number of passed assertions in a run",
	}, []string{
		"run_id",
	})

	runAssertionsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_assertions_failed",
		Help:      "Number of failed assertions in a run",
	}, []string{
		"run_id",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration",
		Help:      "Duration of test runs",
	}, []string{
		"run_id",
	})
)

func RecordAssertion(runID string, test string, operator string, pass bool) {
	result := "pass"
	if !pass {
		result = "fail"
	}
	if Debug {
		log.Debug("metric inc",
			"m", "assertions_total",
			"run_id", runID,
			"test", test,
			"operator", operator,
			"result", result)
	}
	assertionsTotal.WithLabelValues(runID, test, operator, result).Inc()
}

func RecordRun(
	runID string,
	result string,
	total int,
	passed int,
	failed int,
	duration time.Duration,
) {
	runResults.WithLabelValues(runID, result).Set(1)
	runAssertionsTotal.WithLabelValues(runID).Add(float64(total))
	runAssertionsPassed.WithLabelValues(runID).Add(float64(passed))
	runAssertionsFailed.WithLabelValues(runID).Add(float64(failed))
	runDuration.WithLabelValues(runID).Set(duration.Seconds())
}
