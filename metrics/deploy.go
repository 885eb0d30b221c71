package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Deploy results, used as the value of the "result" label.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
	ResultTimeout = "timeout"
)

type Deploy struct {
	RunsTotal        *prometheus.CounterVec
	DurationSeconds  prometheus.Histogram
	InFlight         prometheus.Gauge
	LastExitCode     prometheus.Gauge
	LastSuccessEpoch prometheus.Gauge
}

func NewDeploy(reg prometheus.Registerer) Deploy {
	factory := promauto.With(reg)

	return Deploy{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "deploy",
			Name:      "runs_total",
			Help:      "total deploy script runs by result",
		}, []string{"result"}),
		DurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Subsystem: "deploy",
			Name:      "duration_seconds",
			Help:      "Seconds spent running the deploy script.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Subsystem: "deploy",
			Name:      "runs_in_flight",
			Help:      "deploy scripts currently running",
		}),
		LastExitCode: factory.NewGauge(prometheus.GaugeOpts{
			Subsystem: "deploy",
			Name:      "last_exit_code",
			Help:      "exit code of the most recent deploy, -1 when it did not exit normally",
		}),
		LastSuccessEpoch: factory.NewGauge(prometheus.GaugeOpts{
			Subsystem: "deploy",
			Name:      "last_success_timestamp_seconds",
			Help:      "unix time of the most recent successful deploy",
		}),
	}
}

// Observe records a finished deploy.
func (d Deploy) Observe(result string, exitCode int, duration time.Duration) {
	d.RunsTotal.WithLabelValues(result).Inc()
	d.DurationSeconds.Observe(duration.Seconds())
	d.LastExitCode.Set(float64(exitCode))

	if result == ResultSuccess {
		d.LastSuccessEpoch.SetToCurrentTime()
	}
}
