package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is consumed by services and workers.
type Recorder interface {
	RecordTransition(action string)
	RecordConflict(operation string)
	RecordExpired(count int64)
	RecordSweepFailure()
	RecordRotation(outcome string)
	RecordRateLimited(limiter string)
}

// Rotation outcomes
const (
	RotationSuccess  = "success"
	RotationInvalid  = "invalid"
	RotationReuse    = "reuse_detected"
	RotationFailures = "error"
)

type Collector struct {
	transitions  *prometheus.CounterVec
	conflicts    *prometheus.CounterVec
	expired      prometheus.Counter
	sweepFailure prometheus.Counter
	rotations    *prometheus.CounterVec
	rateLimited  *prometheus.CounterVec
}

// NewCollector registers the service metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loadhub_load_transitions_total",
			Help: "Successful load lifecycle transitions.",
		}, []string{"action"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loadhub_load_conflicts_total",
			Help: "Conditional writes that matched no record.",
		}, []string{"operation"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loadhub_loads_expired_total",
			Help: "Loads reverted from ACCEPTED_BY_OWNER to OPEN by the sweeper.",
		}),
		sweepFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loadhub_sweep_failures_total",
			Help: "Expiration sweeps that failed.",
		}),
		rotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loadhub_refresh_rotations_total",
			Help: "Refresh credential rotation attempts by outcome.",
		}, []string{"outcome"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loadhub_rate_limited_total",
			Help: "Requests rejected by a rate limiter.",
		}, []string{"limiter"}),
	}

	reg.MustRegister(
		c.transitions,
		c.conflicts,
		c.expired,
		c.sweepFailure,
		c.rotations,
		c.rateLimited,
	)

	return c
}

func (c *Collector) RecordTransition(action string) {
	c.transitions.WithLabelValues(action).Inc()
}

func (c *Collector) RecordConflict(operation string) {
	c.conflicts.WithLabelValues(operation).Inc()
}

func (c *Collector) RecordExpired(count int64) {
	c.expired.Add(float64(count))
}

func (c *Collector) RecordSweepFailure() {
	c.sweepFailure.Inc()
}

func (c *Collector) RecordRotation(outcome string) {
	c.rotations.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordRateLimited(limiter string) {
	c.rateLimited.WithLabelValues(limiter).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

type nop struct{}

// Nop returns a Recorder that drops everything.
func Nop() Recorder {
	return nop{}
}

func (nop) RecordTransition(string)  {}
func (nop) RecordConflict(string)    {}
func (nop) RecordExpired(int64)      {}
func (nop) RecordSweepFailure()      {}
func (nop) RecordRotation(string)    {}
func (nop) RecordRateLimited(string) {}
