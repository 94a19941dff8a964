// Package prometheus exports session chain and save-loop events as
// Prometheus metrics by implementing session.Observer.
package prometheus

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/tieredsession/core/session"
)

const namespace = "session"

// Observer counts tier hits, misses and save outcomes.
type Observer struct {
	tierHits      *prometheus.CounterVec
	misses        prometheus.Counter
	saveAttempts  prometheus.Counter
	saveSucceeded prometheus.Histogram
	saveAbandoned *prometheus.CounterVec
}

var _ session.Observer = (*Observer)(nil)

// NewObserver creates the collectors and registers them on reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewObserver(reg prometheus.Registerer) (*Observer, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &Observer{
		tierHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tier_hits_total",
			Help:      "Reads served by a backend, by write-order tier index.",
		}, []string{"tier"}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "misses_total",
			Help:      "Reads that found no live record.",
		}),
		saveAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "save_attempts_total",
			Help:      "Write-through attempts made by the save loop.",
		}),
		saveSucceeded: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "save_attempts_per_success",
			Help:      "Attempts needed by successful saves.",
			Buckets:   []float64{1, 2, 3, 5, 8, 10},
		}),
		saveAbandoned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "save_abandoned_total",
			Help:      "Saves that gave up, by reason.",
		}, []string{"reason"}),
	}

	for _, c := range []prometheus.Collector{o.tierHits, o.misses, o.saveAttempts, o.saveSucceeded, o.saveAbandoned} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *Observer) TierHit(tier int) { o.tierHits.WithLabelValues(strconv.Itoa(tier)).Inc() }
func (o *Observer) Miss()            { o.misses.Inc() }
func (o *Observer) SaveAttempt()     { o.saveAttempts.Inc() }

func (o *Observer) SaveSucceeded(attempts int) {
	o.saveSucceeded.Observe(float64(attempts))
}

func (o *Observer) SaveAbandoned(reason string) {
	o.saveAbandoned.WithLabelValues(reason).Inc()
}

// Handler serves the metrics gathered by g in the text exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
