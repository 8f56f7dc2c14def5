package dsstub

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PromCollectors lists the package metrics. They are not registered
// anywhere by default; add them to a registry to export them.
var PromCollectors []prometheus.Collector

var (
	promCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dsstub_rpc_total",
		Help: "number of dispatched calls by method and result code",
	}, []string{"method", "code"})

	promCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dsstub_rpc_duration_seconds",
		Help:    "time spent executing dispatched calls",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"method"})

	promEntities = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dsstub_entities",
		Help: "number of stored entities",
	}, []string{"app"})

	promOpenCursors = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dsstub_open_cursors",
		Help: "number of registered query cursors",
	})
)

func init() {
	PromCollectors = append(PromCollectors, promCalls, promCallDuration, promEntities, promOpenCursors)
}

// noteEntityCount publishes the storage size. Caller holds entitiesLock.
func (e *Engine) noteEntityCount() {
	promEntities.WithLabelValues(e.appID).Set(float64(e.store.count()))
}
