// Package metrics provides application-level metrics collection backed by
// Prometheus collectors on a private registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "paysend"

// Metrics holds the send-path collectors.
type Metrics struct {
	registry *prometheus.Registry

	sendOutcomes    *prometheus.CounterVec
	authPaths       *prometheus.CounterVec
	authAborts      prometheus.Counter
	signingTimeouts prometheus.Counter
	signingDuration prometheus.Histogram
	metadataWrites  *prometheus.CounterVec
	settlements     *prometheus.CounterVec
	rpcCalls        *prometheus.CounterVec
	rpcLatency      *prometheus.HistogramVec
}

// Global is the global metrics instance.
//
//nolint:gochecknoglobals // Intentional global for metrics access
var Global = New()

// New creates a Metrics value with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		sendOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_outcomes_total",
			Help:      "Send attempts by currency model and outcome kind.",
		}, []string{"model", "outcome"}),
		authPaths: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_paths_total",
			Help:      "Successful authorizations by path.",
		}, []string{"path"}),
		authAborts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_aborts_total",
			Help:      "Send attempts abandoned during authentication without an outcome.",
		}),
		signingTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signing_timeouts_total",
			Help:      "PIN signing operations that exceeded the deadline.",
		}),
		signingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "signing_duration_seconds",
			Help:      "Time from authorization start to a signed transaction.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		}),
		metadataWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metadata_writes_total",
			Help:      "Transaction metadata writes by result.",
		}, []string{"result"}),
		settlements: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Merchant settlements by flavor and result.",
		}, []string{"flavor", "result"}),
		rpcCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_calls_total",
			Help:      "Outbound calls by chain and result.",
		}, []string{"chain", "result"}),
		rpcLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_latency_seconds",
			Help:      "Outbound call latency by chain.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"chain"}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordRPCCall records an outbound call with its duration and success status.
func (m *Metrics) RecordRPCCall(chain string, duration time.Duration, err error) {
	m.rpcCalls.WithLabelValues(chain, result(err)).Inc()
	m.rpcLatency.WithLabelValues(chain).Observe(duration.Seconds())
}

// RecordSendOutcome counts a delivered outcome.
func (m *Metrics) RecordSendOutcome(model, outcome string) {
	m.sendOutcomes.WithLabelValues(model, outcome).Inc()
}

// RecordAuthPath counts a successful authorization.
func (m *Metrics) RecordAuthPath(path string) {
	m.authPaths.WithLabelValues(path).Inc()
}

// RecordAuthAbort counts an attempt that ended silently during authentication.
func (m *Metrics) RecordAuthAbort() {
	m.authAborts.Inc()
}

// RecordSigningTimeout counts a signing deadline overrun.
func (m *Metrics) RecordSigningTimeout() {
	m.signingTimeouts.Inc()
}

// ObserveSigning records how long authorization and signing took.
func (m *Metrics) ObserveSigning(d time.Duration) {
	m.signingDuration.Observe(d.Seconds())
}

// RecordMetadataWrite counts a metadata write attempt.
func (m *Metrics) RecordMetadataWrite(written bool) {
	if written {
		m.metadataWrites.WithLabelValues("written").Inc()
		return
	}
	m.metadataWrites.WithLabelValues("skipped").Inc()
}

// RecordSettlement counts a merchant settlement attempt.
func (m *Metrics) RecordSettlement(flavor string, err error) {
	m.settlements.WithLabelValues(flavor, result(err)).Inc()
}

// Snapshot is a point-in-time copy of the headline counters.
type Snapshot struct {
	Successes        float64
	CreationErrors   float64
	PublishFailures  float64
	AuthAborts       float64
	SigningTimeouts  float64
	MetadataWritten  float64
	SettlementErrors float64
}

// Snapshot returns a point-in-time copy of the headline counters.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Successes:        sumByLabel(m.sendOutcomes, "outcome", "success"),
		CreationErrors:   sumByLabel(m.sendOutcomes, "outcome", "creation_error"),
		PublishFailures:  sumByLabel(m.sendOutcomes, "outcome", "publish_failure"),
		AuthAborts:       counterValue(m.authAborts),
		SigningTimeouts:  counterValue(m.signingTimeouts),
		MetadataWritten:  sumByLabel(m.metadataWrites, "result", "written"),
		SettlementErrors: sumByLabel(m.settlements, "result", "error"),
	}
}

// sumByLabel adds up every series of vec whose label equals value.
func sumByLabel(vec *prometheus.CounterVec, label, value string) float64 {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		vec.Collect(ch)
		close(ch)
	}()

	var total float64
	for metric := range ch {
		var pb dto.Metric
		if err := metric.Write(&pb); err != nil {
			continue
		}
		for _, lp := range pb.GetLabel() {
			if lp.GetName() == label && lp.GetValue() == value {
				total += pb.GetCounter().GetValue()
			}
		}
	}
	return total
}

func counterValue(c prometheus.Counter) float64 {
	var pb dto.Metric
	if err := c.Write(&pb); err != nil {
		return 0
	}
	return pb.GetCounter().GetValue()
}
