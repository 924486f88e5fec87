package server

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pthm-cable/grayscott/game"
	"github.com/pthm-cable/grayscott/telemetry"
)

// Metrics holds the prometheus collectors exported at /metrics. Each
// Metrics has its own registry so several servers can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	Frame    prometheus.Gauge
	SimTime  prometheus.Gauge
	Steps    prometheus.Gauge
	FPS      prometheus.Gauge
	Clients  prometheus.Gauge
	MeanB    prometheus.Gauge
	Coverage prometheus.Gauge
	Controls *prometheus.CounterVec
	Encode   prometheus.Histogram
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Frame: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grayscott_frame",
			Help: "Frames run since start",
		}),
		SimTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grayscott_sim_time",
			Help: "Simulated time",
		}),
		Steps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grayscott_steps",
			Help: "Simulation steps executed",
		}),
		FPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grayscott_fps",
			Help: "Frames per second over the FPS window",
		}),
		Clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grayscott_ws_clients",
			Help: "Connected websocket viewers",
		}),
		MeanB: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grayscott_b_mean",
			Help: "Mean B concentration at the last stats sample",
		}),
		Coverage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grayscott_b_coverage",
			Help: "Fraction of cells with B above the coverage threshold",
		}),
		Controls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grayscott_controls_total",
			Help: "Control messages received from viewers",
		}, []string{"type", "status"}),
		Encode: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grayscott_frame_encode_seconds",
			Help:    "Time spent encoding a broadcast frame",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(
		m.Frame, m.SimTime, m.Steps, m.FPS, m.Clients,
		m.MeanB, m.Coverage, m.Controls, m.Encode,
	)
	return m
}

// ObserveControl counts one control message. Types outside the known set
// share the "unknown" label so clients cannot grow the series count.
func (m *Metrics) ObserveControl(typ string, accepted bool) {
	status := "accepted"
	if !accepted {
		status = "rejected"
	}
	m.Controls.WithLabelValues(controlLabel(typ), status).Inc()
}

func controlLabel(typ string) string {
	switch typ {
	case game.ControlSet, game.ControlReset, game.ControlPause, game.ControlStep:
		return typ
	}
	return "unknown"
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveStats records a field stats sample. It matches game.Options.OnStats.
func (m *Metrics) ObserveStats(s telemetry.FieldStats) {
	m.MeanB.Set(s.MeanB)
	m.Coverage.Set(s.CoverageB)
}

func (m *Metrics) observeStatus(st Status) {
	m.Frame.Set(float64(st.Frame))
	m.SimTime.Set(st.SimTime)
	m.Steps.Set(float64(st.Steps))
	if !math.IsInf(st.FPS, 0) {
		m.FPS.Set(st.FPS)
	}
}
