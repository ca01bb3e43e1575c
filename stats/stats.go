// Package stats exposes the engine's PdRuntime counters as Prometheus
// metrics (SPEC_FULL §11's domain-stack wiring), refreshed on demand from
// an engine.Engine snapshot rather than incremented inline — the engine
// core stays free of a metrics dependency in its hot tick path.
package stats

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the label-vector metrics this package publishes, one
// series per (com_id, telegram) pair. The RX/TX/timeout series are
// gauges, not counters: PdRuntime.RXCount etc. are the cumulative source
// of truth, and a snapshot only ever mirrors their current value rather
// than a delta, which is what a Prometheus gauge is for.
type Collector struct {
	rxTotal      *prometheus.GaugeVec
	txTotal      *prometheus.GaugeVec
	timeoutTotal *prometheus.GaugeVec
	lastPeriodUS *prometheus.GaugeVec
	avgPeriodUS  *prometheus.GaugeVec
	txEnabled    *prometheus.GaugeVec
}

// Snapshot is the subset of engine.Snapshot this package needs. Defined
// locally so stats does not import engine (engine is the wiring root;
// nothing it depends on may depend back on it).
type Snapshot struct {
	ComID        uint32
	Name         string
	RXCount      uint64
	TXCount      uint64
	TimeoutCount uint64
	LastPeriodUS float64
	AvgPeriodUS  float64
	TXEnabled    bool
}

var labelNames = []string{"com_id", "telegram"}

// NewCollector registers the engine's metric vectors against the default
// Prometheus registry, matching the package-level promauto.New* idiom used
// for every other counter in this stack.
func NewCollector() *Collector {
	return NewCollectorFor(prometheus.DefaultRegisterer)
}

// NewCollectorFor registers against reg instead of the default registry,
// so tests can use a throwaway prometheus.NewRegistry() and run in
// parallel without colliding on metric names.
func NewCollectorFor(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		rxTotal: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tlcengine_pd_rx_total",
			Help: "Total PD payloads received per telegram.",
		}, labelNames),
		txTotal: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tlcengine_pd_tx_total",
			Help: "Total PD payloads transmitted per telegram.",
		}, labelNames),
		timeoutTotal: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tlcengine_pd_timeout_total",
			Help: "Total RX timeouts observed per telegram.",
		}, labelNames),
		lastPeriodUS: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tlcengine_pd_last_period_microseconds",
			Help: "Most recent observed inter-arrival period per telegram.",
		}, labelNames),
		avgPeriodUS: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tlcengine_pd_avg_period_microseconds",
			Help: "Running average inter-arrival period per telegram.",
		}, labelNames),
		txEnabled: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tlcengine_pd_tx_enabled",
			Help: "1 if the telegram's scheduler transmission is enabled, 0 otherwise.",
		}, labelNames),
	}
}

// Refresh overwrites every series with the given snapshots.
func (c *Collector) Refresh(snaps []Snapshot) {
	for _, s := range snaps {
		labels := prometheus.Labels{"com_id": strconv.FormatUint(uint64(s.ComID), 10), "telegram": s.Name}

		c.rxTotal.With(labels).Set(float64(s.RXCount))
		c.txTotal.With(labels).Set(float64(s.TXCount))
		c.timeoutTotal.With(labels).Set(float64(s.TimeoutCount))
		c.lastPeriodUS.With(labels).Set(s.LastPeriodUS)
		c.avgPeriodUS.With(labels).Set(s.AvgPeriodUS)
		c.txEnabled.With(labels).Set(boolToFloat(s.TXEnabled))
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
