package report

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// FormatPrometheus renders an Aggregator in the Prometheus text format.
const FormatPrometheus = "prometheus"

// Collector exposes the counters of an Aggregator as Prometheus counters.
type Collector struct {
	agg       *Aggregator
	timeDesc  *prometheus.Desc
	callsDesc *prometheus.Desc
}

// NewCollector creates a collector reading from agg
func NewCollector(agg *Aggregator) *Collector {
	labels := []string{"counter", "source"}
	return &Collector{
		agg: agg,
		timeDesc: prometheus.NewDesc(
			"callstats_time_seconds_total",
			"Time committed to a counter, excluding nested counters",
			labels, nil,
		),
		callsDesc: prometheus.NewDesc(
			"callstats_calls_total",
			"Completed activations of a counter",
			labels, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.timeDesc
	ch <- c.callsDesc
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, source := range c.agg.Sources() {
		snap, ok := c.agg.Source(source)
		if !ok {
			continue
		}
		for _, e := range snap {
			if e.Count == 0 {
				continue
			}
			ch <- prometheus.MustNewConstMetric(c.timeDesc, prometheus.CounterValue, e.Time.Seconds(), e.Name, source)
			ch <- prometheus.MustNewConstMetric(c.callsDesc, prometheus.CounterValue, float64(e.Count), e.Name, source)
		}
	}
}

// WritePrometheus renders the counters of agg in the Prometheus text
// exposition format.
func WritePrometheus(w io.Writer, agg *Aggregator) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(agg)); err != nil {
		return fmt.Errorf("failed to register collector: %w", err)
	}
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	encoder := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := encoder.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
