// Package okvmetrics exports okv.Store operation counters to Prometheus.
package okvmetrics

import (
	"net/http"

	"github.com/andreyvit/okv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector reads Store.Stats on every scrape; it keeps no state of its own.
type Collector struct {
	store *okv.Store

	ops            *prometheus.Desc
	misses         *prometheus.Desc
	scannedEntries *prometheus.Desc
	errors         *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(store *okv.Store, namespace string, constLabels prometheus.Labels) *Collector {
	return &Collector{
		store: store,
		ops: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "okv", "operations_total"),
			"Store operations by kind.",
			[]string{"op"}, constLabels),
		misses: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "okv", "get_misses_total"),
			"Gets that found no value.",
			nil, constLabels),
		scannedEntries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "okv", "scanned_entries_total"),
			"Entries returned by scans.",
			nil, constLabels),
		errors: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "okv", "errors_total"),
			"Failed entries and backend calls.",
			[]string{"kind"}, constLabels),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.ops
	ch <- c.misses
	ch <- c.scannedEntries
	ch <- c.errors
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.store.Stats()
	counter := func(desc *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
	}
	counter(c.ops, st.Gets, "get")
	counter(c.ops, st.Sets, "set")
	counter(c.ops, st.Deletes, "delete")
	counter(c.ops, st.Clears, "clear")
	counter(c.ops, st.Scans, "scan")
	counter(c.misses, st.Misses)
	counter(c.scannedEntries, st.ScannedEntries)
	counter(c.errors, st.DecodeErrors, "decode")
	counter(c.errors, st.BackendErrors, "backend")
}

// Handler serves the store's metrics, and nothing else, in the Prometheus
// exposition format.
func Handler(store *okv.Store, namespace string) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(store, namespace, nil)); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
