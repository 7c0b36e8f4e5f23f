// Package metrics exposes engine state and HTTP traffic to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/alfredjeanlab/toggles/internal/flags"
	"github.com/alfredjeanlab/toggles/internal/model"
)

const namespace = "toggles"

// Source is the engine surface read on every scrape.
type Source interface {
	DebugInfo() flags.DebugInfo
	All() map[string]model.Flag
}

// Collector reports engine state at scrape time. It holds no state of its
// own, so a scrape always sees the current store.
type Collector struct {
	src Source

	flagsDesc     *prometheus.Desc
	enabledDesc   *prometheus.Desc
	listenersDesc *prometheus.Desc
	faultsDesc    *prometheus.Desc
	overridesDesc *prometheus.Desc
	lastSyncDesc  *prometheus.Desc
	initDesc      *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector over src.
func NewCollector(src Source) *Collector {
	return &Collector{
		src: src,
		flagsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "flags"),
			"Number of flags in the store by source.",
			[]string{"source"}, nil),
		enabledDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "flag", "enabled"),
			"Resolved value of each flag (1 enabled, 0 disabled).",
			[]string{"flag", "source"}, nil),
		listenersDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "listeners"),
			"Number of registered change listeners.",
			nil, nil),
		faultsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "listener", "faults_total"),
			"Listener invocations that panicked.",
			nil, nil),
		overridesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "active_overrides"),
			"Number of flags currently overridden.",
			nil, nil),
		lastSyncDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "remote", "last_sync_timestamp_seconds"),
			"Unix time of the last successful remote sync, 0 if none.",
			nil, nil),
		initDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "initialized"),
			"1 once the engine has completed initialization.",
			nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.flagsDesc
	ch <- c.enabledDesc
	ch <- c.listenersDesc
	ch <- c.faultsDesc
	ch <- c.overridesDesc
	ch <- c.lastSyncDesc
	ch <- c.initDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	info := c.src.DebugInfo()
	all := c.src.All()

	bySource := make(map[model.Source]int)
	for name, f := range all {
		bySource[f.Source]++
		ch <- prometheus.MustNewConstMetric(c.enabledDesc, prometheus.GaugeValue, boolValue(f.Enabled), name, string(f.Source))
	}
	for src, n := range bySource {
		ch <- prometheus.MustNewConstMetric(c.flagsDesc, prometheus.GaugeValue, float64(n), string(src))
	}

	ch <- prometheus.MustNewConstMetric(c.listenersDesc, prometheus.GaugeValue, float64(info.Listeners))
	ch <- prometheus.MustNewConstMetric(c.faultsDesc, prometheus.CounterValue, float64(info.ListenerFaults))
	ch <- prometheus.MustNewConstMetric(c.overridesDesc, prometheus.GaugeValue, float64(len(info.ActiveOverrides)))

	var lastSync float64
	if info.LastSync != nil {
		lastSync = float64(info.LastSync.UnixNano()) / 1e9
	}
	ch <- prometheus.MustNewConstMetric(c.lastSyncDesc, prometheus.GaugeValue, lastSync)
	ch <- prometheus.MustNewConstMetric(c.initDesc, prometheus.GaugeValue, boolValue(info.Initialized))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
