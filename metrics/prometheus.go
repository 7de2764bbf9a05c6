package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusExporter adapts a Collector's Snapshot to Prometheus counters,
// registered once and refreshed from the Collector on every scrape via a
// prometheus.Collector implementation (the Describe/Collect pair below),
// rather than pushing updates on every Inc call.
type PrometheusExporter struct {
	collector *Collector

	chainRunsStarted   *prometheus.Desc
	chainRunsCompleted *prometheus.Desc
	chainRunsFailed    *prometheus.Desc
	chainRunsCancelled *prometheus.Desc

	tasksEnqueued  *prometheus.Desc
	tasksCompleted *prometheus.Desc
	tasksFailed    *prometheus.Desc
	tasksTimedOut  *prometheus.Desc

	moduleHealthFlipsToHealthy   *prometheus.Desc
	moduleHealthFlipsToUnhealthy *prometheus.Desc

	artifactsIngested *prometheus.Desc
	artifactsDeduped  *prometheus.Desc
}

// NewPrometheusExporter wraps collector as a prometheus.Collector.
func NewPrometheusExporter(collector *Collector) *PrometheusExporter {
	ns := "modsentry"
	return &PrometheusExporter{
		collector: collector,

		chainRunsStarted:   prometheus.NewDesc(ns+"_chain_runs_started_total", "Total ChainRuns started.", nil, nil),
		chainRunsCompleted: prometheus.NewDesc(ns+"_chain_runs_completed_total", "Total ChainRuns that completed.", nil, nil),
		chainRunsFailed:    prometheus.NewDesc(ns+"_chain_runs_failed_total", "Total ChainRuns that failed.", nil, nil),
		chainRunsCancelled: prometheus.NewDesc(ns+"_chain_runs_cancelled_total", "Total ChainRuns that were cancelled.", nil, nil),

		tasksEnqueued:  prometheus.NewDesc(ns+"_tasks_enqueued_total", "Total tasks enqueued to module queues.", nil, nil),
		tasksCompleted: prometheus.NewDesc(ns+"_tasks_completed_total", "Total tasks completed successfully.", nil, nil),
		tasksFailed:    prometheus.NewDesc(ns+"_tasks_failed_total", "Total tasks that returned a worker error.", nil, nil),
		tasksTimedOut:  prometheus.NewDesc(ns+"_tasks_timed_out_total", "Total tasks whose deadline elapsed without a result.", nil, nil),

		moduleHealthFlipsToHealthy:   prometheus.NewDesc(ns+"_module_health_flips_to_healthy_total", "Total module health transitions to healthy.", nil, nil),
		moduleHealthFlipsToUnhealthy: prometheus.NewDesc(ns+"_module_health_flips_to_unhealthy_total", "Total module health transitions to unhealthy.", nil, nil),

		artifactsIngested: prometheus.NewDesc(ns+"_artifacts_ingested_total", "Total artifacts ingested with a novel fingerprint.", nil, nil),
		artifactsDeduped:  prometheus.NewDesc(ns+"_artifacts_deduped_total", "Total ingests that matched an existing fingerprint.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (e *PrometheusExporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.chainRunsStarted
	ch <- e.chainRunsCompleted
	ch <- e.chainRunsFailed
	ch <- e.chainRunsCancelled
	ch <- e.tasksEnqueued
	ch <- e.tasksCompleted
	ch <- e.tasksFailed
	ch <- e.tasksTimedOut
	ch <- e.moduleHealthFlipsToHealthy
	ch <- e.moduleHealthFlipsToUnhealthy
	ch <- e.artifactsIngested
	ch <- e.artifactsDeduped
}

// Collect implements prometheus.Collector.
func (e *PrometheusExporter) Collect(ch chan<- prometheus.Metric) {
	snap := e.collector.Snapshot()

	ch <- prometheus.MustNewConstMetric(e.chainRunsStarted, prometheus.CounterValue, float64(snap.ChainRunsStarted))
	ch <- prometheus.MustNewConstMetric(e.chainRunsCompleted, prometheus.CounterValue, float64(snap.ChainRunsCompleted))
	ch <- prometheus.MustNewConstMetric(e.chainRunsFailed, prometheus.CounterValue, float64(snap.ChainRunsFailed))
	ch <- prometheus.MustNewConstMetric(e.chainRunsCancelled, prometheus.CounterValue, float64(snap.ChainRunsCancelled))

	ch <- prometheus.MustNewConstMetric(e.tasksEnqueued, prometheus.CounterValue, float64(snap.TasksEnqueued))
	ch <- prometheus.MustNewConstMetric(e.tasksCompleted, prometheus.CounterValue, float64(snap.TasksCompleted))
	ch <- prometheus.MustNewConstMetric(e.tasksFailed, prometheus.CounterValue, float64(snap.TasksFailed))
	ch <- prometheus.MustNewConstMetric(e.tasksTimedOut, prometheus.CounterValue, float64(snap.TasksTimedOut))

	ch <- prometheus.MustNewConstMetric(e.moduleHealthFlipsToHealthy, prometheus.CounterValue, float64(snap.ModuleHealthFlipsToHealthy))
	ch <- prometheus.MustNewConstMetric(e.moduleHealthFlipsToUnhealthy, prometheus.CounterValue, float64(snap.ModuleHealthFlipsToUnhealthy))

	ch <- prometheus.MustNewConstMetric(e.artifactsIngested, prometheus.CounterValue, float64(snap.ArtifactsIngested))
	ch <- prometheus.MustNewConstMetric(e.artifactsDeduped, prometheus.CounterValue, float64(snap.ArtifactsDeduped))
}

var _ prometheus.Collector = (*PrometheusExporter)(nil)
