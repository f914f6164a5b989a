// Package metrics provides observability hooks for pipeline runs.
//
// Components receive a Recorder through their constructor. NoopRecorder is the
// default and records nothing; PrometheusRecorder is injected when metrics are
// enabled and its registry is served on /metrics by HTTPHandler.
//
//	reg := prometheus.NewRegistry()
//	orch := pipeline.New(deps, pipeline.WithRecorder(metrics.NewPrometheusRecorder(reg)))
//	router.Handle("/metrics", metrics.HTTPHandler(reg))
package metrics
