// Package server exposes the pipeline over HTTP.
//
//	POST /build      run the pipeline synchronously
//	GET  /errors     concatenated run log text
//	GET  /artifacts  download the last successful archive
//	GET  /status     latest run snapshot
//	GET  /healthz    liveness
//	GET  /metrics    Prometheus metrics, when enabled
package server
