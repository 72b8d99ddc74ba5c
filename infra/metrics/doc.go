// Package metrics exports bus events as Prometheus series.
package metrics
