// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics, configuration snapshots and debug introspection for the
// benchmark servers.
//
// Provides:
//   - Prometheus counters and gauges shared by every server variant
//   - A configuration store with reload listeners
//   - Named state probes served as JSON next to /metrics
package control
