// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus instruments for the serving loops. Updates are atomic and may be
// issued from the engine thread without coordination.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hioload"

// Metrics holds the instruments of one server variant.
type Metrics struct {
	Accepts             prometheus.Counter
	AcceptErrors        prometheus.Counter
	RejectedConnections prometheus.Counter
	Requests            prometheus.Counter
	Responses           prometheus.Counter
	BytesReceived       prometheus.Counter
	BusyRejections      prometheus.Counter
	Completions         *prometheus.CounterVec

	LiveConnections prometheus.Gauge
	LeasedBuffers   prometheus.Gauge
	BacklogDepth    prometheus.Gauge
	DeferredAccepts prometheus.Gauge
}

// NewMetrics builds the instruments labelled with server and registers them
// on reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer, server string) *Metrics {
	labels := prometheus.Labels{"server": server}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: name, Help: help, ConstLabels: labels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: name, Help: help, ConstLabels: labels,
		})
	}

	m := &Metrics{
		Accepts:             counter("accepts_total", "Connections accepted."),
		AcceptErrors:        counter("accept_errors_total", "Failed accept completions."),
		RejectedConnections: counter("rejected_connections_total", "Accepted sockets closed because the connection table was full."),
		Requests:            counter("requests_total", "Non-empty reads answered with the fixed response."),
		Responses:           counter("responses_total", "Fixed responses fully written."),
		BytesReceived:       counter("received_bytes_total", "Bytes read from clients."),
		BusyRejections:      counter("busy_rejections_total", "Accept re-arms deferred because the submission backlog was over its limit."),
		Completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "completions_total", Help: "Completions reaped by kind.", ConstLabels: labels,
		}, []string{"kind"}),

		LiveConnections: gauge("live_connections", "Open client connections."),
		LeasedBuffers:   gauge("leased_buffers", "Provided buffers held by the application."),
		BacklogDepth:    gauge("submission_backlog", "Descriptors waiting for submission queue space."),
		DeferredAccepts: gauge("deferred_accepts", "Accept slots waiting to be re-armed."),
	}
	if reg != nil {
		reg.MustRegister(
			m.Accepts, m.AcceptErrors, m.RejectedConnections, m.Requests, m.Responses,
			m.BytesReceived, m.BusyRejections, m.Completions,
			m.LiveConnections, m.LeasedBuffers, m.BacklogDepth, m.DeferredAccepts,
		)
	}
	return m
}
