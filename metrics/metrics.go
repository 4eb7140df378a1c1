// Package metrics exposes protocol engine activity as Prometheus metrics,
// adapted from the sockstats exporter's collector shape. Registration is
// the caller's responsibility; cmd/bisyncd wires a Collector into the
// default registry.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alexeynaumov/rbisync/protocol"
)

// Collector implements prometheus.Collector, exposing handshake, retry,
// and per-error-code counts accumulated from engine callbacks.
type Collector struct {
	mu sync.Mutex

	handshakesStarted   prometheus.Counter
	handshakesSucceeded prometheus.Counter
	retries             prometheus.Counter
	framesReceived      prometheus.Counter
	errorsByCode        *prometheus.CounterVec
}

// NewCollector builds a Collector with the given metric name prefix.
func NewCollector(prefix string, constLabels prometheus.Labels) *Collector {
	return &Collector{
		handshakesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        prefix + "_handshakes_started_total",
			Help:        "Number of ENQ handshakes initiated.",
			ConstLabels: constLabels,
		}),
		handshakesSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        prefix + "_handshakes_succeeded_total",
			Help:        "Number of handshakes that completed with EOT.",
			ConstLabels: constLabels,
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        prefix + "_retries_total",
			Help:        "Number of ENQ retries issued.",
			ConstLabels: constLabels,
		}),
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        prefix + "_frames_received_total",
			Help:        "Number of inbound frames successfully delivered via on_read.",
			ConstLabels: constLabels,
		}),
		errorsByCode: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        prefix + "_errors_total",
			Help:        "Number of errors reported by the engine, by error code.",
			ConstLabels: constLabels,
		}, []string{"code"}),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	c.handshakesStarted.Describe(descs)
	c.handshakesSucceeded.Describe(descs)
	c.retries.Describe(descs)
	c.framesReceived.Describe(descs)
	c.errorsByCode.Describe(descs)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handshakesStarted.Collect(metrics)
	c.handshakesSucceeded.Collect(metrics)
	c.retries.Collect(metrics)
	c.framesReceived.Collect(metrics)
	c.errorsByCode.Collect(metrics)
}

// Attach wires c's counters into eng's OnRead/OnError/OnStateChange
// callbacks. Each of those registrations chains onto whatever callback
// eng already holds (see protocol.Engine.OnRead) rather than replacing
// it, so Attach can be called on a *protocol.Engine that a façade (e.g.
// rbisync.Link) has already wired up without severing that wiring.
func (c *Collector) Attach(eng *protocol.Engine) {
	eng.OnStateChange(func(from, to string) {
		c.mu.Lock()
		defer c.mu.Unlock()
		switch {
		case from == protocol.StateIdle && to == protocol.StateAboutToTx:
			c.handshakesStarted.Inc()
		case to == protocol.StateIdle && from == protocol.StateTxStarted:
			c.handshakesSucceeded.Inc()
		}
	})
	eng.OnRead(func(payload []byte) {
		c.framesReceived.Inc()
	})
	eng.OnError(func(e *protocol.Error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if e.Code == protocol.NoAckBeforeMessage {
			c.retries.Inc()
		}
		c.errorsByCode.WithLabelValues(e.Code.String()).Inc()
	})
}
