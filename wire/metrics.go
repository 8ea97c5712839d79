package wire

import "github.com/prometheus/client_golang/prometheus"

// Recorder observes connection-level events for external monitoring.
// The core never imports an HTTP exporter directly; callers that want
// Prometheus exposition wire NewPrometheusRecorder's Registerer into
// their own /metrics handler.
type Recorder interface {
	PacketSent(priority string)
	PacketReceived()
	BytesSent(n int)
	BytesReceived(n int)
	QueueDepth(n int)
	StateTransition(from, to ConnState)
}

// nopRecorder is used whenever a Connection is constructed without an
// explicit Recorder.
type nopRecorder struct{}

func (nopRecorder) PacketSent(string)          {}
func (nopRecorder) PacketReceived()            {}
func (nopRecorder) BytesSent(int)              {}
func (nopRecorder) BytesReceived(int)          {}
func (nopRecorder) QueueDepth(int)             {}
func (nopRecorder) StateTransition(_, _ ConnState) {}

func recorderOrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}

// PrometheusRecorder is a Recorder backed by client_golang counters and
// gauges. Unlike package-level promauto metrics, each PrometheusRecorder
// registers into its own prometheus.Registerer so that a process
// hosting more than one Connection (or a test suite constructing many)
// never hits a duplicate-registration panic.
type PrometheusRecorder struct {
	packetsSent     *prometheus.CounterVec
	packetsReceived prometheus.Counter
	bytesSent       prometheus.Counter
	bytesReceived   prometheus.Counter
	queueDepth      prometheus.Gauge
	stateTransitions *prometheus.CounterVec
}

// NewPrometheusRecorder registers its metrics into reg and returns a
// Recorder ready to pass to NewConnection. reg is typically a
// dedicated *prometheus.Registry per connection pool rather than
// prometheus.DefaultRegisterer, to keep re-registration safe.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	r := &PrometheusRecorder{
		packetsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xpra_wire_packets_sent_total",
			Help: "Total packets sent, by priority class.",
		}, []string{"priority"}),
		packetsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xpra_wire_packets_received_total",
			Help: "Total packets received.",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xpra_wire_bytes_sent_total",
			Help: "Total bytes of rencode-encoded main packets sent, before compression and encryption.",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xpra_wire_bytes_received_total",
			Help: "Total bytes read from the transport, as reported through BytesReceived; Connection itself never reports received bytes.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xpra_wire_outbound_queue_depth",
			Help: "Current outbound queue length across all priority classes.",
		}),
		stateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xpra_wire_state_transitions_total",
			Help: "Connection state transitions, by destination state.",
		}, []string{"state"}),
	}
	reg.MustRegister(
		r.packetsSent,
		r.packetsReceived,
		r.bytesSent,
		r.bytesReceived,
		r.queueDepth,
		r.stateTransitions,
	)
	return r
}

func (r *PrometheusRecorder) PacketSent(priority string) { r.packetsSent.WithLabelValues(priority).Inc() }
func (r *PrometheusRecorder) PacketReceived()            { r.packetsReceived.Inc() }
func (r *PrometheusRecorder) BytesSent(n int)            { r.bytesSent.Add(float64(n)) }
func (r *PrometheusRecorder) BytesReceived(n int)        { r.bytesReceived.Add(float64(n)) }
func (r *PrometheusRecorder) QueueDepth(n int)           { r.queueDepth.Set(float64(n)) }
func (r *PrometheusRecorder) StateTransition(_, to ConnState) {
	r.stateTransitions.WithLabelValues(to.String()).Inc()
}
