package pcdec

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusConfig is a config of the Prometheus metrics provided by the converter.
//
// An instance can be created only by the [Prometheus] function. The zero value is invalid.
type PrometheusConfig struct {
	// Namespace of the metrics.
	Namespace string
	// Subsystem of the metrics.
	Subsystem string
	// Options for the conversions counter. It is labeled by format and outcome.
	Conversions prometheus.CounterOpts
	// Options for the decoded bytes counter. It is labeled by format.
	DecodedBytes prometheus.CounterOpts
	// Options for the decode duration histogram. It is labeled by format.
	DecodeDuration prometheus.HistogramOpts
	// Options for the backend state gauge. It is labeled by format and holds the [State] value.
	BackendState prometheus.GaugeOpts

	registerer prometheus.Registerer
}

// Prometheus returns a [PrometheusConfig] with the provided registerer. If registerer is nil,
// metrics will not be registered. Many default parameters can be configured by passing
// configuration functions.
func Prometheus(
	registerer prometheus.Registerer,
	configFuncs ...func(c *PrometheusConfig),
) *PrometheusConfig {
	const (
		namespace = "pcdec"
		subsystem = ""
	)

	c := PrometheusConfig{
		registerer: registerer,
		Namespace:  namespace,
		Subsystem:  subsystem,
		Conversions: prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "conversions_total",
			Help:      "Number of converted messages",
		},
		DecodedBytes: prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "decoded_bytes_total",
			Help:      "Number of bytes produced by decoding",
		},
		DecodeDuration: prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "decode_duration_seconds",
			Help:      "Duration of payload decoding",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		},
		BackendState: prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "backend_state",
			Help:      "State of the codec backend (0 uninitialized, 1 initializing, 2 ready, 3 failed)",
		},
	}

	for _, cf := range configFuncs {
		if cf != nil {
			cf(&c)
		}
	}

	return &c
}

func (c *PrometheusConfig) metrics() *metrics {
	m := metrics{
		conversions:    prometheus.NewCounterVec(c.Conversions, []string{"format", "outcome"}),
		decodedBytes:   prometheus.NewCounterVec(c.DecodedBytes, []string{"format"}),
		decodeDuration: prometheus.NewHistogramVec(c.DecodeDuration, []string{"format"}),
		backendState:   prometheus.NewGaugeVec(c.BackendState, []string{"format"}),
	}

	if c.registerer != nil {
		c.registerer.MustRegister(
			m.conversions,
			m.decodedBytes,
			m.decodeDuration,
			m.backendState,
		)
	}

	return &m
}

type metrics struct {
	conversions    *prometheus.CounterVec
	decodedBytes   *prometheus.CounterVec
	decodeDuration *prometheus.HistogramVec
	backendState   *prometheus.GaugeVec
}

// Unsupported formats share one label value to keep the cardinality bounded.
const unknownFormat = "unknown"

const (
	outcomeDecoded     = "decoded"
	outcomeUnsupported = "unsupported"
	outcomeNotReady    = "not_ready"
	outcomeFailed      = "failed"
)
