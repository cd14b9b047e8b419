package stats

import (
	"time"

	"github.com/spf13/viper"
)

// Viper keys for the Engine's runtime-mutable settings (spec.md §6),
// registered the same way convo.Config's keys are.
const (
	MaxEndpointsKey     = "stats-max-endpoints"
	RateIntervalKey     = "stats-rate-interval-ms"
	MaxRatePointsKey    = "stats-max-rate-points"
	MaxErrorSamplesKey  = "stats-max-error-samples"
	TopPortsKey         = "stats-top-ports"
	EnablePrometheusKey = "stats-enable-prometheus"
)

func init() {
	viper.SetDefault(MaxEndpointsKey, 10000)
	viper.SetDefault(RateIntervalKey, 1000)
	viper.SetDefault(MaxRatePointsKey, 3600)
	viper.SetDefault(MaxErrorSamplesKey, 1000)
	viper.SetDefault(TopPortsKey, 10)
	viper.SetDefault(EnablePrometheusKey, false)
}

// Config holds the Engine's runtime-mutable settings.
type Config struct {
	// MaxEndpoints is the cap-eviction threshold for per-endpoint stats:
	// once exceeded, the endpoint with the lowest total packet count is
	// evicted (spec.md §4.2).
	MaxEndpoints uint64

	// RateInterval is the bucket width of the packet/byte rate time
	// series, spec.md §6's time_series_interval (milliseconds).
	RateInterval time.Duration

	// MaxRatePoints bounds how many RatePoint buckets are retained; older
	// buckets are dropped once exceeded.
	MaxRatePoints int

	// MaxErrorSamples bounds how many ErrorRecord entries are retained;
	// the error count itself is never capped, only the retained sample.
	MaxErrorSamples int

	// TopPorts is the default N used by GetTopPorts, GetTopSrcPorts and
	// GetTopDstPorts when a caller passes n <= 0.
	TopPorts int

	// EnablePrometheus gates whether the Engine registers its promauto
	// gauges/counters with the default registry.
	EnablePrometheus bool
}

// DefaultConfig returns the Config spec.md §6 documents as defaults,
// sourced from viper.
func DefaultConfig() Config {
	return Config{
		MaxEndpoints:     uint64(viper.GetInt64(MaxEndpointsKey)),
		RateInterval:     time.Duration(viper.GetInt64(RateIntervalKey)) * time.Millisecond,
		MaxRatePoints:    viper.GetInt(MaxRatePointsKey),
		MaxErrorSamples:  viper.GetInt(MaxErrorSamplesKey),
		TopPorts:         viper.GetInt(TopPortsKey),
		EnablePrometheus: viper.GetBool(EnablePrometheusKey),
	}
}
