package repository

import "time"

// Option applies a configuration option to the TreapStore.
type Option func(*TreapStore)

// WithMetricsInterval sets how often repository gauges are refreshed.
func WithMetricsInterval(interval time.Duration) Option {
	return func(s *TreapStore) {
		if interval > 0 {
			s.metricsInterval = interval
		}
	}
}
