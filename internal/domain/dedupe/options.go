package dedupe

type config struct {
	maxSize int
}

// Option applies a configuration option to NewInMemoryDeduper.
type Option func(*config)

// WithMaxSize sets the maximum number of session keys kept in memory.
// A value <= 0 disables eviction.
func WithMaxSize(maxSize int) Option {
	return func(c *config) {
		c.maxSize = maxSize
	}
}
