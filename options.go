package goflow

// Option configures how vectorized operations are executed.
type Option func(*config)

type config struct {
	workers int
}

func newConfig(opts []Option) config {
	cfg := config{workers: 1}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithWorkers evaluates independent batch elements on up to n goroutines.
// Results are identical to sequential evaluation. Values below 2 keep
// evaluation sequential, which is the default.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}
