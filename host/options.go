package host

// Option defines a functional option for configuring the Executor.
type Option func(*executorConfig)

type executorConfig struct {
	loggers           *LoggerTable
	instanceOpts      []InstanceOption
	memoryLimitPages  uint32
	maxLogMessageSize int
}

// WithLoggers sets the logger table engines log through. By default the
// executor creates one over slog.Default.
func WithLoggers(t *LoggerTable) Option {
	return func(c *executorConfig) {
		c.loggers = t
	}
}

// WithMemoryLimitPages caps the linear memory of every engine, in 64KiB pages.
func WithMemoryLimitPages(pages uint32) Option {
	return func(c *executorConfig) {
		c.memoryLimitPages = pages
	}
}

// WithMaxLogMessageSize truncates log messages read from engine memory.
// Zero keeps the built-in limit.
func WithMaxLogMessageSize(size int) Option {
	return func(c *executorConfig) {
		c.maxLogMessageSize = size
	}
}

// WithInstanceOptions applies opts to every Instance the executor opens.
func WithInstanceOptions(opts ...InstanceOption) Option {
	return func(c *executorConfig) {
		c.instanceOpts = append(c.instanceOpts, opts...)
	}
}
