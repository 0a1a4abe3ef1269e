package iwa

import "log/slog"

type openConfig struct {
	limits Limits
	logger *slog.Logger
	kind   Kind
}

type Option func(*openConfig)

func WithLimits(l Limits) Option {
	return func(c *openConfig) { c.limits = l }
}

// WithLogger routes debug output of the engine to l.
func WithLogger(l *slog.Logger) Option {
	return func(c *openConfig) { c.logger = l }
}

// WithKind overrides the package kind that would otherwise be derived from
// the file extension.
func WithKind(k Kind) Option {
	return func(c *openConfig) { c.kind = k }
}

func newOpenConfig(opts []Option) openConfig {
	cfg := openConfig{limits: defaultLimits()}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.limits = cfg.limits.withDefaults()
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	return cfg
}
