package reactor

import (
	"errors"
	"time"
)

// options holds configuration for Multiplexer creation.
type options struct {
	logger        *Logger
	pendingWork   func() bool
	misuseRates   map[time.Duration]int
	backends      []BackendKind
	maxEvents     int
	edgeTriggered bool
}

// Option configures a Multiplexer.
type Option interface {
	applyMultiplexer(*options) error
}

type optionImpl struct {
	applyMultiplexerFunc func(*options) error
}

func (x *optionImpl) applyMultiplexer(opts *options) error {
	return x.applyMultiplexerFunc(opts)
}

// WithLogger sets the logger. A nil logger (the default) disables logging.
func WithLogger(logger *Logger) Option {
	return &optionImpl{func(opts *options) error {
		opts.logger = logger
		return nil
	}}
}

// WithBackends overrides the backend priority order. Kinds not supported on
// the current platform are skipped, with a logged degradation.
func WithBackends(kinds ...BackendKind) Option {
	return &optionImpl{func(opts *options) error {
		if len(kinds) == 0 {
			return errors.New("reactor: WithBackends requires at least one backend")
		}
		for _, k := range kinds {
			if k == BackendNone || k > backendMax {
				return errors.New("reactor: WithBackends: invalid backend " + k.String())
			}
		}
		opts.backends = append([]BackendKind(nil), kinds...)
		return nil
	}}
}

// WithMaxEvents sets the number of readiness events harvested per backend
// call. Defaults to 256.
func WithMaxEvents(n int) Option {
	return &optionImpl{func(opts *options) error {
		if n <= 0 {
			return errors.New("reactor: WithMaxEvents must be positive")
		}
		opts.maxEvents = n
		return nil
	}}
}

// WithEdgeTriggered controls whether the readiness-queue backends (epoll,
// kqueue) report edges (the default) or levels. Ignored by poll and select,
// which are always level triggered.
func WithEdgeTriggered(enabled bool) Option {
	return &optionImpl{func(opts *options) error {
		opts.edgeTriggered = enabled
		return nil
	}}
}

// WithPendingWork installs a check, consulted by Wait after draining wakeups
// and before blocking. If it reports true the backend is polled without
// blocking. The owner must make work visible to the check before raising the
// wakeup that announces it.
func WithPendingWork(fn func() bool) Option {
	return &optionImpl{func(opts *options) error {
		opts.pendingWork = fn
		return nil
	}}
}

// WithMisuseRateLimits overrides the rate limits applied to programming-error
// reports. A nil or empty map disables limiting.
func WithMisuseRateLimits(rates map[time.Duration]int) Option {
	return &optionImpl{func(opts *options) error {
		opts.misuseRates = rates
		return nil
	}}
}

// WithConfig applies a Config. Unset fields keep their defaults.
func WithConfig(cfg Config) Option {
	return &optionImpl{func(opts *options) error {
		return cfg.apply(opts)
	}}
}

// resolveOptions applies Option instances to options.
func resolveOptions(opts []Option) (*options, error) {
	cfg := &options{
		backends:      defaultBackends(),
		maxEvents:     256,
		edgeTriggered: true,
		misuseRates:   defaultMisuseRates,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyMultiplexer(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
