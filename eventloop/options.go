// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"errors"

	"github.com/joeycumines/go-reactor/reactor"
)

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	logger         *reactor.Logger
	reactorOptions []reactor.Option
	postCapacity   int
}

// --- Loop Options ---

// LoopOption configures a Loop instance.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements LoopOption.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithLogger sets the logger used by the loop, and by its multiplexer.
// A nil logger (the default) disables logging.
func WithLogger(logger *reactor.Logger) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithReactorOptions passes options through to reactor.New. The loop always
// installs its own pending-work check, replacing any reactor.WithPendingWork.
func WithReactorOptions(options ...reactor.Option) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.reactorOptions = append(opts.reactorOptions, options...)
		return nil
	}}
}

// WithPostCapacity bounds the number of queued posted events. Post fails with
// ErrPostQueueFull once reached. Zero (the default) means unbounded.
func WithPostCapacity(n int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if n < 0 {
			return errors.New("eventloop: post capacity must not be negative")
		}
		opts.postCapacity = n
		return nil
	}}
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
