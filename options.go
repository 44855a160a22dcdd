package fibers

import (
	"os"
	"time"

	"github.com/joeycumines/logiface"
)

// hubOptions holds configuration resolved during hub construction.
type hubOptions struct {
	reactor Reactor
	logger  *logiface.Logger[logiface.Event]
}

// HubOption configures a [Hub] at construction, see [GetHub].
type HubOption interface {
	applyHub(*hubOptions) error
}

type hubOptionImpl struct {
	applyHubFunc func(*hubOptions) error
}

func (o *hubOptionImpl) applyHub(opts *hubOptions) error {
	return o.applyHubFunc(opts)
}

// WithReactor substitutes the reactor driven by the hub, in place of the
// default returned by [NewReactor].
func WithReactor(r Reactor) HubOption {
	return &hubOptionImpl{func(opts *hubOptions) error {
		if r == nil {
			return newConfigurationError(`nil reactor`)
		}
		opts.reactor = r
		return nil
	}}
}

// WithLogger substitutes the hub's logger. The hub logs uncaught callback
// failures through it; by default a JSON logger writing to stderr at
// warning level is used.
func WithLogger(logger *logiface.Logger[logiface.Event]) HubOption {
	return &hubOptionImpl{func(opts *hubOptions) error {
		if logger == nil {
			return newConfigurationError(`nil logger`)
		}
		opts.logger = logger
		return nil
	}}
}

func resolveHubOptions(opts []HubOption) (*hubOptions, error) {
	cfg := &hubOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyHub(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.reactor == nil {
		cfg.reactor = NewReactor()
	}
	if cfg.logger == nil {
		cfg.logger = defaultLogger()
	}
	return cfg, nil
}

// switchOptions holds configuration for a single [Hub.Switch] call.
type switchOptions struct {
	timeout         time.Duration
	interruptSignal os.Signal
	interrupt       bool
}

// SwitchOption qualifies a [Hub.Switch] call.
type SwitchOption interface {
	applySwitch(*switchOptions) error
}

type switchOptionImpl struct {
	applySwitchFunc func(*switchOptions) error
}

func (o *switchOptionImpl) applySwitch(opts *switchOptions) error {
	return o.applySwitchFunc(opts)
}

// WithTimeout arms a one-shot reactor timer that resumes the suspended task
// after d, racing whatever condition the caller is really waiting for. The
// timer is released on every exit path, fired or not.
func WithTimeout(d time.Duration) SwitchOption {
	return &switchOptionImpl{func(opts *switchOptions) error {
		if d <= 0 {
			return newConfigurationError(`timeout must be positive`)
		}
		opts.timeout = d
		return nil
	}}
}

// WithInterrupt arms a one-shot watcher for the process interrupt signal
// (SIGINT on unix) that resumes the suspended task when it fires. Released
// on every exit path, like [WithTimeout].
func WithInterrupt() SwitchOption {
	return WithInterruptSignal(defaultInterruptSignal)
}

// WithInterruptSignal is [WithInterrupt] with an explicit signal.
func WithInterruptSignal(sig os.Signal) SwitchOption {
	return &switchOptionImpl{func(opts *switchOptions) error {
		if sig == nil {
			return newConfigurationError(`nil interrupt signal`)
		}
		opts.interrupt = true
		opts.interruptSignal = sig
		return nil
	}}
}

func resolveSwitchOptions(opts []SwitchOption) (*switchOptions, error) {
	cfg := &switchOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applySwitch(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
