package pglisten

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/coregx/pglisten/client"
	"github.com/coregx/pglisten/retry"
)

// DefaultHealthCheckInterval is the default period of the connection health probe.
const DefaultHealthCheckInterval = 30 * time.Second

// Options is the resolved configuration of a Session.
// It is built once by NewSession and not modified afterwards.
type Options struct {
	// Name tags log lines of the session. Optional.
	Name string

	// NativeClient requests a libpq-backed client. The bundled client is pure Go,
	// so this is accepted for compatibility and only logged.
	NativeClient bool

	// HealthCheckInterval is the period of the health probe. 0 disables it.
	HealthCheckInterval time.Duration

	// RetryPolicy bounds each reconnect cycle.
	RetryPolicy retry.Policy

	// Parse decodes received payloads. Serialize encodes NOTIFY payloads.
	Parse     ParseFunc
	Serialize SerializeFunc

	Logger        Logger
	Alerts        AlertService
	ClientFactory client.Factory
}

// DefaultOptions returns the defaults: health check every 30s, the default retry
// policy (500ms interval, no attempt limit, 3s timeout), JSON codec, no logging,
// no alerts and the lib/pq client.
func DefaultOptions() Options {
	return Options{
		HealthCheckInterval: DefaultHealthCheckInterval,
		RetryPolicy:         retry.DefaultPolicy(),
		Parse:               JSONParse,
		Serialize:           JSONSerialize,
		Logger:              &NoopLogger{},
		Alerts:              &NoOpAlertService{},
		ClientFactory:       client.NewPQClient,
	}
}

// Validate checks the resolved options.
func (o Options) Validate() error {
	if err := validation.ValidateStruct(&o,
		validation.Field(&o.HealthCheckInterval, validation.Min(time.Duration(0))),
		validation.Field(&o.RetryPolicy),
	); err != nil {
		return err
	}

	switch {
	case o.Parse == nil:
		return fmt.Errorf("parse function is required")
	case o.Serialize == nil:
		return fmt.Errorf("serialize function is required")
	case o.Logger == nil:
		return fmt.Errorf("logger is required")
	case o.Alerts == nil:
		return fmt.Errorf("alert service is required")
	case o.ClientFactory == nil:
		return fmt.Errorf("client factory is required")
	}
	return nil
}

// Option is a function that configures a Session.
//
// Example:
//
//	session, err := pglisten.NewSession(cfg,
//	    pglisten.WithLogger(logger),
//	    pglisten.WithRetryLimit(10),
//	    pglisten.WithRetryTimeout(0), // bound by attempts only
//	)
type Option func(*Options) error

// WithName tags every log line of the session with name.
func WithName(name string) Option {
	return func(o *Options) error {
		o.Name = name
		return nil
	}
}

// WithNativeClient records the native client preference.
func WithNativeClient(native bool) Option {
	return func(o *Options) error {
		o.NativeClient = native
		return nil
	}
}

// WithHealthCheckInterval sets the health probe period. 0 disables the probe.
func WithHealthCheckInterval(interval time.Duration) Option {
	return func(o *Options) error {
		if interval < 0 {
			return fmt.Errorf("health check interval must be >= 0, got %v", interval)
		}
		o.HealthCheckInterval = interval
		return nil
	}
}

// WithoutHealthCheck disables the health probe.
func WithoutHealthCheck() Option {
	return WithHealthCheckInterval(0)
}

// WithRetryPolicy replaces the whole reconnect policy.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(o *Options) error {
		if err := policy.Validate(); err != nil {
			return fmt.Errorf("invalid retry policy: %w", err)
		}
		o.RetryPolicy = policy
		return nil
	}
}

// WithRetryInterval sets a fixed wait between reconnect attempts.
func WithRetryInterval(interval time.Duration) Option {
	return func(o *Options) error {
		if interval < 0 {
			return fmt.Errorf("retry interval must be >= 0, got %v", interval)
		}
		o.RetryPolicy.Interval = interval
		o.RetryPolicy.IntervalFunc = nil
		return nil
	}
}

// WithRetryIntervalFunc sets an attempt-indexed wait between reconnect attempts,
// e.g. retry.Exponential.
func WithRetryIntervalFunc(fn retry.IntervalFunc) Option {
	return func(o *Options) error {
		if fn == nil {
			return fmt.Errorf("retry interval function cannot be nil")
		}
		o.RetryPolicy.IntervalFunc = fn
		return nil
	}
}

// WithRetryLimit sets the maximum attempts per reconnect cycle.
// Use retry.Unlimited to remove the bound; 0 makes every cycle fail immediately.
func WithRetryLimit(limit int) Option {
	return func(o *Options) error {
		if limit < retry.Unlimited {
			return fmt.Errorf("retry limit must be >= 0 or retry.Unlimited, got %d", limit)
		}
		o.RetryPolicy.Limit = limit
		return nil
	}
}

// WithRetryTimeout sets the wall-clock bound of a reconnect cycle. 0 removes it.
func WithRetryTimeout(timeout time.Duration) Option {
	return func(o *Options) error {
		if timeout < 0 {
			return fmt.Errorf("retry timeout must be >= 0, got %v", timeout)
		}
		o.RetryPolicy.Timeout = timeout
		return nil
	}
}

// WithParse sets the payload decoder.
func WithParse(parse ParseFunc) Option {
	return func(o *Options) error {
		if parse == nil {
			return fmt.Errorf("parse function cannot be nil")
		}
		o.Parse = parse
		return nil
	}
}

// WithSerialize sets the payload encoder.
func WithSerialize(serialize SerializeFunc) Option {
	return func(o *Options) error {
		if serialize == nil {
			return fmt.Errorf("serialize function cannot be nil")
		}
		o.Serialize = serialize
		return nil
	}
}

// WithLogger sets the logger instance.
//
// Use NoopLogger for silent operation or adapters/zlog for structured logging.
func WithLogger(logger Logger) Option {
	return func(o *Options) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		o.Logger = logger
		return nil
	}
}

// WithAlerts sets an optional alert service.
// If not provided, NoOpAlertService is used.
func WithAlerts(alerts AlertService) Option {
	return func(o *Options) error {
		if alerts == nil {
			return fmt.Errorf("alert service cannot be nil")
		}
		o.Alerts = alerts
		return nil
	}
}

// WithClientFactory replaces the wire client, e.g. with a fake in tests.
func WithClientFactory(factory client.Factory) Option {
	return func(o *Options) error {
		if factory == nil {
			return fmt.Errorf("client factory cannot be nil")
		}
		o.ClientFactory = factory
		return nil
	}
}
