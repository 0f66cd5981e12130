// Package reconnect wraps session reconnect attempts in a circuit
// breaker so repeated failures against an unreachable target fail
// fast instead of retrying the full dial timeout on every call.
package reconnect

import (
	"time"

	"github.com/sony/gobreaker"
)

// Breaker implements cipclient.Breaker.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// Config tunes the underlying gobreaker settings.
type Config struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	ConsecutiveTrips uint32
}

// DefaultConfig trips after 5 consecutive failures and stays open 30s
// before allowing a single probe request through.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      1,
		Interval:         0,
		Timeout:          30 * time.Second,
		ConsecutiveTrips: 5,
	}
}

// New builds a Breaker from cfg.
func New(cfg Config) *Breaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveTrips
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute implements cipclient.Breaker.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// State reports the breaker's current state, for health checks.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
