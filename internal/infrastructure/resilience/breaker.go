package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker rejects a call outright.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// BreakerSettings configures breaker behavior.
type BreakerSettings struct {
	// FailureThreshold is the number of consecutive failures that trips the
	// breaker open.
	FailureThreshold int
	// CoolDown is how long the breaker stays open before allowing a probe.
	CoolDown time.Duration
	// OnStateChange is invoked on every transition.
	OnStateChange func(name string, from, to State)
}

// Breaker is a minimal circuit breaker: it trips open after a run of
// consecutive failures, stays open for a cool-down period, then allows a
// single probe call. A successful probe closes it again.
type Breaker struct {
	name     string
	settings BreakerSettings

	mu            sync.Mutex
	state         State
	failures      int
	openedAt      time.Time
	probeInFlight bool
}

// NewBreaker creates a circuit breaker with the given settings.
func NewBreaker(name string, settings BreakerSettings) *Breaker {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.CoolDown <= 0 {
		settings.CoolDown = 30 * time.Second
	}
	return &Breaker{name: name, settings: settings, state: StateClosed}
}

// Name returns the breaker name.
func (b *Breaker) Name() string { return b.name }

// State returns the current state, accounting for cool-down expiry.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

// Execute runs fn if the breaker allows it.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn()
	b.record(err == nil)
	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentState() {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.probeInFlight {
			return ErrCircuitOpen
		}
		b.probeInFlight = true
	}
	return nil
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.currentState()
	b.probeInFlight = false

	if success {
		b.failures = 0
		if state == StateHalfOpen {
			b.setState(StateClosed)
		}
		return
	}

	switch state {
	case StateClosed:
		b.failures++
		if b.failures >= b.settings.FailureThreshold {
			b.trip()
		}
	case StateHalfOpen:
		b.trip()
	}
}

// currentState applies cool-down expiry. Caller holds the lock.
func (b *Breaker) currentState() State {
	if b.state == StateOpen && time.Since(b.openedAt) >= b.settings.CoolDown {
		b.setState(StateHalfOpen)
	}
	return b.state
}

func (b *Breaker) trip() {
	b.openedAt = time.Now()
	b.setState(StateOpen)
}

// setState changes state and fires the callback. Caller holds the lock.
func (b *Breaker) setState(state State) {
	if b.state == state {
		return
	}
	prev := b.state
	b.state = state
	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, prev, state)
	}
}
