// Package connectivity decides whether the sync engine should attempt to
// reach the remote store. A cheap platform-level signal is consulted
// first; when it claims we are online, an active bounded-timeout probe
// corroborates before the orchestrator is allowed to drain.
package connectivity

import (
	"context"
	"sync/atomic"
	"time"

	"planik/internal/events"

	"github.com/rs/zerolog"
)

// Signal is the cheap reachability flag. When it reports offline it is
// trusted immediately; online reports are corroborated by the prober.
type Signal interface {
	Online() bool
}

// Prober performs the active connectivity check. A nil error means the
// probe endpoint answered within the timeout.
type Prober interface {
	Probe(ctx context.Context) error
}

type Monitor struct {
	signal       Signal
	prober       Prober
	bus          *events.EventBus
	logger       *zerolog.Logger
	probeTimeout time.Duration

	online atomic.Bool
}

func NewMonitor(signal Signal, prober Prober, probeTimeout time.Duration, bus *events.EventBus, logger *zerolog.Logger) *Monitor {
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	lg := logger.With().Str("component", "connectivity").Logger()
	m := &Monitor{
		signal:       signal,
		prober:       prober,
		bus:          bus,
		logger:       &lg,
		probeTimeout: probeTimeout,
	}
	m.online.Store(signal.Online())
	return m
}

// IsOnline returns the last known connectivity state without probing.
func (m *Monitor) IsOnline() bool {
	return m.online.Load()
}

// Check re-evaluates connectivity with a fresh probe. The cheap signal
// short-circuits an offline verdict without probing; otherwise a probe
// failure or timeout counts as offline even though the signal disagreed.
// Transitions are published on the event bus.
func (m *Monitor) Check(ctx context.Context) bool {
	if !m.signal.Online() {
		m.setOnline(false)
		return false
	}

	if m.prober == nil {
		m.setOnline(true)
		return true
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	err := m.prober.Probe(probeCtx)
	cancel()
	if err != nil {
		m.logger.Debug().Err(err).Msg("connectivity probe failed")
	}

	ok := err == nil
	m.setOnline(ok)
	return ok
}

// SetOnline force-sets the state, bypassing signal and probe. Used when
// the host application receives a platform connectivity callback.
func (m *Monitor) SetOnline(online bool) {
	m.setOnline(online)
}

func (m *Monitor) setOnline(online bool) {
	previous := m.online.Swap(online)
	if previous == online {
		return
	}

	m.logger.Info().Bool("online", online).Msg("connectivity changed")
	if m.bus != nil {
		_ = m.bus.PublishJSON(events.EventConnectivityChanged, events.ConnectivityPayload{
			Online: online,
			At:     time.Now(),
		})
	}
}

// Watch re-checks connectivity on an interval until ctx is done, so
// transitions are noticed even without platform callbacks.
func (m *Monitor) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
