package discovery

import (
	"context"
	"sync"
	"time"
)

// DefaultCommissioningWindow is how long the commissionable
// advertisement stays open when no duration is given.
const DefaultCommissioningWindow = 15 * time.Minute

// State is the device's discovery state.
type State uint8

const (
	// StateIdle means nothing is advertised.
	StateIdle State = iota

	// StateCommissioning means the commissioning window is open.
	StateCommissioning

	// StateOperational means at least one fabric is advertised and the
	// commissioning window is closed.
	StateOperational
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateCommissioning:
		return "COMMISSIONING"
	case StateOperational:
		return "OPERATIONAL"
	default:
		return "UNKNOWN"
	}
}

// Manager drives the device's discovery lifecycle: it opens and closes
// the commissioning window and keeps one operational advertisement per
// committed fabric.
type Manager struct {
	mu sync.Mutex

	advertiser Advertiser
	info       *CommissionableInfo

	state       State
	windowTimer *time.Timer
	operational map[string]*OperationalInfo

	onStateChange func(old, new State)
}

// NewManager creates a discovery manager advertising through the given
// advertiser.
func NewManager(advertiser Advertiser, info *CommissionableInfo) *Manager {
	return &Manager{
		advertiser:  advertiser,
		info:        info,
		operational: make(map[string]*OperationalInfo),
	}
}

// State returns the current discovery state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnStateChange sets a callback for state changes.
func (m *Manager) OnStateChange(fn func(old, new State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// OpenCommissioningWindow starts the commissionable advertisement. The
// window closes itself after the given duration; zero selects
// DefaultCommissioningWindow.
func (m *Manager) OpenCommissioningWindow(ctx context.Context, duration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if duration == 0 {
		duration = DefaultCommissioningWindow
	}
	if err := m.advertiser.AdvertiseCommissionable(ctx, m.info); err != nil {
		return err
	}

	if m.windowTimer != nil {
		m.windowTimer.Stop()
	}
	m.windowTimer = time.AfterFunc(duration, func() {
		_ = m.CloseCommissioningWindow()
	})

	m.setStateLocked(StateCommissioning)
	return nil
}

// CloseCommissioningWindow withdraws the commissionable advertisement.
// Called on successful commissioning, user cancellation, or window
// timeout.
func (m *Manager) CloseCommissioningWindow() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.windowTimer != nil {
		m.windowTimer.Stop()
		m.windowTimer = nil
	}
	if err := m.advertiser.StopCommissionable(); err != nil {
		return err
	}

	if len(m.operational) > 0 {
		m.setStateLocked(StateOperational)
	} else {
		m.setStateLocked(StateIdle)
	}
	return nil
}

// AddFabric starts the operational advertisement for a committed
// fabric.
func (m *Manager) AddFabric(ctx context.Context, info *OperationalInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.advertiser.AdvertiseOperational(ctx, info); err != nil {
		return err
	}
	m.operational[info.InstanceName()] = info

	if m.state != StateCommissioning {
		m.setStateLocked(StateOperational)
	}
	return nil
}

// RemoveFabric withdraws one fabric's operational advertisement.
func (m *Manager) RemoveFabric(instanceName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.operational[instanceName]; !exists {
		return ErrNotAdvertising
	}
	if err := m.advertiser.StopOperational(instanceName); err != nil {
		return err
	}
	delete(m.operational, instanceName)

	if len(m.operational) == 0 && m.state == StateOperational {
		m.setStateLocked(StateIdle)
	}
	return nil
}

// FabricCount returns the number of advertised fabrics.
func (m *Manager) FabricCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.operational)
}

// Stop withdraws all advertisements.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.windowTimer != nil {
		m.windowTimer.Stop()
		m.windowTimer = nil
	}
	m.advertiser.StopAll()
	m.operational = make(map[string]*OperationalInfo)
	m.setStateLocked(StateIdle)
}

func (m *Manager) setStateLocked(next State) {
	if m.state == next {
		return
	}
	old := m.state
	m.state = next
	if m.onStateChange != nil {
		m.onStateChange(old, next)
	}
}
