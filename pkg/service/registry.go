package service

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smartpanel-home/panel-go/pkg/attestation"
	"github.com/smartpanel-home/panel-go/pkg/commissioning"
	"github.com/smartpanel-home/panel-go/pkg/cred"
	"github.com/smartpanel-home/panel-go/pkg/log"
)

// Registry tracks the single active commissioning session per
// authenticated channel.
type Registry struct {
	mu       sync.Mutex
	store    *cred.Store
	engine   *attestation.Engine
	window   time.Duration
	logger   log.Logger
	sessions map[string]*registeredSession
}

type registeredSession struct {
	// id is a fresh UUID per session, used for log correlation.
	id      string
	session *commissioning.Session
}

// NewRegistry creates an empty session registry.
func NewRegistry(store *cred.Store, engine *attestation.Engine, window time.Duration, logger log.Logger) *Registry {
	return &Registry{
		store:    store,
		engine:   engine,
		window:   window,
		logger:   logger,
		sessions: make(map[string]*registeredSession),
	}
}

// SessionFor returns the channel's commissioning session, creating one
// on first use. A terminal session stays registered so late commands
// keep getting rejected; the transport must release the channel before
// a new attempt can start.
func (r *Registry) SessionFor(channelID string) (*commissioning.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if reg, ok := r.sessions[channelID]; ok {
		return reg.session, nil
	}

	id := uuid.NewString()
	s, err := commissioning.NewSession(r.store, r.engine, commissioning.Config{
		Window:    r.window,
		Logger:    r.logger,
		ChannelID: id,
	})
	if err != nil {
		return nil, err
	}
	r.sessions[channelID] = &registeredSession{id: id, session: s}
	return s, nil
}

// SessionID returns the log-correlation id for the channel's session,
// empty if none exists.
func (r *Registry) SessionID(channelID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.sessions[channelID]; ok {
		return reg.id
	}
	return ""
}

// Release drops the channel's session, aborting it if still active.
// Called when the transport closes the authenticated channel.
func (r *Registry) Release(channelID string) {
	r.mu.Lock()
	reg, ok := r.sessions[channelID]
	delete(r.sessions, channelID)
	r.mu.Unlock()

	if ok {
		reg.session.Abort("channel released")
	}
}

// Close aborts and drops every active session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*registeredSession)
	r.mu.Unlock()

	for _, reg := range sessions {
		reg.session.Abort("service shutdown")
	}
}

// ActiveCount returns the number of registered sessions.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
