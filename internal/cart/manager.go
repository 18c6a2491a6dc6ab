package cart

import (
	"strings"
	"sync"

	"github.com/raritone/session-backend/pkg/eventbus"
	pkgerrors "github.com/raritone/session-backend/pkg/errors"
	"github.com/raritone/session-backend/pkg/logger"
)

// ManagerParams groups dependencies for the facade manager.
type ManagerParams struct {
	Local  LocalStore
	Remote RemoteStore
	Bus    *eventbus.Bus
	Logger *logger.Logger
}

// Manager hands out exactly one Facade per session id, creating them lazily.
// All callers operating on the same session share the same facade and
// therefore the same mutation queue.
type Manager struct {
	local  LocalStore
	remote RemoteStore
	bus    *eventbus.Bus
	logg   *logger.Logger

	mu      sync.Mutex
	facades map[string]*Facade
}

// NewManager builds a facade manager with the required dependencies.
func NewManager(params ManagerParams) (*Manager, error) {
	if params.Local == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "local store is required")
	}
	if params.Remote == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "remote store is required")
	}
	if params.Bus == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event bus is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	return &Manager{
		local:   params.Local,
		remote:  params.Remote,
		bus:     params.Bus,
		logg:    params.Logger,
		facades: map[string]*Facade{},
	}, nil
}

// Facade returns the session's facade, creating it on first use.
func (m *Manager) Facade(sessionID string) (*Facade, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.facades[sessionID]; ok {
		return f, nil
	}
	f := newFacade(sessionID, m.local, m.remote, m.bus, m.logg)
	m.facades[sessionID] = f
	return f, nil
}

// Drop forgets the session's facade, releasing its in-memory state. The next
// Facade call for the id starts fresh from the stores.
func (m *Manager) Drop(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.facades, sessionID)
}
