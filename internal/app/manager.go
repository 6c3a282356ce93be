package app

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/membrane/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/membrane"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/object"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/sandbox"
	"github.com/GriffinCanCode/AgentOS/membrane/internal/shared/id"
)

var ErrSessionNotFound = errors.New("app session not found")

// State represents session lifecycle states
type State string

const (
	StateActive    State = "active"
	StateDestroyed State = "destroyed"
)

// Session is one guest application: a script runtime in a field of its own
type Session struct {
	ID        id.AppID
	Name      string
	Field     membrane.Field
	State     State
	ParentID  *id.AppID
	CreatedAt time.Time
	Runtime   *sandbox.Runtime
}

// Stats summarizes the manager
type Stats struct {
	TotalSessions  int      `json:"total_sessions"`
	ActiveSessions int      `json:"active_sessions"`
	Fields         []string `json:"fields"`
}

// Manager orchestrates session lifecycle. Closing a session revokes its
// field, so nothing it was handed keeps working.
type Manager struct {
	sessions sync.Map
	membrane *membrane.Membrane
	config   sandbox.Config
	logger   *logging.Logger
}

// NewManager creates a new session manager. config supplies the host field
// and runtime limits; every session gets its own guest field.
func NewManager(m *membrane.Membrane, config sandbox.Config, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		membrane: m,
		config:   config,
		logger:   logger,
	}
}

// Spawn creates a new session, optionally as a child of parentID
func (mg *Manager) Spawn(name string, parentID *id.AppID) (*Session, error) {
	if name == "" {
		name = "Untitled App"
	}
	if parentID != nil {
		if _, ok := mg.Get(*parentID); !ok {
			return nil, fmt.Errorf("%w: parent %s", ErrSessionNotFound, *parentID)
		}
	}

	sid := id.NewAppID()
	cfg := mg.config
	cfg.Field = membrane.Field(sid)

	rt, err := sandbox.New(mg.membrane, cfg, mg.logger.ForField(string(cfg.Field)).Logger)
	if err != nil {
		return nil, fmt.Errorf("spawn %s: %w", name, err)
	}

	session := &Session{
		ID:        sid,
		Name:      name,
		Field:     cfg.Field,
		State:     StateActive,
		ParentID:  parentID,
		CreatedAt: time.Now(),
		Runtime:   rt,
	}
	mg.sessions.Store(sid, session)

	mg.logger.Info("Session spawned", zap.String("app_id", sid.String()), zap.String("name", name))
	return session, nil
}

// Expose hands a host value to one session
func (mg *Manager) Expose(sid id.AppID, name string, value object.Value) error {
	session, ok := mg.Get(sid)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sid)
	}
	return session.Runtime.Expose(name, value)
}

// Get retrieves a session by ID
func (mg *Manager) Get(sid id.AppID) (*Session, bool) {
	val, ok := mg.sessions.Load(sid)
	if !ok {
		return nil, false
	}
	return val.(*Session), true
}

// List returns all sessions, optionally filtered by state, oldest first
func (mg *Manager) List(state *State) []*Session {
	var sessions []*Session
	mg.sessions.Range(func(_, value interface{}) bool {
		session := value.(*Session)
		if state == nil || session.State == *state {
			sessions = append(sessions, session)
		}
		return true
	})
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
	return sessions
}

// Close destroys a session and its children
func (mg *Manager) Close(sid id.AppID) bool {
	session, ok := mg.Get(sid)
	if !ok {
		return false
	}

	// Close children first
	mg.sessions.Range(func(_, value interface{}) bool {
		child := value.(*Session)
		if child.ParentID != nil && *child.ParentID == sid {
			mg.Close(child.ID)
		}
		return true
	})

	if h, err := mg.membrane.GetHandlerByField(session.Field, false); err == nil {
		h.RevokeEverything()
	}
	session.Runtime.Close()

	// Mark destroyed and remove
	session.State = StateDestroyed
	mg.sessions.Delete(sid)

	mg.logger.Info("Session closed", zap.String("app_id", sid.String()))
	return true
}

// CloseAll destroys every session
func (mg *Manager) CloseAll() {
	for _, session := range mg.List(nil) {
		mg.Close(session.ID)
	}
}

// Stats returns manager statistics
func (mg *Manager) Stats() Stats {
	var stats Stats
	mg.sessions.Range(func(_, value interface{}) bool {
		session := value.(*Session)
		stats.TotalSessions++
		if session.State == StateActive {
			stats.ActiveSessions++
		}
		stats.Fields = append(stats.Fields, string(session.Field))
		return true
	})
	sort.Strings(stats.Fields)
	return stats
}
