// Package workspace manages isolated staging directories for workflow
// attempts. Each session gets a collision-free directory keyed by a
// freshly generated token; concurrent sessions never share a path.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/omlboard/omlboard/pkg/models"
)

var nameAllowList = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ErrInvalidName indicates a user-supplied path segment failed the
// allow-list check.
var ErrInvalidName = fmt.Errorf("name contains characters outside [A-Za-z0-9_-]")

// SanitizeName validates a user-controlled path segment before it is
// composed into a filesystem path.
func SanitizeName(name string) error {
	if name == "" || !nameAllowList.MatchString(name) {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}

	return nil
}

// Manager allocates and releases staging sessions under a single root.
type Manager struct {
	root   string
	logger *slog.Logger

	mu   sync.Mutex
	open map[string]*models.StagingSession
}

func NewManager(root string, logger *slog.Logger) *Manager {
	return &Manager{
		root:   root,
		logger: logger.With("module", "workspace"),
		open:   make(map[string]*models.StagingSession),
	}
}

// Allocate creates a fresh staging directory and registers the session
// as open. The directory name is a generated token, never derived from
// user-controlled content.
func (m *Manager) Allocate() (*models.StagingSession, error) {
	id := uuid.NewString()
	rootPath := filepath.Join(m.root, "sessions", id)

	err := os.MkdirAll(rootPath, 0o755)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	session := &models.StagingSession{
		ID:        id,
		RootPath:  rootPath,
		CreatedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.open[id] = session
	m.mu.Unlock()

	m.logger.Debug("Allocated staging session", "session_id", id, "root_path", rootPath)

	return session, nil
}

// Session returns the open session with the given id, if any.
func (m *Manager) Session(id string) (*models.StagingSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.open[id]

	return session, ok
}

// OpenSessions returns a snapshot of the currently open sessions.
func (m *Manager) OpenSessions() []*models.StagingSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := make([]*models.StagingSession, 0, len(m.open))
	for _, session := range m.open {
		sessions = append(sessions, session)
	}

	return sessions
}

// Release deletes the session's directory tree and deregisters it.
// Idempotent: releasing an already-released session is not an error.
func (m *Manager) Release(session *models.StagingSession) error {
	if session == nil {
		return nil
	}

	m.mu.Lock()
	delete(m.open, session.ID)
	m.mu.Unlock()

	err := os.RemoveAll(session.RootPath)
	if err != nil {
		return fmt.Errorf("failed to remove staging directory %s: %w", session.RootPath, err)
	}

	m.logger.Debug("Released staging session", "session_id", session.ID)

	return nil
}
