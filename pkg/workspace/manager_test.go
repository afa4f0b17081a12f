package workspace

import (
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "plain", input: "alice", wantErr: false},
		{name: "with underscore and dash", input: "project_a-1", wantErr: false},
		{name: "empty", input: "", wantErr: true},
		{name: "path traversal", input: "../etc", wantErr: true},
		{name: "embedded slash", input: "a/b", wantErr: true},
		{name: "spaces", input: "my project", wantErr: true},
		{name: "dot", input: "a.b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SanitizeName(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestManager_Allocate_CreatesDirectory(t *testing.T) {
	manager := NewManager(t.TempDir(), slog.Default())

	session, err := manager.Allocate()
	require.NoError(t, err)

	info, err := os.Stat(session.RootPath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	got, ok := manager.Session(session.ID)
	require.True(t, ok)
	assert.Equal(t, session.RootPath, got.RootPath)
}

func TestManager_Allocate_ConcurrentSessionsAreDisjoint(t *testing.T) {
	manager := NewManager(t.TempDir(), slog.Default())

	const sessions = 32

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		paths = make(map[string]struct{})
	)

	for range sessions {
		wg.Add(1)

		go func() {
			defer wg.Done()

			session, err := manager.Allocate()
			assert.NoError(t, err)

			mu.Lock()
			paths[session.RootPath] = struct{}{}
			mu.Unlock()
		}()
	}

	wg.Wait()

	assert.Len(t, paths, sessions)
	assert.Len(t, manager.OpenSessions(), sessions)
}

func TestManager_Release_Idempotent(t *testing.T) {
	manager := NewManager(t.TempDir(), slog.Default())

	session, err := manager.Allocate()
	require.NoError(t, err)

	require.NoError(t, manager.Release(session))

	_, err = os.Stat(session.RootPath)
	assert.True(t, os.IsNotExist(err))

	// Releasing again must not fail.
	assert.NoError(t, manager.Release(session))
	assert.NoError(t, manager.Release(nil))

	_, ok := manager.Session(session.ID)
	assert.False(t, ok)
}

func TestJanitor_Sweep_ReleasesExpiredSessions(t *testing.T) {
	manager := NewManager(t.TempDir(), slog.Default())

	expired, err := manager.Allocate()
	require.NoError(t, err)

	expired.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)

	fresh, err := manager.Allocate()
	require.NoError(t, err)

	janitor := NewJanitor(manager, time.Hour)
	janitor.Sweep()

	_, ok := manager.Session(expired.ID)
	assert.False(t, ok)

	_, ok = manager.Session(fresh.ID)
	assert.True(t, ok)
}
