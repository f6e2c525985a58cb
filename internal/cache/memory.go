package cache

import (
	"context"
	"sync"

	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

// Memory keeps preferences and the last capture in process, for running
// without Redis.
type Memory struct {
	mu    sync.RWMutex
	prefs *models.Preferences
	def   models.Preferences
	last  *models.Capture
}

// NewMemory creates an empty store that answers misses with defaults
func NewMemory(defaults models.Preferences) *Memory {
	return &Memory{def: defaults}
}

// EnsureDefaults stores the defaults unless preferences exist
func (m *Memory) EnsureDefaults(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.prefs != nil {
		return false, nil
	}
	prefs := m.def
	m.prefs = &prefs
	return true, nil
}

// GetPreferences returns the stored preferences or the defaults
func (m *Memory) GetPreferences(ctx context.Context) (models.Preferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.prefs == nil {
		return m.def, nil
	}
	return *m.prefs, nil
}

// SetPreferences replaces the stored preferences
func (m *Memory) SetPreferences(ctx context.Context, prefs models.Preferences) error {
	m.mu.Lock()
	m.prefs = &prefs
	m.mu.Unlock()
	return nil
}

// SetLastCapture retains a copy of capture
func (m *Memory) SetLastCapture(ctx context.Context, capture *models.Capture) error {
	c := *capture
	c.Data = append([]byte(nil), capture.Data...)
	m.mu.Lock()
	m.last = &c
	m.mu.Unlock()
	return nil
}

// GetLastCapture returns the retained capture, or nil
func (m *Memory) GetLastCapture(ctx context.Context) (*models.Capture, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return nil, nil
	}
	c := *m.last
	return &c, nil
}
