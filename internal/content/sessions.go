package content

import (
	"errors"
	"fmt"
	"sync"

	"github.com/therealutkarshpriyadarshi/substills/internal/dom"
	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

// ErrUnknownTab is returned for tabs that never sent a snapshot
var ErrUnknownTab = errors.New("no page loaded for tab")

// Sessions keeps one page service per tab. A new snapshot for a tab replaces
// its service, as a navigation would.
type Sessions struct {
	opts Options

	mu    sync.RWMutex
	pages map[string]*Service
}

// NewSessions creates an empty registry; opts apply to every page service
func NewSessions(opts Options) *Sessions {
	return &Sessions{
		opts:  opts,
		pages: make(map[string]*Service),
	}
}

// Load parses snapshot and installs it as the tab's current page
func (s *Sessions) Load(snapshot *models.PageSnapshot) (*Service, error) {
	if snapshot == nil || snapshot.TabID == "" {
		return nil, errors.New("snapshot has no tab id")
	}

	doc, err := dom.NewSnapshot(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to load page for tab %s: %w", snapshot.TabID, err)
	}

	svc := NewService(snapshot.TabID, doc, s.opts)
	s.mu.Lock()
	s.pages[snapshot.TabID] = svc
	s.mu.Unlock()
	return svc, nil
}

// Get returns the tab's page service
func (s *Sessions) Get(tabID string) (*Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.pages[tabID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTab, tabID)
	}
	return svc, nil
}

// Close forgets a tab
func (s *Sessions) Close(tabID string) {
	s.mu.Lock()
	delete(s.pages, tabID)
	s.mu.Unlock()
}

// Tabs lists the loaded tab ids
func (s *Sessions) Tabs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tabs := make([]string, 0, len(s.pages))
	for id := range s.pages {
		tabs = append(tabs, id)
	}
	return tabs
}
