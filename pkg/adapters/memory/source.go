package memory

import (
	"context"
	"sync"

	"github.com/aretw0/contract/pkg/manifest"
)

// Source implements ports.Source and ports.Watchable for a manifest held
// in memory. Set replaces the manifest and notifies watchers.
type Source struct {
	mu       sync.RWMutex
	manifest *manifest.Manifest
	watchers map[chan string]struct{}
}

// NewSource creates a source serving m. A nil m serves an empty manifest.
func NewSource(m *manifest.Manifest) *Source {
	if m == nil {
		m = &manifest.Manifest{}
	}
	return &Source{
		manifest: m.Clone(),
		watchers: make(map[chan string]struct{}),
	}
}

// NewSourceFromEntries builds the manifest from declarations, which
// makes tests read like the YAML they stand for.
func NewSourceFromEntries(types map[string]string, entries ...manifest.Entry) (*Source, error) {
	m, err := manifest.New(types, entries...)
	if err != nil {
		return nil, err
	}
	return NewSource(m), nil
}

// Load returns a copy of the current manifest.
func (s *Source) Load(ctx context.Context) (*manifest.Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manifest.Clone(), nil
}

// Set replaces the manifest and signals every watcher.
func (s *Source) Set(m *manifest.Manifest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifest = m.Clone()
	for ch := range s.watchers {
		select {
		case ch <- "memory":
		default:
			// A pending signal already asks for a reload.
		}
	}
}

// Watch implements ports.Watchable.
func (s *Source) Watch(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, 1)

	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch, nil
}
