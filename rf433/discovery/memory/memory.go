package memory

import (
	"sync"

	"github.com/TheusHen/rf433/rf433/discovery"
)

// Store is an in-memory discovery resolver.
// It backs static repeater lists from the configuration and tests.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]discovery.AddrInfo
}

func New() *Store {
	return &Store{nodes: map[string]discovery.AddrInfo{}}
}

func (s *Store) Announce(info discovery.AddrInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[info.Name] = info.Clone()
	return nil
}

func (s *Store) Lookup(name string) (discovery.AddrInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.nodes[name]
	if !ok {
		return discovery.AddrInfo{}, discovery.ErrNotFound
	}
	return info.Clone(), nil
}

func (s *Store) List() ([]discovery.AddrInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]discovery.AddrInfo, 0, len(s.nodes))
	for _, info := range s.nodes {
		out = append(out, info.Clone())
	}
	return out, nil
}

// Remove forgets the named node.
func (s *Store) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, name)
}
