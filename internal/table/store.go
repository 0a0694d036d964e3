package table

import (
	"context"
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Store owns the loaded tables. Reads are safe for concurrent callers;
// Reload swaps a whole table under the write lock so in-flight readers
// always see a consistent snapshot.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*Table
	paths  map[string]string
	order  []string
}

// NewStore creates an empty table store
func NewStore() *Store {
	return &Store{
		tables: make(map[string]*Table),
		paths:  make(map[string]string),
	}
}

// Load reads a CSV file and registers it under the table's name.
// Returned row errors describe malformed input rows.
func (s *Store) Load(path string) (*Table, []RowError, error) {
	t, rowErrors, err := LoadCSV(path)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tables[t.Name]; !exists {
		s.order = append(s.order, t.Name)
	}
	s.tables[t.Name] = t
	s.paths[t.Name] = path

	return t, rowErrors, nil
}

// Reload re-reads the backing file of the named table and swaps it in
func (s *Store) Reload(name string) (*Table, []RowError, error) {
	s.mu.RLock()
	path, ok := s.paths[name]
	s.mu.RUnlock()

	if !ok {
		return nil, nil, fmt.Errorf("no such table: %s", name)
	}

	t, rowErrors, err := LoadCSV(path)
	if err != nil {
		return nil, nil, err
	}
	t.Name = name

	s.mu.Lock()
	s.tables[name] = t
	s.mu.Unlock()

	return t, rowErrors, nil
}

// Get returns the named table
func (s *Store) Get(name string) (*Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tables[name]
	return t, ok
}

// Default returns the first loaded table
func (s *Store) Default() (*Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.order) == 0 {
		return nil, false
	}
	return s.tables[s.order[0]], true
}

// Names returns table names in load order
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

// Tables returns all tables in load order
func (s *Store) Tables() []*Table {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tables := make([]*Table, 0, len(s.order))
	for _, name := range s.order {
		tables = append(tables, s.tables[name])
	}
	return tables
}

// Watch reloads tables when their backing files change, invoking onReload
// after each successful swap. Blocks until the context is canceled.
func (s *Store) Watch(ctx context.Context, onReload func(name string, rowErrors []RowError)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	s.mu.RLock()
	byPath := make(map[string]string, len(s.paths))
	for name, path := range s.paths {
		byPath[path] = name
	}
	s.mu.RUnlock()

	for path := range byPath {
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			name, tracked := byPath[event.Name]
			if !tracked {
				continue
			}
			if _, rowErrors, err := s.Reload(name); err == nil && onReload != nil {
				onReload(name, rowErrors)
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
		}
	}
}
