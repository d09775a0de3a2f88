// Package memkv is an in-process kv.Store: many handles (tabs) sharing one map.
package memkv

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/gradebook/storage/kv"
)

type (
	DB struct {
		sync.RWMutex
		deliver   sync.Mutex // keeps notifications in write order
		table     map[string]string
		listeners map[string]map[int]kv.Listener // {origin: {id: Listener}}
		nextID    int
	}

	store struct {
		db     *DB
		origin string
	}
)

var _ kv.Store = (*store)(nil) // interface compliance check

func Open() *DB {
	return &DB{
		table:     make(map[string]string),
		listeners: make(map[string]map[int]kv.Listener),
	}
}

// NewStore returns a new handle on db, with its own origin.
func (db *DB) NewStore() kv.Store {
	return &store{db: db, origin: uuid.New().String()}
}

// Len returns the number of stored keys.
func (db *DB) Len() int {
	db.RLock()
	defer db.RUnlock()
	return len(db.table)
}

// broadcast notifies every listener not owned by origin. Must be called without holding the lock.
func (db *DB) broadcast(origin string, ch kv.Change) {
	db.RLock()
	var targets []kv.Listener
	for o, ls := range db.listeners {
		if o == origin {
			continue
		}
		for _, l := range ls {
			targets = append(targets, l)
		}
	}
	db.RUnlock()

	for _, l := range targets {
		l(ch)
	}
}

func (s *store) Origin() string {
	return s.origin
}

func (s *store) Get(_ context.Context, key string) (string, bool, error) {
	s.db.RLock()
	defer s.db.RUnlock()

	val, ok := s.db.table[key]
	return val, ok, nil
}

func (s *store) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.db.deliver.Lock()
	defer s.db.deliver.Unlock()

	s.db.Lock()
	s.db.table[key] = value
	s.db.Unlock()

	s.db.broadcast(s.origin, kv.Change{Key: key, Value: value})
	return nil
}

func (s *store) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.db.deliver.Lock()
	defer s.db.deliver.Unlock()

	s.db.Lock()
	delete(s.db.table, key)
	s.db.Unlock()

	s.db.broadcast(s.origin, kv.Change{Key: key, Cleared: true})
	return nil
}

func (s *store) Subscribe(l kv.Listener) func() {
	s.db.Lock()
	defer s.db.Unlock()

	s.db.nextID++
	id := s.db.nextID
	if s.db.listeners[s.origin] == nil {
		s.db.listeners[s.origin] = make(map[int]kv.Listener)
	}
	s.db.listeners[s.origin][id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			s.db.Lock()
			defer s.db.Unlock()
			delete(s.db.listeners[s.origin], id)
		})
	}
}
