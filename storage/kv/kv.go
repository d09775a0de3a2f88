// Package kv defines the shared key-value store every app instance persists to.
//
// A Store handle belongs to one app instance (one "tab"). Writes through a handle
// are announced to the subscribers of every other handle on the same store, never
// to the writer itself.
package kv

import "context"

// Change announces that key was written (or cleared) by another instance.
type Change struct {
	Key     string
	Value   string // the full serialized collection
	Cleared bool   // key was removed
}

// Listener receives Changes. It must not block: it runs on the writer's (or listener's) goroutine.
type Listener func(Change)

type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	// Subscribe registers l for changes made by other instances. Calling the returned func unsubscribes.
	Subscribe(l Listener) (unsubscribe func())
	// Origin identifies this handle's writes.
	Origin() string
}

// Shared hands out Store handles, one per app instance, on the same underlying store.
type Shared interface {
	NewStore() Store
}
