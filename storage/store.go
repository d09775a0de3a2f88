// Package storage opens the shared store selected by the config.
package storage

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/storage/kv"
	"github.com/trezcool/gradebook/storage/kv/memkv"
	"github.com/trezcool/gradebook/storage/kv/pgkv"
)

// Open returns the shared store of conf.Driver and the func closing it.
func Open(ctx context.Context, conf core.StoreConfig, logger core.Logger) (kv.Shared, func() error, error) {
	switch conf.Driver {
	case core.StoreMemory:
		return memkv.Open(), func() error { return nil }, nil
	case core.StorePostgres:
		db, err := pgkv.Open(ctx, conf, logger)
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening postgres store")
		}
		return db, db.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown store driver %q", conf.Driver)
	}
}

// Persistent reports whether data written to the store of conf outlives the process.
func Persistent(conf core.StoreConfig) bool {
	return conf.Driver == core.StorePostgres
}
