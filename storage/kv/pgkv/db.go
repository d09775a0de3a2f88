// Package pgkv is a kv.Store shared by many processes through one PostgreSQL table.
// Writes are announced with NOTIFY; every process LISTENs and fans the changes out to its handles.
package pgkv

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/kat-co/vala"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/storage/kv"
)

const (
	minReconnect = 10 * time.Millisecond
	maxReconnect = time.Minute
)

var identRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

type (
	DB struct {
		db       *sqlx.DB
		listener *pq.Listener
		logger   core.Logger
		channel  string
		queries  queries

		mu        sync.RWMutex
		listeners map[string]map[int]kv.Listener // {origin: {id: Listener}}
		nextID    int

		done chan struct{}
		wg   sync.WaitGroup
	}

	store struct {
		db     *DB
		origin string
	}

	queries struct {
		create, get, all, set, remove string
	}

	// notice is the NOTIFY payload; the value is re-read from the table (payloads are capped at 8000 bytes).
	notice struct {
		Key     string `json:"key"`
		Origin  string `json:"origin"`
		Cleared bool   `json:"cleared,omitempty"`
	}

	entry struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
)

var _ kv.Store = (*store)(nil) // interface compliance check

func newQueries(table string) queries {
	t := pq.QuoteIdentifier(table)
	return queries{
		create: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	origin     TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, t),
		get: fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, t),
		all: fmt.Sprintf(`SELECT key, value FROM %s ORDER BY key`, t),
		set: fmt.Sprintf(`INSERT INTO %s (key, value, origin, updated_at) VALUES ($1, $2, $3, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, origin = EXCLUDED.origin, updated_at = EXCLUDED.updated_at`, t),
		remove: fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, t),
	}
}

// Open connects to conf.DSN, creates the table if needed and starts listening on conf.Channel.
func Open(ctx context.Context, conf core.StoreConfig, logger core.Logger) (db *DB, err error) {
	defer func() {
		if r := recover(); r != nil && err == nil {
			err = errors.Errorf("opening store: %v", r)
		}
	}()
	vala.BeginValidation().Validate(
		vala.StringNotEmpty(conf.DSN, "conf.DSN"),
		vala.StringNotEmpty(conf.Channel, "conf.Channel"),
		vala.StringNotEmpty(conf.Table, "conf.Table"),
		vala.IsNotNil(logger, "logger"),
	).CheckSetErrorAndPanic(&err)

	if !identRegex.MatchString(conf.Table) || !identRegex.MatchString(conf.Channel) {
		return nil, errors.Errorf("invalid table %q or channel %q: use lower case letters, digits and underscores", conf.Table, conf.Channel)
	}

	sqlDB, err := sqlx.Open("postgres", conf.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = ping(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	db = &DB{
		db:        sqlDB,
		logger:    logger,
		channel:   conf.Channel,
		queries:   newQueries(conf.Table),
		listeners: make(map[string]map[int]kv.Listener),
		done:      make(chan struct{}),
	}
	if _, err = sqlDB.ExecContext(ctx, db.queries.create); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "creating table")
	}

	db.listener = pq.NewListener(conf.DSN, minReconnect, maxReconnect, db.onListenerEvent)
	if err = db.listener.Listen(conf.Channel); err != nil {
		_ = db.listener.Close()
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "listening")
	}

	db.wg.Add(1)
	go db.listen()
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(ctx context.Context, db *sqlx.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "DB ping")
		case <-time.After(time.Duration(attempts) * 100 * time.Millisecond):
		}
	}
	return errors.Wrap(err, "DB ping timeout")
}

func (db *DB) onListenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnectionAttemptFailed:
		db.logger.Warn("Store listener: connection attempt failed", err)
	case pq.ListenerEventDisconnected:
		db.logger.Warn("Store listener: disconnected", err)
	case pq.ListenerEventReconnected:
		db.logger.Info("Store listener: reconnected")
	}
}

func (db *DB) listen() {
	defer db.wg.Done()
	ctx := context.Background()

	for {
		select {
		case <-db.done:
			return
		case n, ok := <-db.listener.Notify:
			if !ok {
				return
			}
			if n == nil { // reconnected: notifications may have been missed
				db.announceAll(ctx)
				continue
			}
			db.handleNotification(ctx, n.Extra)
		case <-time.After(90 * time.Second):
			go func() { _ = db.listener.Ping() }()
		}
	}
}

func (db *DB) handleNotification(ctx context.Context, payload string) {
	var nt notice
	if err := json.Unmarshal([]byte(payload), &nt); err != nil {
		db.logger.Warn("Store listener: ignoring malformed notification", err, map[string]interface{}{"payload": payload})
		return
	}

	ch := kv.Change{Key: nt.Key, Cleared: nt.Cleared}
	if !nt.Cleared {
		value, ok, err := db.get(ctx, nt.Key)
		if err != nil {
			db.logger.Error("Store listener: reading changed value failed", err)
			return
		}
		ch.Value, ch.Cleared = value, !ok
	}
	db.broadcast(nt.Origin, ch)
}

// announceAll re-sends every stored value to every handle.
func (db *DB) announceAll(ctx context.Context) {
	var entries []entry
	if err := db.db.SelectContext(ctx, &entries, db.queries.all); err != nil {
		db.logger.Error("Store listener: resync failed", err)
		return
	}
	for _, e := range entries {
		db.broadcast("", kv.Change{Key: e.Key, Value: e.Value})
	}
}

// broadcast notifies every listener not owned by origin.
func (db *DB) broadcast(origin string, ch kv.Change) {
	db.mu.RLock()
	var targets []kv.Listener
	for o, ls := range db.listeners {
		if o == origin {
			continue
		}
		for _, l := range ls {
			targets = append(targets, l)
		}
	}
	db.mu.RUnlock()

	for _, l := range targets {
		l(ch)
	}
}

func (db *DB) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := db.db.GetContext(ctx, &value, db.queries.get, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "reading %q", key)
	}
	return value, true, nil
}

// write runs query and the notification in one transaction, so the notice is only sent on commit.
func (db *DB) write(ctx context.Context, nt notice, query string, args ...interface{}) (err error) {
	payload, err := json.Marshal(nt)
	if err != nil {
		return errors.Wrap(err, "encoding notification")
	}

	tx, err := db.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrapf(err, "writing %q", nt.Key)
	}
	if _, err = tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, db.channel, string(payload)); err != nil {
		return errors.Wrap(err, "notifying")
	}
	return errors.Wrap(tx.Commit(), "committing")
}

// NewStore returns a new handle on db, with its own origin.
func (db *DB) NewStore() kv.Store {
	return &store{db: db, origin: uuid.New().String()}
}

// Close stops listening and closes the connections.
func (db *DB) Close() error {
	close(db.done)
	lErr := db.listener.Close()
	db.wg.Wait()
	if err := db.db.Close(); err != nil {
		return errors.Wrap(err, "closing database")
	}
	return errors.Wrap(lErr, "closing listener")
}

func (s *store) Origin() string {
	return s.origin
}

func (s *store) Get(ctx context.Context, key string) (string, bool, error) {
	return s.db.get(ctx, key)
}

func (s *store) Set(ctx context.Context, key, value string) error {
	return s.db.write(ctx, notice{Key: key, Origin: s.origin}, s.db.queries.set, key, value, s.origin)
}

func (s *store) Remove(ctx context.Context, key string) error {
	return s.db.write(ctx, notice{Key: key, Origin: s.origin, Cleared: true}, s.db.queries.remove, key)
}

func (s *store) Subscribe(l kv.Listener) func() {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	s.db.nextID++
	id := s.db.nextID
	if s.db.listeners[s.origin] == nil {
		s.db.listeners[s.origin] = make(map[int]kv.Listener)
	}
	s.db.listeners[s.origin][id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			s.db.mu.Lock()
			defer s.db.mu.Unlock()
			delete(s.db.listeners[s.origin], id)
		})
	}
}
