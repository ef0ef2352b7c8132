// Package indexdb maintains a sqlite index over lifecycle events and region
// flushes. It is a secondary, queryable view; the compressed JSONL audit
// files remain the source of truth.
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"enchantedblocks.dev/internal/persistence/regionstore"
	"enchantedblocks.dev/internal/sim/catalogs"
	"enchantedblocks.dev/internal/sim/host"
	"enchantedblocks.dev/internal/sim/tuning"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqLifecycle reqKind = iota + 1
	reqFlush
)

type req struct {
	kind      reqKind
	lifecycle lifecycleRow
	flush     flushRow
}

type lifecycleRow struct {
	TS      string
	Event   string
	World   string
	X, Y, Z int
	Variant string
}

type flushRow struct {
	TS    string
	World string
	RX    int
	RZ    int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// High buffer: chunk load/unload storms write many rows at once and
		// must never stall the tick thread.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS lifecycle (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			event TEXT NOT NULL,
			world TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			variant TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_lifecycle_pos ON lifecycle(world, x, z, y);`,
		`CREATE INDEX IF NOT EXISTS idx_lifecycle_event_ts ON lifecycle(event, ts);`,
		`CREATE TABLE IF NOT EXISTS region_flushes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			world TEXT NOT NULL,
			rx INTEGER NOT NULL,
			rz INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_flushes_region ON region_flushes(world, rx, rz);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// BlockEvent implements the block manager's Recorder. Entries are dropped
// rather than blocking when the writer falls behind; the JSONL audit log
// still has them.
func (s *SQLiteIndex) BlockEvent(event string, key host.BlockKey, variant string) {
	if s == nil || s.closed.Load() {
		return
	}
	r := lifecycleRow{
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
		Event:   event,
		World:   key.World,
		X:       key.Pos.X,
		Y:       key.Pos.Y,
		Z:       key.Pos.Z,
		Variant: variant,
	}
	select {
	case s.ch <- req{kind: reqLifecycle, lifecycle: r}:
	default:
	}
}

// RegionFlush implements the block manager's Recorder.
func (s *SQLiteIndex) RegionFlush(region regionstore.Region) {
	if s == nil || s.closed.Load() {
		return
	}
	r := flushRow{
		TS:    time.Now().UTC().Format(time.RFC3339Nano),
		World: region.World,
		RX:    region.X,
		RZ:    region.Z,
	}
	select {
	case s.ch <- req{kind: reqFlush, flush: r}:
	default:
	}
}

// UpsertCatalogs records the digests and content of the loaded game-data
// documents plus the applied tuning, so operators can diff servers.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune *tuning.Tuning) error {
	if s == nil {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	raw := map[string][]byte{}
	read := func(name, path string) {
		b, err := os.ReadFile(path)
		if err != nil {
			return
		}
		raw[name] = b
	}
	if configDir != "" {
		read("materials", filepath.Join(configDir, "materials.json"))
		read("enchantments", filepath.Join(configDir, "enchantments.json"))
		read("recipes", filepath.Join(configDir, "recipes.json"))
	}

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if b := raw["materials"]; len(b) > 0 {
		rows = append(rows, kv{name: "materials", digest: cats.Materials.Digest, json: b})
	}
	if b := raw["enchantments"]; len(b) > 0 {
		rows = append(rows, kv{name: "enchantments", digest: cats.Enchantments.Digest, json: b})
	}
	if b := raw["recipes"]; len(b) > 0 {
		rows = append(rows, kv{name: "recipes", digest: cats.Recipes.Digest, json: b})
	}
	{
		// Store the values we actually apply, not the file on disk.
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertLifecycle, _ := s.db.Prepare(`INSERT INTO lifecycle(ts,event,world,x,y,z,variant) VALUES(?,?,?,?,?,?,?)`)
	insertFlush, _ := s.db.Prepare(`INSERT INTO region_flushes(ts,world,rx,rz) VALUES(?,?,?,?)`)
	defer func() {
		if insertLifecycle != nil {
			_ = insertLifecycle.Close()
		}
		if insertFlush != nil {
			_ = insertFlush.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqLifecycle:
			l := r.lifecycle
			if insertLifecycle != nil {
				if _, err := tx.Stmt(insertLifecycle).Exec(l.TS, l.Event, l.World, l.X, l.Y, l.Z, l.Variant); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		case reqFlush:
			f := r.flush
			if insertFlush != nil {
				if _, err := tx.Stmt(insertFlush).Exec(f.TS, f.World, f.RX, f.RZ); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
