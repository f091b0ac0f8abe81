// Package indexdb maintains a queryable SQLite index of the simulation run:
// per-tick population and climate stats, plus a registry of snapshot files.
// Writes go through a buffered channel to a single writer goroutine so the
// simulation loop never blocks on disk.
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

	"floeworld/internal/persistence/snapshot"
	"floeworld/internal/sim/tuning"
)

// TickStat is one per-tick observation row.
type TickStat struct {
	Tick        uint64  `json:"tick"`
	Digest      string  `json:"digest,omitempty"`
	Penguins    int     `json:"penguins"`
	Seals       int     `json:"seals"`
	Fish        int     `json:"fish"`
	Temperature float64 `json:"temperature"`
	IceCoverage float64 `json:"ice_coverage"`
	Season      int     `json:"season"`
}

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqSnapshot
)

type req struct {
	kind     reqKind
	tick     TickStat
	snapshot snapshotRow
}

type snapshotRow struct {
	Tick     uint64
	Path     string
	Seed     int64
	Penguins int
	Seals    int
	Fish     int
	Floes    int
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
		// Deep buffer so a slow disk absorbs bursts instead of dropping rows.
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
	// WAL is much faster for append-style workloads; NORMAL is a reasonable
	// durability tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
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
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT,
			penguins INTEGER NOT NULL,
			seals INTEGER NOT NULL,
			fish INTEGER NOT NULL,
			temperature REAL NOT NULL,
			ice_coverage REAL NOT NULL,
			season INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_ticks_season ON ticks(season);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			penguins INTEGER NOT NULL,
			seals INTEGER NOT NULL,
			fish INTEGER NOT NULL,
			floes INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS configs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
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

// WriteTick queues one stats row. Rows are dropped rather than blocking the
// caller when the writer falls behind.
func (s *SQLiteIndex) WriteTick(stat TickStat) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqTick, tick: stat}:
	default:
	}
}

// RecordSnapshot queues a registry row for a snapshot file already written to
// disk.
func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Tick:     snap.Header.Tick,
		Path:     path,
		Seed:     snap.Seed,
		Penguins: len(snap.State.Penguins),
		Seals:    len(snap.State.Seals),
		Fish:     len(snap.State.Fish),
		Floes:    len(snap.State.Environment.IceFloes),
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
	}
}

// UpsertTuning stores the tuning values actually applied this run, keyed by
// content digest so drift between runs is visible in the index.
func (s *SQLiteIndex) UpsertTuning(tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO configs(name,digest,json,updated_at) VALUES('tuning',?,?,?)`,
		hex.EncodeToString(sum[:]), string(b), now,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// LatestSnapshot returns the registry row with the highest tick, for resume.
func (s *SQLiteIndex) LatestSnapshot() (path string, tick uint64, ok bool, err error) {
	row := s.db.QueryRow(`SELECT path, tick FROM snapshots ORDER BY tick DESC LIMIT 1`)
	if err := row.Scan(&path, &tick); err != nil {
		if err == sql.ErrNoRows {
			return "", 0, false, nil
		}
		return "", 0, false, err
	}
	return path, tick, true, nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,digest,penguins,seals,fish,temperature,ice_coverage,season) VALUES(?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,seed,penguins,seals,fish,floes) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		if insertTick != nil {
			_ = insertTick.Close()
		}
		if insertSnapshot != nil {
			_ = insertSnapshot.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
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

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			t := r.tick
			if insertTick != nil {
				if _, err := tx.Stmt(insertTick).Exec(
					int64(t.Tick), t.Digest, t.Penguins, t.Seals, t.Fish,
					t.Temperature, t.IceCoverage, t.Season,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(
					int64(sn.Tick), sn.Path, sn.Seed,
					sn.Penguins, sn.Seals, sn.Fish, sn.Floes,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}
	commit()
}
