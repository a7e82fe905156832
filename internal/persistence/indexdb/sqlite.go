// Package indexdb maintains a queryable SQLite read-model of streaming
// activity. It is written behind the world and never feeds back into it.
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

	"voxelstream.ai/internal/sim/tuning"
	"voxelstream.ai/internal/sim/world"
	"voxelstream.ai/internal/sim/world/terrain/store"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick  atomic.Uint64
	dropChunk atomic.Uint64
	failRows  atomic.Uint64

	commitWait time.Duration
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqChunk
)

type req struct {
	kind reqKind

	tick  world.TickLogEntry
	chunk store.ChunkRecord
}

type Stats struct {
	QueueDepth     int    `json:"queue_depth"`
	QueueCapacity  int    `json:"queue_capacity"`
	DropTickTotal  uint64 `json:"drop_tick_total"`
	DropChunkTotal uint64 `json:"drop_chunk_total"`
	FailRowTotal   uint64 `json:"fail_row_total"`
}

// ChunkRow is one row of the chunks table.
type ChunkRow struct {
	CX          int
	CZ          int
	Path        string
	Digest      string
	Solid       int
	Fingerprint string
	RecordedAt  string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 2*time.Second)
}

func openSQLite(path string, commitWait time.Duration) (*SQLiteIndex, error) {
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

	// Sized for a burst of cache saves after a teleport without stalling workers.
	s := &SQLiteIndex{db: db, ch: make(chan req, 65536), commitWait: commitWait}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
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
		`CREATE TABLE IF NOT EXISTS chunks (
			cx INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			path TEXT NOT NULL,
			digest TEXT NOT NULL CHECK (length(digest) > 0),
			solid INTEGER NOT NULL,
			fingerprint TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (cx, cz)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_fingerprint ON chunks(fingerprint);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			frame INTEGER PRIMARY KEY,
			viewer_x INTEGER NOT NULL,
			viewer_z INTEGER NOT NULL,
			resident INTEGER NOT NULL,
			pending INTEGER NOT NULL,
			in_flight INTEGER NOT NULL,
			drawn INTEGER NOT NULL,
			dispatched INTEGER NOT NULL,
			uploaded INTEGER NOT NULL,
			evicted INTEGER NOT NULL,
			digest TEXT NOT NULL,
			raw_json TEXT NOT NULL
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

// WriteTick enqueues e without blocking. The JSONL tick log stays the source
// of truth, so a full queue drops the row.
func (s *SQLiteIndex) WriteTick(e world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: e}:
	default:
		s.dropTick.Add(1)
	}
	return nil
}

// RecordChunk implements store.ChunkRecorder. Called from worker goroutines.
func (s *SQLiteIndex) RecordChunk(rec store.ChunkRecord) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqChunk, chunk: rec}:
	default:
		s.dropChunk.Add(1)
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		DropTickTotal:  s.dropTick.Load(),
		DropChunkTotal: s.dropChunk.Load(),
		FailRowTotal:   s.failRows.Load(),
	}
}

// UpsertTuning stores the tuning in effect so rows can be tied to the
// parameters that produced them.
func (s *SQLiteIndex) UpsertTuning(t tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	rows := [][2]string{
		{"schema_version", "1"},
		{"tuning", string(b)},
		{"tuning_digest", hex.EncodeToString(sum[:])},
		{"fingerprint", t.NoiseConfig().Fingerprint()},
	}
	for _, kv := range rows {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`, kv[0], kv[1]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) Meta(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key=?`, key).Scan(&v)
	return v, err
}

// ChunkRows lists indexed chunks in X-then-Z order.
func (s *SQLiteIndex) ChunkRows(ctx context.Context) ([]ChunkRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT cx,cz,path,digest,solid,fingerprint,recorded_at FROM chunks ORDER BY cx,cz`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ChunkRow
	for rows.Next() {
		var r ChunkRow
		if err := rows.Scan(&r.CX, &r.CZ, &r.Path, &r.Digest, &r.Solid, &r.Fingerprint, &r.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) TickCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ticks`).Scan(&n)
	return n, err
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(frame,viewer_x,viewer_z,resident,pending,in_flight,drawn,dispatched,uploaded,evicted,digest,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertChunk, _ := s.db.Prepare(`INSERT OR REPLACE INTO chunks(cx,cz,path,digest,solid,fingerprint,recorded_at) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		if insertTick != nil {
			_ = insertTick.Close()
		}
		if insertChunk != nil {
			_ = insertChunk.Close()
		}
	}()

	var (
		tx          *sql.Tx
		opCount     int
		commitEvery = 2000
	)

	// An open batch is committed after commitWait even if no further rows arrive.
	idle := time.NewTicker(s.commitWait)
	defer idle.Stop()
	var opened time.Time

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
		opened = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			_ = tx.Rollback()
			s.failRows.Add(uint64(opCount))
		}
		tx = nil
		opCount = 0
	}

	for {
		var (
			r  req
			ok bool
		)
		select {
		case r, ok = <-s.ch:
		case <-idle.C:
			if tx != nil && time.Since(opened) >= s.commitWait {
				commit()
			}
			continue
		}
		if !ok {
			break
		}

		begin()
		if tx == nil {
			s.failRows.Add(1)
			continue
		}
		var err error
		switch r.kind {
		case reqTick:
			if insertTick == nil {
				continue
			}
			e := r.tick
			b, _ := json.Marshal(e)
			_, err = tx.Stmt(insertTick).Exec(
				int64(e.Frame),
				e.ViewerX,
				e.ViewerZ,
				e.Resident,
				e.Pending,
				e.InFlight,
				e.Drawn,
				int64(e.Delta.Dispatched),
				int64(e.Delta.Uploaded),
				int64(e.Delta.Evicted),
				e.Digest,
				string(b),
			)

		case reqChunk:
			if insertChunk == nil {
				continue
			}
			c := r.chunk
			_, err = tx.Stmt(insertChunk).Exec(
				c.Coord.X,
				c.Coord.Z,
				c.Path,
				c.Digest,
				c.Solid,
				c.Fingerprint,
				time.Now().UTC().Format(time.RFC3339Nano),
			)
		}
		// A rejected statement is undone on its own; the rest of the batch stays.
		if err != nil {
			s.failRows.Add(1)
			continue
		}
		opCount++
		if opCount >= commitEvery || time.Since(opened) >= s.commitWait {
			commit()
		}
	}

	commit()
}
