// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/concord-chat/concord/lib/clock"
	"github.com/concord-chat/concord/lib/codec"
)

// schemaSQL creates the audit tables. Idempotent; runs once per
// connection on first use.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS audit_entries (
    seq       INTEGER PRIMARY KEY,
    timestamp INTEGER NOT NULL,
    actor     TEXT NOT NULL,
    action    TEXT NOT NULL,
    target    TEXT NOT NULL DEFAULT '',
    channel   TEXT NOT NULL DEFAULT '',
    before    BLOB,
    after     BLOB,
    hash      BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS audit_entries_actor
    ON audit_entries (actor, seq);
CREATE INDEX IF NOT EXISTS audit_entries_action
    ON audit_entries (action, seq);
CREATE INDEX IF NOT EXISTS audit_entries_target
    ON audit_entries (target, seq);
CREATE INDEX IF NOT EXISTS audit_entries_channel
    ON audit_entries (channel, seq);
`

// Config holds the parameters for opening an audit store. Path is
// required; everything else has defaults.
type Config struct {
	// Path is the SQLite database file. The parent directory must
	// exist; the file is created on first open. ":memory:" works for
	// tests with PoolSize 1.
	Path string

	// PoolSize is the number of pooled connections. Defaults to 4.
	// Appends serialize on the write lock regardless; extra
	// connections only help concurrent reads.
	PoolSize int

	// Clock stamps entry timestamps. Defaults to the wall clock.
	Clock clock.Clock

	// Logger receives operational messages. Defaults to discard.
	Logger *slog.Logger
}

// Store is the durable audit log. Safe for concurrent use.
type Store struct {
	pool   *sqlitex.Pool
	clk    clock.Clock
	logger *slog.Logger
	path   string
}

// Open opens (creating if necessary) the audit database at cfg.Path.
// The caller must Close the store when done.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("audit: Path is required")
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("audit: opening %s: %w", cfg.Path, err)
	}

	logger.Info("audit store opened", "path", cfg.Path, "pool_size", poolSize)
	return &Store{pool: pool, clk: clk, logger: logger, path: cfg.Path}, nil
}

// Close closes the pool. Blocks until all borrowed connections are
// returned.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("audit: closing %s: %w", s.path, err)
	}
	s.logger.Info("audit store closed", "path", s.path)
	return nil
}

// prepareConnection applies the standard pragmas and ensures the
// schema exists. Runs once per pooled connection.
func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=OFF",
		"PRAGMA cache_size=-8192",
		"PRAGMA mmap_size=268435456",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("audit: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schemaSQL, nil); err != nil {
		return fmt.Errorf("audit: creating schema: %w", err)
	}
	return nil
}

// Append writes entry as the next link in the chain and returns it
// with Sequence, Timestamp, and Hash filled in. The read of the
// previous tail and the insert happen in one immediate transaction so
// concurrent appends cannot fork the chain.
func (s *Store) Append(ctx context.Context, entry Entry) (Entry, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Entry{}, fmt.Errorf("audit: append: %w", err)
	}
	defer s.pool.Put(conn)

	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return Entry{}, fmt.Errorf("audit: begin append: %w", err)
	}
	defer endFn(&err)

	var lastSeq int64
	var lastHash []byte
	err = sqlitex.Execute(conn,
		`SELECT seq, hash FROM audit_entries ORDER BY seq DESC LIMIT 1`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				lastSeq = stmt.ColumnInt64(0)
				lastHash = make([]byte, stmt.ColumnLen(1))
				stmt.ColumnBytes(1, lastHash)
				return nil
			},
		})
	if err != nil {
		return Entry{}, fmt.Errorf("audit: reading chain tail: %w", err)
	}

	entry.Sequence = lastSeq + 1
	entry.Timestamp = s.clk.Now().UnixMilli()
	entry.Hash = chainHash(lastHash, &entry)

	err = sqlitex.Execute(conn,
		`INSERT INTO audit_entries
		    (seq, timestamp, actor, action, target, channel, before, after, hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				entry.Sequence, entry.Timestamp,
				entry.Actor, string(entry.Action),
				entry.Target, entry.Channel,
				[]byte(entry.Before), []byte(entry.After),
				entry.Hash,
			},
		})
	if err != nil {
		return Entry{}, fmt.Errorf("audit: inserting entry %d: %w", entry.Sequence, err)
	}
	return entry, nil
}

// Filter narrows a List call. Zero fields match everything.
type Filter struct {
	Actor   string
	Action  Action
	Target  string
	Channel string

	// Since and Until bound Timestamp (Unix ms, inclusive). Zero
	// means unbounded.
	Since int64
	Until int64

	// AfterSequence is a keyset cursor: only entries with a strictly
	// greater sequence are returned. Pass the last sequence of the
	// previous page.
	AfterSequence int64

	// Limit caps the page size. Defaults to 100.
	Limit int
}

const defaultListLimit = 100

// List returns matching entries in sequence order.
func (s *Store) List(ctx context.Context, filter Filter) ([]Entry, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	defer s.pool.Put(conn)

	var clauses []string
	var args []any
	addClause := func(clause string, value any) {
		clauses = append(clauses, clause)
		args = append(args, value)
	}
	addClause("seq > ?", filter.AfterSequence)
	if filter.Actor != "" {
		addClause("actor = ?", filter.Actor)
	}
	if filter.Action != "" {
		addClause("action = ?", string(filter.Action))
	}
	if filter.Target != "" {
		addClause("target = ?", filter.Target)
	}
	if filter.Channel != "" {
		addClause("channel = ?", filter.Channel)
	}
	if filter.Since != 0 {
		addClause("timestamp >= ?", filter.Since)
	}
	if filter.Until != 0 {
		addClause("timestamp <= ?", filter.Until)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)

	query := `SELECT seq, timestamp, actor, action, target, channel, before, after, hash
		 FROM audit_entries WHERE ` + strings.Join(clauses, " AND ") +
		` ORDER BY seq ASC LIMIT ?`

	var entries []Entry
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			entries = append(entries, scanEntry(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("audit: listing entries: %w", err)
	}
	return entries, nil
}

// Verify walks the whole log in sequence order and recomputes the
// hash chain. Returns the sequence number of the first corrupt entry,
// or 0 when the chain is intact.
func (s *Store) Verify(ctx context.Context) (int64, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("audit: verify: %w", err)
	}
	defer s.pool.Put(conn)

	var previous []byte
	var expectedSeq int64 = 1
	var corrupt int64
	err = sqlitex.Execute(conn,
		`SELECT seq, timestamp, actor, action, target, channel, before, after, hash
		 FROM audit_entries ORDER BY seq ASC`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				if corrupt != 0 {
					return nil
				}
				entry := scanEntry(stmt)
				want := chainHash(previous, &entry)
				if entry.Sequence != expectedSeq || !hashEqual(entry.Hash, want) {
					corrupt = entry.Sequence
					return nil
				}
				previous = entry.Hash
				expectedSeq++
				return nil
			},
		})
	if err != nil {
		return 0, fmt.Errorf("audit: verifying chain: %w", err)
	}
	return corrupt, nil
}

// exportHeader leads a compressed archive so importers can check the
// format before decoding entries.
type exportHeader struct {
	Format  string `cbor:"format"`
	Created int64  `cbor:"created"`
	Entries int64  `cbor:"entries"`
}

// exportFormat is the archive format identifier.
const exportFormat = "concord.audit.v1"

// Export streams the whole log to w as a zstd-compressed CBOR
// archive: a header followed by one CBOR item per entry.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("audit: export: %w", err)
	}
	defer s.pool.Put(conn)

	var total int64
	err = sqlitex.Execute(conn, `SELECT COUNT(*) FROM audit_entries`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				total = stmt.ColumnInt64(0)
				return nil
			},
		})
	if err != nil {
		return fmt.Errorf("audit: counting entries: %w", err)
	}

	encoder, closeEncoder, err := codec.NewCompressingEncoder(w)
	if err != nil {
		return fmt.Errorf("audit: export: %w", err)
	}
	header := exportHeader{
		Format:  exportFormat,
		Created: s.clk.Now().UnixMilli(),
		Entries: total,
	}
	if err := encoder.Encode(header); err != nil {
		closeEncoder()
		return fmt.Errorf("audit: encoding header: %w", err)
	}

	err = sqlitex.Execute(conn,
		`SELECT seq, timestamp, actor, action, target, channel, before, after, hash
		 FROM audit_entries ORDER BY seq ASC`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				entry := scanEntry(stmt)
				return encoder.Encode(entry)
			},
		})
	if err != nil {
		closeEncoder()
		return fmt.Errorf("audit: encoding entries: %w", err)
	}
	if err := closeEncoder(); err != nil {
		return fmt.Errorf("audit: flushing archive: %w", err)
	}
	s.logger.Info("audit log exported", "entries", total)
	return nil
}

// ReadExport decodes an archive produced by Export and returns its
// entries. The chain hashes are preserved so the result can be
// re-verified offline.
func ReadExport(r io.Reader) ([]Entry, error) {
	decoder, closeDecoder, err := codec.NewDecompressingDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("audit: reading archive: %w", err)
	}
	defer closeDecoder()

	var header exportHeader
	if err := decoder.Decode(&header); err != nil {
		return nil, fmt.Errorf("audit: decoding archive header: %w", err)
	}
	if header.Format != exportFormat {
		return nil, fmt.Errorf("audit: unknown archive format %q", header.Format)
	}

	entries := make([]Entry, 0, header.Entries)
	for {
		var entry Entry
		if err := decoder.Decode(&entry); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("audit: decoding archive entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if int64(len(entries)) != header.Entries {
		return nil, fmt.Errorf("audit: archive truncated: header says %d entries, found %d",
			header.Entries, len(entries))
	}
	return entries, nil
}

// VerifyEntries recomputes the hash chain over entries in order.
// Returns the sequence of the first corrupt entry, or 0 when intact.
// Used against ReadExport output.
func VerifyEntries(entries []Entry) int64 {
	var previous []byte
	var expectedSeq int64 = 1
	for i := range entries {
		entry := entries[i]
		want := chainHash(previous, &entry)
		if entry.Sequence != expectedSeq || !hashEqual(entry.Hash, want) {
			return entry.Sequence
		}
		previous = entry.Hash
		expectedSeq++
	}
	return 0
}

func scanEntry(stmt *sqlite.Stmt) Entry {
	entry := Entry{
		Sequence:  stmt.ColumnInt64(0),
		Timestamp: stmt.ColumnInt64(1),
		Actor:     stmt.ColumnText(2),
		Action:    Action(stmt.ColumnText(3)),
		Target:    stmt.ColumnText(4),
		Channel:   stmt.ColumnText(5),
	}
	if n := stmt.ColumnLen(6); n > 0 {
		entry.Before = make([]byte, n)
		stmt.ColumnBytes(6, entry.Before)
	}
	if n := stmt.ColumnLen(7); n > 0 {
		entry.After = make([]byte, n)
		stmt.ColumnBytes(7, entry.After)
	}
	entry.Hash = make([]byte, stmt.ColumnLen(8))
	stmt.ColumnBytes(8, entry.Hash)
	return entry
}

func hashEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var _ Log = (*Store)(nil)
