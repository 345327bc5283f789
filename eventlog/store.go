package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"nftescrow/core/events"
	"nftescrow/core/types"
)

const (
	// DefaultLimit bounds List when the filter leaves Limit unset.
	DefaultLimit = 100
	// MaxLimit is the largest page List returns.
	MaxLimit = 1000
)

// ErrClosed is returned once the journal has been closed.
var ErrClosed = errors.New("eventlog: closed")

// Record is one journaled event.
type Record struct {
	Sequence   int64             `json:"sequence"`
	Type       string            `json:"type"`
	TradeID    string            `json:"tradeId,omitempty"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	TradeID string
	Type    string
	Party   string
	After   int64
	Limit   int
}

// Store journals committed events in SQLite so clients can page through trade
// history after the fact.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
	nowFn  func() time.Time
	logger *slog.Logger
}

// Open creates or opens the journal at path. ":memory:" is accepted for tests.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("eventlog: path required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps writers serialised and makes :memory: usable.
	db.SetMaxOpenConns(1)
	store := &Store{db: db, nowFn: time.Now, logger: slog.Default()}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) init() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS events (
            sequence INTEGER PRIMARY KEY AUTOINCREMENT,
            type TEXT NOT NULL,
            trade_id TEXT,
            party_a TEXT,
            party_b TEXT,
            attributes TEXT NOT NULL,
            created_at INTEGER NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS events_trade ON events(trade_id, sequence);`,
		`CREATE INDEX IF NOT EXISTS events_type ON events(type, sequence);`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SetNowFunc overrides the journal clock.
func (s *Store) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	s.mu.Lock()
	s.nowFn = now
	s.mu.Unlock()
}

// SetLogger replaces the logger used to report write failures from Emit.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()
}

// Close releases the database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Emit implements events.Emitter. Failures are logged since emitters cannot
// return errors to the committing call.
func (s *Store) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	if _, err := s.Append(context.Background(), events.ToTypes(evt)); err != nil {
		s.mu.RLock()
		logger := s.logger
		s.mu.RUnlock()
		logger.Warn("eventlog append failed", slog.String("type", evt.EventType()), slog.Any("error", err))
	}
}

// Append journals evt and returns its sequence number.
func (s *Store) Append(ctx context.Context, evt *types.Event) (int64, error) {
	if evt == nil || strings.TrimSpace(evt.Type) == "" {
		return 0, fmt.Errorf("eventlog: event type required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	attrs := evt.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	payload, err := json.Marshal(attrs)
	if err != nil {
		return 0, err
	}
	const stmt = `INSERT INTO events(type, trade_id, party_a, party_b, attributes, created_at) VALUES(?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, stmt,
		evt.Type,
		nullable(attrs["tradeId"]),
		nullable(attrs["partyA"]),
		nullable(attrs["partyB"]),
		string(payload),
		s.nowFn().UTC().UnixMilli(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// List returns journaled events matching filter in ascending sequence order.
func (s *Store) List(ctx context.Context, filter Filter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	clauses := []string{"sequence > ?"}
	args := []any{filter.After}
	if id := strings.TrimSpace(filter.TradeID); id != "" {
		clauses = append(clauses, "trade_id = ?")
		args = append(args, id)
	}
	if typ := strings.TrimSpace(filter.Type); typ != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, typ)
	}
	if party := strings.TrimSpace(filter.Party); party != "" {
		clauses = append(clauses, "(party_a = ? OR party_b = ?)")
		args = append(args, party, party)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	args = append(args, limit)
	query := `SELECT sequence, type, trade_id, attributes, created_at FROM events WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY sequence ASC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		var (
			rec     Record
			tradeID sql.NullString
			payload string
			created int64
		)
		if err := rows.Scan(&rec.Sequence, &rec.Type, &tradeID, &payload, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &rec.Attributes); err != nil {
			return nil, fmt.Errorf("eventlog: decode sequence %d: %w", rec.Sequence, err)
		}
		rec.TradeID = tradeID.String
		rec.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullable(value string) sql.NullString {
	value = strings.TrimSpace(value)
	return sql.NullString{String: value, Valid: value != ""}
}
