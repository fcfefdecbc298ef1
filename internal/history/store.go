package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	routererr "github.com/solswap/router/internal/errors"
	"github.com/solswap/router/internal/model"
)

// Record is one swap's lifecycle row. The denormalized columns exist for
// listing and filtering; the payload blob is the source of truth.
type Record struct {
	SwapID      string                `json:"swap_id"`
	UserAddress string                `json:"user_address"`
	Provider    model.Provider        `json:"provider"`
	OriginChain string                `json:"origin_chain"`
	DestChain   string                `json:"dest_chain"`
	Status      string                `json:"status"`
	Signature   string                `json:"signature,omitempty"`
	Bridge      model.BridgeStatus    `json:"bridge,omitempty"`
	Request     model.SwapRequest     `json:"request"`
	Quote       model.NormalizedQuote `json:"quote"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// Store persists swap history in a local sqlite database. A file lock guards
// against concurrent invocations sharing the same database.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

func Open(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, routererr.Wrap(routererr.CodeInternal, "create history directory", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, routererr.Wrap(routererr.CodeInternal, "create history lock directory", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, routererr.Wrap(routererr.CodeInternal, "open history sqlite", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS swaps (
			swap_id TEXT PRIMARY KEY,
			user_address TEXT NOT NULL,
			provider TEXT NOT NULL,
			origin_chain TEXT NOT NULL,
			dest_chain TEXT NOT NULL,
			status TEXT NOT NULL,
			signature TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_swaps_user_updated ON swaps(user_address, updated_at DESC);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, routererr.Wrap(routererr.CodeInternal, "init history schema", err)
		}
	}
	return &Store{db: db, lock: flock.New(lockPath)}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Save(record Record) error {
	if strings.TrimSpace(record.SwapID) == "" {
		return routererr.New(routererr.CodeInternal, "save swap: missing swap id")
	}
	unlock, err := s.acquire()
	if err != nil {
		return err
	}
	defer unlock()

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return routererr.Wrap(routererr.CodeInternal, "marshal swap record", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO swaps (swap_id, user_address, provider, origin_chain, dest_chain, status, signature, created_at, updated_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(swap_id) DO UPDATE SET
			status=excluded.status,
			signature=excluded.signature,
			updated_at=excluded.updated_at,
			payload=excluded.payload
	`, record.SwapID, record.UserAddress, string(record.Provider), record.OriginChain, record.DestChain,
		record.Status, record.Signature, record.CreatedAt.Unix(), record.UpdatedAt.Unix(), payload)
	if err != nil {
		return routererr.Wrap(routererr.CodeInternal, "save swap record", err)
	}
	return nil
}

// UpdateStatus advances the stored record's status fields and re-persists it.
func (s *Store) UpdateStatus(swapID, status, signature string, bridge model.BridgeStatus) error {
	record, err := s.Get(swapID)
	if err != nil {
		return err
	}
	record.Status = status
	if signature != "" {
		record.Signature = signature
	}
	if bridge != "" {
		record.Bridge = bridge
	}
	record.UpdatedAt = time.Now().UTC()
	return s.Save(record)
}

func (s *Store) Get(swapID string) (Record, error) {
	var payload []byte
	err := s.db.QueryRow("SELECT payload FROM swaps WHERE swap_id = ?", swapID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, routererr.New(routererr.CodeUsage, "swap not found: "+swapID)
		}
		return Record{}, routererr.Wrap(routererr.CodeInternal, "read swap record", err)
	}
	var record Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return Record{}, routererr.Wrap(routererr.CodeInternal, "decode swap record", err)
	}
	return record, nil
}

// ListByUser returns the user's swaps, most recently updated first. An empty
// address lists across users.
func (s *Store) ListByUser(address string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	var (
		rows *sql.Rows
		err  error
	)
	if strings.TrimSpace(address) == "" {
		rows, err = s.db.Query("SELECT payload FROM swaps ORDER BY updated_at DESC LIMIT ?", limit)
	} else {
		rows, err = s.db.Query("SELECT payload FROM swaps WHERE user_address = ? ORDER BY updated_at DESC LIMIT ?", address, limit)
	}
	if err != nil {
		return nil, routererr.Wrap(routererr.CodeInternal, "list swaps", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, routererr.Wrap(routererr.CodeInternal, "scan swap row", err)
		}
		var record Record
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, routererr.Wrap(routererr.CodeInternal, "decode swap row", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, routererr.Wrap(routererr.CodeInternal, "iterate swap rows", err)
	}
	return records, nil
}

func (s *Store) acquire() (func(), error) {
	locked, err := s.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		return nil, routererr.Wrap(routererr.CodeInternal, "lock history store", err)
	}
	if !locked {
		return nil, routererr.New(routererr.CodeInternal, "lock history store: timeout")
	}
	return func() { _ = s.lock.Unlock() }, nil
}
