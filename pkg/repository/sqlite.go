package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/brewie/voicegate/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	_ "github.com/mattn/go-sqlite3"
)

// fixed width so that created_at sorts as text
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLite stores cycles in a local database file
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("path", path))
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to migrate sqlite database", goerr.V("path", path))
	}
	return &SQLite{db: db}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS cycles (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			transcript TEXT NOT NULL,
			outcome TEXT NOT NULL,
			verified INTEGER NOT NULL,
			score REAL NOT NULL,
			data_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_created_at ON cycles(created_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) PutCycle(ctx context.Context, cycle *model.Cycle) error {
	if cycle.ID == "" {
		return goerr.New("cycle ID is empty")
	}

	data, err := json.Marshal(cycle)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal cycle", goerr.V("cycle_id", cycle.ID))
	}

	verified := 0
	if cycle.Verified {
		verified = 1
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cycles (id, created_at, transcript, outcome, verified, score, data_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at = excluded.created_at,
			transcript = excluded.transcript,
			outcome = excluded.outcome,
			verified = excluded.verified,
			score = excluded.score,
			data_json = excluded.data_json`,
		string(cycle.ID),
		cycle.CreatedAt.UTC().Format(timeLayout),
		cycle.Transcript,
		string(cycle.Outcome),
		verified,
		cycle.Score,
		string(data),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to insert cycle", goerr.V("cycle_id", cycle.ID))
	}
	return nil
}

func (s *SQLite) GetCycle(ctx context.Context, id model.CycleID) (*model.Cycle, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data_json FROM cycles WHERE id = ?`, string(id)).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(ErrNotFound, "no such cycle", goerr.V("cycle_id", id))
		}
		return nil, goerr.Wrap(err, "failed to get cycle", goerr.V("cycle_id", id))
	}

	var cycle model.Cycle
	if err := json.Unmarshal([]byte(data), &cycle); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal cycle", goerr.V("cycle_id", id))
	}
	return &cycle, nil
}

func (s *SQLite) ListCycles(ctx context.Context, offset, limit int) ([]*model.Cycle, error) {
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT data_json FROM cycles ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list cycles")
	}
	defer rows.Close()

	var cycles []*model.Cycle
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, goerr.Wrap(err, "failed to scan cycle")
		}
		var cycle model.Cycle
		if err := json.Unmarshal([]byte(data), &cycle); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal cycle")
		}
		cycles = append(cycles, &cycle)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate cycles")
	}

	return cycles, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
