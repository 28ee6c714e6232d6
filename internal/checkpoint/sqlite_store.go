package checkpoint

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

// SQLiteStore is a Store backed by SQLite through database/sql.
//
// It expects an *sql.DB opened with a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing the
// driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore initializes the required schema in the given database and
// returns a new SQLiteStore.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, errors.Wrap(err, "init checkpoint schema")
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			thread_id TEXT PRIMARY KEY,
			workflow_name TEXT NOT NULL,
			state BLOB,
			status TEXT NOT NULL,
			position TEXT NOT NULL,
			steps INTEGER NOT NULL,
			interrupt BLOB,
			updated_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS leases (
			thread_id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			expires_at INTEGER NOT NULL
		);`,
	)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, cp *Checkpoint) error {
	updatedAt := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, workflow_name, state, status, position, steps, interrupt, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET
			workflow_name = excluded.workflow_name,
			state = excluded.state,
			status = excluded.status,
			position = excluded.position,
			steps = excluded.steps,
			interrupt = excluded.interrupt,
			updated_at = excluded.updated_at`,
		cp.ThreadID,
		cp.WorkflowName,
		[]byte(cp.State),
		string(cp.Status),
		cp.Position,
		cp.Steps,
		[]byte(cp.Interrupt),
		updatedAt.UnixNano(),
	)
	if err != nil {
		return errors.Wrapf(err, "save checkpoint for thread %s", cp.ThreadID)
	}
	cp.UpdatedAt = updatedAt
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, threadID string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT thread_id, workflow_name, state, status, position, steps, interrupt, updated_at
		FROM checkpoints
		WHERE thread_id = ?`,
		threadID,
	)

	var cp Checkpoint
	var statusStr string
	var state, interrupt []byte
	var updatedAt int64

	if err := row.Scan(&cp.ThreadID, &cp.WorkflowName, &state, &statusStr, &cp.Position, &cp.Steps, &interrupt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(ErrNotFound, "thread %s", threadID)
		}
		return nil, errors.Wrapf(err, "load checkpoint for thread %s", threadID)
	}

	cp.Status = Status(statusStr)
	cp.State = state
	if len(interrupt) > 0 {
		cp.Interrupt = interrupt
	}
	cp.UpdatedAt = time.Unix(0, updatedAt)
	return &cp, nil
}

func (s *SQLiteStore) AcquireLease(ctx context.Context, threadID, owner string, ttl time.Duration) (bool, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO leases (thread_id, owner, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET
			owner = excluded.owner,
			expires_at = excluded.expires_at
		WHERE leases.owner = excluded.owner
		   OR leases.expires_at <= ?`,
		threadID, owner, now.Add(ttl).UnixNano(), now.UnixNano(),
	)
	if err != nil {
		return false, errors.Wrapf(err, "acquire lease for thread %s", threadID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) ReleaseLease(ctx context.Context, threadID, owner string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM leases
		WHERE thread_id = ? AND owner = ?`,
		threadID, owner,
	)
	if err != nil {
		return errors.Wrapf(err, "release lease for thread %s", threadID)
	}
	return nil
}
