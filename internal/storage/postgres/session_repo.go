package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pmukeshreddy/rlm-engine/internal/session"
	"github.com/pmukeshreddy/rlm-engine/internal/storage"
)

// SessionRepo is the storage.SessionRepository backed by Postgres.
type SessionRepo struct {
	client *Client
}

// NewSessionRepo builds a SessionRepo over an already-migrated Client.
func NewSessionRepo(c *Client) *SessionRepo {
	return &SessionRepo{client: c}
}

func (r *SessionRepo) SaveSession(ctx context.Context, s *session.Session) error {
	mem, err := json.Marshal(s.Memory)
	if err != nil {
		return fmt.Errorf("marshal session memory: %w", err)
	}
	_, err = r.client.Pool.Exec(ctx, `
		INSERT INTO sessions (id, name, context, memory, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			context = EXCLUDED.context,
			memory = EXCLUDED.memory,
			updated_at = EXCLUDED.updated_at
	`, s.ID, s.Name, s.Context, mem, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *SessionRepo) GetSession(ctx context.Context, id string) (*session.Session, error) {
	row := r.client.Pool.QueryRow(ctx, `
		SELECT id, name, context, memory, created_at, updated_at FROM sessions WHERE id = $1
	`, id)
	s, err := scanSession(row)
	if err == pgx.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

func (r *SessionRepo) ListSessions(ctx context.Context) ([]*session.Session, error) {
	rows, err := r.client.Pool.Query(ctx, `
		SELECT id, name, context, memory, created_at, updated_at FROM sessions ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*session.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SessionRepo) DeleteSession(ctx context.Context, id string) error {
	tag, err := r.client.Pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanSession(row rowScanner) (*session.Session, error) {
	var s session.Session
	var mem []byte
	if err := row.Scan(&s.ID, &s.Name, &s.Context, &mem, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(mem, &s.Memory); err != nil {
		return nil, fmt.Errorf("unmarshal memory: %w", err)
	}
	return &s, nil
}
