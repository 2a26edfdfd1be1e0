package members

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SessionsRepository is the bun-backed session store. Expiry is enforced
// on read: an expired record behaves exactly like an absent one and is
// lazily removed. PurgeExpired handles the rest in the background.
type SessionsRepository struct {
	db     *bun.DB
	now    func() time.Time
	logger Logger
}

var _ SessionStore = (*SessionsRepository)(nil)

type SessionsOption func(*SessionsRepository)

func NewSessionsRepository(db *bun.DB, opts ...SessionsOption) *SessionsRepository {
	repo := &SessionsRepository{
		db:     db,
		now:    time.Now,
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}

	return repo
}

// WithSessionsClock injects a custom clock (useful for tests).
func WithSessionsClock(clock func() time.Time) SessionsOption {
	return func(r *SessionsRepository) {
		if clock != nil {
			r.now = clock
		}
	}
}

func WithSessionsLogger(logger Logger) SessionsOption {
	return func(r *SessionsRepository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func (r *SessionsRepository) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	record := &Session{}

	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	if record.Expired(r.now()) {
		if err := r.Delete(ctx, id); err != nil {
			r.logger.Warn("expired session cleanup failed", "session_id", id, "error", err)
		}
		return nil, ErrSessionNotFound
	}

	return record, nil
}

func (r *SessionsRepository) Put(ctx context.Context, session *Session) error {
	_, err := r.db.NewInsert().
		Model(session).
		On("CONFLICT (id) DO UPDATE").
		Set("logged_in = EXCLUDED.logged_in").
		Set("name = EXCLUDED.name").
		Set("user_role = EXCLUDED.user_role").
		Set("expires_at = EXCLUDED.expires_at").
		Exec(ctx)

	return err
}

func (r *SessionsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.NewDelete().
		Model((*Session)(nil)).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)

	return err
}

// PurgeExpired removes every session past its expiry and returns how many
// rows went away.
func (r *SessionsRepository) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*Session)(nil)).
		Where("?TableAlias.expires_at <= ?", r.now()).
		Exec(ctx)

	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return n, nil
}

// Sweep runs PurgeExpired on the given interval until ctx is cancelled.
// The server starts it as a background goroutine.
func (r *SessionsRepository) Sweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := r.PurgeExpired(ctx); err != nil {
				r.logger.Error("session sweep failed", "error", err)
			} else if n > 0 {
				r.logger.Debug("session sweep removed sessions", "count", n)
			}
		}
	}
}
