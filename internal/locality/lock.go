package locality

import (
	"context"
	"database/sql"
	"sync"

	"gorm.io/gorm"

	"github.com/landtitle/titling-backend/internal/logger"
)

// Locker guards a normalization pass. TryLock never waits: it returns
// ErrNormalizationInProgress when the lock is held elsewhere.
type Locker interface {
	TryLock(ctx context.Context) (unlock func(), err error)
}

// LocalLocker serializes passes within one process.
type LocalLocker struct {
	mu sync.Mutex
}

func (l *LocalLocker) TryLock(_ context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, ErrNormalizationInProgress
	}
	return l.mu.Unlock, nil
}

// AdvisoryLocker serializes passes across processes with a session-level
// Postgres advisory lock. The lock lives on one pinned connection, which is
// held until unlock.
type AdvisoryLocker struct {
	db  *gorm.DB
	key int64
}

func NewAdvisoryLocker(db *gorm.DB, key int64) *AdvisoryLocker {
	return &AdvisoryLocker{db: db, key: key}
}

func (l *AdvisoryLocker) TryLock(ctx context.Context) (func(), error) {
	sqlDB, err := l.db.DB()
	if err != nil {
		return nil, wrapStore("advisory lock", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, wrapStore("advisory lock", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, l.key).Scan(&acquired); err != nil {
		conn.Close()
		return nil, wrapStore("advisory lock", err)
	}
	if !acquired {
		conn.Close()
		return nil, ErrNormalizationInProgress
	}

	return func() { releaseAdvisory(conn, l.key) }, nil
}

func releaseAdvisory(conn *sql.Conn, key int64) {
	defer conn.Close()
	// The pass context may already be cancelled; the unlock must still run.
	if _, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, key); err != nil {
		logger.L().Error("locality_advisory_unlock_failed", "key", key, "err", err)
	}
}
