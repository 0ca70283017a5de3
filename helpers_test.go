package userapi

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, EnsureSchema(context.Background(), db))

	t.Cleanup(func() {
		_ = db.Close()
		_ = sqldb.Close()
	})

	return db
}

func setupStore(t *testing.T, adminKey string) (*IdentityStore, *bun.DB) {
	t.Helper()

	db := setupDB(t)
	hasher, err := NewHasher("test-salt")
	require.NoError(t, err)
	gen := NewGenerator(db)
	return NewIdentityStore(db, hasher, gen, adminKey), db
}

// fixedClock always reports the same instant.
type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time { return c.at }

// stepClock returns each queued instant in order, then keeps repeating the
// last one.
type stepClock struct {
	mu    sync.Mutex
	steps []time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.steps) > 1 {
		now := c.steps[0]
		c.steps = c.steps[1:]
		return now
	}
	return c.steps[0]
}

// recordLogger captures formatted calls per level.
type recordLogger struct {
	mu      sync.Mutex
	debugs  []string
	infos   []string
	warns   []string
	errorsL []string
}

func (l *recordLogger) Debug(format string, args ...any) { l.record(&l.debugs, format) }
func (l *recordLogger) Info(format string, args ...any)  { l.record(&l.infos, format) }
func (l *recordLogger) Warn(format string, args ...any)  { l.record(&l.warns, format) }
func (l *recordLogger) Error(format string, args ...any) { l.record(&l.errorsL, format) }

func (l *recordLogger) record(dst *[]string, format string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*dst = append(*dst, format)
}

func (l *recordLogger) warnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns)
}

func (l *recordLogger) errorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errorsL)
}
