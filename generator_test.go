package userapi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorUniqueLengthAndCharset(t *testing.T) {
	db := setupDB(t)
	gen := NewGenerator(db)

	id, err := gen.Unique(context.Background(), []string{"seed"}, UserIDLength, UniqueUserID)
	require.NoError(t, err)
	assert.Len(t, id, UserIDLength)

	hash, err := gen.Unique(context.Background(), []string{"seed"}, UserHashLength, UniqueUserHash)
	require.NoError(t, err)
	assert.Len(t, hash, UserHashLength)
}

func TestGeneratorSkipsEmptySeeds(t *testing.T) {
	now := time.Unix(1700000000, 12345)

	withEmpties := digestSeeds([]string{"", "a", "", "b"}, now, UserIDLength)
	without := digestSeeds([]string{"a", "b"}, now, UserIDLength)
	assert.Equal(t, without, withEmpties)
}

func TestGeneratorRetriesOnCollision(t *testing.T) {
	db := setupDB(t)

	t0 := time.Unix(1700000000, 0)
	t1 := t0.Add(time.Millisecond)
	clock := &stepClock{steps: []time.Time{t0, t1}}
	logger := &recordLogger{}

	gen := NewGenerator(db, WithGeneratorClock(clock), WithGeneratorLogger(logger))

	seeds := []string{"alice", "hunter2"}
	taken := digestSeeds(seeds, t0, UserIDLength)

	occupant := &User{
		UserID:   taken,
		Username: "occupant",
		Emails:   []string{"occupant@example.com"},
		PwHash:   "x",
		UserHash: "occupant-hash",
	}
	_, err := db.NewInsert().Model(occupant).Exec(context.Background())
	require.NoError(t, err)

	id, err := gen.Unique(context.Background(), seeds, UserIDLength, UniqueUserID)
	require.NoError(t, err)

	assert.Equal(t, digestSeeds(seeds, t1, UserIDLength), id)
	assert.NotEqual(t, taken, id)
	assert.Equal(t, 1, logger.warnCount())
}

func TestGeneratorProbesOnlyTargetField(t *testing.T) {
	db := setupDB(t)

	t0 := time.Unix(1700000000, 0)
	clock := &stepClock{steps: []time.Time{t0}}
	gen := NewGenerator(db, WithGeneratorClock(clock))

	seeds := []string{"bob"}
	candidate := digestSeeds(seeds, t0, UserIDLength)

	// Occupies the userhash namespace only; a userid probe must not see it.
	occupant := &User{
		UserID:   "other-user",
		Username: "other",
		Emails:   []string{"other@example.com"},
		PwHash:   "x",
		UserHash: candidate,
	}
	_, err := db.NewInsert().Model(occupant).Exec(context.Background())
	require.NoError(t, err)

	id, err := gen.Unique(context.Background(), seeds, UserIDLength, UniqueUserID)
	require.NoError(t, err)
	assert.Equal(t, candidate, id)
}

func TestGeneratorHonorsContextCancellation(t *testing.T) {
	db := setupDB(t)
	gen := NewGenerator(db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gen.Unique(ctx, []string{"seed"}, UserIDLength, UniqueUserID)
	assert.Error(t, err)
}

func TestGeneratorOpaque(t *testing.T) {
	db := setupDB(t)

	t0 := time.Unix(1700000000, 0)
	t1 := t0.Add(time.Nanosecond)
	gen := NewGenerator(db, WithGeneratorClock(&stepClock{steps: []time.Time{t0, t1}}))

	a := gen.Opaque([]string{"seed"}, UserHashLength)
	b := gen.Opaque([]string{"seed"}, UserHashLength)
	assert.Len(t, a, UserHashLength)
	assert.NotEqual(t, a, b, "time component must differ between calls")
}
