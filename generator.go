package userapi

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/uptrace/bun"
	"golang.org/x/crypto/sha3"
)

// UniqueField names the column a generated identifier must be unique in.
// userid and userhash are independent namespaces; a candidate is only
// probed against its own field.
type UniqueField string

const (
	UniqueUserID   UniqueField = "userid"
	UniqueUserHash UniqueField = "userhash"
)

// Generator mints collision-checked short identifiers by digesting entropy
// seeds plus the current high-resolution time and probing the store for an
// existing record. On collision it retries; the time component differs on
// every attempt so the loop terminates with overwhelming probability.
type Generator struct {
	db     bun.IDB
	logger Logger
	clock  Clock
}

type GeneratorOption func(*Generator)

// WithGeneratorLogger overrides the default logger.
func WithGeneratorLogger(logger Logger) GeneratorOption {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithGeneratorClock overrides the time source.
func WithGeneratorClock(clock Clock) GeneratorOption {
	return func(g *Generator) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// NewGenerator returns a Generator probing the given database.
func NewGenerator(db bun.IDB, opts ...GeneratorOption) *Generator {
	g := &Generator{
		db:     db,
		logger: defLogger{},
		clock:  systemClock{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Unique returns an identifier of the requested length that no live user
// record carries in the given field. Empty seeds are skipped.
func (g *Generator) Unique(ctx context.Context, seeds []string, length int, field UniqueField) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", wrapStorage(err, "id generation cancelled")
		}

		candidate := digestSeeds(seeds, g.clock.Now(), length)

		count, err := g.db.NewSelect().
			Model((*User)(nil)).
			Where(fmt.Sprintf("?TableAlias.%s = ?", field), candidate).
			Count(ctx)
		if err != nil {
			return "", wrapStorage(err, "id uniqueness probe failed")
		}

		if count == 0 {
			return candidate, nil
		}

		g.logger.Warn("generated %s collided, regenerating", field)
	}
}

// Opaque returns an identifier without a uniqueness probe. Pairs that live
// inside a user document, and anonymous pairs attached to nothing, have no
// indexed field to probe.
func (g *Generator) Opaque(seeds []string, length int) string {
	return digestSeeds(seeds, g.clock.Now(), length)
}

func digestSeeds(seeds []string, now time.Time, length int) string {
	d := sha3.New256()
	for _, s := range seeds {
		if s != "" {
			d.Write([]byte(s))
		}
	}
	d.Write([]byte(strconv.FormatInt(now.UnixNano(), 10)))

	out := hex.EncodeToString(d.Sum(nil))
	if length <= 0 || length > len(out) {
		return out
	}
	return out[:length]
}
