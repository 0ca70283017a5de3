package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/lagoonhq/userapi"
	"github.com/lagoonhq/userapi/metrics"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := userapi.LoadConfig()
	if err != nil {
		return err
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	defer db.Close()

	if err := userapi.EnsureSchema(context.Background(), db); err != nil {
		return err
	}

	hasher, err := userapi.NewHasher(cfg.Salt)
	if err != nil {
		return err
	}
	gen := userapi.NewGenerator(db)
	store := userapi.NewIdentityStore(db, hasher, gen, cfg.AdminKey)
	tokens := userapi.NewTokenStore(db)

	codec, err := userapi.NewTokenCodec(cfg.APISecret)
	if err != nil {
		return err
	}

	gate := userapi.NewGate(codec, tokens, store)
	pairs := userapi.NewPairs(store, gen, cfg.APISecret)

	var sink metrics.Sink = metrics.Noop{}
	if cfg.MetricsHost != "" {
		sink = metrics.NewHTTPSink(cfg.MetricsHost, cfg.ServiceName)
	}

	controller := userapi.NewController(cfg, store, tokens, codec, gate, pairs,
		userapi.WithMetricsSink(sink))

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	controller.RegisterRoutes(app)

	log.Printf("userapi listening on :%d", cfg.Port)
	return app.Listen(fmt.Sprintf(":%d", cfg.Port))
}
