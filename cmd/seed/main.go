// Package main loads YAML fixtures into the database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/capitalize-ai/proconnect/internal/config"
	"github.com/capitalize-ai/proconnect/internal/seed"
	"github.com/capitalize-ai/proconnect/internal/store"
	"github.com/capitalize-ai/proconnect/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	var path string
	flag.StringVar(&path, "file", "fixtures.yaml", "Path to the fixture file")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `seed - load profiles, companies, connections and conversations

Usage:
  seed [-file fixtures.yaml]

The database is selected with DATABASE_DRIVER and DATABASE_DSN.
`)
	}
	flag.Parse()

	cfg := config.Load()
	log, err := logger.FromEnv(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	fixtures, err := seed.LoadFile(path)
	if err != nil {
		log.Fatal("failed to load fixtures", zap.String("file", path), zap.Error(err))
	}

	ctx := context.Background()
	st, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, log)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}

	if _, err := seed.Apply(ctx, st, fixtures, log); err != nil {
		log.Error("seeding stopped", zap.Error(err))
		os.Exit(1)
	}
}
