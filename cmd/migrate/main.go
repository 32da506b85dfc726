// Command migrate applies the schema migrations once and exits. It is meant
// for deploy pipelines that run migrations separately from the server.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/verdantlabs/chat-admin/internal/config"
	"github.com/verdantlabs/chat-admin/internal/database"
)

func main() {
	dir := flag.String("dir", "", "migrations directory (defaults to the configured database.migrations_dir)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(config.Options{})
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	migrationsDir := cfg.Database.MigrationsDir
	if *dir != "" {
		migrationsDir = *dir
	}

	if err := database.Migrate(ctx, cfg.Database.URL, migrationsDir); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}
	log.Println("migrations applied")
}
