package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/tourplanner/tourplanner-backend/config"
	"github.com/tourplanner/tourplanner-backend/internal/platform/logger"
	"github.com/tourplanner/tourplanner-backend/internal/storage/postgres"
)

func main() {
	list := flag.Bool("list", false, "print embedded migrations and exit")
	flag.Parse()

	if *list {
		ms, err := postgres.Migrations()
		if err != nil {
			log.Fatalf("migrations: %v", err)
		}
		for _, m := range ms {
			fmt.Println(m.Name)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(cfg.App.Environment, cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		lg.Fatal("database unavailable", "error", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	applied, err := postgres.Migrate(ctx, db)
	if err != nil {
		lg.Fatal("migration failed", "error", err)
	}
	if len(applied) == 0 {
		lg.Info("schema is up to date")
		return
	}
	lg.Info("migrations applied", "files", applied)
}
