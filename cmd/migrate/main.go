package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/pyrovision/pyrovision/internal/adapters/postgres"
	"github.com/pyrovision/pyrovision/internal/pkg/config"
)

func main() {
	dir := flag.String("dir", "migrations", "directory holding the *.sql migrations")
	flag.Parse()
	if flag.NArg() < 1 {
		log.Fatal("usage: migrate [-dir migrations] <up|down>")
	}

	cfg, err := config.Load("pyrovision-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	switch flag.Arg(0) {
	case "up":
		applied, err := db.ApplyMigrations(ctx, *dir)
		for _, f := range applied {
			fmt.Printf("OK  %s\n", f)
		}
		if err != nil {
			db.Close()
			log.Fatalf("migrate: %v", err)
		}
		log.Println("all migrations applied")
	case "down":
		if err := db.DropAll(ctx); err != nil {
			db.Close()
			log.Fatalf("drop: %v", err)
		}
		log.Println("tables dropped")
	default:
		db.Close()
		log.Fatalf("unknown command: %s", flag.Arg(0))
	}
}
