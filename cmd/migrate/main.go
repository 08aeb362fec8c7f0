package main

import (
	"context"
	"flag"
	"log"
	"time"

	"pantry.app/internal/config"
	"pantry.app/internal/migrate"
)

func main() {
	log.SetFlags(0)
	dsn := flag.String("dsn", "", "PostgreSQL DSN (defaults to PANTRY_* environment variables)")
	flag.Parse()

	if *dsn == "" {
		cfg, err := config.FromEnv()
		if err != nil {
			log.Fatalf("missing DSN: provide via -dsn or the PANTRY_DB_* environment: %v", err)
		}
		target := cfg.DB.DSN()
		dsn = &target
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|down|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	switch flag.Arg(0) {
	case "up":
		err = migrate.Up(ctx, *dsn)
	case "down":
		err = migrate.Down(ctx, *dsn)
	case "status":
		err = migrate.Status(ctx, *dsn)
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}
