package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"esquadra.org/internal/migrate"
	"esquadra.org/internal/tenant"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath = flag.String("config", envOr("ESQUADRA_FORCES_CONFIG", "forces.yaml"), "force registry file")
		status  = flag.Bool("status", false, "print applied migrations instead of applying")
	)
	flag.Parse()

	cfg, err := tenant.LoadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("load force registry: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	for _, fc := range cfg.Forces {
		db, err := sql.Open("pgx", fc.DSN)
		if err != nil {
			log.Fatalf("force %s: open: %v", fc.Key, err)
		}
		mgr := migrate.NewManager(db)
		if *status {
			applied, err := mgr.Status(ctx)
			if err != nil {
				log.Fatalf("force %s: status: %v", fc.Key, err)
			}
			log.Printf("force %s: %d applied %v", fc.Key, len(applied), applied)
		} else {
			if err := mgr.Up(ctx); err != nil {
				log.Fatalf("force %s: migrate: %v", fc.Key, err)
			}
			log.Printf("force %s: schema up to date", fc.Key)
		}
		_ = db.Close()
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
