// seed inserts the development users (alice active, bob disabled) for local testing.
// Idempotent: existing users are left untouched.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"session-auth/backend/internal/config"
	"session-auth/backend/internal/db"
	"session-auth/backend/internal/security"
	userrepo "session-auth/backend/internal/user/repository"
	"session-auth/backend/internal/user/seed"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	hasher, err := security.NewHasherFor(cfg.PasswordHash, cfg.BcryptCost)
	if err != nil {
		log.Fatalf("hasher: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	created, err := seed.Apply(ctx, userrepo.NewPostgresRepository(conn), hasher, time.Now().UTC())
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	if len(created) == 0 {
		log.Println("Seed already applied. Skipping.")
		return
	}
	log.Printf("Seed completed successfully: created %v", created)
	fmt.Printf("Dev login: alice / %s\n", seed.DevPassword)
	fmt.Printf("Disabled login: bob / %s\n", seed.DevPassword)
}
