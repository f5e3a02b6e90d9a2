package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"chatrelay/internal/config"
	"chatrelay/internal/repository/postgres"
)

// Schema bootstrap for the chat relay tables. Idempotent: every statement is
// IF NOT EXISTS, so it is safe to run on every deploy.
func main() {
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before creating the schema (fresh start)")
	flag.Parse()

	// Load .env file (silently ignore if it doesn't exist)
	_ = godotenv.Load()

	cfg := config.Load()

	// SAFETY: never drop in production
	if cfg.Environment == "prod" && *dropTables {
		log.Fatal("BLOCKED: cannot run --drop-tables in production environment")
	}

	log.Printf("Setting up schema (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	if *dropTables {
		log.Println("Dropping all tables...")
		if err := dropAllTables(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		log.Println("Tables dropped")
	}

	if err := runSchema(ctx, pool, tables, cfg.TablePrefix); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}

	log.Println("Schema ready")
}

func dropAllTables(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	stmts := []string{
		"DROP TABLE IF EXISTS " + tables.Turns + " CASCADE",
		"DROP TABLE IF EXISTS " + tables.Models + " CASCADE",
		"DROP TABLE IF EXISTS " + tables.Providers + " CASCADE",
		"DROP TABLE IF EXISTS " + tables.Settings + " CASCADE",
		"DROP TABLE IF EXISTS " + tables.Conversations + " CASCADE",
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// runSchema creates the tables if they don't exist
func runSchema(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames, tablePrefix string) error {
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`); err != nil {
		return err
	}

	createConversations := `
		CREATE TABLE IF NOT EXISTS ` + tables.Conversations + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id UUID NOT NULL,
			title TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createConversations); err != nil {
		return err
	}

	createTurns := `
		CREATE TABLE IF NOT EXISTS ` + tables.Turns + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			conversation_id UUID NOT NULL REFERENCES ` + tables.Conversations + `(id) ON DELETE CASCADE,
			sender TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createTurns); err != nil {
		return err
	}

	createProviders := `
		CREATE TABLE IF NOT EXISTS ` + tables.Providers + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id UUID NOT NULL,
			name TEXT NOT NULL,
			api_host TEXT NOT NULL,
			api_key TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createProviders); err != nil {
		return err
	}

	createModels := `
		CREATE TABLE IF NOT EXISTS ` + tables.Models + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			provider_id UUID NOT NULL REFERENCES ` + tables.Providers + `(id) ON DELETE CASCADE,
			name TEXT NOT NULL
		)
	`
	if _, err := pool.Exec(ctx, createModels); err != nil {
		return err
	}

	createSettings := `
		CREATE TABLE IF NOT EXISTS ` + tables.Settings + ` (
			user_id UUID PRIMARY KEY,
			temperature DOUBLE PRECISION NOT NULL,
			max_tokens INTEGER NOT NULL,
			stream BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := pool.Exec(ctx, createSettings); err != nil {
		return err
	}

	indexes := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%sconversations_user_updated ON %s(user_id, updated_at DESC)", tablePrefix, tables.Conversations),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%sturns_conversation ON %s(conversation_id, created_at, id)", tablePrefix, tables.Turns),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%sproviders_user ON %s(user_id)", tablePrefix, tables.Providers),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%smodels_provider ON %s(provider_id)", tablePrefix, tables.Models),
	}
	for _, stmt := range indexes {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}
