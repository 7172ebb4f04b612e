// Command migrate applies the agenda schema migrations embedded in the
// binary. With no arguments it migrates up to the latest version;
// "force <version>" resets a dirty migration state.
package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/carelink-health/agenda-platform/migrations"
)

func main() {
	log.SetPrefix("agenda-migrate: ")
	log.SetFlags(0)

	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	m, err := newMigrator(db)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _, _ = m.Close() }()

	if len(os.Args) > 1 {
		if os.Args[1] != "force" || len(os.Args) < 3 {
			log.Fatalf("usage: %s [force <version>]", os.Args[0])
		}
		version, err := strconv.Atoi(os.Args[2])
		if err != nil {
			log.Fatalf("invalid version %q: %v", os.Args[2], err)
		}
		if err := m.Force(version); err != nil {
			log.Fatalf("force version %d: %v", version, err)
		}
		log.Printf("schema version forced to %d", version)
		return
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Print("agenda schema already up to date")
			return
		}
		log.Fatalf("migrate up: %v", err)
	}
	log.Print("agenda schema migrated")
}

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("database driver: %w", err)
	}
	srcDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("embedded migrations: %w", err)
	}
	return migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
}
