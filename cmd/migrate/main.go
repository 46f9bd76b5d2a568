// Command migrate manages the market-pulse database schema. Migrations
// are embedded NNNN_name.up.sql / NNNN_name.down.sql pairs under
// migrations/; each step runs in its own transaction and applied versions
// are recorded in schema_migrations.
//
// Usage: go run ./cmd/migrate [up|down|status] [steps]
package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var (
	loadEnvFunc = godotenv.Load
	openPool    = pgxpool.New
)

// migration is one versioned up/down pair.
type migration struct {
	version int64
	name    string
	up      string
	down    string
}

type runner struct {
	pool *pgxpool.Pool
}

func main() {
	loadEnvFunc()

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	dsn := os.Getenv("DATABASE_URL")
	if strings.TrimSpace(dsn) == "" {
		log.Fatal("DATABASE_URL is required")
	}

	migrations, err := readMigrations(migrationFiles)
	if err != nil {
		log.Fatalf("read migrations: %v", err)
	}

	ctx := context.Background()
	pool, err := openPool(ctx, dsn)
	if err != nil {
		log.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()

	r := &runner{pool: pool}
	if err := r.ensureVersionTable(ctx); err != nil {
		log.Fatalf("create schema_migrations: %v", err)
	}

	switch command {
	case "up":
		applied, err := r.up(ctx, migrations)
		if err != nil {
			log.Fatalf("migrate up: %v", err)
		}
		log.Printf("up to date, %d migration(s) applied", applied)
	case "down":
		steps := 1
		if len(os.Args) > 2 {
			steps, err = strconv.Atoi(os.Args[2])
			if err != nil || steps <= 0 {
				log.Fatalf("invalid step count %q", os.Args[2])
			}
		}
		rolledBack, err := r.down(ctx, migrations, steps)
		if err != nil {
			log.Fatalf("migrate down: %v", err)
		}
		log.Printf("%d migration(s) rolled back", rolledBack)
	case "status":
		if err := r.status(ctx, migrations); err != nil {
			log.Fatalf("migration status: %v", err)
		}
	default:
		log.Fatalf("unknown command %q; usage: go run ./cmd/migrate [up|down|status] [steps]", command)
	}
}

var migrationName = regexp.MustCompile(`^migrations/([0-9]+)_([a-z0-9_]+)\.(up|down)\.sql$`)

// readMigrations collects the embedded files into sorted up/down pairs.
// Every version must carry both directions.
func readMigrations(fsys fs.FS) ([]migration, error) {
	paths, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return nil, err
	}

	byVersion := make(map[int64]*migration)
	for _, path := range paths {
		parts := migrationName.FindStringSubmatch(path)
		if parts == nil {
			return nil, fmt.Errorf("migration %q does not match NNNN_name.{up,down}.sql", path)
		}
		version, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("migration %q: bad version: %w", path, err)
		}

		body, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, err
		}
		stmt := strings.TrimSpace(string(body))
		if stmt == "" {
			return nil, fmt.Errorf("migration %q is empty", path)
		}

		m := byVersion[version]
		if m == nil {
			m = &migration{version: version, name: parts[2]}
			byVersion[version] = m
		}
		if m.name != parts[2] {
			return nil, fmt.Errorf("version %d has conflicting names %q and %q", version, m.name, parts[2])
		}
		if parts[3] == "up" {
			m.up = stmt
		} else {
			m.down = stmt
		}
	}
	if len(byVersion) == 0 {
		return nil, errors.New("no migrations embedded")
	}

	migrations := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.up == "" || m.down == "" {
			return nil, fmt.Errorf("version %d is missing its up or down file", m.version)
		}
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].version < migrations[j].version })
	return migrations, nil
}

func (r *runner) ensureVersionTable(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    BIGINT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`)
	return err
}

// up applies every pending migration in version order and reports how
// many ran.
func (r *runner) up(ctx context.Context, migrations []migration) (int, error) {
	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, m := range migrations {
		if _, done := applied[m.version]; done {
			continue
		}
		err := r.inTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.up); err != nil {
				return fmt.Errorf("version %d up: %w", m.version, err)
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
				m.version, m.name)
			return err
		})
		if err != nil {
			return count, err
		}
		log.Printf("applied %04d_%s", m.version, m.name)
		count++
	}
	return count, nil
}

// down rolls back up to steps applied migrations, newest first.
func (r *runner) down(ctx context.Context, migrations []migration, steps int) (int, error) {
	byVersion := make(map[int64]migration, len(migrations))
	for _, m := range migrations {
		byVersion[m.version] = m
	}

	versions, err := r.newestApplied(ctx, steps)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, version := range versions {
		m, ok := byVersion[version]
		if !ok {
			return count, fmt.Errorf("no local migration for applied version %d", version)
		}
		err := r.inTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.down); err != nil {
				return fmt.Errorf("version %d down: %w", m.version, err)
			}
			_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, m.version)
			return err
		})
		if err != nil {
			return count, err
		}
		log.Printf("rolled back %04d_%s", m.version, m.name)
		count++
	}
	return count, nil
}

// status prints each known migration with its applied/pending state.
func (r *runner) status(ctx context.Context, migrations []migration) error {
	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		state := "pending"
		if _, ok := applied[m.version]; ok {
			state = "applied"
		}
		log.Printf("%04d_%s: %s", m.version, m.name, state)
	}
	return nil
}

func (r *runner) appliedVersions(ctx context.Context) (map[int64]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int64]struct{})
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = struct{}{}
	}
	return applied, rows.Err()
}

func (r *runner) newestApplied(ctx context.Context, limit int) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT version FROM schema_migrations ORDER BY version DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := make([]int64, 0, limit)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}
	return versions, rows.Err()
}

func (r *runner) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
