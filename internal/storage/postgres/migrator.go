package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
)

const (
	migrationsGlob    = "sql/migrations/*.sql"
	migrationTable    = "schema_migrations"
	migrationLockKey  = int64(20260417)
	migrationTableDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
)

var (
	//go:embed sql/migrations/*.sql
	migrationsFS embed.FS

	migrationFilePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)
)

type migrationDirection string

const (
	migrationUp   migrationDirection = "up"
	migrationDown migrationDirection = "down"
)

type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

type migrationBuilder struct {
	version int64
	name    string
	upSQL   string
	downSQL string
}

// MigrateUp применяет up-миграции.
// steps=0 означает "применить все доступные".
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	return s.migrate(ctx, migrationUp, steps)
}

// MigrateDown откатывает миграции.
// steps<=0 интерпретируется как 1 шаг.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return s.migrate(ctx, migrationDown, steps)
}

// MigrationStatus возвращает текущую версию и количество применённых миграций.
func (s *Store) MigrationStatus(ctx context.Context) (int64, int, error) {
	if s == nil || s.db == nil {
		return 0, 0, fmt.Errorf("postgres store is not initialized")
	}

	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(queryCtx, migrationTableDDL); err != nil {
		return 0, 0, fmt.Errorf("ensure migration table: %w", err)
	}

	var status struct {
		Version int64 `db:"version"`
		Count   int   `db:"count"`
	}
	ds := dialect.From(migrationTable).Select(
		goqu.COALESCE(goqu.MAX("version"), 0).As("version"),
		goqu.COUNT(goqu.Star()).As("count"),
	)
	if err := getRow(queryCtx, s.db, &status, ds); err != nil {
		return 0, 0, fmt.Errorf("query migration status: %w", err)
	}

	return status.Version, status.Count, nil
}

// MigrationInfo — состояние одной встроенной миграции.
type MigrationInfo struct {
	Version   int64
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// Migrations возвращает все встроенные миграции с отметкой о применении.
func (s *Store) Migrations(ctx context.Context) ([]MigrationInfo, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("postgres store is not initialized")
	}

	migrations, err := loadMigrationsFromFS(migrationsFS)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, migrationTableDDL); err != nil {
		return nil, fmt.Errorf("ensure migration table: %w", err)
	}

	var rows []appliedMigration
	if err := selectRows(ctx, s.db, &rows, dialect.From(migrationTable).Select("version", "applied_at")); err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	appliedAt := make(map[int64]time.Time, len(rows))
	for _, row := range rows {
		appliedAt[row.Version] = row.AppliedAt
	}

	result := make([]MigrationInfo, 0, len(migrations))
	for _, m := range migrations {
		at, ok := appliedAt[m.Version]
		result = append(result, MigrationInfo{Version: m.Version, Name: m.Name, Applied: ok, AppliedAt: at})
	}
	return result, nil
}

type appliedMigration struct {
	Version   int64     `db:"version"`
	AppliedAt time.Time `db:"applied_at"`
}

func (s *Store) migrate(ctx context.Context, direction migrationDirection, steps int) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	migrations, err := loadMigrationsFromFS(migrationsFS)
	if err != nil {
		return err
	}

	// Advisory lock держится на соединении, поэтому вся миграция идёт через одно соединение.
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, "SELECT pg_advisory_lock($1)", migrationLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockKey)
	}()

	if _, err := conn.ExecContext(ctx, migrationTableDDL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	s.logger.WithFields(log.Fields{
		"direction": direction,
		"steps":     steps,
		"available": len(migrations),
	}).Info("running migrations")

	switch direction {
	case migrationUp:
		return s.applyUp(ctx, conn, migrations, steps)
	case migrationDown:
		return s.applyDown(ctx, conn, migrations, steps)
	default:
		return fmt.Errorf("unsupported migration direction: %s", direction)
	}
}

func (s *Store) applyUp(ctx context.Context, conn *sqlx.Conn, migrations []migration, steps int) error {
	var versions []int64
	if err := conn.SelectContext(ctx, &versions, selectVersions(dialect.From(migrationTable))); err != nil {
		return fmt.Errorf("query applied migrations: %w", err)
	}
	applied := make(map[int64]bool, len(versions))
	for _, version := range versions {
		applied[version] = true
	}

	appliedSteps := 0
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		record := dialect.Insert(migrationTable).Rows(goqu.Record{
			"version":    m.Version,
			"name":       m.Name,
			"applied_at": goqu.L("NOW()"),
		})
		if err := applyOne(ctx, conn, m, migrationUp, m.UpSQL, record); err != nil {
			return err
		}
		s.logger.WithField("migration", fmt.Sprintf("%04d_%s", m.Version, m.Name)).Info("migration applied")
		appliedSteps++
		if steps > 0 && appliedSteps >= steps {
			break
		}
	}

	return nil
}

func (s *Store) applyDown(ctx context.Context, conn *sqlx.Conn, migrations []migration, steps int) error {
	versionMap := make(map[int64]migration, len(migrations))
	for _, m := range migrations {
		versionMap[m.Version] = m
	}

	var versions []int64
	query := selectVersions(dialect.From(migrationTable).Order(goqu.C("version").Desc()).Limit(uint(steps)))
	if err := conn.SelectContext(ctx, &versions, query); err != nil {
		return fmt.Errorf("query applied migrations desc: %w", err)
	}

	for _, version := range versions {
		m, ok := versionMap[version]
		if !ok {
			return fmt.Errorf("cannot rollback unknown migration version %d", version)
		}
		record := dialect.Delete(migrationTable).Where(goqu.C("version").Eq(m.Version))
		if err := applyOne(ctx, conn, m, migrationDown, m.DownSQL, record); err != nil {
			return err
		}
		s.logger.WithField("migration", fmt.Sprintf("%04d_%s", m.Version, m.Name)).Info("migration rolled back")
	}

	return nil
}

type sqlBuilder interface {
	ToSQL() (string, []interface{}, error)
}

func selectVersions(ds *goqu.SelectDataset) string {
	query, _, _ := ds.Select("version").ToSQL()
	return query
}

// applyOne выполняет тело миграции и запись в schema_migrations в одной транзакции.
func applyOne(ctx context.Context, conn *sqlx.Conn, m migration, direction migrationDirection, body string, record sqlBuilder) error {
	recordSQL, args, err := record.ToSQL()
	if err != nil {
		return fmt.Errorf("build migration record %d_%s: %w", m.Version, m.Name, err)
	}

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx (%s %d): %w", direction, m.Version, err)
	}

	if _, err := tx.ExecContext(ctx, body); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("execute %s migration %d_%s: %w", direction, m.Version, m.Name, err)
	}
	if _, err := tx.ExecContext(ctx, recordSQL, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record %s migration %d_%s: %w", direction, m.Version, m.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s migration %d_%s: %w", direction, m.Version, m.Name, err)
	}
	return nil
}

func loadMigrationsFromFS(fsys fs.FS) ([]migration, error) {
	files, err := fs.Glob(fsys, migrationsGlob)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no migration files found")
	}

	builders := make(map[int64]*migrationBuilder)
	for _, file := range files {
		base := filepath.Base(file)
		matches := migrationFilePattern.FindStringSubmatch(base)
		if len(matches) != 4 {
			return nil, fmt.Errorf("invalid migration file name: %s", base)
		}

		version, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version from %s: %w", base, err)
		}
		name := matches[2]
		direction := matches[3]

		bodyRaw, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read migration file %s: %w", file, err)
		}
		body := strings.TrimSpace(string(bodyRaw))
		if body == "" {
			return nil, fmt.Errorf("migration file is empty: %s", base)
		}

		builder, ok := builders[version]
		if !ok {
			builder = &migrationBuilder{version: version, name: name}
			builders[version] = builder
		} else if builder.name != name {
			return nil, fmt.Errorf("migration name mismatch for version %d: %s vs %s", version, builder.name, name)
		}

		switch direction {
		case "up":
			if builder.upSQL != "" {
				return nil, fmt.Errorf("duplicate up migration for version %d", version)
			}
			builder.upSQL = body
		case "down":
			if builder.downSQL != "" {
				return nil, fmt.Errorf("duplicate down migration for version %d", version)
			}
			builder.downSQL = body
		default:
			return nil, fmt.Errorf("unsupported migration direction in file: %s", base)
		}
	}

	versions := make([]int64, 0, len(builders))
	for version := range builders {
		versions = append(versions, version)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })

	migrations := make([]migration, 0, len(versions))
	for _, version := range versions {
		b := builders[version]
		if b.upSQL == "" || b.downSQL == "" {
			return nil, fmt.Errorf("migration %d_%s must have both up and down files", b.version, b.name)
		}
		migrations = append(migrations, migration{
			Version: b.version,
			Name:    b.name,
			UpSQL:   b.upSQL,
			DownSQL: b.downSQL,
		})
	}

	return migrations, nil
}
