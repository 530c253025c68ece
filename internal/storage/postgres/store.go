package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // регистрация диалекта
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage"
	"github.com/vladislavdragonenkov/shop/internal/storage/fetch"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute

	opTimeout = 5 * time.Second
)

var dialect = goqu.Dialect("postgres")

// Options задаёт параметры PostgreSQL-хранилища.
type Options struct {
	BatchSize int
	Recorder  fetch.Recorder
	Logger    *log.Entry
}

// Store оборачивает SQL-подключение к PostgreSQL.
type Store struct {
	db     *sqlx.DB
	opts   Options
	logger *log.Entry
}

var _ storage.Store = (*Store)(nil)

// Open открывает подключение к PostgreSQL и проверяет доступность базы.
func Open(ctx context.Context, dsn string, opts Options) (*Store, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "postgres-store")
	}
	return &Store{db: db, opts: opts, logger: logger}, nil
}

// DB возвращает raw SQL DB, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sql.DB {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.DB
}

// Do выполняет fn в транзакции. Ошибка fn откатывает транзакцию.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) (err error) {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, s.bind(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.WithError(rbErr).Warn("rollback failed")
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) bind(q sqlx.ExtContext) storage.Tx {
	rows := &rowStore{q: q}
	return storage.Tx{
		Members:    &memberRepository{q: q},
		Items:      &itemRepository{q: q},
		Categories: &categoryRepository{q: q},
		Orders:     fetch.NewRepository(rows, rows, fetch.Options{BatchSize: s.opts.BatchSize, Recorder: s.opts.Recorder}),
		Outbox:     &outboxRepository{q: q},
		Queries:    &querySource{q: q},
	}
}

// Outbox возвращает outbox-репозиторий поверх пула подключений (для worker).
func (s *Store) Outbox() domain.OutboxRepository {
	return &outboxRepository{q: s.db}
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// EnsureSchema применяет все up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// selectRows строит запрос и сканирует все строки в dest.
func selectRows(ctx context.Context, q sqlx.ExtContext, dest interface{}, ds *goqu.SelectDataset) error {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return sqlx.SelectContext(ctx, q, dest, query, args...)
}

// getRow строит запрос и сканирует одну строку в dest.
func getRow(ctx context.Context, q sqlx.ExtContext, dest interface{}, ds *goqu.SelectDataset) error {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return sqlx.GetContext(ctx, q, dest, query, args...)
}

// insertReturningID выполняет INSERT ... RETURNING id.
func insertReturningID(ctx context.Context, q sqlx.ExtContext, ds *goqu.InsertDataset) (int64, error) {
	query, args, err := ds.Returning("id").Prepared(true).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var id int64
	if err := sqlx.GetContext(ctx, q, &id, query, args...); err != nil {
		return 0, err
	}
	return id, nil
}

// execUpdate выполняет UPDATE и возвращает число изменённых строк.
func execUpdate(ctx context.Context, q sqlx.ExtContext, ds *goqu.UpdateDataset) (int64, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build update: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

// exists проверяет наличие строки table.id = id.
func exists(ctx context.Context, q sqlx.ExtContext, table string, id int64) (bool, error) {
	var found int64
	err := getRow(ctx, q, &found, dialect.From(table).Select(goqu.C("id")).Where(goqu.C("id").Eq(id)))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check %s exists: %w", table, err)
}
