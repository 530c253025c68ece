// Package memory — in-memory хранилище для локальной разработки и тестов.
package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage"
	"github.com/vladislavdragonenkov/shop/internal/storage/fetch"
)

// Options задаёт параметры in-memory хранилища.
type Options struct {
	BatchSize int
	Recorder  fetch.Recorder
}

// Store хранит таблицы в памяти. Единицы работы выполняются строго по одной:
// Do держит мьютекс на всё время fn, поэтому вложенный вызов Do блокируется.
type Store struct {
	mu     sync.Mutex
	tables *tables
	opts   Options
}

// NewStore создаёт пустое хранилище.
func NewStore(opts Options) *Store {
	return &Store{tables: newTables(), opts: opts}
}

var _ storage.Store = (*Store)(nil)

// Do выполняет fn над снимком таблиц; при ошибке снимок восстанавливается.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.tables.clone()
	t := s.tables
	tx := storage.Tx{
		Members:    &memberRepository{t: t},
		Items:      &itemRepository{t: t},
		Categories: &categoryRepository{t: t},
		Orders:     fetch.NewRepository(t, t, fetch.Options{BatchSize: s.opts.BatchSize, Recorder: s.opts.Recorder}),
		Outbox:     &outboxRepository{t: t},
		Queries:    &querySource{t: t},
	}

	if err := fn(ctx, tx); err != nil {
		s.tables = snapshot
		return err
	}
	return nil
}

// Outbox возвращает outbox-репозиторий, синхронизированный с единицами работы.
func (s *Store) Outbox() domain.OutboxRepository {
	return &lockedOutbox{store: s}
}

// Ping всегда успешен.
func (s *Store) Ping(context.Context) error { return nil }

// Close ничего не освобождает.
func (s *Store) Close() error { return nil }

type lockedOutbox struct {
	store *Store
}

func (o *lockedOutbox) repo() *outboxRepository {
	return &outboxRepository{t: o.store.tables}
}

func (o *lockedOutbox) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	return o.repo().Enqueue(ctx, msg)
}

func (o *lockedOutbox) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	return o.repo().PullPending(ctx, limit)
}

func (o *lockedOutbox) Stats(ctx context.Context) (domain.OutboxStats, error) {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	return o.repo().Stats(ctx)
}

func (o *lockedOutbox) MarkSent(ctx context.Context, id string) error {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	return o.repo().MarkSent(ctx, id)
}

func (o *lockedOutbox) MarkFailed(ctx context.Context, id string) error {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()
	return o.repo().MarkFailed(ctx, id)
}
