// Package sqlstore persists submissions as JSON documents in a single
// form_documents table through gorm. SQLite and PostgreSQL are supported.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/store"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	_queryTimeout = 5 * time.Second
)

// ErrNotFound aliases store.ErrNotFound for callers that only import this
// package.
var ErrNotFound = store.ErrNotFound

// Store is a gorm-backed store.Store.
type Store struct {
	db      *gorm.DB
	system  string
	timeout time.Duration
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithTimeout bounds each query. The default is five seconds.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// Open connects with the named driver and migrates the documents table.
func Open(driver, dsn string, opts ...Option) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite, "sqlite3":
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		dialector = sqlite.Open(dsn)
		driver = DriverSQLite
	case DriverPostgres, "postgresql":
		if dsn == "" {
			return nil, errors.New("sqlstore: postgres requires a dsn")
		}
		dialector = postgres.Open(dsn)
		driver = DriverPostgres
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	return New(db, driver, opts...)
}

// New wraps an existing connection and migrates the documents table.
func New(db *gorm.DB, system string, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, errors.New("sqlstore: nil db")
	}
	s := &Store{db: db, system: system, timeout: _queryTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if err := db.AutoMigrate(&documentRecord{}); err != nil {
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Create inserts payload and returns the generated id.
func (s *Store) Create(ctx context.Context, collection string, payload map[string]any) (string, error) {
	if collection == "" {
		return "", errors.New("sqlstore: collection is required")
	}
	record := documentRecord{
		ID:         uuid.NewString(),
		Collection: collection,
		Payload:    Payload(model.CloneTree(payload)),
		CreatedAt:  time.Now().UTC(),
	}

	ctx, cancel := s.scope(ctx, "create")
	defer cancel()
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return "", fmt.Errorf("sqlstore: create in %q: %w", collection, err)
	}
	return record.ID, nil
}

// Get loads one document.
func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	ctx, cancel := s.scope(ctx, "first")
	defer cancel()

	var record documentRecord
	err := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		First(&record).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.Document{}, fmt.Errorf("%w: %s/%s", store.ErrNotFound, collection, id)
	case err != nil:
		return store.Document{}, fmt.Errorf("sqlstore: get %s/%s: %w", collection, id, err)
	}
	return record.toDocument(), nil
}

// List returns documents oldest first.
func (s *Store) List(ctx context.Context, collection string, opts store.ListOptions) ([]store.Document, error) {
	opts = opts.Normalized()
	ctx, cancel := s.scope(ctx, "find")
	defer cancel()

	var records []documentRecord
	err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("created_at asc, id asc").
		Limit(opts.Limit).
		Offset(opts.Offset).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list %s: %w", collection, err)
	}

	out := make([]store.Document, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDocument())
	}
	return out, nil
}

// Delete removes one document.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	ctx, cancel := s.scope(ctx, "delete")
	defer cancel()

	tx := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Delete(&documentRecord{})
	if tx.Error != nil {
		return fmt.Errorf("sqlstore: delete %s/%s: %w", collection, id, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("%w: %s/%s", store.ErrNotFound, collection, id)
	}
	return nil
}

func (s *Store) scope(ctx context.Context, operation string) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(
			attribute.String("component", "database"),
			attribute.String("db.system", s.system),
			attribute.String("db.operation", operation),
		)
	}
	return context.WithTimeout(ctx, s.timeout)
}
