package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrNotFound                = errors.New("record not found")
	ErrDuplicateOrderID        = errors.New("order id already exists")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
	ErrStatusChanged           = errors.New("status changed concurrently")
)

const uniqueViolation = "23505"

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection
func NewWithDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// classifyUnique maps unique violations on orders to sentinel errors.
func classifyUnique(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != uniqueViolation {
		return err
	}
	switch pqErr.Constraint {
	case "orders_order_id_key":
		return fmt.Errorf("%w: %s", ErrDuplicateOrderID, pqErr.Detail)
	case "orders_idempotency_key_key":
		return fmt.Errorf("%w: %s", ErrDuplicateIdempotencyKey, pqErr.Detail)
	}
	return err
}

// page clamps pagination input to a LIMIT/OFFSET pair.
func page(pageNum, pageSize, maxSize int) (limit, offset int) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if maxSize > 0 && pageSize > maxSize {
		pageSize = maxSize
	}
	if pageNum < 1 {
		pageNum = 1
	}
	return pageSize, (pageNum - 1) * pageSize
}

const (
	DefaultPageSize = 12
	MaxPageSize     = 48
)
