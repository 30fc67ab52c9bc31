// Package store is the data access layer: users, messages and the follow
// and like edges between them.
package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNotFound             = errors.New("record not found")
	ErrUniquenessViolation  = errors.New("username or email already taken")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrCannotFollowSelf     = errors.New("cannot follow yourself")
)

// FeedLimit caps the number of messages on the home timeline.
const FeedLimit = 100

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for callers that need raw access, such
// as the fixture loader.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn inside a database transaction. It commits when fn
// returns nil and rolls back on error or panic. Every query inside fn must
// go through tx.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&Store{db: gtx})
	})
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// translate maps driver errors onto the package's sentinel errors.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return ErrUniquenessViolation
	}
	return err
}

// isUniqueViolation catches drivers that do not translate their errors.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
