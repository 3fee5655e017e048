// persistence/interface.go
package persistence

import (
	"context"
	"errors"
)

// DocStore is a transactional key-document store. Documents are JSON values
// addressed by slash-separated keys, e.g. "rooms/abc123" or
// "rooms/abc123/currentGame/0001".
type DocStore interface {
	// Get reads a single document outside of any transaction.
	Get(ctx context.Context, key string, dest any) error
	// RunTransaction executes fn against a consistent read set and commits
	// its writes atomically. fn is retried automatically when a concurrent
	// writer invalidated the read set.
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// Tx is the handle passed to a transaction function. All reads are version
// tracked; the write set only commits if none of the read documents changed.
type Tx interface {
	Get(key string, dest any) error
	Set(key string, doc any)
	Update(key string, fields map[string]any)
	Delete(key string)
	List(prefix string) ([]string, error)
}

var (
	ErrNotFound = errors.New("document not found")
	ErrConflict = errors.New("transaction conflict")
)

type arrayUnion struct{ elems []any }

// ArrayUnion is a partial-update value that appends the given elements to an
// array field, skipping elements already present. Strictly-additive updates
// like room membership use it to keep the conflict surface small.
func ArrayUnion(elems ...any) any { return arrayUnion{elems: elems} }

type increment struct{ delta int64 }

// Increment is a partial-update value that adds delta to a numeric field,
// treating a missing field as zero.
func Increment(delta int64) any { return increment{delta: delta} }
