// persistence/tx.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// backend is what each storage implementation provides. The transaction
// bookkeeping (read versions, buffered writes, retry loop) is shared; only
// fetch/list/commit differ per backend.
type backend interface {
	// fetch returns the document and its version. Version 0 means absent.
	fetch(ctx context.Context, key string) (map[string]any, int64, error)
	listKeys(ctx context.Context, prefix string) ([]string, error)
	// commit atomically verifies that every key in reads still has the
	// recorded version and applies ops in order. It returns ErrConflict
	// when verification fails.
	commit(ctx context.Context, reads map[string]int64, ops []writeOp) error
}

type opKind int

const (
	opSet opKind = iota
	opUpdate
	opDelete
)

type writeOp struct {
	kind   opKind
	key    string
	doc    map[string]any // opSet
	fields map[string]any // opUpdate
}

type docTx struct {
	ctx   context.Context
	be    backend
	reads map[string]int64
	ops   []writeOp
	err   error
}

func newDocTx(ctx context.Context, be backend) *docTx {
	return &docTx{ctx: ctx, be: be, reads: make(map[string]int64)}
}

func (t *docTx) Get(key string, dest any) error {
	// A read inside the transaction observes the transaction's own writes:
	// the latest buffered Set or Delete is the base, with any later Updates
	// merged on top. Only when no Set or Delete is buffered does the read
	// reach the backend and record a version.
	var doc map[string]any
	exists := false
	start := 0
	fetchNeeded := true
	for i := len(t.ops) - 1; i >= 0; i-- {
		op := t.ops[i]
		if op.key != key || op.kind == opUpdate {
			continue
		}
		if op.kind == opSet {
			doc = op.doc
			exists = true
		}
		fetchNeeded = false
		start = i + 1
		break
	}

	if fetchNeeded {
		fetched, version, err := t.be.fetch(t.ctx, key)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if _, seen := t.reads[key]; !seen {
			t.reads[key] = version
		}
		if err == nil {
			doc = fetched
			exists = true
		}
	}

	for _, op := range t.ops[start:] {
		if op.key != key || op.kind != opUpdate {
			continue
		}
		merged, err := mergeUpdate(doc, op.fields)
		if err != nil {
			return err
		}
		doc = merged
		exists = true
	}

	if !exists {
		return ErrNotFound
	}
	return decodeDoc(doc, dest)
}

func (t *docTx) Set(key string, doc any) {
	encoded, err := encodeDoc(doc)
	if err != nil {
		t.fail(err)
		return
	}
	t.ops = append(t.ops, writeOp{kind: opSet, key: key, doc: encoded})
}

func (t *docTx) Update(key string, fields map[string]any) {
	t.ops = append(t.ops, writeOp{kind: opUpdate, key: key, fields: fields})
}

func (t *docTx) Delete(key string) {
	t.ops = append(t.ops, writeOp{kind: opDelete, key: key})
}

func (t *docTx) List(prefix string) ([]string, error) {
	keys, err := t.be.listKeys(t.ctx, prefix)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (t *docTx) fail(err error) {
	if t.err == nil {
		t.err = err
	}
}

const maxTxAttempts = 5

// runTransaction drives the optimistic-retry loop shared by all backends.
// Errors returned by fn abort immediately; only commit conflicts retry.
func runTransaction(ctx context.Context, be backend, fn func(tx Tx) error) error {
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		tx := newDocTx(ctx, be)
		if err := fn(tx); err != nil {
			return err
		}
		if tx.err != nil {
			return tx.err
		}
		err := be.commit(ctx, tx.reads, tx.ops)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("transaction retries exhausted: %w", ErrConflict)
}

func storeGet(ctx context.Context, be backend, key string, dest any) error {
	doc, _, err := be.fetch(ctx, key)
	if err != nil {
		return err
	}
	return decodeDoc(doc, dest)
}
