// Package store provides the object store adapter: list/get/put/move
// primitives over a bucket partitioned by lifecycle prefix. It carries no
// business logic; retry policy belongs to the callers.
package store

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Get and Move when the referenced object does
// not exist. Callers must never silently create the missing object.
var ErrNotFound = errors.New("store: object not found")

// IsNotFound reports whether err indicates a missing object.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Store is the minimal object store contract the lifecycle engine depends
// on. Any backend offering prefix listing, get, put, and copy semantics is
// sufficient; atomic rename is not required.
type Store interface {
	// List walks every key under prefix in lexicographic order, calling fn
	// for each. Returning an error from fn stops the walk.
	List(ctx context.Context, prefix string, fn func(key string) error) error

	// Get returns the object bytes, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put writes the object, overwriting any existing content.
	Put(ctx context.Context, key string, data []byte) error

	// Move relocates srcKey under dstPrefix and returns the new key. The
	// move is atomic from the caller's perspective: on copy failure the
	// original is untouched. If the delete after a successful copy fails,
	// the implementation logs a duplicate-object warning and reports
	// success; downstream processing is idempotent to duplicates.
	Move(ctx context.Context, srcKey, dstPrefix string) (string, error)
}

// Rekey computes the destination key for a move: the source key relative
// to its first segment (its lifecycle prefix), placed under dstPrefix.
// Subfolders below the prefix survive the move, so same-named documents in
// different folders never collide.
func Rekey(srcKey, dstPrefix string) string {
	if dstPrefix != "" && !strings.HasSuffix(dstPrefix, "/") {
		dstPrefix += "/"
	}
	rel := srcKey
	if i := strings.Index(srcKey, "/"); i >= 0 {
		rel = srcKey[i+1:]
	}
	return dstPrefix + rel
}
