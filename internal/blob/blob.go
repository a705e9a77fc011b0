// Package blob stores binary attachment payloads behind a small
// put/get/delete/exists contract, so local disk and object storage
// backends are interchangeable.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a path does not resolve to a stored
// object. Callers surface it as a 404-equivalent, not a crash.
var ErrNotFound = errors.New("blob not found")

// Store is the attachment storage contract. Paths are generated by Put,
// are collision-free and stable once returned.
type Store interface {
	Put(ctx context.Context, data []byte, suggestedName string) (string, error)
	Get(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) bool
}

// IsNotFound reports whether err (or any error in its chain) means the
// referenced object is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
