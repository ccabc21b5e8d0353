package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned by repositories when the referenced row does not
// exist. Callers can distinguish it from other failures with errors.Is.
var ErrNotFound = errors.New("not found")

// ErrConcurrentModification is returned when a conditional write lost the
// race against another writer. The caller should re-read and retry; nothing
// in this service retries automatically.
var ErrConcurrentModification = errors.New("concurrent modification")

// AsNotFound maps pgx's no-rows sentinel to ErrNotFound so that domain code
// never has to import pgx to classify a miss.
func AsNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
