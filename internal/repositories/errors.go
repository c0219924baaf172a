package repositories

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no document or row matches
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateKey is returned when a unique index rejects a write
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrConflict is returned when a conditional update keeps losing to concurrent writers
	ErrConflict = errors.New("concurrent update conflict")
)

// translate maps driver errors onto the repository sentinels
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments), errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err), errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateKey
	}
	return err
}
