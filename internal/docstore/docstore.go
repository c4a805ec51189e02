// Package docstore implements the persistence interfaces of the service layer
// on top of gorm.
package docstore

import (
	"errors"

	"gorm.io/gorm"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/chunkstore"
)

// ErrNotFound is returned when a looked-up record does not exist. It is the
// same sentinel chunkstore expects from its repository.
var ErrNotFound = chunkstore.ErrNotFound

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
