package utils

import (
	"github.com/google/uuid"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/chunkstore"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/entity"
)

// UserScope is the chunk owner scope of a user's private datasets.
func UserScope(userID uuid.UUID) string {
	return userID.String()
}

// ReadableScopes lists every owner scope the user may read from.
func ReadableScopes(userID uuid.UUID) []string {
	return []string{UserScope(userID), chunkstore.SharedScope}
}

func UserCanManageShared(user *entity.User) bool {
	return user != nil && user.IsAdmin()
}
