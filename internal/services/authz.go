package services

import (
	"github.com/anonto42/inkwell/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RequireOwnerOrAdmin allows the caller when it owns the resource or is an admin.
func RequireOwnerOrAdmin(ident *models.Identity, owner primitive.ObjectID) error {
	if ident == nil {
		return ErrUnauthenticated
	}
	if ident.IsAdmin() || ident.UserID == owner {
		return nil
	}
	return ErrPermissionDenied
}

// parseID converts a hex id from a path or token into an ObjectID. Malformed
// ids cannot name an existing entity, so they are reported as not found.
func parseID(hex, entity string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, notFound(entity)
	}
	return id, nil
}
