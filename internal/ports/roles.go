package ports

import (
	"context"
	"errors"

	domainauth "github.com/decorhub/storefront/internal/domain/auth"
)

// ErrRoleNotFound means the role store has no record for the identity.
var ErrRoleNotFound = errors.New("role not found")

// RoleStore maps an identity's email to its role profile.
type RoleStore interface {
	// Lookup returns ErrRoleNotFound when the store has no record for email.
	Lookup(ctx context.Context, email string) (domainauth.RoleProfile, error)
}

// RoleWriter is implemented by role stores the storefront owns, as opposed
// to remote directories it only reads.
type RoleWriter interface {
	Upsert(ctx context.Context, email string, p domainauth.RoleProfile) error
	// Delete removes the record for email; a missing record is not an error.
	Delete(ctx context.Context, email string) error
}

// RoleEvents carries role-change notifications between server instances.
type RoleEvents interface {
	Publish(ctx context.Context, email string) error
	// Subscribe blocks, invoking fn for each changed email, until ctx is done.
	Subscribe(ctx context.Context, fn func(email string)) error
}
