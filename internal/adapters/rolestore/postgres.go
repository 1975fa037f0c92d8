package rolestore

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	domainauth "github.com/decorhub/storefront/internal/domain/auth"
	apperrors "github.com/decorhub/storefront/internal/errors"
	"github.com/decorhub/storefront/internal/ports"
)

// PostgresStore reads role profiles from the role_profiles table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgresStore. The schema comes from internal/migrate.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const lookupRoleQuery = `SELECT role, display_name, photo_url FROM role_profiles WHERE email = $1`

// Lookup returns the profile for email or ports.ErrRoleNotFound.
func (s *PostgresStore) Lookup(ctx context.Context, email string) (domainauth.RoleProfile, error) {
	var (
		role string
		p    domainauth.RoleProfile
	)
	err := s.db.QueryRowContext(ctx, lookupRoleQuery, normalizeEmail(email)).Scan(&role, &p.DisplayName, &p.PhotoURL)
	if errors.Is(err, sql.ErrNoRows) {
		return domainauth.RoleProfile{}, ports.ErrRoleNotFound
	}
	if err != nil {
		return domainauth.RoleProfile{}, apperrors.MapDBError(err)
	}
	p.Role = domainauth.Role(role)
	return p, nil
}

const upsertRoleQuery = `
INSERT INTO role_profiles (email, role, display_name, photo_url)
VALUES ($1, $2, $3, $4)
ON CONFLICT (email) DO UPDATE
SET role = EXCLUDED.role,
    display_name = EXCLUDED.display_name,
    photo_url = EXCLUDED.photo_url,
    updated_at = now()`

// Upsert assigns a role to email. Used by seeding and admin tooling.
func (s *PostgresStore) Upsert(ctx context.Context, email string, p domainauth.RoleProfile) error {
	if !p.Role.IsResolved() {
		return apperrors.ValidationField("role", "role must be user, decorator or admin")
	}
	email = normalizeEmail(email)
	if email == "" {
		return apperrors.ValidationField("email", "email is required")
	}
	if _, err := s.db.ExecContext(ctx, upsertRoleQuery, email, string(p.Role), p.DisplayName, p.PhotoURL); err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

// Delete removes the record for email. Deleting a missing record is not an error.
func (s *PostgresStore) Delete(ctx context.Context, email string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM role_profiles WHERE email = $1`, normalizeEmail(email)); err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
