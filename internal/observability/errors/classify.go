// Package errors turns errors into low-cardinality labels for metrics and logs.
package errors

import (
	"context"
	goerrors "errors"
	"net"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"

	domainauth "github.com/decorhub/storefront/internal/domain/auth"
	apperrors "github.com/decorhub/storefront/internal/errors"
	"github.com/decorhub/storefront/internal/ports"
)

// rule maps an error to a class, or "" to defer to the next rule.
type rule func(error) string

//nolint:gochecknoglobals // static read-only lookup
var rules = []rule{
	sentinel(context.DeadlineExceeded, "timeout"),
	sentinel(context.Canceled, "canceled"),
	sentinel(ports.ErrRoleNotFound, "role_not_found"),
	sentinel(ports.ErrSessionNotFound, "session_not_found"),
	sentinel(domainauth.ErrUnknownRole, "invalid_role"),
	sentinel(redis.Nil, "redis_nil"),
	authKind,
	appCode,
	postgres,
	network,
}

func sentinel(target error, class string) rule {
	return func(err error) string {
		if goerrors.Is(err, target) {
			return class
		}
		return ""
	}
}

func authKind(err error) string {
	var ae *domainauth.AuthError
	if !goerrors.As(err, &ae) {
		return ""
	}
	return "auth_" + strings.ReplaceAll(string(ae.Kind), "-", "_")
}

func appCode(err error) string {
	return string(apperrors.CodeOf(err))
}

// postgres labels server errors by SQLSTATE class, e.g. "postgres_23".
func postgres(err error) string {
	var pgErr *pgconn.PgError
	if goerrors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		return "postgres_" + strings.ToLower(pgErr.Code[:2])
	}
	return ""
}

func network(err error) string {
	var nerr net.Error
	if !goerrors.As(err, &nerr) {
		return ""
	}
	if nerr.Timeout() {
		return "network_timeout"
	}
	return "network"
}

// Classify returns a normalized class for err. Rules run in order; when none
// matches, the innermost error's type name is used.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range rules {
		if class := r(err); class != "" {
			return class
		}
	}
	return typeName(innermost(err))
}

func innermost(err error) error {
	for {
		next := goerrors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func typeName(err error) string {
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.String() == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(t.String(), ".", "_"))
}
