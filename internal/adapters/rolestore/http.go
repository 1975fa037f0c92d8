// Package rolestore provides RoleStore adapters backed by an HTTP user
// service or by Postgres.
package rolestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/decorhub/storefront/internal/domain/auth"
	apperrors "github.com/decorhub/storefront/internal/errors"
	"github.com/decorhub/storefront/internal/ports"
)

const maxBodyBytes = 1 << 20

// HTTPConfig configures HTTPStore.
type HTTPConfig struct {
	// BaseURL is the user service root; lookups hit {BaseURL}/users/{email}.
	BaseURL string
	// RolePath is a JMESPath expression selecting the role string. Default "role".
	RolePath string
	// NamePath and PhotoPath optionally select the display name and photo URL.
	NamePath  string
	PhotoPath string
	// BearerToken, when set, is sent as an Authorization header.
	BearerToken string
	HTTPClient  *http.Client
}

// HTTPStore looks roles up from a JSON user service.
type HTTPStore struct {
	base   *url.URL
	role   string
	name   string
	photo  string
	token  string
	client *http.Client
}

// NewHTTPStore validates cfg and compiles its JMESPath expressions.
func NewHTTPStore(cfg HTTPConfig) (*HTTPStore, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("role store base URL is required")
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid role store base URL %q", cfg.BaseURL)
	}

	rolePath := cfg.RolePath
	if rolePath == "" {
		rolePath = "role"
	}
	for _, expr := range []string{rolePath, cfg.NamePath, cfg.PhotoPath} {
		if expr == "" {
			continue
		}
		if _, compileErr := jmespath.Compile(expr); compileErr != nil {
			return nil, fmt.Errorf("compile JMESPath %q: %w", expr, compileErr)
		}
	}
	s := &HTTPStore{
		base:   base,
		role:   rolePath,
		name:   cfg.NamePath,
		photo:  cfg.PhotoPath,
		token:  cfg.BearerToken,
		client: cfg.HTTPClient,
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: 10 * time.Second}
	}
	return s, nil
}

// Lookup fetches the record for email. A 404 yields ports.ErrRoleNotFound;
// transport failures, 429 and 5xx are upstream errors.
func (s *HTTPStore) Lookup(ctx context.Context, email string) (domainauth.RoleProfile, error) {
	u := s.base.JoinPath("users", strings.ToLower(strings.TrimSpace(email)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domainauth.RoleProfile{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "build role request")
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return domainauth.RoleProfile{}, ctx.Err()
		}
		return domainauth.RoleProfile{}, apperrors.Upstream(err, "role store request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domainauth.RoleProfile{}, apperrors.Upstream(err, "read role store response")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domainauth.RoleProfile{}, ports.ErrRoleNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return domainauth.RoleProfile{}, apperrors.Upstream(
			fmt.Errorf("status %d", resp.StatusCode), "role store unavailable")
	case resp.StatusCode != http.StatusOK:
		return domainauth.RoleProfile{}, apperrors.Validationf("role store rejected lookup: status %d", resp.StatusCode)
	}

	var doc any
	if jsonErr := json.Unmarshal(body, &doc); jsonErr != nil {
		return domainauth.RoleProfile{}, apperrors.Upstream(jsonErr, "decode role store response")
	}
	return s.profile(doc)
}

func (s *HTTPStore) profile(doc any) (domainauth.RoleProfile, error) {
	raw, err := jmespath.Search(s.role, doc)
	if err != nil {
		return domainauth.RoleProfile{}, apperrors.Wrap(err, apperrors.ErrCodeValidation, "evaluate role path")
	}
	if raw == nil {
		return domainauth.RoleProfile{}, ports.ErrRoleNotFound
	}
	role, ok := raw.(string)
	if !ok {
		return domainauth.RoleProfile{}, apperrors.Validationf("role must be a string, got %T", raw)
	}
	return domainauth.RoleProfile{
		Role:        domainauth.Role(strings.ToLower(strings.TrimSpace(role))),
		DisplayName: searchString(s.name, doc),
		PhotoURL:    searchString(s.photo, doc),
	}, nil
}

func searchString(expr string, doc any) string {
	if expr == "" {
		return ""
	}
	v, err := jmespath.Search(expr, doc)
	if err != nil {
		return ""
	}
	str, _ := v.(string)
	return str
}
