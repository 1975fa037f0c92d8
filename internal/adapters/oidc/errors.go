package oidc

import (
	"context"
	"errors"
	"net"

	"golang.org/x/oauth2"

	domainauth "github.com/decorhub/storefront/internal/domain/auth"
)

func invalidCredentials(err error) error {
	return &domainauth.AuthError{Kind: domainauth.AuthErrInvalidCredentials, Err: err}
}

func providerError(err error) error {
	return &domainauth.AuthError{Kind: domainauth.AuthErrProvider, Err: err}
}

// classify maps token-endpoint and transport failures onto AuthError kinds.
// A 4xx from the token endpoint means the code was bad, not the provider.
func classify(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		if rerr.ErrorCode == "invalid_grant" || rerr.ErrorCode == "invalid_request" {
			return invalidCredentials(err)
		}
		if rerr.Response != nil && rerr.Response.StatusCode >= 400 && rerr.Response.StatusCode < 500 {
			return invalidCredentials(err)
		}
		return providerError(err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) || errors.Is(err, context.DeadlineExceeded) {
		return &domainauth.AuthError{Kind: domainauth.AuthErrNetwork, Err: err}
	}
	return providerError(err)
}
