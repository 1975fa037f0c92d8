// Package mocks provides mock implementations for testing the storefront services.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	store := mocks.NewMockRoleStore(ctrl)
//	store.EXPECT().Lookup(gomock.Any(), "a@example.com").Return(profile, nil)
package mocks

// Generate mocks for the auth and role ports in internal/ports.
// This creates a Mock type per listed port interface.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=ports_mock.go github.com/decorhub/storefront/internal/ports AuthProvider,SessionStore,SessionRevoker,RoleStore,RoleWriter,RoleEvents
