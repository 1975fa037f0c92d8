package httpx

import (
	"context"

	"github.com/decorhub/storefront/internal/service"
)

// snapshotKey is an unexported context key type to avoid collisions across packages.
type snapshotKey struct{}

// SetSnapshotInContext returns a child context carrying the caller's session snapshot.
func SetSnapshotInContext(ctx context.Context, snap service.Snapshot) context.Context {
	return context.WithValue(ctx, snapshotKey{}, snap)
}

// SnapshotFromContext returns the snapshot stored by RequireRole and a boolean indicating presence.
func SnapshotFromContext(ctx context.Context) (service.Snapshot, bool) {
	snap, ok := ctx.Value(snapshotKey{}).(service.Snapshot)
	return snap, ok
}
