package artifact

import "context"

// Store persists sealed artifacts by content hash. Put is idempotent: storing
// the same hash twice is a no-op, which makes concurrent poll sweeps safe.
type Store interface {
	Put(ctx context.Context, a *Artifact) error
	Get(ctx context.Context, hash string) (*Artifact, error)
}
