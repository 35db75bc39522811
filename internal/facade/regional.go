package facade

import (
	"context"
	"fmt"
	"sync"
)

// Builder creates a transport client for the given credentials.
type Builder[C any] func(ctx context.Context, creds Credentials) (C, error)

// Regional holds credentials and the transport client built for them.
// Changing the region rebuilds the client in the same critical section, so a
// reader never sees a client built for a different region than Region().
type Regional[C any] struct {
	build Builder[C]

	mu     sync.RWMutex
	creds  Credentials
	client C
}

// NewRegional builds the initial client.
func NewRegional[C any](ctx context.Context, creds Credentials, build Builder[C]) (*Regional[C], error) {
	client, err := build(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("failed to build client for region %s: %w", creds.Region, err)
	}
	return &Regional[C]{build: build, creds: creds, client: client}, nil
}

// Client returns the current client.
func (r *Regional[C]) Client() C {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.client
}

// Credentials returns a copy of the current credentials.
func (r *Regional[C]) Credentials() Credentials {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.creds
}

// Region returns the current region.
func (r *Regional[C]) Region() string {
	return r.Credentials().Region
}

// ReconfigureRegion switches to region and rebuilds the client. It is a no-op
// for an empty or unchanged region. If the build fails the previous region
// and client stay in place.
func (r *Regional[C]) ReconfigureRegion(ctx context.Context, region string) error {
	_, err := r.Follow(ctx, region)
	return err
}

// Follow switches to region when needed and returns the client for it.
// The returned client is the one built for region even if another goroutine
// reconfigures the holder right after.
func (r *Regional[C]) Follow(ctx context.Context, region string) (C, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if region == "" || region == r.creds.Region {
		return r.client, nil
	}

	next := r.creds.WithRegion(region)
	client, err := r.build(ctx, next)
	if err != nil {
		var zero C
		return zero, fmt.Errorf("failed to build client for region %s: %w", region, err)
	}

	r.creds = next
	r.client = client
	return client, nil
}
