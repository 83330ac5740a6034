package cache

import (
	"context"
	"fmt"
)

// Invalidator removes keys from this process' caches and tells the fleet to do the same.
type Invalidator struct {
	shared    *Shared
	local     *Local
	publisher *Publisher
}

func NewInvalidator(shared *Shared, local *Local, publisher *Publisher) *Invalidator {
	return &Invalidator{
		shared:    shared,
		local:     local,
		publisher: publisher,
	}
}

// Delete removes keys from the shared and local caches in one batch.
func (i *Invalidator) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	if err := i.shared.Delete(ctx, keys...); err != nil {
		return err
	}

	i.local.Delete(keys...)

	return nil
}

// Broadcast deletes keys locally and publishes them once to sibling processes.
func (i *Invalidator) Broadcast(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	if err := i.Delete(ctx, keys); err != nil {
		return fmt.Errorf("failed to delete broadcast keys: %w", err)
	}

	return i.publisher.Publish(ctx, keys)
}
