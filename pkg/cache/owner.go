package cache

import (
	"context"
	"fmt"
)

// OwnerInvalidator clears cached validator node owners.
type OwnerInvalidator struct {
	shared *Shared
	local  *Local
}

func NewOwnerInvalidator(shared *Shared, local *Local) *OwnerInvalidator {
	return &OwnerInvalidator{shared: shared, local: local}
}

// DeleteOwnersForAddress removes every cached owner entry pointing at address
// and returns the removed keys.
func (o *OwnerInvalidator) DeleteOwnersForAddress(ctx context.Context, address string) ([]string, error) {
	index := OwnerIndex(address)

	blsKeys, err := o.shared.Members(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve owned nodes of %s: %w", address, err)
	}

	keys := make([]string, 0, len(blsKeys))
	for _, bls := range blsKeys {
		keys = append(keys, Owner(bls))
	}

	if err := o.shared.Delete(ctx, append(keys, index)...); err != nil {
		return nil, err
	}

	o.local.Delete(keys...)

	return keys, nil
}
