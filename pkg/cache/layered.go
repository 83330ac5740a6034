package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethpandaops/tx-event-processor/pkg/multiversx/api"
)

// LoadFunc fetches a value from its source of truth. found is false when the
// source does not know the key.
type LoadFunc func(ctx context.Context) (value []byte, found bool, err error)

// Layered reads through the local cache, then the shared cache, then a loader.
// Hits in an outer layer fill the layers in front of it. Fleet broadcasts
// evict the local layer through a Subscriber.
type Layered struct {
	local  *Local
	shared *Shared
	ttl    time.Duration
}

func NewLayered(local *Local, shared *Shared, ttl time.Duration) *Layered {
	return &Layered{local: local, shared: shared, ttl: ttl}
}

// GetOrLoad returns the cached value of key, loading it on a miss. Values the
// loader does not find are not cached.
func (l *Layered) GetOrLoad(ctx context.Context, key string, load LoadFunc) ([]byte, bool, error) {
	if value, ok := l.local.Get(key); ok {
		return value, true, nil
	}

	value, found, err := l.shared.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}

	if found {
		l.local.Set(key, value)

		return value, true, nil
	}

	value, found, err = load(ctx)
	if err != nil || !found {
		return nil, false, err
	}

	if err := l.Set(ctx, key, value); err != nil {
		return nil, false, err
	}

	return value, true, nil
}

// Set stores value in both layers.
func (l *Layered) Set(ctx context.Context, key string, value []byte) error {
	if err := l.shared.Set(ctx, key, value, l.ttl); err != nil {
		return err
	}

	l.local.Set(key, value)

	return nil
}

// Delete removes key from both layers.
func (l *Layered) Delete(ctx context.Context, key string) error {
	if err := l.shared.Delete(ctx, key); err != nil {
		return err
	}

	l.local.Delete(key)

	return nil
}

// NftSource is the indexed NFT lookup service behind an NftCache.
type NftSource interface {
	GetNft(ctx context.Context, identifier string) (*api.Nft, error)
}

// NftCache serves NFT lookups through a Layered cache.
type NftCache struct {
	layered *Layered
	source  NftSource
}

func NewNftCache(layered *Layered, source NftSource) *NftCache {
	return &NftCache{layered: layered, source: source}
}

// GetNft returns the NFT, nil when the source does not know it.
func (c *NftCache) GetNft(ctx context.Context, identifier string) (*api.Nft, error) {
	raw, found, err := c.layered.GetOrLoad(ctx, Nft(identifier), func(ctx context.Context) ([]byte, bool, error) {
		nft, err := c.source.GetNft(ctx, identifier)
		if err != nil || nft == nil {
			return nil, false, err
		}

		raw, err := json.Marshal(nft)
		if err != nil {
			return nil, false, fmt.Errorf("failed to encode nft %s: %w", identifier, err)
		}

		return raw, true, nil
	})
	if err != nil || !found {
		return nil, err
	}

	var nft api.Nft
	if err := json.Unmarshal(raw, &nft); err != nil {
		return nil, fmt.Errorf("failed to decode cached nft %s: %w", identifier, err)
	}

	return &nft, nil
}

// RefreshNft reads the NFT from the source, bypassing and then overwriting
// the cached copy.
func (c *NftCache) RefreshNft(ctx context.Context, identifier string) (*api.Nft, error) {
	nft, err := c.source.GetNft(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if nft == nil {
		return nil, c.layered.Delete(ctx, Nft(identifier))
	}

	raw, err := json.Marshal(nft)
	if err != nil {
		return nil, fmt.Errorf("failed to encode nft %s: %w", identifier, err)
	}

	if err := c.layered.Set(ctx, Nft(identifier), raw); err != nil {
		return nil, err
	}

	return nft, nil
}
