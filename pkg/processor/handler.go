package processor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/tx-event-processor/pkg/cache"
	"github.com/ethpandaops/tx-event-processor/pkg/common"
	"github.com/ethpandaops/tx-event-processor/pkg/extractor"
	"github.com/ethpandaops/tx-event-processor/pkg/multiversx"
)

// FunctionMergeValidatorToDelegation moves validator nodes into a delegation
// contract, changing the owner of every moved node.
const FunctionMergeValidatorToDelegation = "mergeValidatorToDelegationWithWhitelist"

// KeyInvalidator removes cache keys locally and across the fleet.
type KeyInvalidator interface {
	Delete(ctx context.Context, keys []string) error
	Broadcast(ctx context.Context, keys []string) error
}

// OwnerCache clears cached node owners of an address.
type OwnerCache interface {
	DeleteOwnersForAddress(ctx context.Context, address string) ([]string, error)
}

// NftSpawner starts asynchronous NFT handling for a transaction.
type NftSpawner interface {
	SpawnCreate(tx *multiversx.ShardTransaction, direct *extractor.NftCreate)
	SpawnUpdate(tx *multiversx.ShardTransaction, result *extractor.NftUpdateAttributes)
}

// EventRecorder receives every detected event. Implementations must not block.
type EventRecorder interface {
	Record(tx *multiversx.ShardTransaction, result extractor.Result)
}

// BatchHandler routes each transaction of a shard batch through the extractors
// and invalidates the cache keys the batch made stale.
type BatchHandler struct {
	log         logrus.FieldLogger
	registry    *extractor.Registry
	creates     *extractor.NftCreateExtractor
	tokens      cache.TokenInvalidator
	owners      OwnerCache
	invalidator KeyInvalidator
	nfts        NftSpawner
	recorder    EventRecorder
	processNfts bool
}

// HandlerOption customises a BatchHandler.
type HandlerOption func(*BatchHandler)

// WithNftSpawner enables NFT handling through spawner.
func WithNftSpawner(spawner NftSpawner) HandlerOption {
	return func(h *BatchHandler) {
		h.nfts = spawner
		h.processNfts = spawner != nil
	}
}

// WithEventRecorder records every detected event.
func WithEventRecorder(recorder EventRecorder) HandlerOption {
	return func(h *BatchHandler) {
		h.recorder = recorder
	}
}

func NewBatchHandler(log logrus.FieldLogger, owners OwnerCache, invalidator KeyInvalidator, opts ...HandlerOption) *BatchHandler {
	h := &BatchHandler{
		log:         log.WithField("component", "batch-handler"),
		registry:    extractor.Default(),
		creates:     &extractor.NftCreateExtractor{},
		owners:      owners,
		invalidator: invalidator,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// HandleBatch processes one shard batch. Per-transaction failures are logged
// and skipped; only failures of the batch-level deletes are returned, so the
// cursor is not committed past keys that may still be stale.
func (h *BatchHandler) HandleBatch(ctx context.Context, shard uint32, highestNonce uint64, txs []*multiversx.ShardTransaction) error {
	start := time.Now()

	log := h.log.WithFields(logrus.Fields{
		"shard": shard,
		"nonce": highestNonce,
	})

	log.WithField("transactions", len(txs)).Info("New transactions")

	keys := make([]string, 0)

	for _, tx := range txs {
		keys = append(keys, h.handleTransaction(ctx, tx)...)
	}

	keys = distinct(keys)

	if len(keys) > 0 {
		if err := h.invalidator.Broadcast(ctx, keys); err != nil {
			return fmt.Errorf("failed to broadcast %d invalidated keys: %w", len(keys), err)
		}

		common.InvalidatedKeys.WithLabelValues("broadcast").Add(float64(len(keys)))
	}

	countKeys := TxCountKeys(txs)
	if len(countKeys) > 0 {
		if err := h.invalidator.Delete(ctx, countKeys); err != nil {
			return fmt.Errorf("failed to delete transaction count keys: %w", err)
		}

		common.InvalidatedKeys.WithLabelValues("tx_count").Add(float64(len(countKeys)))
	}

	log.WithFields(logrus.Fields{
		"invalidated": len(keys),
		"tx_counts":   len(countKeys),
		"duration":    time.Since(start),
	}).Debug("Processing new transactions")

	return nil
}

// handleTransaction runs every step for tx and returns the keys it invalidated.
func (h *BatchHandler) handleTransaction(ctx context.Context, tx *multiversx.ShardTransaction) []string {
	var (
		keys     []string
		create   *extractor.NftCreate
		update   *extractor.NftUpdateAttributes
		sft      *extractor.SftChange
		transfer *extractor.TransferOwnership
	)

	for _, result := range h.extract(tx) {
		common.EventsDetected.WithLabelValues(string(result.Kind())).Inc()

		if h.recorder != nil {
			h.recorder.Record(tx, result)
		}

		switch r := result.(type) {
		case *extractor.NftCreate:
			create = r
		case *extractor.NftUpdateAttributes:
			update = r
		case *extractor.SftChange:
			sft = r
		case *extractor.TransferOwnership:
			transfer = r
		}
	}

	if update != nil {
		keys = append(keys, cache.Nft(update.Identifier))
	}

	if h.processNfts {
		h.step(tx, "nft_create", func() error {
			if create != nil || h.creates.CanDetectFromLogs(tx) {
				h.nfts.SpawnCreate(tx, create)
			}

			return nil
		})

		if update != nil {
			h.log.WithFields(logrus.Fields{
				"identifier": update.Identifier,
				"tx_hash":    tx.Hash,
			}).Info("Detected NFT update attributes")

			h.step(tx, "nft_update", func() error {
				h.nfts.SpawnUpdate(tx, update)

				return nil
			})
		}
	}

	h.step(tx, "token_properties", func() error {
		keys = append(keys, h.tokens.TryInvalidateTokenProperties(tx)...)

		return nil
	})

	h.step(tx, "owner", func() error {
		owned, err := h.invalidateOwner(ctx, tx)
		keys = append(keys, owned...)

		return err
	})

	h.step(tx, "collection_properties", func() error {
		if key, ok := collectionPropertiesKey(sft, transfer); ok {
			h.log.WithFields(logrus.Fields{
				"identifier": transfer.Identifier,
				"tx_hash":    tx.Hash,
			}).Info("Detected collection ownership transfer")

			keys = append(keys, key)
		}

		return nil
	})

	return keys
}

// extract runs the registry, containing extractor panics.
func (h *BatchHandler) extract(tx *multiversx.ShardTransaction) (results []extractor.Result) {
	h.step(tx, "extract", func() error {
		results = h.registry.ExtractAll(tx, nil)

		return nil
	})

	return results
}

// step runs fn, logging its error or panic against the transaction.
func (h *BatchHandler) step(tx *multiversx.ShardTransaction, name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			common.TransactionErrors.WithLabelValues(name).Inc()
			h.log.WithFields(logrus.Fields{
				"tx_hash": tx.Hash,
				"step":    name,
				"panic":   r,
			}).Error("Transaction step panicked")
		}
	}()

	if err := fn(); err != nil {
		common.TransactionErrors.WithLabelValues(name).Inc()
		h.log.WithError(err).WithFields(logrus.Fields{
			"tx_hash": tx.Hash,
			"step":    name,
		}).Error("Transaction step failed")
	}
}

func (h *BatchHandler) invalidateOwner(ctx context.Context, tx *multiversx.ShardTransaction) ([]string, error) {
	if tx.FunctionName() != FunctionMergeValidatorToDelegation {
		return nil, nil
	}

	return h.owners.DeleteOwnersForAddress(ctx, tx.Sender)
}

// collectionPropertiesKey yields the collection properties key when a
// transaction both changes a collection and transfers its ownership.
func collectionPropertiesKey(sft *extractor.SftChange, transfer *extractor.TransferOwnership) (string, bool) {
	if sft == nil || transfer == nil {
		return "", false
	}

	return cache.EsdtProperties(sft.CollectionIdentifier), true
}

// TxCountKeys returns the sorted transaction count keys of every distinct
// sender and receiver in txs.
func TxCountKeys(txs []*multiversx.ShardTransaction) []string {
	seen := make(map[string]struct{}, len(txs)*2)

	for _, tx := range txs {
		for _, address := range []string{tx.Sender, tx.Receiver} {
			if address != "" {
				seen[address] = struct{}{}
			}
		}
	}

	keys := make([]string, 0, len(seen))
	for address := range seen {
		keys = append(keys, cache.TxCount(address))
	}

	sort.Strings(keys)

	return keys
}

// distinct removes duplicates, keeping first occurrences in order.
func distinct(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]

	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}

		seen[key] = struct{}{}
		out = append(out, key)
	}

	return out
}
