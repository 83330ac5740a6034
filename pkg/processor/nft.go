package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/tx-event-processor/pkg/common"
	"github.com/ethpandaops/tx-event-processor/pkg/extractor"
	"github.com/ethpandaops/tx-event-processor/pkg/multiversx"
	"github.com/ethpandaops/tx-event-processor/pkg/multiversx/api"
	"github.com/ethpandaops/tx-event-processor/pkg/nftqueue"
)

// ErrCreatedNftUnknown is returned when a create transaction carries no
// "create" operation for an NFT.
var ErrCreatedNftUnknown = errors.New("created nft identifier not found in operations")

// ErrNoOperations is returned when the indexed transaction has no operations
// yet, so the created NFT cannot be resolved.
var ErrNoOperations = errors.New("indexed transaction has no operations")

// TransactionReader is the indexed transaction detail service.
type TransactionReader interface {
	GetTransaction(ctx context.Context, hash string) (*api.TransactionDetail, error)
}

// NftReader is the indexed NFT lookup service.
type NftReader interface {
	GetNft(ctx context.Context, identifier string) (*api.Nft, error)
}

// NftRefresher reads an NFT past any cached copy.
type NftRefresher interface {
	RefreshNft(ctx context.Context, identifier string) (*api.Nft, error)
}

// JobSubmitter accepts process-NFT jobs.
type JobSubmitter interface {
	Submit(ctx context.Context, nft *api.Nft, settings nftqueue.Settings) error
}

// NftHandler runs NFT create and update handling detached from the batch that
// detected them. Failures are logged and counted, never propagated.
type NftHandler struct {
	log           logrus.FieldLogger
	transactions  TransactionReader
	nfts          NftReader
	jobs          JobSubmitter
	creates       *extractor.NftCreateExtractor
	settlingDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ NftSpawner = (*NftHandler)(nil)

func NewNftHandler(log logrus.FieldLogger, transactions TransactionReader, nfts NftReader, jobs JobSubmitter, settlingDelay time.Duration) *NftHandler {
	ctx, cancel := context.WithCancel(context.Background())

	return &NftHandler{
		log:           log.WithField("component", "nft-handler"),
		transactions:  transactions,
		nfts:          nfts,
		jobs:          jobs,
		creates:       &extractor.NftCreateExtractor{},
		settlingDelay: settlingDelay,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// SpawnCreate starts create handling for tx. direct is the result extracted
// from the transaction itself, nil when only its logs may reveal a create.
func (n *NftHandler) SpawnCreate(tx *multiversx.ShardTransaction, direct *extractor.NftCreate) {
	n.spawn("create", tx, func(ctx context.Context) error {
		return n.handleCreate(ctx, tx, direct)
	})
}

// SpawnUpdate starts metadata refresh handling for an updated NFT.
func (n *NftHandler) SpawnUpdate(tx *multiversx.ShardTransaction, result *extractor.NftUpdateAttributes) {
	n.spawn("update", tx, func(ctx context.Context) error {
		return n.handleUpdate(ctx, result.Identifier)
	})
}

// Wait blocks until every spawned handling finished.
func (n *NftHandler) Wait() {
	n.wg.Wait()
}

// Stop cancels pending handlings and waits for them up to ctx.
func (n *NftHandler) Stop(ctx context.Context) error {
	n.cancel()

	done := make(chan struct{})

	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for nft handlers: %w", ctx.Err())
	}
}

func (n *NftHandler) spawn(flow string, tx *multiversx.ShardTransaction, fn func(ctx context.Context) error) {
	n.wg.Add(1)

	go func() {
		defer n.wg.Done()

		log := n.log.WithFields(logrus.Fields{
			"flow":    flow,
			"tx_hash": tx.Hash,
		})

		defer func() {
			if r := recover(); r != nil {
				common.NftHandlingAborted.WithLabelValues(flow, "panic").Inc()
				log.WithField("panic", r).Error("Unexpected error when handling NFT")
			}
		}()

		if err := fn(n.ctx); err != nil {
			common.NftHandlingAborted.WithLabelValues(flow, abortReason(err)).Inc()
			log.WithError(err).Error("NFT handling aborted")
		}
	}()
}

func (n *NftHandler) handleCreate(ctx context.Context, tx *multiversx.ShardTransaction, direct *extractor.NftCreate) error {
	// Give the indexer time to store the transaction and its operations.
	select {
	case <-time.After(n.settlingDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	detail, err := n.transactions.GetTransaction(ctx, tx.Hash)
	if err != nil {
		return fmt.Errorf("failed to fetch transaction: %w", err)
	}

	if detail == nil {
		return multiversx.ErrTransactionNotFound
	}

	if len(detail.Operations) == 0 {
		return ErrNoOperations
	}

	if direct == nil {
		if n.creates.Extract(tx, detail) == nil {
			return nil
		}
	}

	identifier, ok := detail.CreatedNftIdentifier()
	if !ok {
		return ErrCreatedNftUnknown
	}

	nft, err := n.lookup(ctx, identifier, false)
	if err != nil {
		return err
	}

	return n.jobs.Submit(ctx, nft, nftqueue.Settings{})
}

func (n *NftHandler) handleUpdate(ctx context.Context, identifier string) error {
	nft, err := n.lookup(ctx, identifier, true)
	if err != nil {
		return err
	}

	return n.jobs.Submit(ctx, nft, nftqueue.Settings{ForceRefreshMetadata: true})
}

// lookup resolves identifier. refresh skips cached copies when the reader
// supports it, since updated attributes make them stale.
func (n *NftHandler) lookup(ctx context.Context, identifier string, refresh bool) (*api.Nft, error) {
	var (
		nft *api.Nft
		err error
	)

	if refresher, ok := n.nfts.(NftRefresher); ok && refresh {
		nft, err = refresher.RefreshNft(ctx, identifier)
	} else {
		nft, err = n.nfts.GetNft(ctx, identifier)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to fetch nft %s: %w", identifier, err)
	}

	if nft == nil {
		return nil, fmt.Errorf("%w: %s", multiversx.ErrNftNotFound, identifier)
	}

	return nft, nil
}

func abortReason(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, multiversx.ErrTransactionNotFound):
		return "transaction_not_found"
	case errors.Is(err, ErrNoOperations):
		return "no_operations"
	case errors.Is(err, ErrCreatedNftUnknown):
		return "identifier_not_found"
	case errors.Is(err, multiversx.ErrNftNotFound):
		return "nft_not_found"
	default:
		return "error"
	}
}
