package processor_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/tx-event-processor/internal/testutil"
	"github.com/ethpandaops/tx-event-processor/pkg/cache"
	"github.com/ethpandaops/tx-event-processor/pkg/extractor"
	"github.com/ethpandaops/tx-event-processor/pkg/multiversx"
	"github.com/ethpandaops/tx-event-processor/pkg/processor"
)

const (
	alice    = "erd1qyu5wthldzr8wx5c9ucg8kjagg0jfs53s8nr3zpz3hypefsdd8ssycr6th"
	bob      = "erd1spyavw0956vq68xj8y4tenjpq2wd5a9p2c6j8gsz7ztyrnpxrruqzu66jx"
	carol    = "erd1k2s324ww2g0yj38qn2ch2jwctdy8mnfxep94q9arncc6xecg3xaq6mjse8"
	dave     = "erd1kyaqzaprcdnv4luvanah0gfxzzsnpaygsy6pytrexll2urtd05ts9vegu7"
	contract = "erd1qqqqqqqqqqqqqpgqhe8t5jewej70zupmh44jurgn29psua5l2jps3ntjj3"
)

func transfer(hash, sender, receiver, data string) *multiversx.ShardTransaction {
	return &multiversx.ShardTransaction{
		ShardID:  1,
		Nonce:    10,
		Hash:     hash,
		Sender:   sender,
		Receiver: receiver,
		Data:     data,
		Status:   "success",
	}
}

type fakeInvalidator struct {
	mu           sync.Mutex
	deletes      [][]string
	broadcasts   [][]string
	broadcastErr error
}

func (f *fakeInvalidator) Delete(_ context.Context, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deletes = append(f.deletes, append([]string(nil), keys...))

	return nil
}

func (f *fakeInvalidator) Broadcast(_ context.Context, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.broadcastErr != nil {
		return f.broadcastErr
	}

	f.broadcasts = append(f.broadcasts, append([]string(nil), keys...))

	return nil
}

type fakeOwners struct {
	owned map[string][]string
	err   error
	calls []string
}

func (f *fakeOwners) DeleteOwnersForAddress(_ context.Context, address string) ([]string, error) {
	f.calls = append(f.calls, address)

	if f.err != nil {
		return nil, f.err
	}

	return f.owned[address], nil
}

type fakeSpawner struct {
	creates []*extractor.NftCreate
	hashes  []string
	updates []string
}

func (f *fakeSpawner) SpawnCreate(tx *multiversx.ShardTransaction, direct *extractor.NftCreate) {
	f.creates = append(f.creates, direct)
	f.hashes = append(f.hashes, tx.Hash)
}

func (f *fakeSpawner) SpawnUpdate(_ *multiversx.ShardTransaction, result *extractor.NftUpdateAttributes) {
	f.updates = append(f.updates, result.Identifier)
}

type eventLog struct {
	kinds []extractor.Kind
}

func (e *eventLog) Record(_ *multiversx.ShardTransaction, result extractor.Result) {
	e.kinds = append(e.kinds, result.Kind())
}

func TestHandleBatchPlainTransfer(t *testing.T) {
	inv := &fakeInvalidator{}
	h := processor.NewBatchHandler(testutil.NewLogger(t), &fakeOwners{}, inv)

	err := h.HandleBatch(context.Background(), 1, 10, []*multiversx.ShardTransaction{
		transfer("h1", alice, bob, ""),
	})
	require.NoError(t, err)

	assert.Empty(t, inv.broadcasts)
	require.Len(t, inv.deletes, 1)
	assert.ElementsMatch(t, []string{cache.TxCount(alice), cache.TxCount(bob)}, inv.deletes[0])
}

func TestTxCountKeysDistinct(t *testing.T) {
	keys := processor.TxCountKeys([]*multiversx.ShardTransaction{
		transfer("h1", alice, bob, ""),
		transfer("h2", bob, carol, ""),
		transfer("h3", carol, dave, ""),
		transfer("h4", alice, dave, ""),
	})

	assert.ElementsMatch(t, []string{
		cache.TxCount(alice),
		cache.TxCount(bob),
		cache.TxCount(carol),
		cache.TxCount(dave),
	}, keys)
	assert.IsIncreasing(t, keys)
}

func TestHandleBatchCollectionProperties(t *testing.T) {
	tests := []struct {
		name     string
		tx       *multiversx.ShardTransaction
		expected []string
	}{
		{
			name: "ownership transfer invalidates collection once",
			tx: transfer("h1", alice, multiversx.ESDTSystemContract,
				multiversx.EncodeData("transferOwnership", "COL-123456", "new-owner")),
			expected: []string{cache.EsdtProperties("COL-123456")},
		},
		{
			name: "supply change alone invalidates nothing",
			tx: transfer("h1", alice, alice,
				multiversx.EncodeData("ESDTNFTAddQuantity", "SFT-123456", "\x01", "\x05")),
			expected: nil,
		},
		{
			name: "role change invalidates properties and roles",
			tx: transfer("h1", alice, multiversx.ESDTSystemContract,
				multiversx.EncodeData("setSpecialRole", "COL-123456", "someone", "ESDTRoleNFTCreate")),
			expected: []string{cache.EsdtProperties("COL-123456"), cache.EsdtRoles("COL-123456")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &fakeInvalidator{}
			h := processor.NewBatchHandler(testutil.NewLogger(t), &fakeOwners{}, inv)

			require.NoError(t, h.HandleBatch(context.Background(), 1, 10, []*multiversx.ShardTransaction{tt.tx}))

			if tt.expected == nil {
				assert.Empty(t, inv.broadcasts)

				return
			}

			require.Len(t, inv.broadcasts, 1)
			assert.Equal(t, tt.expected, inv.broadcasts[0])
		})
	}
}

func TestHandleBatchDedupesAcrossTransactions(t *testing.T) {
	inv := &fakeInvalidator{}
	h := processor.NewBatchHandler(testutil.NewLogger(t), &fakeOwners{}, inv)

	data := multiversx.EncodeData("freeze", "TOK-123456", "someone")

	require.NoError(t, h.HandleBatch(context.Background(), 1, 10, []*multiversx.ShardTransaction{
		transfer("h1", alice, multiversx.ESDTSystemContract, data),
		transfer("h2", bob, multiversx.ESDTSystemContract, data),
	}))

	require.Len(t, inv.broadcasts, 1)
	assert.Equal(t, []string{cache.EsdtProperties("TOK-123456")}, inv.broadcasts[0])
}

func TestHandleBatchOwnerInvalidation(t *testing.T) {
	owners := &fakeOwners{owned: map[string][]string{
		alice: {cache.Owner("bls1"), cache.Owner("bls2")},
	}}
	inv := &fakeInvalidator{}
	h := processor.NewBatchHandler(testutil.NewLogger(t), owners, inv)

	require.NoError(t, h.HandleBatch(context.Background(), 1, 10, []*multiversx.ShardTransaction{
		transfer("h1", alice, contract, multiversx.EncodeData(processor.FunctionMergeValidatorToDelegation, "x")),
		transfer("h2", bob, contract, multiversx.EncodeData("delegate")),
	}))

	assert.Equal(t, []string{alice}, owners.calls)
	require.Len(t, inv.broadcasts, 1)
	assert.Equal(t, []string{cache.Owner("bls1"), cache.Owner("bls2")}, inv.broadcasts[0])
}

func TestHandleBatchStepFailureDoesNotAbort(t *testing.T) {
	owners := &fakeOwners{err: errors.New("redis down")}
	inv := &fakeInvalidator{}
	h := processor.NewBatchHandler(testutil.NewLogger(t), owners, inv)

	require.NoError(t, h.HandleBatch(context.Background(), 1, 10, []*multiversx.ShardTransaction{
		transfer("h1", alice, contract, multiversx.EncodeData(processor.FunctionMergeValidatorToDelegation)),
		transfer("h2", bob, multiversx.ESDTSystemContract, multiversx.EncodeData("pause", "TOK-123456")),
	}))

	require.Len(t, inv.broadcasts, 1)
	assert.Equal(t, []string{cache.EsdtProperties("TOK-123456")}, inv.broadcasts[0])
	require.Len(t, inv.deletes, 1)
}

func TestHandleBatchBroadcastErrorReturned(t *testing.T) {
	inv := &fakeInvalidator{broadcastErr: errors.New("publish failed")}
	h := processor.NewBatchHandler(testutil.NewLogger(t), &fakeOwners{}, inv)

	err := h.HandleBatch(context.Background(), 1, 10, []*multiversx.ShardTransaction{
		transfer("h1", alice, multiversx.ESDTSystemContract, multiversx.EncodeData("pause", "TOK-123456")),
	})
	require.Error(t, err)
	assert.Empty(t, inv.deletes)
}

func TestHandleBatchSpawnsNftHandling(t *testing.T) {
	spawner := &fakeSpawner{}
	events := &eventLog{}
	inv := &fakeInvalidator{}
	h := processor.NewBatchHandler(testutil.NewLogger(t), &fakeOwners{}, inv,
		processor.WithNftSpawner(spawner),
		processor.WithEventRecorder(events),
	)

	require.NoError(t, h.HandleBatch(context.Background(), 1, 10, []*multiversx.ShardTransaction{
		transfer("direct", alice, alice, multiversx.EncodeData(extractor.FunctionNftCreate, "COL-123456", "\x01")),
		transfer("probe", alice, contract, multiversx.EncodeData("mint", "\x05")),
		transfer("update", alice, alice, multiversx.EncodeData(extractor.FunctionNftUpdateAttributes, "COL-123456", "\x0a", "attrs")),
		transfer("plain", alice, bob, ""),
	}))

	assert.Equal(t, []string{"direct", "probe"}, spawner.hashes)
	require.Len(t, spawner.creates, 2)
	assert.Equal(t, &extractor.NftCreate{Collection: "COL-123456"}, spawner.creates[0])
	assert.Nil(t, spawner.creates[1])
	assert.Equal(t, []string{"COL-123456-0a"}, spawner.updates)
	assert.Equal(t, []extractor.Kind{extractor.KindNftCreate, extractor.KindNftUpdateAttributes}, events.kinds)

	require.Len(t, inv.broadcasts, 1)
	assert.Equal(t, []string{cache.Nft("COL-123456-0a")}, inv.broadcasts[0])
}

func TestHandleBatchWithoutNftProcessing(t *testing.T) {
	events := &eventLog{}
	h := processor.NewBatchHandler(testutil.NewLogger(t), &fakeOwners{}, &fakeInvalidator{},
		processor.WithEventRecorder(events),
	)

	require.NoError(t, h.HandleBatch(context.Background(), 1, 10, []*multiversx.ShardTransaction{
		transfer("direct", alice, alice, multiversx.EncodeData(extractor.FunctionNftCreate, "COL-123456", "\x01")),
	}))

	assert.Equal(t, []extractor.Kind{extractor.KindNftCreate}, events.kinds)
}

func TestHandleBatchWithRedisInvalidator(t *testing.T) {
	ctx := context.Background()
	client, mr := testutil.NewMiniredisClient(t)

	shared := cache.NewShared(client, "test")
	local := cache.NewLocal(100, 0)
	inv := cache.NewInvalidator(shared, local, cache.NewPublisher(client, cache.DefaultChannel))

	require.NoError(t, shared.Set(ctx, cache.TxCount(alice), []byte("3"), 0))
	require.NoError(t, shared.Set(ctx, cache.EsdtProperties("TOK-123456"), []byte("{}"), 0))
	local.Set(cache.EsdtProperties("TOK-123456"), []byte("{}"))

	h := processor.NewBatchHandler(testutil.NewLogger(t), cache.NewOwnerInvalidator(shared, local), inv)

	require.NoError(t, h.HandleBatch(ctx, 1, 10, []*multiversx.ShardTransaction{
		transfer("h1", alice, multiversx.ESDTSystemContract, multiversx.EncodeData("pause", "TOK-123456")),
	}))

	assert.False(t, mr.Exists("test:"+cache.TxCount(alice)))
	assert.False(t, mr.Exists("test:"+cache.EsdtProperties("TOK-123456")))

	_, ok := local.Get(cache.EsdtProperties("TOK-123456"))
	assert.False(t, ok)
}
