// Package journal records detected transaction events in ClickHouse.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/ch-go/proto"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/tx-event-processor/pkg/clickhouse"
	"github.com/ethpandaops/tx-event-processor/pkg/extractor"
	"github.com/ethpandaops/tx-event-processor/pkg/multiversx"
	"github.com/ethpandaops/tx-event-processor/pkg/rowbuffer"
)

const createTable = `CREATE TABLE IF NOT EXISTS %s (
	detected_at DateTime,
	shard UInt32,
	nonce UInt64,
	tx_hash String,
	kind String,
	subject String,
	sender String,
	receiver String
) ENGINE = MergeTree
ORDER BY (kind, detected_at, shard, nonce)`

// Row is one detected event.
type Row struct {
	DetectedAt time.Time
	Shard      uint32
	Nonce      uint64
	TxHash     string
	Kind       string
	Subject    string
	Sender     string
	Receiver   string
}

// Journal buffers events and writes them in batches. Recording never blocks
// transaction processing.
type Journal struct {
	log    logrus.FieldLogger
	client clickhouse.ClientInterface
	table  string
	buffer *rowbuffer.Buffer[Row]
	now    func() time.Time
}

func New(log logrus.FieldLogger, client clickhouse.ClientInterface, cfg *Config) *Journal {
	j := &Journal{
		log:    log.WithField("component", "journal"),
		client: client,
		table:  cfg.Table,
		now:    time.Now,
	}

	j.buffer = rowbuffer.New(rowbuffer.Config{
		MaxRows:       cfg.MaxRows,
		MaxPending:    cfg.MaxPending,
		FlushInterval: cfg.FlushInterval,
		Table:         cfg.Table,
	}, j.flush, log)

	return j
}

// Start connects to ClickHouse and ensures the table exists.
func (j *Journal) Start(ctx context.Context) error {
	if err := j.client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start clickhouse client: %w", err)
	}

	if err := j.client.Execute(ctx, fmt.Sprintf(createTable, j.table)); err != nil {
		return fmt.Errorf("failed to create journal table: %w", err)
	}

	j.log.WithField("table", j.table).Info("Event journal started")

	return j.buffer.Start(ctx)
}

func (j *Journal) Stop(ctx context.Context) error {
	if err := j.buffer.Stop(ctx); err != nil {
		j.log.WithError(err).Error("Failed to flush event journal")
	}

	return j.client.Stop()
}

// Record queues one event row.
func (j *Journal) Record(tx *multiversx.ShardTransaction, result extractor.Result) {
	j.buffer.Add(Row{
		DetectedAt: j.now(),
		Shard:      tx.ShardID,
		Nonce:      tx.Nonce,
		TxHash:     tx.Hash,
		Kind:       string(result.Kind()),
		Subject:    result.Subject(),
		Sender:     tx.Sender,
		Receiver:   tx.Receiver,
	})
}

func (j *Journal) flush(ctx context.Context, rows []Row) error {
	var (
		detectedAt proto.ColDateTime
		shard      proto.ColUInt32
		nonce      proto.ColUInt64
		txHash     proto.ColStr
		kind       proto.ColStr
		subject    proto.ColStr
		sender     proto.ColStr
		receiver   proto.ColStr
	)

	for _, row := range rows {
		detectedAt.Append(row.DetectedAt)
		shard.Append(row.Shard)
		nonce.Append(row.Nonce)
		txHash.Append(row.TxHash)
		kind.Append(row.Kind)
		subject.Append(row.Subject)
		sender.Append(row.Sender)
		receiver.Append(row.Receiver)
	}

	return j.client.Insert(ctx, j.table, proto.Input{
		{Name: "detected_at", Data: &detectedAt},
		{Name: "shard", Data: &shard},
		{Name: "nonce", Data: &nonce},
		{Name: "tx_hash", Data: &txHash},
		{Name: "kind", Data: &kind},
		{Name: "subject", Data: &subject},
		{Name: "sender", Data: &sender},
		{Name: "receiver", Data: &receiver},
	})
}
