package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ethpandaops/tx-event-processor/pkg/common"
	"github.com/ethpandaops/tx-event-processor/pkg/multiversx"
)

const (
	statusError   = "error"
	statusSuccess = "success"

	miniBlockTypeTx = "TxBlock"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
	Code  string          `json:"code"`
}

type networkStatus struct {
	Status struct {
		Nonce uint64 `json:"erd_nonce"`
	} `json:"status"`
}

type networkConfig struct {
	Config struct {
		NumShardsWithoutMeta uint32 `json:"erd_num_shards_without_meta"`
	} `json:"config"`
}

type blockResponse struct {
	Block block `json:"block"`
}

type block struct {
	Nonce      uint64      `json:"nonce"`
	Shard      uint32      `json:"shard"`
	Hash       string      `json:"hash"`
	MiniBlocks []miniBlock `json:"miniBlocks"`
}

type miniBlock struct {
	Type             string        `json:"type"`
	SourceShard      uint32        `json:"sourceShard"`
	DestinationShard uint32        `json:"destinationShard"`
	Transactions     []transaction `json:"transactions"`
}

type transaction struct {
	Hash     string           `json:"hash"`
	Sender   string           `json:"sender"`
	Receiver string           `json:"receiver"`
	Data     string           `json:"data"`
	Status   string           `json:"status"`
	Logs     *transactionLogs `json:"logs"`
}

type transactionLogs struct {
	Address string                `json:"address"`
	Events  []multiversx.LogEvent `json:"events"`
}

// Client talks to the MultiversX gateway REST API.
type Client struct {
	log        logrus.FieldLogger
	config     *Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(log logrus.FieldLogger, config *Config) *Client {
	return &Client{
		log:    log.WithField("component", "gateway"),
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
	}
}

// LatestNonce returns the nonce of the most recent block of the shard.
func (c *Client) LatestNonce(ctx context.Context, shard uint32) (uint64, error) {
	var rsp networkStatus

	if err := c.get(ctx, "network_status", fmt.Sprintf("/network/status/%d", shard), &rsp); err != nil {
		return 0, fmt.Errorf("failed to get network status for shard %d: %w", shard, err)
	}

	return rsp.Status.Nonce, nil
}

// NumShards returns the number of regular shards, metachain excluded.
func (c *Client) NumShards(ctx context.Context) (uint32, error) {
	var rsp networkConfig

	if err := c.get(ctx, "network_config", "/network/config", &rsp); err != nil {
		return 0, fmt.Errorf("failed to get network config: %w", err)
	}

	if rsp.Config.NumShardsWithoutMeta == 0 {
		return 0, fmt.Errorf("network config reports no shards: %w", multiversx.ErrMalformedResponse)
	}

	return rsp.Config.NumShardsWithoutMeta, nil
}

// FetchTransactions returns the transactions executed in the shard's blocks
// after afterNonce, up to the latest block, and the highest nonce scanned.
// Transactions are only attributed to their destination shard so cross-shard
// transfers are seen once. A block that is not available yet ends the range
// early; scanned is afterNonce when no block was read.
func (c *Client) FetchTransactions(ctx context.Context, shard uint32, afterNonce uint64) ([]*multiversx.ShardTransaction, uint64, error) {
	latest, err := c.LatestNonce(ctx, shard)
	if err != nil {
		return nil, 0, err
	}

	txs := make([]*multiversx.ShardTransaction, 0)
	scanned := afterNonce

	for nonce := afterNonce + 1; nonce <= latest; nonce++ {
		blk, err := c.blockByNonce(ctx, shard, nonce)
		if err != nil {
			if errors.Is(err, multiversx.ErrBlockNotFound) {
				c.log.WithFields(logrus.Fields{
					"shard": shard,
					"nonce": nonce,
				}).Debug("Block not available yet, ending range")

				break
			}

			return nil, 0, err
		}

		txs = append(txs, blockTransactions(shard, blk)...)
		scanned = nonce
	}

	return txs, scanned, nil
}

func (c *Client) blockByNonce(ctx context.Context, shard uint32, nonce uint64) (*block, error) {
	var rsp blockResponse

	path := fmt.Sprintf("/block/%d/by-nonce/%d?withTxs=true&withLogs=true", shard, nonce)

	if err := c.get(ctx, "block_by_nonce", path, &rsp); err != nil {
		return nil, fmt.Errorf("failed to get block %d on shard %d: %w", nonce, shard, err)
	}

	return &rsp.Block, nil
}

func blockTransactions(shard uint32, blk *block) []*multiversx.ShardTransaction {
	seen := make(map[string]struct{})
	txs := make([]*multiversx.ShardTransaction, 0)

	for _, mb := range blk.MiniBlocks {
		if mb.Type != miniBlockTypeTx || mb.DestinationShard != shard {
			continue
		}

		for _, tx := range mb.Transactions {
			if _, ok := seen[tx.Hash]; ok {
				continue
			}

			seen[tx.Hash] = struct{}{}

			shardTx := &multiversx.ShardTransaction{
				ShardID:  shard,
				Nonce:    blk.Nonce,
				Hash:     tx.Hash,
				Sender:   tx.Sender,
				Receiver: tx.Receiver,
				Data:     tx.Data,
				Status:   tx.Status,
			}

			if tx.Logs != nil {
				shardTx.Logs = tx.Logs.Events
			}

			txs = append(txs, shardTx)
		}
	}

	return txs
}

func (c *Client) get(ctx context.Context, method, path string, out any) error {
	start := time.Now()

	err := c.doGet(ctx, path, out)

	status := statusSuccess
	if err != nil {
		status = statusError
	}

	common.GatewayCallDuration.WithLabelValues(method, status).Observe(time.Since(start).Seconds())
	common.GatewayCallsTotal.WithLabelValues(method, status).Inc()

	return err
}

func (c *Client) doGet(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	url := strings.TrimSuffix(c.config.URL, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return multiversx.ErrBlockNotFound
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: %s", multiversx.ErrMalformedResponse, err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		if strings.Contains(strings.ToLower(env.Error), "not found") {
			return multiversx.ErrBlockNotFound
		}

		return fmt.Errorf("http status %d: %s", resp.StatusCode, env.Error)
	}

	if env.Code != "" && env.Code != "successful" {
		return fmt.Errorf("gateway returned code %s: %s", env.Code, env.Error)
	}

	if len(env.Data) == 0 {
		return fmt.Errorf("%w: empty data", multiversx.ErrMalformedResponse)
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %s", multiversx.ErrMalformedResponse, err.Error())
	}

	return nil
}
