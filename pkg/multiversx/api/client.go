package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/tx-event-processor/pkg/common"
	"github.com/ethpandaops/tx-event-processor/pkg/multiversx"
)

const (
	statusError    = "error"
	statusSuccess  = "success"
	statusNotFound = "not_found"
)

var errNotFound = errors.New("not found")

// Client reads indexed transactions and NFTs from the MultiversX API.
type Client struct {
	log        logrus.FieldLogger
	config     *Config
	httpClient *http.Client
}

func NewClient(log logrus.FieldLogger, config *Config) *Client {
	return &Client{
		log:    log.WithField("component", "api"),
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// GetTransaction returns the indexed transaction, or nil if it is not indexed (yet).
func (c *Client) GetTransaction(ctx context.Context, hash string) (*TransactionDetail, error) {
	var detail TransactionDetail

	found, err := c.get(ctx, "get_transaction", "/transactions/"+url.PathEscape(hash), &detail)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", hash, err)
	}

	if !found {
		return nil, nil
	}

	if detail.Hash == "" {
		detail.Hash = hash
	}

	return &detail, nil
}

// GetNft returns the indexed NFT, or nil if it is not indexed (yet).
func (c *Client) GetNft(ctx context.Context, identifier string) (*Nft, error) {
	var nft Nft

	found, err := c.get(ctx, "get_nft", "/nfts/"+url.PathEscape(identifier), &nft)
	if err != nil {
		return nil, fmt.Errorf("failed to get nft %s: %w", identifier, err)
	}

	if !found {
		return nil, nil
	}

	return &nft, nil
}

func (c *Client) get(ctx context.Context, method, path string, out any) (bool, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = c.config.MaxRetryElapsed

	attempt := 0

	operation := func() error {
		attempt++

		start := time.Now()

		err := c.doGet(ctx, path, out)

		status := statusSuccess

		switch {
		case errors.Is(err, errNotFound):
			status = statusNotFound
		case err != nil:
			status = statusError
		}

		common.APICallDuration.WithLabelValues(method, status).Observe(time.Since(start).Seconds())
		common.APICallsTotal.WithLabelValues(method, status).Inc()

		if err != nil && status == statusError {
			c.log.WithError(err).WithFields(logrus.Fields{
				"path":    path,
				"attempt": attempt,
			}).Debug("API call failed")
		}

		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	if errors.Is(err, errNotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}

func (c *Client) doGet(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(c.config.URL, "/")+path, http.NoBody)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
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

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return backoff.Permanent(errNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	case resp.StatusCode != http.StatusOK:
		return backoff.Permanent(fmt.Errorf("http status %d: %s", resp.StatusCode, string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return backoff.Permanent(fmt.Errorf("%w: %s", multiversx.ErrMalformedResponse, err.Error()))
	}

	return nil
}
