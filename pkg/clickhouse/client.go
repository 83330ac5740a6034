package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ClickHouse/ch-go"
	"github.com/ClickHouse/ch-go/chpool"
	"github.com/ClickHouse/ch-go/compress"
	"github.com/ClickHouse/ch-go/proto"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/tx-event-processor/pkg/common"
)

const (
	statusSuccess = "success"
	statusFailed  = "failed"
)

var ErrNotStarted = errors.New("clickhouse client not started")

// Client implements ClientInterface over a ch-go connection pool.
type Client struct {
	config      *Config
	compression ch.Compression
	log         logrus.FieldLogger

	mu   sync.RWMutex
	pool *chpool.Pool
}

var _ ClientInterface = (*Client)(nil)

// New creates a client. It does not connect until Start is called.
func New(log logrus.FieldLogger, cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg.SetDefaults()

	compression := ch.CompressionLZ4

	switch cfg.Compression {
	case "zstd":
		compression = ch.CompressionZSTD
	case "none":
		compression = ch.CompressionDisabled
	}

	return &Client{
		config:      cfg,
		compression: compression,
		log:         log.WithField("component", "clickhouse"),
	}, nil
}

// isRetryableError reports whether err is transient.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ch.ErrClosed) {
		return false
	}

	if exc, ok := ch.AsException(err); ok {
		return exc.IsCode(
			proto.ErrTimeoutExceeded,
			proto.ErrNoFreeConnection,
			proto.ErrTooManySimultaneousQueries,
			proto.ErrSocketTimeout,
			proto.ErrNetworkError,
		)
	}

	var corrupted *compress.CorruptedDataErr
	if errors.As(err, &corrupted) {
		return false
	}

	// syscall.Errno implements net.Error, so check these first.
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"connection reset", "connection refused", "broken pipe", "timeout", "too many connections"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}

	return false
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.RetryBaseDelay
	b.MaxInterval = c.config.RetryMaxDelay
	b.MaxElapsedTime = 0

	//nolint:gosec // MaxRetries is validated non-negative
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.config.MaxRetries)), ctx)
}

// withQueryTimeout applies the per-attempt timeout unless ctx has a deadline.
func (c *Client) withQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.QueryTimeout == 0 {
		return ctx, func() {}
	}

	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, c.config.QueryTimeout)
}

// doWithRetry runs fn until it succeeds, fails permanently or retries run out.
func (c *Client) doWithRetry(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	attempt := 0

	return backoff.RetryNotify(func() error {
		attempt++

		attemptCtx, cancel := c.withQueryTimeout(ctx)
		defer cancel()

		err := fn(attemptCtx)
		if err != nil && !isRetryableError(err) {
			return backoff.Permanent(err)
		}

		return err
	}, c.newBackOff(ctx), func(err error, delay time.Duration) {
		c.log.WithFields(logrus.Fields{
			"attempt":   attempt,
			"max":       c.config.MaxRetries,
			"delay":     delay,
			"operation": operation,
			"error":     err,
		}).Debug("Retrying after transient error")
	})
}

// Start dials the pool, retrying transient failures.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pool != nil {
		return nil
	}

	var pool *chpool.Pool

	err := c.doWithRetry(ctx, "dial", func(ctx context.Context) error {
		var dialErr error

		pool, dialErr = chpool.Dial(ctx, chpool.Options{
			ClientOptions: ch.Options{
				Address:     c.config.Addr,
				Database:    c.config.Database,
				User:        c.config.Username,
				Password:    c.config.Password,
				Compression: c.compression,
				DialTimeout: c.config.DialTimeout,
			},
			MaxConns: c.config.MaxConns,
			MinConns: c.config.MinConns,
		})

		return dialErr
	})
	if err != nil {
		return fmt.Errorf("failed to dial clickhouse: %w", err)
	}

	c.pool = pool

	c.log.WithField("addr", c.config.Addr).Info("Connected to ClickHouse")

	return nil
}

func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pool != nil {
		c.pool.Close()
		c.pool = nil

		c.log.Info("Closed ClickHouse connection pool")
	}

	return nil
}

func (c *Client) getPool() (*chpool.Pool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.pool == nil {
		return nil, ErrNotStarted
	}

	return c.pool, nil
}

func (c *Client) Execute(ctx context.Context, query string) error {
	return c.run(ctx, "execute", tableName(query), func(ctx context.Context, pool *chpool.Pool) error {
		return pool.Do(ctx, ch.Query{Body: query})
	})
}

func (c *Client) Insert(ctx context.Context, table string, input proto.Input) error {
	return c.run(ctx, "insert", table, func(ctx context.Context, pool *chpool.Pool) error {
		return pool.Do(ctx, ch.Query{
			Body:  input.Into(table),
			Input: input,
		})
	})
}

func (c *Client) run(ctx context.Context, operation, table string, fn func(ctx context.Context, pool *chpool.Pool) error) error {
	start := time.Now()
	status := statusSuccess

	defer func() {
		common.ClickHouseOperationDuration.WithLabelValues(operation, table, status).Observe(time.Since(start).Seconds())
		common.ClickHouseOperationTotal.WithLabelValues(operation, table, status).Inc()
	}()

	pool, err := c.getPool()
	if err != nil {
		status = statusFailed

		return err
	}

	err = c.doWithRetry(ctx, operation, func(ctx context.Context) error {
		return fn(ctx, pool)
	})
	if err != nil {
		status = statusFailed

		return fmt.Errorf("%s failed: %w", operation, err)
	}

	return nil
}

// tableName extracts the target table of a statement for metric labels.
func tableName(query string) string {
	fields := strings.Fields(query)
	upper := make([]string, len(fields))

	for i, f := range fields {
		upper[i] = strings.ToUpper(f)
	}

	for i := 0; i < len(upper); i++ {
		switch upper[i] {
		case "INTO", "FROM", "TABLE":
			j := i + 1
			for j < len(upper) && (upper[j] == "IF" || upper[j] == "NOT" || upper[j] == "EXISTS") {
				j++
			}

			if j < len(fields) {
				return strings.Trim(fields[j], "`'\"(")
			}
		}
	}

	return ""
}
