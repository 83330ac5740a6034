package clickhouse

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/ClickHouse/ch-go"
	"github.com/ClickHouse/ch-go/compress"
	"github.com/ClickHouse/ch-go/proto"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
	}{
		{name: "addr only", config: Config{Addr: "localhost:9000"}},
		{name: "missing addr", config: Config{}, expectError: true},
		{name: "zstd", config: Config{Addr: "localhost:9000", Compression: "zstd"}},
		{name: "unknown compression", config: Config{Addr: "localhost:9000", Compression: "gzip"}, expectError: true},
		{name: "negative retries", config: Config{Addr: "localhost:9000", MaxRetries: -1}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_SetDefaults(t *testing.T) {
	cfg := Config{Addr: "localhost:9000", MaxRetries: 7}
	cfg.SetDefaults()

	assert.Equal(t, "default", cfg.Database)
	assert.Equal(t, "lz4", cfg.Compression)
	assert.Equal(t, 7, cfg.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.RetryBaseDelay)
	assert.Equal(t, 30*time.Second, cfg.QueryTimeout)
}

func newTestClient(t *testing.T, cfg *Config) *Client {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	c, err := New(log, cfg)
	require.NoError(t, err)

	return c
}

func TestClient_withQueryTimeout(t *testing.T) {
	c := newTestClient(t, &Config{Addr: "localhost:9000", QueryTimeout: time.Minute})

	ctx, cancel := c.withQueryTimeout(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)

	parent, parentCancel := context.WithTimeout(context.Background(), time.Second)
	defer parentCancel()

	kept, keptCancel := c.withQueryTimeout(parent)
	defer keptCancel()

	assert.Equal(t, parent, kept)
}

func TestClient_NotStarted(t *testing.T) {
	c := newTestClient(t, &Config{Addr: "localhost:9000"})

	err := c.Execute(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, ErrNotStarted)

	err = c.Insert(context.Background(), "events", proto.Input{})
	assert.ErrorIs(t, err, ErrNotStarted)

	assert.NoError(t, c.Stop())
}

func TestClient_doWithRetry(t *testing.T) {
	c := newTestClient(t, &Config{
		Addr:           "localhost:9000",
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  time.Millisecond,
	})

	t.Run("transient then success", func(t *testing.T) {
		calls := 0
		err := c.doWithRetry(context.Background(), "test", func(context.Context) error {
			calls++
			if calls == 1 {
				return syscall.ECONNRESET
			}

			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("permanent error is not retried", func(t *testing.T) {
		calls := 0
		err := c.doWithRetry(context.Background(), "test", func(context.Context) error {
			calls++

			return &ch.Exception{Code: proto.ErrUnknownTable, Message: "unknown table"}
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries exhausted", func(t *testing.T) {
		calls := 0
		err := c.doWithRetry(context.Background(), "test", func(context.Context) error {
			calls++

			return io.EOF
		})
		require.ErrorIs(t, err, io.EOF)
		assert.Equal(t, 3, calls)
	})
}

func TestTableName(t *testing.T) {
	tests := []struct {
		query    string
		expected string
	}{
		{query: "INSERT INTO events (a, b) VALUES", expected: "events"},
		{query: "CREATE TABLE IF NOT EXISTS `tx_events` (id UInt64)", expected: "tx_events"},
		{query: "SELECT count() FROM tx_events FINAL", expected: "tx_events"},
		{query: "DROP TABLE IF EXISTS tx_events", expected: "tx_events"},
		{query: "SELECT 1", expected: ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tableName(tt.query), tt.query)
	}
}

// mockNetError implements net.Error.
type mockNetError struct {
	timeout bool
}

func (e *mockNetError) Error() string   { return "mock network error" }
func (e *mockNetError) Timeout() bool   { return e.timeout }
func (e *mockNetError) Temporary() bool { return false }

var _ net.Error = (*mockNetError)(nil)

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "context canceled", err: context.Canceled, expected: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, expected: false},
		{name: "client closed", err: errors.Join(errors.New("insert failed"), ch.ErrClosed), expected: false},
		{name: "server timeout", err: &ch.Exception{Code: proto.ErrTimeoutExceeded}, expected: true},
		{name: "too many queries", err: &ch.Exception{Code: proto.ErrTooManySimultaneousQueries}, expected: true},
		{name: "unknown table", err: &ch.Exception{Code: proto.ErrUnknownTable}, expected: false},
		{name: "corrupted data", err: &compress.CorruptedDataErr{}, expected: false},
		{name: "net timeout", err: &mockNetError{timeout: true}, expected: true},
		{name: "net other", err: &mockNetError{}, expected: false},
		{name: "connection refused", err: syscall.ECONNREFUSED, expected: true},
		{name: "broken pipe", err: syscall.EPIPE, expected: true},
		{name: "unexpected eof", err: io.ErrUnexpectedEOF, expected: true},
		{name: "reset message", err: errors.New("read: connection reset by peer"), expected: true},
		{name: "unknown", err: errors.New("bad things"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRetryableError(tt.err))
		})
	}
}
