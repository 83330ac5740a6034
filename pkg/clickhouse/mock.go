package clickhouse

import (
	"context"

	"github.com/ClickHouse/ch-go/proto"
	"github.com/stretchr/testify/mock"
)

// MockClient is a testify mock of ClientInterface for use in tests.
type MockClient struct {
	mock.Mock
}

var _ ClientInterface = (*MockClient)(nil)

func (m *MockClient) Execute(ctx context.Context, query string) error {
	args := m.Called(ctx, query)

	return args.Error(0)
}

func (m *MockClient) Insert(ctx context.Context, table string, input proto.Input) error {
	args := m.Called(ctx, table, input)

	return args.Error(0)
}

func (m *MockClient) Start(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockClient) Stop() error {
	args := m.Called()

	return args.Error(0)
}
