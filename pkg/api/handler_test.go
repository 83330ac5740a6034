package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/tx-event-processor/internal/testutil"
	"github.com/ethpandaops/tx-event-processor/pkg/api"
	mxapi "github.com/ethpandaops/tx-event-processor/pkg/multiversx/api"
	"github.com/ethpandaops/tx-event-processor/pkg/nftqueue"
	"github.com/ethpandaops/tx-event-processor/pkg/processor"
	"github.com/ethpandaops/tx-event-processor/pkg/state"
)

type staticStatus processor.Status

func (s staticStatus) Status() processor.Status { return processor.Status(s) }

type staticCursors []state.Cursor

func (c staticCursors) Cursors() []state.Cursor { return c }

type nftMap map[string]*mxapi.Nft

func (m nftMap) GetNft(_ context.Context, identifier string) (*mxapi.Nft, error) {
	if identifier == "BROKEN-000000-01" {
		return nil, errors.New("api down")
	}

	return m[identifier], nil
}

type recordingJobs struct {
	submitted []string
	settings  []nftqueue.Settings
}

func (r *recordingJobs) Submit(_ context.Context, nft *mxapi.Nft, settings nftqueue.Settings) error {
	r.submitted = append(r.submitted, nft.Identifier)
	r.settings = append(r.settings, settings)

	return nil
}

type recordingInvalidator struct {
	broadcast [][]string
	err       error
}

func (r *recordingInvalidator) Delete(context.Context, []string) error { return nil }

func (r *recordingInvalidator) Broadcast(_ context.Context, keys []string) error {
	r.broadcast = append(r.broadcast, keys)

	return r.err
}

type fakeInspector struct{ err error }

func (f fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	if f.err != nil {
		return nil, f.err
	}

	return &asynq.QueueInfo{Queue: queue, Size: 7, Pending: 5, Active: 2}, nil
}

func newMux(t *testing.T, deps api.Dependencies) *http.ServeMux {
	t.Helper()

	mux := http.NewServeMux()
	api.NewHandler(testutil.NewLogger(t), deps).RegisterRoutes(mux)

	return mux
}

func serve(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))

	return rec
}

func TestStatus(t *testing.T) {
	mux := newMux(t, api.Dependencies{
		Processor: staticStatus{NodeID: "node-1", Leader: true, Passes: 3},
		Cursors:   staticCursors{},
		Inspector: fakeInspector{},
		Queue:     "test:process-nft",
	})

	rec := serve(mux, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.StatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	assert.Equal(t, "node-1", resp.NodeID)
	assert.True(t, resp.Leader)
	assert.Equal(t, uint64(3), resp.Passes)
	require.NotNil(t, resp.Queue)
	assert.Equal(t, 7, resp.Queue.Size)
}

func TestStatusWithoutQueueStats(t *testing.T) {
	mux := newMux(t, api.Dependencies{
		Processor: staticStatus{NodeID: "node-1"},
		Cursors:   staticCursors{},
		Inspector: fakeInspector{err: errors.New("redis down")},
		Queue:     "test:process-nft",
	})

	rec := serve(mux, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"queue"`)
}

func TestCursors(t *testing.T) {
	mux := newMux(t, api.Dependencies{
		Processor: staticStatus{},
		Cursors:   staticCursors{{ShardID: 0, Nonce: 10}, {ShardID: 4294967295, Nonce: 12}},
	})

	rec := serve(mux, http.MethodGet, "/api/v1/cursors", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.CursorsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []state.Cursor{{ShardID: 0, Nonce: 10}, {ShardID: 4294967295, Nonce: 12}}, resp.Cursors)
}

func TestProcessNft(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		status     int
		queued     bool
	}{
		{name: "known nft", identifier: "COL-123456-01", status: http.StatusOK, queued: true},
		{name: "unknown nft", identifier: "COL-123456-02", status: http.StatusNotFound},
		{name: "lookup failure", identifier: "BROKEN-000000-01", status: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := &recordingJobs{}
			mux := newMux(t, api.Dependencies{
				Processor: staticStatus{},
				Cursors:   staticCursors{},
				Nfts:      nftMap{"COL-123456-01": {Identifier: "COL-123456-01"}},
				Jobs:      jobs,
				Queue:     "test:process-nft",
			})

			rec := serve(mux, http.MethodPost, "/api/v1/nfts/"+tt.identifier+"/process", "")
			assert.Equal(t, tt.status, rec.Code)

			if tt.queued {
				assert.Equal(t, []string{tt.identifier}, jobs.submitted)
				assert.True(t, jobs.settings[0].ForceRefreshMetadata)
			} else {
				assert.Empty(t, jobs.submitted)
			}
		})
	}
}

func TestProcessNftRouteDisabled(t *testing.T) {
	mux := newMux(t, api.Dependencies{Processor: staticStatus{}, Cursors: staticCursors{}})

	rec := serve(mux, http.MethodPost, "/api/v1/nfts/COL-123456-01/process", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidate(t *testing.T) {
	inv := &recordingInvalidator{}
	mux := newMux(t, api.Dependencies{Processor: staticStatus{}, Cursors: staticCursors{}, Invalidator: inv})

	rec := serve(mux, http.MethodPost, "/api/v1/cache/invalidate", `{"keys":["esdt:COL-123456"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, [][]string{{"esdt:COL-123456"}}, inv.broadcast)

	rec = serve(mux, http.MethodPost, "/api/v1/cache/invalidate", `{"keys":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(mux, http.MethodPost, "/api/v1/cache/invalidate", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	inv.err = errors.New("publish failed")
	rec = serve(mux, http.MethodPost, "/api/v1/cache/invalidate", `{"keys":["a"]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
