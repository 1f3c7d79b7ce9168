package syncer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"geoattend-backend/config"
	"geoattend-backend/internal/model"
	"geoattend-backend/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1) // one connection, one in-memory database
	require.NoError(t, db.AutoMigrate(&model.AttendanceLog{}))
	return store.NewGormStore(db)
}

func seedPending(t *testing.T, s store.Store, remoteIDs ...string) {
	t.Helper()
	for _, id := range remoteIDs {
		require.NoError(t, s.Append(context.Background(), &model.AttendanceLog{
			RemoteLogID: id,
			UserID:      "user-1",
			SiteID:      1,
			SiteName:    "Downtown Office",
			CheckInTime: time.Now().UTC(),
			SyncStatus:  model.SyncPending,
		}))
	}
}

func online(ctx context.Context) bool { return true }

func newAgent(url string, s store.Store, opts ...Option) *Agent {
	cfg := &config.SyncConfig{
		URL:             url,
		IntervalSeconds: 300,
		Interval:        300 * time.Second,
		TimeoutSeconds:  5,
	}
	opts = append([]Option{WithOnlineProbe(online)}, opts...)
	return New(cfg, s, opts...)
}

func TestSyncReconcilesPartialVerdicts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedPending(t, s, "log-a", "log-b")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req batchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Records, 2)

		json.NewEncoder(w).Encode(batchResponse{Results: []verdict{
			{LogID: "log-a", Synced: true},
			{LogID: "log-b", Synced: false, Message: "validation failed"},
		}})
	}))
	defer server.Close()

	agent := newAgent(server.URL, s)
	agent.SyncOnce(ctx)

	a, err := s.QueryByRemoteLogID(ctx, "log-a")
	require.NoError(t, err)
	assert.Equal(t, model.SyncSynced, a.SyncStatus)

	b, err := s.QueryByRemoteLogID(ctx, "log-b")
	require.NoError(t, err)
	assert.Equal(t, model.SyncFailed, b.SyncStatus)

	pending, err := s.QueryPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestFailedRecordsRetryOnNextPass(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedPending(t, s, "log-a")

	var pass atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		synced := pass.Add(1) > 1 // fail the first pass, accept the second
		json.NewEncoder(w).Encode(batchResponse{Results: []verdict{
			{LogID: "log-a", Synced: synced},
		}})
	}))
	defer server.Close()

	agent := newAgent(server.URL, s)

	agent.SyncOnce(ctx)
	record, err := s.QueryByRemoteLogID(ctx, "log-a")
	require.NoError(t, err)
	require.Equal(t, model.SyncFailed, record.SyncStatus)

	agent.SyncOnce(ctx)
	record, err = s.QueryByRemoteLogID(ctx, "log-a")
	require.NoError(t, err)
	assert.Equal(t, model.SyncSynced, record.SyncStatus)
}

func TestMissingVerdictLeavesRecordPending(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedPending(t, s, "log-a", "log-b")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Request-level partial success: only one verdict comes back.
		json.NewEncoder(w).Encode(batchResponse{Results: []verdict{
			{LogID: "log-a", Synced: true},
		}})
	}))
	defer server.Close()

	agent := newAgent(server.URL, s)
	agent.SyncOnce(ctx)

	pending, err := s.QueryPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "log-b", pending[0].RemoteLogID)
}

func TestSingleFlight(t *testing.T) {
	s := newTestStore(t)
	seedPending(t, s, "log-a")

	var requests atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		<-release
		json.NewEncoder(w).Encode(batchResponse{Results: []verdict{{LogID: "log-a", Synced: true}}})
	}))
	defer server.Close()

	agent := newAgent(server.URL, s)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		agent.SyncOnce(context.Background())
	}()

	// Wait until the first sync holds the lock inside the HTTP call,
	// then fire a second trigger; it must be dropped.
	require.Eventually(t, func() bool { return requests.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	agent.SyncOnce(context.Background())
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), requests.Load())
}

func TestOfflineSkipsSync(t *testing.T) {
	s := newTestStore(t)
	seedPending(t, s, "log-a")

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	agent := newAgent(server.URL, s, WithOnlineProbe(func(ctx context.Context) bool { return false }))
	agent.SyncOnce(context.Background())

	assert.Equal(t, int32(0), requests.Load())
	pending, err := s.QueryPending(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestRequestFailureKeepsRecordsPending(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedPending(t, s, "log-a")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	failures := 0
	agent := newAgent(server.URL, s, WithFailureHook(func(err error) { failures++ }))
	agent.SyncOnce(ctx)

	assert.Equal(t, 1, failures)
	pending, err := s.QueryPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestEmptyQueueSendsNothing(t *testing.T) {
	s := newTestStore(t)

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	agent := newAgent(server.URL, s)
	agent.SyncOnce(context.Background())
	assert.Equal(t, int32(0), requests.Load())
}

func TestTriggerDoesNotBlock(t *testing.T) {
	agent := newAgent("http://localhost:0", newTestStore(t))
	// Repeated triggers while nothing is draining must not block.
	for i := 0; i < 10; i++ {
		agent.Trigger()
	}
}
