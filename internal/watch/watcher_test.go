package watch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoattend-backend/config"
	"geoattend-backend/internal/geo"
)

// fakeSource replays a scripted sequence of fixes, repeating the last one.
type fakeSource struct {
	mu    sync.Mutex
	fixes []geo.Coordinate
	errs  []error
	calls int
}

func (f *fakeSource) Current(ctx context.Context) (geo.Coordinate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return geo.Coordinate{}, f.errs[i]
	}
	if i >= len(f.fixes) {
		i = len(f.fixes) - 1
	}
	return f.fixes[i], nil
}

func collect(t *testing.T, ch <-chan geo.Coordinate, n int) []geo.Coordinate {
	t.Helper()
	var got []geo.Coordinate
	timeout := time.After(2 * time.Second)
	for len(got) < n {
		select {
		case pos, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, pos)
		case <-timeout:
			t.Fatalf("timed out after %d of %d positions", len(got), n)
		}
	}
	return got
}

func TestWatcherEmitsOnChange(t *testing.T) {
	a := geo.Coordinate{Lat: 1, Lng: 1}
	b := geo.Coordinate{Lat: 2, Lng: 2}
	source := &fakeSource{fixes: []geo.Coordinate{a, a, a, b}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewWatcher(source, time.Millisecond)
	positions, errs := w.Watch(ctx)

	got := collect(t, positions, 2)
	assert.Equal(t, []geo.Coordinate{a, b}, got)

	cancel()
	for range positions {
	}
	_, open := <-errs
	assert.False(t, open, "error channel should be closed after cancellation")
}

func TestWatcherStopsOnAcquisitionError(t *testing.T) {
	boom := errors.New("permission denied")
	source := &fakeSource{
		fixes: []geo.Coordinate{{Lat: 1, Lng: 1}},
		errs:  []error{nil, boom},
	}

	w := NewWatcher(source, time.Millisecond)
	positions, errs := w.Watch(context.Background())

	got := collect(t, positions, 1)
	require.Len(t, got, 1)

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, boom)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for acquisition error")
	}

	// The stream ends after the first error.
	_, open := <-positions
	assert.False(t, open)
}

func TestWatcherIsNotRestartable(t *testing.T) {
	source := &fakeSource{fixes: []geo.Coordinate{{Lat: 1, Lng: 1}}}
	w := NewWatcher(source, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	_, _ = w.Watch(ctx)
	cancel()

	_, errs := w.Watch(context.Background())
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrWatcherUsed)
	case <-time.After(time.Second):
		t.Fatal("expected ErrWatcherUsed from a reused watcher")
	}
}

func TestHTTPSource(t *testing.T) {
	t.Run("parses a fix", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "secret", r.Header.Get("X-Device-Token"))
			w.Write([]byte(`{"latitude": 21.1702, "longitude": 72.8311}`))
		}))
		defer server.Close()

		source := NewHTTPSource(&config.WatcherConfig{
			URL:     server.URL,
			Headers: map[string]string{"X-Device-Token": "secret"},
		})
		pos, err := source.Current(context.Background())
		require.NoError(t, err)
		assert.Equal(t, geo.Coordinate{Lat: 21.1702, Lng: 72.8311}, pos)
	})

	t.Run("surfaces device errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error": "location services disabled"}`))
		}))
		defer server.Close()

		source := NewHTTPSource(&config.WatcherConfig{URL: server.URL})
		_, err := source.Current(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "location services disabled")
	})

	t.Run("rejects non-200 responses", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		source := NewHTTPSource(&config.WatcherConfig{URL: server.URL})
		_, err := source.Current(context.Background())
		assert.Error(t, err)
	})

	t.Run("rejects a fix without coordinates", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		source := NewHTTPSource(&config.WatcherConfig{URL: server.URL})
		_, err := source.Current(context.Background())
		assert.Error(t, err)
	})
}
