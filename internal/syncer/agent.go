package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"geoattend-backend/config"
	"geoattend-backend/internal/model"
	"geoattend-backend/internal/store"
)

// batchRequest is the payload pushed to the remote sync endpoint.
type batchRequest struct {
	Records []model.AttendanceLog `json:"records"`
}

// verdict is the server's per-record sync decision, keyed by the
// client-generated remote log id.
type verdict struct {
	LogID   string `json:"logId"`
	Synced  bool   `json:"synced"`
	Message string `json:"message"`
}

// batchResponse is the remote endpoint's reply.
type batchResponse struct {
	Results []verdict `json:"results"`
}

// Agent reconciles pending local records with the remote endpoint. A
// single-flight lock keeps concurrent triggers from stacking syncs:
// while one run is in flight, further triggers are dropped, not queued.
// Local check-in/out never waits on the agent.
type Agent struct {
	store   store.Store
	url     string
	headers map[string]string
	client  *http.Client

	// online gates each run; a run against a known-offline network exits
	// immediately and leaves everything pending.
	online func(ctx context.Context) bool
	// onFailure receives a one-shot notice when a run fails outright.
	onFailure func(err error)

	flight   sync.Mutex
	interval time.Duration
	trigger  chan struct{}
}

// Option customizes an Agent.
type Option func(*Agent)

// WithOnlineProbe replaces the connectivity probe.
func WithOnlineProbe(probe func(ctx context.Context) bool) Option {
	return func(a *Agent) { a.online = probe }
}

// WithFailureHook installs a callback for run-level sync failures.
func WithFailureHook(hook func(err error)) Option {
	return func(a *Agent) { a.onFailure = hook }
}

// New creates a sync agent for the configured remote endpoint.
func New(cfg *config.SyncConfig, s store.Store, opts ...Option) *Agent {
	a := &Agent{
		store:   s,
		url:     cfg.URL,
		headers: cfg.Headers,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		interval: cfg.Interval,
		trigger:  make(chan struct{}, 1),
	}
	a.online = a.probeEndpoint
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Trigger requests a sync without blocking. If a trigger is already
// queued the call is a no-op.
func (a *Agent) Trigger() {
	select {
	case a.trigger <- struct{}{}:
	default:
	}
}

// Run syncs once at startup, then on every interval tick and every
// explicit trigger, until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) {
	log.Println("Starting sync agent...")
	a.SyncOnce(ctx)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Sync agent shutting down.")
			return
		case <-ticker.C:
			a.SyncOnce(ctx)
		case <-a.trigger:
			a.SyncOnce(ctx)
		}
	}
}

// SyncOnce performs a single guarded sync pass. All errors are handled
// here: the records stay pending and the failure hook fires once.
func (a *Agent) SyncOnce(ctx context.Context) {
	if !a.flight.TryLock() {
		log.Println("Sync already in flight; trigger dropped.")
		return
	}
	defer a.flight.Unlock()

	if !a.online(ctx) {
		log.Println("Offline; skipping sync.")
		return
	}

	if err := a.sync(ctx); err != nil {
		log.Printf("Sync failed: %v", err)
		if a.onFailure != nil {
			a.onFailure(err)
		}
	}
}

func (a *Agent) sync(ctx context.Context) error {
	// Earlier failures become eligible again on this attempt.
	if n, err := a.store.RequeueFailed(ctx); err != nil {
		return fmt.Errorf("requeue failed records: %w", err)
	} else if n > 0 {
		log.Printf("Requeued %d previously failed records.", n)
	}

	pending, err := a.store.QueryPending(ctx)
	if err != nil {
		return fmt.Errorf("query pending records: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	log.Printf("Syncing %d pending records...", len(pending))
	results, err := a.push(ctx, pending)
	if err != nil {
		return err
	}

	// Records with no matching verdict are left pending for next time.
	for _, v := range results {
		record, err := a.store.QueryByRemoteLogID(ctx, v.LogID)
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("Verdict for unknown record %s ignored.", v.LogID)
			continue
		}
		if err != nil {
			return fmt.Errorf("reconcile verdict %s: %w", v.LogID, err)
		}

		status := model.SyncFailed
		if v.Synced {
			status = model.SyncSynced
		} else if v.Message != "" {
			log.Printf("Record %s rejected by server: %s", v.LogID, v.Message)
		}
		if err := a.store.Update(ctx, record.ID, store.LogUpdate{SyncStatus: &status}); err != nil {
			return fmt.Errorf("mark record %s %s: %w", v.LogID, status, err)
		}
	}

	log.Println("Sync pass finished.")
	return nil
}

// push sends the full pending batch in one request and returns the
// per-record verdicts.
func (a *Agent) push(ctx context.Context, records []model.AttendanceLog) ([]verdict, error) {
	body, err := json.Marshal(batchRequest{Records: records})
	if err != nil {
		return nil, fmt.Errorf("marshal sync batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("create sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range a.headers {
		req.Header.Set(key, value)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sync request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sync endpoint returned status %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read sync response: %w", err)
	}

	var parsed batchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal sync response: %w", err)
	}
	return parsed.Results, nil
}

// probeEndpoint is the default connectivity check: a HEAD to the sync
// endpoint that gets any HTTP response at all counts as online.
func (a *Agent) probeEndpoint(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, a.url, nil)
	if err != nil {
		return false
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
