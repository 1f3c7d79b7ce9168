package watch

import (
	"context"
	"errors"
	"log"
	"time"

	"geoattend-backend/internal/geo"
)

// ErrWatcherUsed is reported when Watch is called on a watcher that has
// already been started once.
var ErrWatcherUsed = errors.New("watch: watcher already used; create a fresh one")

// Source is a one-shot read of the device's current position.
type Source interface {
	Current(ctx context.Context) (geo.Coordinate, error)
}

// Watcher turns a position source into a stream of coordinate updates.
// A watcher is single-use: once cancelled or failed it stays closed, and
// resuming requires a fresh watcher.
type Watcher struct {
	source   Source
	interval time.Duration
	started  bool
}

// NewWatcher creates a watcher polling source at the given interval.
func NewWatcher(source Source, interval time.Duration) *Watcher {
	return &Watcher{source: source, interval: interval}
}

// Watch starts the position stream. Coordinates are delivered on the
// first channel whenever the position changes; the first acquisition
// error is delivered once on the second channel and ends the stream.
// Cancelling ctx closes both channels and releases the poll loop.
func (w *Watcher) Watch(ctx context.Context) (<-chan geo.Coordinate, <-chan error) {
	positions := make(chan geo.Coordinate, 1)
	errs := make(chan error, 1)

	if w.started {
		// Watchers are not restartable; report it as an acquisition
		// failure on the fresh channels rather than sharing the old ones.
		errs <- ErrWatcherUsed
		close(positions)
		close(errs)
		return positions, errs
	}
	w.started = true

	go w.run(ctx, positions, errs)
	return positions, errs
}

func (w *Watcher) run(ctx context.Context, positions chan<- geo.Coordinate, errs chan<- error) {
	defer close(positions)
	defer close(errs)

	var last *geo.Coordinate
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		pos, err := w.source.Current(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("watcher: position acquisition failed: %v", err)
			errs <- err
			return
		}

		if last == nil || *last != pos {
			p := pos
			last = &p
			select {
			case positions <- pos:
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
