package zone

import (
	"time"

	"geoattend-backend/internal/geo"
	"geoattend-backend/internal/model"
)

// TransitionKind classifies a geofence boundary crossing.
type TransitionKind string

const (
	Entered TransitionKind = "entered"
	Exited  TransitionKind = "exited"
)

// Transition is a boundary crossing detected between two evaluations.
type Transition struct {
	Kind TransitionKind
	Site model.Site
}

// Evaluate returns the site containing pos, or nil when pos is outside
// every site. Containment uses an inclusive boundary (distance equal to
// the radius counts as inside). When several sites contain pos, the one
// with the smallest center distance wins; exact distance ties are broken
// by list order.
func Evaluate(pos geo.Coordinate, sites []model.Site) *model.Site {
	var best *model.Site
	bestDist := 0.0
	for i := range sites {
		d := geo.DistanceKm(pos, sites[i].Center())
		if d > sites[i].RadiusKm {
			continue
		}
		if best == nil || d < bestDist {
			best = &sites[i]
			bestDist = d
		}
	}
	return best
}

// Tracker remembers the site of the previous evaluation and turns raw
// positions into enter/exit transitions. It is not persisted; a fresh
// tracker settles on the first observation.
type Tracker struct {
	current         *model.Site
	lastEvaluatedAt time.Time
}

// NewTracker creates a tracker with no known site.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Current returns the site of the last observation, or nil when outside.
func (t *Tracker) Current() *model.Site {
	return t.current
}

// LastEvaluatedAt returns when the tracker last saw a position.
func (t *Tracker) LastEvaluatedAt() time.Time {
	return t.lastEvaluatedAt
}

// Observe evaluates pos against sites and returns the transitions since
// the previous observation. Re-observing an unchanged position returns
// nothing. With no sites configured the position is always outside.
func (t *Tracker) Observe(pos geo.Coordinate, sites []model.Site) []Transition {
	now := Evaluate(pos, sites)
	prev := t.current
	t.current = now
	t.lastEvaluatedAt = time.Now().UTC()

	if prev == nil && now == nil {
		return nil
	}
	if prev != nil && now != nil && prev.ID == now.ID {
		return nil
	}

	var transitions []Transition
	// Leaving the previous site only counts once the position is outside
	// its radius; drifting into a nearer overlapping site is not an exit.
	if prev != nil {
		if geo.DistanceKm(pos, prev.Center()) > prev.RadiusKm {
			transitions = append(transitions, Transition{Kind: Exited, Site: *prev})
		}
	}
	if now != nil {
		transitions = append(transitions, Transition{Kind: Entered, Site: *now})
	}
	return transitions
}
