package zone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoattend-backend/internal/geo"
	"geoattend-backend/internal/model"
)

var downtown = model.Site{
	ID:        1,
	Name:      "Downtown Office",
	CenterLat: 21.1702,
	CenterLng: 72.8311,
	RadiusKm:  0.5,
}

func TestEvaluate(t *testing.T) {
	sites := []model.Site{downtown}

	t.Run("exact center is inside at zero distance", func(t *testing.T) {
		got := Evaluate(geo.Coordinate{Lat: 21.1702, Lng: 72.8311}, sites)
		require.NotNil(t, got)
		assert.Equal(t, downtown.ID, got.ID)
	})

	t.Run("boundary is inclusive", func(t *testing.T) {
		// Walk north until the distance is just inside the radius, then
		// just outside it.
		inside := geo.Coordinate{Lat: 21.17468, Lng: 72.8311}
		require.LessOrEqual(t, geo.DistanceKm(inside, downtown.Center()), downtown.RadiusKm)
		assert.NotNil(t, Evaluate(inside, sites))

		outside := geo.Coordinate{Lat: 21.1760, Lng: 72.8311}
		require.Greater(t, geo.DistanceKm(outside, downtown.Center()), downtown.RadiusKm)
		assert.Nil(t, Evaluate(outside, sites))
	})

	t.Run("no sites means outside", func(t *testing.T) {
		assert.Nil(t, Evaluate(geo.Coordinate{Lat: 21.1702, Lng: 72.8311}, nil))
	})

	t.Run("overlapping sites pick the nearest center", func(t *testing.T) {
		warehouse := model.Site{ID: 2, Name: "Warehouse", CenterLat: 21.1710, CenterLng: 72.8311, RadiusKm: 2}
		got := Evaluate(geo.Coordinate{Lat: 21.1709, Lng: 72.8311}, []model.Site{downtown, warehouse})
		require.NotNil(t, got)
		assert.Equal(t, warehouse.ID, got.ID)
	})

	t.Run("exact tie keeps list order", func(t *testing.T) {
		a := model.Site{ID: 1, Name: "A", CenterLat: 10, CenterLng: 10, RadiusKm: 5}
		b := model.Site{ID: 2, Name: "B", CenterLat: 10, CenterLng: 10, RadiusKm: 5}
		got := Evaluate(geo.Coordinate{Lat: 10, Lng: 10}, []model.Site{a, b})
		require.NotNil(t, got)
		assert.Equal(t, a.ID, got.ID)
	})
}

func TestTrackerTransitions(t *testing.T) {
	sites := []model.Site{downtown}
	center := geo.Coordinate{Lat: 21.1702, Lng: 72.8311}
	farAway := geo.Coordinate{Lat: 21.1900, Lng: 72.8311} // ~2.2 km north

	t.Run("enter then exit", func(t *testing.T) {
		tr := NewTracker()

		transitions := tr.Observe(center, sites)
		require.Len(t, transitions, 1)
		assert.Equal(t, Entered, transitions[0].Kind)
		assert.Equal(t, downtown.ID, transitions[0].Site.ID)

		transitions = tr.Observe(farAway, sites)
		require.Len(t, transitions, 1)
		assert.Equal(t, Exited, transitions[0].Kind)
		assert.Equal(t, downtown.ID, transitions[0].Site.ID)
		assert.Nil(t, tr.Current())
	})

	t.Run("repeated observation is idempotent", func(t *testing.T) {
		tr := NewTracker()
		require.Len(t, tr.Observe(center, sites), 1)
		for i := 0; i < 3; i++ {
			assert.Empty(t, tr.Observe(center, sites))
		}
	})

	t.Run("starting outside emits nothing", func(t *testing.T) {
		tr := NewTracker()
		assert.Empty(t, tr.Observe(farAway, sites))
		assert.Empty(t, tr.Observe(farAway, sites))
	})

	t.Run("moving between disjoint sites exits then enters", func(t *testing.T) {
		other := model.Site{ID: 3, Name: "Depot", CenterLat: 21.1900, CenterLng: 72.8311, RadiusKm: 0.5}
		both := []model.Site{downtown, other}

		tr := NewTracker()
		require.Len(t, tr.Observe(center, both), 1)

		transitions := tr.Observe(geo.Coordinate{Lat: 21.1900, Lng: 72.8311}, both)
		require.Len(t, transitions, 2)
		assert.Equal(t, Exited, transitions[0].Kind)
		assert.Equal(t, downtown.ID, transitions[0].Site.ID)
		assert.Equal(t, Entered, transitions[1].Kind)
		assert.Equal(t, other.ID, transitions[1].Site.ID)
	})

	t.Run("no sites configured never emits", func(t *testing.T) {
		tr := NewTracker()
		assert.Empty(t, tr.Observe(center, nil))
		assert.Nil(t, tr.Current())
	})
}
