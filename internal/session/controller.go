package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"geoattend-backend/internal/model"
	"geoattend-backend/internal/store"
	"geoattend-backend/internal/zone"
)

// State is the controller's position in the check-in lifecycle.
type State string

const (
	StateNoActiveSession   State = "no_active_session"
	StateAwaitingZoneEntry State = "awaiting_zone_entry"
	StateCheckedIn         State = "checked_in"
	StatePendingCheckout   State = "pending_checkout_confirmation"
)

var (
	// ErrNotInZone is returned when checking in outside the target site.
	ErrNotInZone = errors.New("session: not within the target geofence")
	// ErrAlreadyCheckedIn is returned when an open record already exists.
	ErrAlreadyCheckedIn = errors.New("session: an open session already exists")
	// ErrNoOpenSession is returned when checking out with nothing open.
	ErrNoOpenSession = errors.New("session: no open session")
	// ErrNoTargetSite is returned when checking in before selecting a site.
	ErrNoTargetSite = errors.New("session: no target site selected")
	// ErrCheckoutNotPending is returned when confirming or declining a
	// checkout that was never proposed.
	ErrCheckoutNotPending = errors.New("session: no checkout awaiting confirmation")
)

// Hooks are the controller's outbound side effects. Either may be nil.
type Hooks struct {
	// TriggerSync is called after a checkout mutation re-queues a record.
	TriggerSync func()
	// OnTransition is called for every zone transition the controller sees.
	OnTransition func(userID string, tr zone.Transition)
	// OnCheckoutPending is called when a zone exit parks the session in
	// the pending-confirmation state.
	OnCheckoutPending func(userID string, site model.Site)
}

// Controller runs the check-in/check-out state machine for one user.
// All persisted data lives in the store; the controller holds only the
// transient machine state, the selected target, and a reference to the
// open record. Methods are serialized by a mutex, so overlapping calls
// cannot create two open records.
type Controller struct {
	mu    sync.Mutex
	store store.Store
	hooks Hooks

	userID      string
	state       State
	target      *model.Site
	inside      *model.Site
	openLocalID uint64
	openSiteID  int64

	now func() time.Time
}

// NewController creates a controller for the given user in the
// no-active-session state.
func NewController(s store.Store, userID string, hooks Hooks) *Controller {
	return &Controller{
		store:  s,
		hooks:  hooks,
		userID: userID,
		state:  StateNoActiveSession,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Restore adopts an open record left over from a previous run, so a
// restart mid-session resumes as checked in.
func (c *Controller) Restore(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	record, err := c.store.OpenRecord(ctx, c.userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	c.state = StateCheckedIn
	c.openLocalID = record.ID
	c.openSiteID = record.SiteID
	log.Printf("session: restored open session %d for user %s at site %s", record.ID, c.userID, record.SiteName)
	return nil
}

// State returns the current machine state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Target returns the selected target site, or nil.
func (c *Controller) Target() *model.Site {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// SelectSite records the site the user intends to check in at. Not
// allowed while a session is open.
func (c *Controller) SelectSite(site model.Site) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateCheckedIn || c.state == StatePendingCheckout {
		return ErrAlreadyCheckedIn
	}

	s := site
	c.target = &s
	c.state = StateAwaitingZoneEntry
	return nil
}

// HandleTransition feeds a zone transition from the membership tracker
// into the machine. Entering a site makes check-in eligible; exiting the
// checked-in site parks the session awaiting a checkout decision.
func (c *Controller) HandleTransition(tr zone.Transition) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch tr.Kind {
	case zone.Entered:
		s := tr.Site
		c.inside = &s
	case zone.Exited:
		if c.inside != nil && c.inside.ID == tr.Site.ID {
			c.inside = nil
		}
		if c.state == StateCheckedIn && tr.Site.ID == c.openSiteID {
			c.state = StatePendingCheckout
			if c.hooks.OnCheckoutPending != nil {
				c.hooks.OnCheckoutPending(c.userID, tr.Site)
			}
		}
	}

	if c.hooks.OnTransition != nil {
		c.hooks.OnTransition(c.userID, tr)
	}
}

// Inside returns the site currently containing the user, or nil.
func (c *Controller) Inside() *model.Site {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inside
}

// CheckIn opens a new attendance record. The user must be inside the
// selected target site and must not already have an open record.
func (c *Controller) CheckIn(ctx context.Context) (*model.AttendanceLog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateCheckedIn || c.state == StatePendingCheckout {
		return nil, ErrAlreadyCheckedIn
	}
	if c.target == nil {
		return nil, ErrNoTargetSite
	}
	if c.inside == nil || c.inside.ID != c.target.ID {
		return nil, ErrNotInZone
	}

	// The open-record check doubles as an idempotency guard against a
	// second controller instance for the same user.
	if _, err := c.store.OpenRecord(ctx, c.userID); err == nil {
		return nil, ErrAlreadyCheckedIn
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	record := &model.AttendanceLog{
		RemoteLogID: uuid.NewString(),
		UserID:      c.userID,
		SiteID:      c.target.ID,
		SiteName:    c.target.Name,
		CheckInTime: c.now(),
		SyncStatus:  model.SyncPending,
	}
	if err := c.store.Append(ctx, record); err != nil {
		return nil, err
	}

	c.state = StateCheckedIn
	c.openLocalID = record.ID
	c.openSiteID = record.SiteID
	log.Printf("session: user %s checked in at %s (record %d)", c.userID, record.SiteName, record.ID)
	return record, nil
}

// CheckOut closes the open session regardless of zone state.
func (c *Controller) CheckOut(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateCheckedIn && c.state != StatePendingCheckout {
		return ErrNoOpenSession
	}
	return c.closeSession(ctx)
}

// ConfirmCheckOut completes the checkout proposed by a zone exit.
func (c *Controller) ConfirmCheckOut(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePendingCheckout {
		return ErrCheckoutNotPending
	}
	return c.closeSession(ctx)
}

// DeclineCheckOut keeps the session open after a zone exit.
func (c *Controller) DeclineCheckOut() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePendingCheckout {
		return ErrCheckoutNotPending
	}
	c.state = StateCheckedIn
	return nil
}

// closeSession mutates the open record and resets the machine. Caller
// holds the mutex.
func (c *Controller) closeSession(ctx context.Context) error {
	checkOut := c.now()
	status := model.SyncPending // content changed, re-queue for sync
	err := c.store.Update(ctx, c.openLocalID, store.LogUpdate{
		CheckOutTime: &checkOut,
		SyncStatus:   &status,
	})
	if err != nil {
		return err
	}

	log.Printf("session: user %s checked out (record %d)", c.userID, c.openLocalID)
	c.state = StateNoActiveSession
	c.target = nil
	c.openLocalID = 0
	c.openSiteID = 0

	if c.hooks.TriggerSync != nil {
		c.hooks.TriggerSync()
	}
	return nil
}
