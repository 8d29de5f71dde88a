// Package events dispatches relationship lifecycle notifications to
// registered listeners. Dispatch is synchronous and in registration order.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/socialgraph/internal/logging"
	"github.com/HammerMeetNail/socialgraph/internal/models"
)

type Name string

const (
	FriendshipRequestCreated  Name = "friendship_request_created"
	FriendshipRequestRejected Name = "friendship_request_rejected"
	FriendshipRequestCanceled Name = "friendship_request_canceled"
	FriendshipRequestViewed   Name = "friendship_request_viewed"
	FriendshipRequestAccepted Name = "friendship_request_accepted"
	FriendshipRemoved         Name = "friendship_removed"
	BlockingCreated           Name = "blocking_created"
	BlockingRemoved           Name = "blocking_removed"
	InspirationsCreated       Name = "inspirations_created"
	InspirationsRemoved       Name = "inspirations_removed"
	InspirationalsCreated     Name = "inspirationals_created"
	InspirationalsRemoved     Name = "inspirationals_removed"
)

// Names lists every event the services emit.
var Names = []Name{
	FriendshipRequestCreated,
	FriendshipRequestRejected,
	FriendshipRequestCanceled,
	FriendshipRequestViewed,
	FriendshipRequestAccepted,
	FriendshipRemoved,
	BlockingCreated,
	BlockingRemoved,
	InspirationsCreated,
	InspirationsRemoved,
	InspirationalsCreated,
	InspirationalsRemoved,
}

// Event carries the users affected by a transition. Request is set for the
// friendship_request_* events.
//
// For inspirations_* events FromUserID is the follower and ToUserID the
// followed user; inspirationals_* carry the same pair.
type Event struct {
	Name       Name
	FromUserID uuid.UUID
	ToUserID   uuid.UUID
	Request    *models.FriendshipRequest
	OccurredAt time.Time
}

type Listener func(ctx context.Context, e Event) error

type registration struct {
	id       uint64
	listener Listener
}

// Emitter is safe for concurrent use. The zero value is not usable; call NewEmitter.
type Emitter struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[Name][]registration
	all       []registration
	logger    *logging.Logger
	now       func() time.Time
}

func NewEmitter(logger *logging.Logger) *Emitter {
	if logger == nil {
		logger = logging.Default
	}
	return &Emitter{
		listeners: make(map[Name][]registration),
		logger:    logger.WithField("component", "events"),
		now:       time.Now,
	}
}

// Connect registers l for a single event name and returns a function that
// removes the registration.
func (e *Emitter) Connect(name Name, l Listener) (disconnect func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.listeners[name] = append(e.listeners[name], registration{id: id, listener: l})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.listeners[name] = without(e.listeners[name], id)
	}
}

// ConnectAll registers l for every event name.
func (e *Emitter) ConnectAll(l Listener) (disconnect func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.all = append(e.all, registration{id: id, listener: l})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.all = without(e.all, id)
	}
}

// Emit calls every listener for ev.Name. A failing or panicking listener does
// not stop delivery to the rest; failures are logged and returned joined.
func (e *Emitter) Emit(ctx context.Context, ev Event) error {
	if e == nil {
		return nil
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = e.now()
	}

	e.mu.RLock()
	regs := make([]registration, 0, len(e.listeners[ev.Name])+len(e.all))
	regs = append(regs, e.listeners[ev.Name]...)
	regs = append(regs, e.all...)
	e.mu.RUnlock()

	var errs []error
	for _, r := range regs {
		if err := e.call(ctx, r.listener, ev); err != nil {
			e.logger.Error("Event listener failed", logging.Fields{
				"event": string(ev.Name),
				"error": err.Error(),
			})
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Emitter) call(ctx context.Context, l Listener, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic on %s: %v", ev.Name, r)
		}
	}()
	return l(ctx, ev)
}

// ListenerCount reports the listeners that would receive name, including ConnectAll ones.
func (e *Emitter) ListenerCount(name Name) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners[name]) + len(e.all)
}

func without(regs []registration, id uint64) []registration {
	out := regs[:0:0]
	for _, r := range regs {
		if r.id != id {
			out = append(out, r)
		}
	}
	return out
}

// LogListener logs every event at debug level.
func LogListener(logger *logging.Logger) Listener {
	return func(ctx context.Context, e Event) error {
		fields := logging.Fields{
			"event":        string(e.Name),
			"from_user_id": e.FromUserID.String(),
			"to_user_id":   e.ToUserID.String(),
		}
		if e.Request != nil {
			fields["request_id"] = e.Request.ID.String()
		}
		logger.Debug("Relationship event", fields)
		return nil
	}
}
