// Package registry holds the authoritative per-room document state. Rooms
// live in process memory only; an empty room survives for a grace period so
// that a rejoin keeps its shapes, then is reaped.
package registry

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sagar5412/rapidraw/internal/metrics"
	"github.com/sagar5412/rapidraw/internal/models"
)

// DefaultCleanupDelay is how long an empty room is kept before it is reaped.
const DefaultCleanupDelay = 60 * time.Second

// Announcer receives room lifecycle notifications. Implementations must not
// block; the registry calls them outside its locks.
type Announcer interface {
	RoomCreated(roomID string)
	RoomDestroyed(roomID string)
	UserJoined(roomID, userID string)
	UserLeft(roomID, userID string)
}

// Registry owns the mapping from room id to room state. All operations on an
// unknown room id other than join/create are no-ops: room absence is an
// expected transient state when cleanup races a trailing event, not an error.
type Registry struct {
	mu           sync.RWMutex
	rooms        map[string]*room
	cleanupDelay time.Duration
	logger       *zap.Logger
	announcer    Announcer
}

type room struct {
	id        string
	createdAt time.Time

	mu     sync.Mutex
	users  map[string]models.User
	shapes []models.Shape

	// cleanup is pending whenever the room is empty. cleanupGen invalidates
	// a stopped timer whose callback already fired: the reap callback
	// re-checks the generation under both locks, so a join that lands as the
	// timer fires always wins.
	cleanup    *time.Timer
	cleanupGen uint64
}

// New creates a Registry. A zero delay falls back to DefaultCleanupDelay.
// announcer may be nil.
func New(cleanupDelay time.Duration, logger *zap.Logger, announcer Announcer) *Registry {
	if cleanupDelay <= 0 {
		cleanupDelay = DefaultCleanupDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		rooms:        make(map[string]*room),
		cleanupDelay: cleanupDelay,
		logger:       logger,
		announcer:    announcer,
	}
}

// CreateRoom creates the room if absent and inserts host. If an empty room
// with a pending cleanup exists, the cleanup is cancelled but the shapes
// survive: this is a rejoin, not a fresh room. A room that already has
// members keeps them; host is inserted-or-replaced like any other join, so
// two first joins racing on the same id never drop a user.
func (r *Registry) CreateRoom(roomID string, host models.User) models.RoomState {
	r.mu.Lock()
	rm, ok := r.rooms[roomID]
	created := !ok
	if !ok {
		rm = newRoom(roomID)
		r.rooms[roomID] = rm
		metrics.ActiveRooms.Inc()
	}
	rm.mu.Lock()
	rm.cancelCleanupLocked()
	rm.users[host.ID] = host
	state := rm.stateLocked()
	rm.mu.Unlock()
	r.mu.Unlock()

	if created {
		r.logger.Info("room created", zap.String("room_id", roomID), zap.String("host_id", host.ID))
		r.announce(func(a Announcer) { a.RoomCreated(roomID) })
	}
	r.announce(func(a Announcer) { a.UserJoined(roomID, host.ID) })
	return state
}

// JoinRoom adds user to the room, creating the room if it does not exist.
// Any pending cleanup is cancelled atomically with the join.
func (r *Registry) JoinRoom(roomID string, user models.User) models.RoomState {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	if !ok {
		r.mu.RUnlock()
		return r.CreateRoom(roomID, user)
	}
	rm.mu.Lock()
	rm.cancelCleanupLocked()
	rm.users[user.ID] = user
	state := rm.stateLocked()
	rm.mu.Unlock()
	r.mu.RUnlock()

	r.logger.Info("user joined room", zap.String("room_id", roomID), zap.String("user_id", user.ID))
	r.announce(func(a Announcer) { a.UserJoined(roomID, user.ID) })
	return state
}

// LeaveRoom removes the user. When the room becomes empty, cleanup is
// scheduled after the configured delay; calling LeaveRoom again while a
// timer is pending simply reschedules it.
func (r *Registry) LeaveRoom(roomID, userID string) {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	if !ok {
		r.mu.RUnlock()
		return
	}
	rm.mu.Lock()
	delete(rm.users, userID)
	if len(rm.users) == 0 {
		rm.scheduleCleanupLocked(r)
	}
	rm.mu.Unlock()
	r.mu.RUnlock()

	r.logger.Info("user left room", zap.String("room_id", roomID), zap.String("user_id", userID))
	r.announce(func(a Announcer) { a.UserLeft(roomID, userID) })
}

// RoomState returns a read-only projection of the room for transmission to a
// newly joined client, or ok=false for unknown rooms. No side effects.
func (r *Registry) RoomState(roomID string) (models.RoomState, bool) {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	if !ok {
		r.mu.RUnlock()
		return models.RoomState{}, false
	}
	rm.mu.Lock()
	state := rm.stateLocked()
	rm.mu.Unlock()
	r.mu.RUnlock()
	return state, true
}

// UpdateUserCursor records the user's latest cursor position.
func (r *Registry) UpdateUserCursor(roomID, userID string, cursor models.Cursor) {
	r.withRoom(roomID, func(rm *room) {
		user, ok := rm.users[userID]
		if !ok {
			return
		}
		c := cursor
		user.Cursor = &c
		rm.users[userID] = user
	})
}

// AddShape appends the shape unless a shape with the same id already exists.
// Duplicate adds are a no-op, matching the client-side rule, so client and
// server never diverge on this point.
func (r *Registry) AddShape(roomID string, shape models.Shape) {
	r.withRoom(roomID, func(rm *room) {
		id := shape.ID()
		for _, s := range rm.shapes {
			if s.ID() == id {
				return
			}
		}
		rm.shapes = append(rm.shapes, shape.Clone())
	})
}

// UpdateShape shallow-merges updates onto the shape. Unknown shape ids are a
// no-op: the shape may have been deleted by a concurrent event already
// applied.
func (r *Registry) UpdateShape(roomID, shapeID string, updates map[string]any) {
	r.withRoom(roomID, func(rm *room) {
		for i, s := range rm.shapes {
			if s.ID() == shapeID {
				rm.shapes[i] = s.Merge(updates)
				return
			}
		}
	})
}

// DeleteShape removes the shape; unknown ids are a no-op.
func (r *Registry) DeleteShape(roomID, shapeID string) {
	r.withRoom(roomID, func(rm *room) {
		for i, s := range rm.shapes {
			if s.ID() == shapeID {
				rm.shapes = append(rm.shapes[:i], rm.shapes[i+1:]...)
				return
			}
		}
	})
}

// SyncShapes unconditionally replaces the room's shape list: the last writer
// wins, with no merge of concurrent edits.
func (r *Registry) SyncShapes(roomID string, shapes []models.Shape) {
	r.withRoom(roomID, func(rm *room) {
		rm.shapes = models.CloneShapes(shapes)
	})
}

// RoomCount reports the number of rooms currently held, including empty
// rooms awaiting cleanup.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Registry) withRoom(roomID string, fn func(*room)) {
	r.mu.RLock()
	rm, ok := r.rooms[roomID]
	if !ok {
		r.mu.RUnlock()
		return
	}
	rm.mu.Lock()
	fn(rm)
	rm.mu.Unlock()
	r.mu.RUnlock()
}

func (r *Registry) announce(fn func(Announcer)) {
	if r.announcer != nil {
		fn(r.announcer)
	}
}

// reap destroys the room if it is still empty and the generation matches the
// timer that scheduled it.
func (r *Registry) reap(roomID string, gen uint64) {
	r.mu.Lock()
	rm, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return
	}
	rm.mu.Lock()
	if len(rm.users) != 0 || rm.cleanupGen != gen {
		rm.mu.Unlock()
		r.mu.Unlock()
		return
	}
	delete(r.rooms, roomID)
	rm.cleanup = nil
	rm.mu.Unlock()
	r.mu.Unlock()

	metrics.ActiveRooms.Dec()
	metrics.RoomsReaped.Inc()
	r.logger.Info("empty room reaped", zap.String("room_id", roomID))
	r.announce(func(a Announcer) { a.RoomDestroyed(roomID) })
}

func newRoom(id string) *room {
	return &room{
		id:        id,
		createdAt: time.Now(),
		users:     make(map[string]models.User),
		shapes:    make([]models.Shape, 0),
	}
}

func (rm *room) stateLocked() models.RoomState {
	users := make([]models.User, 0, len(rm.users))
	for _, u := range rm.users {
		users = append(users, u)
	}
	return models.RoomState{
		RoomID: rm.id,
		Users:  users,
		Shapes: models.CloneShapes(rm.shapes),
	}
}

func (rm *room) cancelCleanupLocked() {
	rm.cleanupGen++
	if rm.cleanup != nil {
		rm.cleanup.Stop()
		rm.cleanup = nil
	}
}

func (rm *room) scheduleCleanupLocked(r *Registry) {
	rm.cleanupGen++
	gen := rm.cleanupGen
	if rm.cleanup != nil {
		rm.cleanup.Stop()
	}
	rm.cleanup = time.AfterFunc(r.cleanupDelay, func() { r.reap(rm.id, gen) })
}
