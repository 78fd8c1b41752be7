// Package canvas keeps a client's local shape collection consistent with
// both local user intent and remote room events. Locally-originated
// mutations are emitted to the session; remotely-originated ones are applied
// through the same mutation paths behind a re-entrancy guard so they are
// never echoed back to the network.
package canvas

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sagar5412/rapidraw/internal/history"
	"github.com/sagar5412/rapidraw/internal/models"
	"github.com/sagar5412/rapidraw/internal/utils"
)

// Emitter is the outbound half of the event channel. Sends are
// fire-and-forget; the protocol has no acknowledgements.
type Emitter interface {
	Emit(env models.Envelope)
}

// RemoteCursor is another participant's pointer, decorated for rendering.
type RemoteCursor struct {
	X     float64
	Y     float64
	Name  string
	Color string
}

// Adapter owns the local shape collection and its undo history. Inbound
// network events and local UI events are serialized by the adapter's mutex;
// they interleave but never run in parallel.
type Adapter struct {
	mu sync.Mutex

	shapes  []models.Shape
	history *history.Stack
	users   map[string]models.User
	cursors map[string]RemoteCursor

	// backup holds the pre-session canvas, restored on leave.
	backup    []models.Shape
	hasBackup bool

	roomID        string
	collaborating bool

	// applyingRemote is the sole mechanism preventing echo loops: while it
	// is set, the mutation paths skip emission. Removing it would make every
	// applied remote event re-emit and bounce between peers forever.
	applyingRemote bool

	emitter Emitter
	logger  *zap.Logger
}

// NewAdapter creates an Adapter seeded with the given local shapes.
func NewAdapter(initial []models.Shape, emitter Emitter, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		shapes:  models.CloneShapes(initial),
		history: history.New(initial),
		users:   make(map[string]models.User),
		cursors: make(map[string]RemoteCursor),
		emitter: emitter,
		logger:  logger,
	}
}

/*** Session lifecycle ***/

// StartSession generates a room id and anonymous identity and asks the
// server to join. Collaboration begins when room_state arrives.
func (a *Adapter) StartSession() string {
	roomID := utils.GenerateRoomID()
	a.joinRoom(roomID)
	return roomID
}

// JoinSession joins an existing room by id (normalized to uppercase).
func (a *Adapter) JoinSession(roomID string) {
	a.joinRoom(strings.ToUpper(roomID))
}

func (a *Adapter) joinRoom(roomID string) {
	user := models.User{
		// The server overwrites the id and echoes it back in room_state.
		Name:  utils.GenerateAnonymousName(),
		Color: utils.GenerateUserColor(),
	}
	a.emit(models.EventJoinRoom, models.JoinRoomPayload{RoomID: roomID, User: user})
}

// LeaveSession tells the server we are leaving and restores the canvas that
// was backed up when the session's room_state arrived.
func (a *Adapter) LeaveSession() {
	a.mu.Lock()
	roomID := a.roomID
	a.roomID = ""
	a.collaborating = false
	a.users = make(map[string]models.User)
	a.cursors = make(map[string]RemoteCursor)
	if a.hasBackup {
		a.shapes = models.CloneShapes(a.backup)
		a.history.Commit(a.shapes)
		a.backup = nil
		a.hasBackup = false
	}
	a.mu.Unlock()

	if roomID != "" {
		a.emit(models.EventLeaveRoom, models.LeaveRoomPayload{RoomID: roomID})
	}
}

/*** Local mutations ***/

// AddShape applies a locally-created shape and emits it to the room. Adding
// an id that already exists is a no-op, matching the server's rule.
func (a *Adapter) AddShape(shape models.Shape) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mutateAdd(shape)
}

// UpdateShape applies a committed partial update (shallow merge) and emits.
func (a *Adapter) UpdateShape(shapeID string, updates map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mutateUpdate(shapeID, updates, true)
}

// StageShapeUpdate applies a transient update (mid-drag, mid-resize): the
// change streams to peers but only stages the local history buffer. Call
// CommitPending when the gesture ends.
func (a *Adapter) StageShapeUpdate(shapeID string, updates map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mutateUpdate(shapeID, updates, false)
}

// CommitPending folds a staged transient state into history as one frame.
func (a *Adapter) CommitPending() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history.CommitPending()
}

// DeleteShape removes a shape locally and emits the deletion.
func (a *Adapter) DeleteShape(shapeID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.mutateDelete(shapeID)
}

// MoveCursor reports the local cursor position to the room.
func (a *Adapter) MoveCursor(cursor models.Cursor) {
	a.mu.Lock()
	roomID := a.roomID
	collaborating := a.collaborating
	a.mu.Unlock()
	if collaborating {
		a.emit(models.EventCursorMove, models.CursorMovePayload{RoomID: roomID, Cursor: cursor})
	}
}

// Undo steps history back and updates the visible collection. It does not
// emit: an undo has no causal position in a multi-writer history, so the
// Reconciler broadcasts the full post-undo state instead.
func (a *Adapter) Undo() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shapes = a.history.Undo()
}

// Redo steps history forward and updates the visible collection.
func (a *Adapter) Redo() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shapes = a.history.Redo()
}

func (a *Adapter) CanUndo() bool { return a.history.CanUndo() }
func (a *Adapter) CanRedo() bool { return a.history.CanRedo() }

// SyncShapesNow broadcasts the full current shape collection. Whichever sync
// the server relays last wins; there is no merge.
func (a *Adapter) SyncShapesNow() {
	a.mu.Lock()
	roomID := a.roomID
	collaborating := a.collaborating
	shapes := models.CloneShapes(a.shapes)
	a.mu.Unlock()
	if collaborating {
		a.emit(models.EventShapesSync, models.ShapesSyncPayload{RoomID: roomID, Shapes: shapes})
	}
}

/*** Remote events ***/

// ApplyRemote applies one inbound room event to the local collection. The
// re-entrancy guard is set for the duration so none of the shared mutation
// paths emit.
func (a *Adapter) ApplyRemote(env models.Envelope) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.applyingRemote = true
	defer func() { a.applyingRemote = false }()

	switch env.Type {
	case models.EventRoomState:
		var state models.RoomState
		if err := env.Decode(&state); err != nil {
			a.logger.Warn("bad room_state payload", zap.Error(err))
			return
		}
		a.enterRoom(state)

	case models.EventUserJoined:
		var user models.User
		if err := env.Decode(&user); err != nil {
			return
		}
		a.users[user.ID] = user

	case models.EventUserLeft:
		var userID string
		if err := env.Decode(&userID); err != nil {
			return
		}
		delete(a.users, userID)
		delete(a.cursors, userID)

	case models.EventCursorUpdate:
		var cu models.CursorUpdate
		if err := env.Decode(&cu); err != nil {
			return
		}
		if user, ok := a.users[cu.UserID]; ok {
			a.cursors[cu.UserID] = RemoteCursor{X: cu.Cursor.X, Y: cu.Cursor.Y, Name: user.Name, Color: user.Color}
		}

	case models.EventShapeAdded:
		var shape models.Shape
		if err := env.Decode(&shape); err != nil {
			return
		}
		a.mutateAdd(shape)

	case models.EventShapeUpdated:
		var su models.ShapeUpdated
		if err := env.Decode(&su); err != nil {
			return
		}
		a.mutateUpdate(su.ShapeID, su.Updates, true)

	case models.EventShapeDeleted:
		var shapeID string
		if err := env.Decode(&shapeID); err != nil {
			return
		}
		a.mutateDelete(shapeID)

	case models.EventShapesSynced:
		var shapes []models.Shape
		if err := env.Decode(&shapes); err != nil {
			return
		}
		a.mutateReplace(shapes)

	case models.EventError:
		var msg string
		_ = env.Decode(&msg)
		a.logger.Warn("server error event", zap.String("message", msg))

	default:
		a.logger.Debug("ignoring event", zap.String("type", env.Type))
	}
}

// enterRoom handles the initial room-state snapshot: the local canvas is
// backed up, then unconditionally replaced. Joining an empty room clears
// the canvas rather than merging with it.
func (a *Adapter) enterRoom(state models.RoomState) {
	if !a.collaborating {
		a.backup = models.CloneShapes(a.shapes)
		a.hasBackup = true
	}
	a.roomID = state.RoomID
	a.collaborating = true
	a.users = make(map[string]models.User, len(state.Users))
	for _, u := range state.Users {
		a.users[u.ID] = u
	}
	a.mutateReplace(state.Shapes)
}

/*** Shared mutation paths. Callers hold a.mu. ***/

func (a *Adapter) mutateAdd(shape models.Shape) {
	id := shape.ID()
	for _, s := range a.shapes {
		if s.ID() == id {
			return
		}
	}
	a.shapes = append(a.shapes, shape.Clone())
	a.history.Commit(a.shapes)
	a.emitMutation(models.EventShapeAdd, models.ShapeAddPayload{RoomID: a.roomID, Shape: shape})
}

func (a *Adapter) mutateUpdate(shapeID string, updates map[string]any, committed bool) {
	found := false
	for i, s := range a.shapes {
		if s.ID() == shapeID {
			a.shapes[i] = s.Merge(updates)
			found = true
			break
		}
	}
	if !found {
		return
	}
	if committed {
		a.history.Commit(a.shapes)
	} else {
		a.history.Stage(a.shapes)
	}
	a.emitMutation(models.EventShapeUpdate, models.ShapeUpdatePayload{RoomID: a.roomID, ShapeID: shapeID, Updates: updates})
}

func (a *Adapter) mutateDelete(shapeID string) {
	for i, s := range a.shapes {
		if s.ID() == shapeID {
			a.shapes = append(a.shapes[:i], a.shapes[i+1:]...)
			a.history.Commit(a.shapes)
			a.emitMutation(models.EventShapeDelete, models.ShapeDeletePayload{RoomID: a.roomID, ShapeID: shapeID})
			return
		}
	}
}

func (a *Adapter) mutateReplace(shapes []models.Shape) {
	a.shapes = models.CloneShapes(shapes)
	a.history.Commit(a.shapes)
	a.emitMutation(models.EventShapesSync, models.ShapesSyncPayload{RoomID: a.roomID, Shapes: shapes})
}

// emitMutation sends the event outward unless the change originated
// remotely or there is no session to send it to.
func (a *Adapter) emitMutation(eventType string, data any) {
	if a.applyingRemote || !a.collaborating {
		return
	}
	a.emit(eventType, data)
}

func (a *Adapter) emit(eventType string, data any) {
	if a.emitter == nil {
		return
	}
	env, err := models.NewEnvelope(eventType, data)
	if err != nil {
		a.logger.Error("marshal outbound event", zap.String("type", eventType), zap.Error(err))
		return
	}
	a.emitter.Emit(env)
}

/*** Read-only views ***/

// Shapes returns a snapshot of the current shape collection.
func (a *Adapter) Shapes() []models.Shape {
	a.mu.Lock()
	defer a.mu.Unlock()
	return models.CloneShapes(a.shapes)
}

// Users returns the participants known to this client.
func (a *Adapter) Users() []models.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.User, 0, len(a.users))
	for _, u := range a.users {
		out = append(out, u)
	}
	return out
}

// RemoteCursors returns the last known cursor of each remote participant.
func (a *Adapter) RemoteCursors() map[string]RemoteCursor {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]RemoteCursor, len(a.cursors))
	for id, c := range a.cursors {
		out[id] = c
	}
	return out
}

func (a *Adapter) Collaborating() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.collaborating
}

func (a *Adapter) RoomID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.roomID
}
