package registry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagar5412/rapidraw/internal/models"
)

const testCleanupDelay = 40 * time.Millisecond

func newTestRegistry() *Registry {
	return New(testCleanupDelay, nil, nil)
}

func user(id string) models.User {
	return models.User{ID: id, Name: "Swift Fox", Color: "#3B82F6"}
}

func shape(id string) models.Shape {
	return models.Shape{"id": id, "type": "rectangle", "x": 10.0, "y": 20.0}
}

func TestJoinCreatesRoom(t *testing.T) {
	reg := newTestRegistry()

	state := reg.JoinRoom("ABCDEF", user("u1"))
	assert.Equal(t, "ABCDEF", state.RoomID)
	assert.Len(t, state.Users, 1)
	assert.Empty(t, state.Shapes)
	assert.Equal(t, 1, reg.RoomCount())
}

func TestJoinExistingRoomAddsUser(t *testing.T) {
	reg := newTestRegistry()
	reg.CreateRoom("ABCDEF", user("u1"))

	state := reg.JoinRoom("ABCDEF", user("u2"))
	assert.Len(t, state.Users, 2)
}

func TestJoinReplacesUserByID(t *testing.T) {
	reg := newTestRegistry()
	reg.CreateRoom("ABCDEF", user("u1"))

	rejoined := user("u1")
	rejoined.Name = "Bold Owl"
	state := reg.JoinRoom("ABCDEF", rejoined)

	require.Len(t, state.Users, 1)
	assert.Equal(t, "Bold Owl", state.Users[0].Name)
}

func TestAddShapeIsIdempotent(t *testing.T) {
	reg := newTestRegistry()
	reg.CreateRoom("ABCDEF", user("u1"))

	reg.AddShape("ABCDEF", shape("s1"))
	reg.AddShape("ABCDEF", shape("s1"))

	state, ok := reg.RoomState("ABCDEF")
	require.True(t, ok)
	assert.Len(t, state.Shapes, 1)
}

func TestUpdateShapeShallowMerge(t *testing.T) {
	reg := newTestRegistry()
	reg.CreateRoom("ABCDEF", user("u1"))
	reg.AddShape("ABCDEF", shape("s1"))

	reg.UpdateShape("ABCDEF", "s1", map[string]any{"x": 99.0, "fill": "#000"})

	state, _ := reg.RoomState("ABCDEF")
	require.Len(t, state.Shapes, 1)
	assert.Equal(t, 99.0, state.Shapes[0]["x"])
	assert.Equal(t, "#000", state.Shapes[0]["fill"])
	assert.Equal(t, 20.0, state.Shapes[0]["y"])
}

func TestUpdateShapeCannotChangeID(t *testing.T) {
	reg := newTestRegistry()
	reg.CreateRoom("ABCDEF", user("u1"))
	reg.AddShape("ABCDEF", shape("s1"))

	reg.UpdateShape("ABCDEF", "s1", map[string]any{"id": "hijacked"})

	state, _ := reg.RoomState("ABCDEF")
	assert.Equal(t, "s1", state.Shapes[0].ID())
}

func TestUpdateUnknownShapeIsNoop(t *testing.T) {
	reg := newTestRegistry()
	reg.CreateRoom("ABCDEF", user("u1"))

	reg.UpdateShape("ABCDEF", "ghost", map[string]any{"x": 1.0})

	state, _ := reg.RoomState("ABCDEF")
	assert.Empty(t, state.Shapes)
}

func TestDeleteShape(t *testing.T) {
	reg := newTestRegistry()
	reg.CreateRoom("ABCDEF", user("u1"))
	reg.AddShape("ABCDEF", shape("s1"))
	reg.AddShape("ABCDEF", shape("s2"))

	reg.DeleteShape("ABCDEF", "s1")

	state, _ := reg.RoomState("ABCDEF")
	require.Len(t, state.Shapes, 1)
	assert.Equal(t, "s2", state.Shapes[0].ID())

	// Unknown ids are a no-op.
	reg.DeleteShape("ABCDEF", "ghost")
	state, _ = reg.RoomState("ABCDEF")
	assert.Len(t, state.Shapes, 1)
}

func TestSyncShapesReplacesEverything(t *testing.T) {
	reg := newTestRegistry()
	reg.CreateRoom("ABCDEF", user("u1"))
	reg.AddShape("ABCDEF", shape("s1"))
	reg.AddShape("ABCDEF", shape("s2"))

	reg.SyncShapes("ABCDEF", []models.Shape{shape("s3")})

	state, _ := reg.RoomState("ABCDEF")
	require.Len(t, state.Shapes, 1)
	assert.Equal(t, "s3", state.Shapes[0].ID())

	reg.SyncShapes("ABCDEF", nil)
	state, _ = reg.RoomState("ABCDEF")
	assert.Empty(t, state.Shapes)
}

func TestUpdateUserCursor(t *testing.T) {
	reg := newTestRegistry()
	reg.CreateRoom("ABCDEF", user("u1"))

	reg.UpdateUserCursor("ABCDEF", "u1", models.Cursor{X: 5, Y: 7})

	state, _ := reg.RoomState("ABCDEF")
	require.Len(t, state.Users, 1)
	require.NotNil(t, state.Users[0].Cursor)
	assert.Equal(t, 5.0, state.Users[0].Cursor.X)

	// Cursor moves for departed users are dropped.
	reg.UpdateUserCursor("ABCDEF", "ghost", models.Cursor{X: 1, Y: 1})
}

func TestOperationsOnUnknownRoomAreNoops(t *testing.T) {
	reg := newTestRegistry()

	// None of these may panic or create a room.
	reg.LeaveRoom("NOROOM", "u1")
	reg.AddShape("NOROOM", shape("s1"))
	reg.UpdateShape("NOROOM", "s1", map[string]any{"x": 1.0})
	reg.DeleteShape("NOROOM", "s1")
	reg.SyncShapes("NOROOM", []models.Shape{shape("s1")})
	reg.UpdateUserCursor("NOROOM", "u1", models.Cursor{})

	_, ok := reg.RoomState("NOROOM")
	assert.False(t, ok)
	assert.Equal(t, 0, reg.RoomCount())
}

func TestRoomStateHasNoSideEffects(t *testing.T) {
	reg := newTestRegistry()
	reg.CreateRoom("ABCDEF", user("u1"))
	reg.AddShape("ABCDEF", shape("s1"))

	state, ok := reg.RoomState("ABCDEF")
	require.True(t, ok)

	// Mutating the projection must not touch the authoritative copy.
	state.Shapes[0]["x"] = -1.0
	fresh, _ := reg.RoomState("ABCDEF")
	assert.Equal(t, 10.0, fresh.Shapes[0]["x"])
}

func TestCleanupEventuallyFires(t *testing.T) {
	reg := newTestRegistry()
	reg.CreateRoom("ABCDEF", user("u1"))
	reg.LeaveRoom("ABCDEF", "u1")

	// Still present while the timer is pending.
	_, ok := reg.RoomState("ABCDEF")
	assert.True(t, ok)

	time.Sleep(3 * testCleanupDelay)

	_, ok = reg.RoomState("ABCDEF")
	assert.False(t, ok)
	assert.Equal(t, 0, reg.RoomCount())
}

func TestJoinCancelsCleanup(t *testing.T) {
	reg := newTestRegistry()
	reg.CreateRoom("ABCDEF", user("u1"))
	reg.AddShape("ABCDEF", shape("s1"))
	reg.LeaveRoom("ABCDEF", "u1")

	reg.JoinRoom("ABCDEF", user("u2"))

	time.Sleep(3 * testCleanupDelay)

	state, ok := reg.RoomState("ABCDEF")
	require.True(t, ok, "room must survive a rejoin inside the cleanup delay")
	assert.Len(t, state.Shapes, 1, "shapes must survive the departure")
	require.Len(t, state.Users, 1)
	assert.Equal(t, "u2", state.Users[0].ID)
}

func TestCreateRoomRevivesPendingCleanupRoom(t *testing.T) {
	reg := newTestRegistry()
	reg.CreateRoom("ABCDEF", user("u1"))
	reg.AddShape("ABCDEF", shape("s1"))
	reg.LeaveRoom("ABCDEF", "u1")

	state := reg.CreateRoom("ABCDEF", user("u3"))

	assert.Len(t, state.Shapes, 1, "rejoin semantics: shapes preserved")
	require.Len(t, state.Users, 1)
	assert.Equal(t, "u3", state.Users[0].ID)

	time.Sleep(3 * testCleanupDelay)
	_, ok := reg.RoomState("ABCDEF")
	assert.True(t, ok)
}

// CreateRoom on a room that already has members is what a joiner executes
// after a stale not-found read. It must insert, never replace the user set.
func TestCreateRoomKeepsActiveMembers(t *testing.T) {
	reg := newTestRegistry()
	reg.JoinRoom("ABCDEF", user("u1"))

	state := reg.CreateRoom("ABCDEF", user("u2"))

	require.Len(t, state.Users, 2)
	ids := map[string]bool{}
	for _, u := range state.Users {
		ids[u.ID] = true
	}
	assert.True(t, ids["u1"], "existing member survives a racing create")
	assert.True(t, ids["u2"])

	// u1 is still a live member: cursor moves keep landing.
	reg.UpdateUserCursor("ABCDEF", "u1", models.Cursor{X: 5, Y: 7})
	fresh, _ := reg.RoomState("ABCDEF")
	for _, u := range fresh.Users {
		if u.ID == "u1" {
			require.NotNil(t, u.Cursor)
			assert.Equal(t, 5.0, u.Cursor.X)
		}
	}
}

func TestLeaveReschedulesPendingCleanup(t *testing.T) {
	reg := newTestRegistry()
	reg.CreateRoom("ABCDEF", user("u1"))
	reg.LeaveRoom("ABCDEF", "u1")

	// Half the delay later, a redundant leave restarts the clock.
	time.Sleep(testCleanupDelay / 2)
	reg.LeaveRoom("ABCDEF", "u1")

	time.Sleep(3 * testCleanupDelay)
	_, ok := reg.RoomState("ABCDEF")
	assert.False(t, ok)
}

// The two-user departure scenario: both leave, cleanup is scheduled, and a
// third user joining inside the delay finds the shapes intact.
func TestDepartureAndRejoinScenario(t *testing.T) {
	reg := newTestRegistry()

	reg.CreateRoom("ABCDEF", user("u1"))
	state := reg.JoinRoom("ABCDEF", user("u2"))
	require.Len(t, state.Users, 2)

	reg.AddShape("ABCDEF", shape("s1"))
	reg.AddShape("ABCDEF", shape("s2"))

	reg.LeaveRoom("ABCDEF", "u1")
	reg.LeaveRoom("ABCDEF", "u2")

	state, ok := reg.RoomState("ABCDEF")
	require.True(t, ok)
	assert.Empty(t, state.Users)

	joined := reg.JoinRoom("ABCDEF", user("u3"))
	require.Len(t, joined.Users, 1)
	assert.Equal(t, "u3", joined.Users[0].ID)
	assert.Len(t, joined.Shapes, 2, "shapes unchanged from before either departure")
}

func TestConcurrentJoinsAndLeaves(t *testing.T) {
	reg := newTestRegistry()
	var wg sync.WaitGroup

	// All 32 join concurrently; several of them race the initial create.
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("u%d", i)
			reg.JoinRoom("ABCDEF", user(id))
			reg.AddShape("ABCDEF", shape(fmt.Sprintf("s%d", i)))
		}(i)
	}
	wg.Wait()

	// No join may be lost, whichever goroutine won the create.
	state, ok := reg.RoomState("ABCDEF")
	require.True(t, ok)
	assert.Len(t, state.Users, 32)
	assert.Len(t, state.Shapes, 32)

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reg.LeaveRoom("ABCDEF", fmt.Sprintf("u%d", i))
		}(i)
	}
	wg.Wait()

	// Every user left; the pending cleanup reaps the room.
	time.Sleep(3 * testCleanupDelay)
	_, ok = reg.RoomState("ABCDEF")
	assert.False(t, ok)
}

type recordingAnnouncer struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingAnnouncer) record(s string) {
	r.mu.Lock()
	r.events = append(r.events, s)
	r.mu.Unlock()
}

func (r *recordingAnnouncer) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recordingAnnouncer) RoomCreated(roomID string)        { r.record("created:" + roomID) }
func (r *recordingAnnouncer) RoomDestroyed(roomID string)      { r.record("destroyed:" + roomID) }
func (r *recordingAnnouncer) UserJoined(roomID, userID string) { r.record("joined:" + userID) }
func (r *recordingAnnouncer) UserLeft(roomID, userID string)   { r.record("left:" + userID) }

func TestAnnouncerReceivesLifecycle(t *testing.T) {
	ann := &recordingAnnouncer{}
	reg := New(testCleanupDelay, nil, ann)

	reg.JoinRoom("ABCDEF", user("u1"))
	reg.LeaveRoom("ABCDEF", "u1")
	time.Sleep(3 * testCleanupDelay)

	events := ann.list()
	assert.Equal(t, []string{"created:ABCDEF", "joined:u1", "left:u1", "destroyed:ABCDEF"}, events)
}
