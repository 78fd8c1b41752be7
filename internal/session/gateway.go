package session

import (
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sagar5412/rapidraw/internal/metrics"
	"github.com/sagar5412/rapidraw/internal/models"
	"github.com/sagar5412/rapidraw/internal/registry"
)

// Gateway drives the server side of the event protocol for websocket
// connections. Each connection moves through connected -> in-room ->
// connected; it may be in at most one room at a time, and a disconnect while
// in a room runs the same leave path as an explicit leave_room.
type Gateway struct {
	registry *registry.Registry
	hub      *Hub
	logger   *zap.Logger
}

func NewGateway(reg *registry.Registry, hub *Hub, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{registry: reg, hub: hub, logger: logger}
}

// Hub exposes the connection hub, mainly for tests and handlers.
func (g *Gateway) Hub() *Hub { return g.hub }

// Serve reads events from the connection until it closes. It must be called
// from the connection's own goroutine.
func (g *Gateway) Serve(conn *websocket.Conn) {
	c := NewClient(uuid.NewString(), conn)
	g.ServeClient(c)
}

// ServeClient is Serve with a caller-constructed client, so tests can attach
// send hooks before the loop starts.
func (g *Gateway) ServeClient(c *Client) {
	log := g.logger.With(zap.String("conn_id", c.ID))
	log.Info("connection established")

	// roomID is empty while the connection is not in any room.
	roomID := ""

	defer func() {
		if roomID != "" {
			// Unclean shutdown is normalized into the leave path so there is
			// exactly one cleanup sequence.
			g.leave(c, roomID)
		}
		log.Info("connection closed")
	}()

	for {
		var env models.Envelope
		if err := c.Conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		switch env.Type {
		case models.EventJoinRoom:
			var p models.JoinRoomPayload
			if err := env.Decode(&p); err != nil || p.RoomID == "" {
				continue
			}
			// Joining while already in a room performs the full leave
			// sequence first, so a client never ghosts in two rooms.
			if roomID != "" {
				g.leave(c, roomID)
			}
			roomID = p.RoomID
			g.join(c, roomID, p.User)

		case models.EventLeaveRoom:
			var p models.LeaveRoomPayload
			if err := env.Decode(&p); err != nil || p.RoomID != roomID || roomID == "" {
				continue
			}
			g.leave(c, roomID)
			roomID = ""

		case models.EventCursorMove:
			var p models.CursorMovePayload
			if err := env.Decode(&p); err != nil || !g.inRoom(roomID, p.RoomID) {
				continue
			}
			g.registry.UpdateUserCursor(roomID, c.ID, p.Cursor)
			g.relay(c, roomID, models.EventCursorUpdate, models.CursorUpdate{UserID: c.ID, Cursor: p.Cursor})

		case models.EventShapeAdd:
			var p models.ShapeAddPayload
			if err := env.Decode(&p); err != nil || !g.inRoom(roomID, p.RoomID) {
				continue
			}
			g.registry.AddShape(roomID, p.Shape)
			g.relay(c, roomID, models.EventShapeAdded, p.Shape)

		case models.EventShapeUpdate:
			var p models.ShapeUpdatePayload
			if err := env.Decode(&p); err != nil || !g.inRoom(roomID, p.RoomID) {
				continue
			}
			g.registry.UpdateShape(roomID, p.ShapeID, p.Updates)
			g.relay(c, roomID, models.EventShapeUpdated, models.ShapeUpdated{ShapeID: p.ShapeID, Updates: p.Updates})

		case models.EventShapeDelete:
			var p models.ShapeDeletePayload
			if err := env.Decode(&p); err != nil || !g.inRoom(roomID, p.RoomID) {
				continue
			}
			g.registry.DeleteShape(roomID, p.ShapeID)
			g.relay(c, roomID, models.EventShapeDeleted, p.ShapeID)

		case models.EventShapesSync:
			var p models.ShapesSyncPayload
			if err := env.Decode(&p); err != nil || !g.inRoom(roomID, p.RoomID) {
				continue
			}
			g.registry.SyncShapes(roomID, p.Shapes)
			g.relay(c, roomID, models.EventShapesSynced, p.Shapes)

		default:
			log.Warn("unknown event type", zap.String("type", env.Type))
			c.Send(errEnvelope("unknown_event_type"))
		}
	}
}

// inRoom reports whether an event targeting claimed may be applied. Events
// that reference a room the connection never joined are silently dropped so
// one malformed client cannot affect others.
func (g *Gateway) inRoom(current, claimed string) bool {
	return current != "" && current == claimed
}

// join attaches the connection to the room. The server assigns the user id:
// whatever id the client sent is overwritten with the connection's own, and
// the client learns it from the room_state response rather than a separate
// ack.
//
// The hub attach happens before the registry snapshot. A peer mutation
// relayed in between then reaches the joiner as a duplicate of something
// already in the snapshot, which the idempotent apply rules absorb; the
// reverse order would make it vanish from both.
func (g *Gateway) join(c *Client, roomID string, user models.User) {
	user.ID = c.ID
	g.hub.Join(roomID, c)
	state := g.registry.JoinRoom(roomID, user)

	// Room state goes only to the joiner; everyone else just learns about
	// the new user.
	if env, err := models.NewEnvelope(models.EventRoomState, state); err == nil {
		c.Send(env)
	}
	g.relay(c, roomID, models.EventUserJoined, user)
}

// leave detaches the connection from the room and tells the remaining
// members. Shared by explicit leave_room, join-while-in-room, and disconnect.
func (g *Gateway) leave(c *Client, roomID string) {
	g.registry.LeaveRoom(roomID, c.ID)
	g.hub.Leave(roomID, c)
	g.relay(c, roomID, models.EventUserLeft, c.ID)
}

func (g *Gateway) relay(sender *Client, roomID, eventType string, data any) {
	env, err := models.NewEnvelope(eventType, data)
	if err != nil {
		g.logger.Error("marshal event", zap.String("type", eventType), zap.Error(err))
		return
	}
	metrics.EventsRelayed.WithLabelValues(eventType).Inc()
	g.hub.Broadcast(roomID, sender, env)
}

func errEnvelope(msg string) models.Envelope {
	env, _ := models.NewEnvelope(models.EventError, msg)
	return env
}
