package models

import "encoding/json"

// Event type constants, shared by client and server. Names are the wire
// protocol; client-originated mutations use the bare form and the server
// relays them to peers in the past-tense form.
const (
	EventJoinRoom    = "join_room"
	EventLeaveRoom   = "leave_room"
	EventCursorMove  = "cursor_move"
	EventShapeAdd    = "shape_add"
	EventShapeUpdate = "shape_update"
	EventShapeDelete = "shape_delete"
	EventShapesSync  = "shapes_sync"

	EventRoomState    = "room_state"
	EventUserJoined   = "user_joined"
	EventUserLeft     = "user_left"
	EventCursorUpdate = "cursor_update"
	EventShapeAdded   = "shape_added"
	EventShapeUpdated = "shape_updated"
	EventShapeDeleted = "shape_deleted"
	EventShapesSynced = "shapes_synced"
	EventError        = "error"
)

// Envelope is the wire frame for every websocket message.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope wraps a payload in an Envelope, marshaling it to JSON.
func NewEnvelope(eventType string, data any) (Envelope, error) {
	if data == nil {
		return Envelope{Type: eventType}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: eventType, Data: raw}, nil
}

// Decode unmarshals the envelope payload into out.
func (e Envelope) Decode(out any) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, out)
}

// Cursor is a participant's pointer position on the shared canvas.
type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// User is a room participant. The server assigns ID on join; a client sends
// an empty id and learns its own identifier from the room_state response.
type User struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Color  string  `json:"color"`
	Cursor *Cursor `json:"cursor,omitempty"`
}

// Shape is an opaque shape record. The sync core reads only its id; geometry
// and style fields belong to the drawing layer and pass through untouched.
type Shape map[string]any

// ID returns the shape's identifier, or "" if it has none.
func (s Shape) ID() string {
	id, _ := s["id"].(string)
	return id
}

// Clone returns a shallow copy of the shape.
func (s Shape) Clone() Shape {
	if s == nil {
		return nil
	}
	out := make(Shape, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Merge applies a shallow merge of updates onto a copy of the shape. The id
// field is never overwritten.
func (s Shape) Merge(updates map[string]any) Shape {
	out := s.Clone()
	for k, v := range updates {
		if k == "id" {
			continue
		}
		out[k] = v
	}
	return out
}

// CloneShapes copies a shape list one level down, so snapshots do not alias
// the live collection.
func CloneShapes(shapes []Shape) []Shape {
	out := make([]Shape, len(shapes))
	for i, s := range shapes {
		out[i] = s.Clone()
	}
	return out
}

// RoomState is the read-only projection sent to a newly joined client.
type RoomState struct {
	RoomID string  `json:"roomId"`
	Users  []User  `json:"users"`
	Shapes []Shape `json:"shapes"`
}

/*** Client -> server payloads ***/

type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
	User   User   `json:"user"`
}

type LeaveRoomPayload struct {
	RoomID string `json:"roomId"`
}

type CursorMovePayload struct {
	RoomID string `json:"roomId"`
	Cursor Cursor `json:"cursor"`
}

type ShapeAddPayload struct {
	RoomID string `json:"roomId"`
	Shape  Shape  `json:"shape"`
}

type ShapeUpdatePayload struct {
	RoomID  string         `json:"roomId"`
	ShapeID string         `json:"shapeId"`
	Updates map[string]any `json:"updates"`
}

type ShapeDeletePayload struct {
	RoomID  string `json:"roomId"`
	ShapeID string `json:"shapeId"`
}

type ShapesSyncPayload struct {
	RoomID string  `json:"roomId"`
	Shapes []Shape `json:"shapes"`
}

/*** Server -> client payloads ***/

// CursorUpdate fans a participant's cursor position out to peers.
type CursorUpdate struct {
	UserID string `json:"userId"`
	Cursor Cursor `json:"cursor"`
}

// ShapeUpdated carries a shallow partial update for one shape.
type ShapeUpdated struct {
	ShapeID string         `json:"shapeId"`
	Updates map[string]any `json:"updates"`
}
