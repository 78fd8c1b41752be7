// Package presence announces room lifecycle over redis pub/sub so sibling
// server instances (and anything else listening) can observe joins, leaves,
// and room creation. It carries identifiers only, never room state, which
// lives exclusively in each instance's memory.
package presence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel is the redis pub/sub channel presence events travel on.
const Channel = "rapidraw:presence"

// Event is one presence announcement.
type Event struct {
	Type       string    `json:"type"` // room_created, room_destroyed, user_joined, user_left
	RoomID     string    `json:"roomId"`
	UserID     string    `json:"userId,omitempty"`
	InstanceID string    `json:"instanceId"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher publishes presence events and logs those arriving from other
// instances. It satisfies registry.Announcer.
type Publisher struct {
	rdb        *redis.Client
	instanceID string
	logger     *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewPublisher connects to redis and starts the subscriber loop.
func NewPublisher(redisAddr string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	ctx, cancel := context.WithCancel(context.Background())
	instanceID := uuid.NewString()
	p := &Publisher{
		rdb:        rdb,
		instanceID: instanceID,
		logger:     logger.With(zap.String("instance_id", instanceID)),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go p.subscribe()
	return p
}

// InstanceID identifies this publisher; its own events are filtered out of
// the subscriber loop.
func (p *Publisher) InstanceID() string { return p.instanceID }

func (p *Publisher) RoomCreated(roomID string)        { p.publish("room_created", roomID, "") }
func (p *Publisher) RoomDestroyed(roomID string)      { p.publish("room_destroyed", roomID, "") }
func (p *Publisher) UserJoined(roomID, userID string) { p.publish("user_joined", roomID, userID) }
func (p *Publisher) UserLeft(roomID, userID string)   { p.publish("user_left", roomID, userID) }

func (p *Publisher) publish(eventType, roomID, userID string) {
	event := Event{
		Type:       eventType,
		RoomID:     roomID,
		UserID:     userID,
		InstanceID: p.instanceID,
		Timestamp:  time.Now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("marshal presence event", zap.Error(err))
		return
	}
	if err := p.rdb.Publish(p.ctx, Channel, data).Err(); err != nil {
		p.logger.Warn("publish presence event", zap.String("type", eventType), zap.Error(err))
	}
}

func (p *Publisher) subscribe() {
	defer close(p.done)
	pubsub := p.rdb.Subscribe(p.ctx, Channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	p.logger.Info("subscribed to presence events")

	for {
		select {
		case <-p.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				p.logger.Warn("unmarshal presence event", zap.Error(err))
				continue
			}
			if event.InstanceID == p.instanceID {
				continue
			}
			p.logger.Info("presence event from peer instance",
				zap.String("type", event.Type),
				zap.String("room_id", event.RoomID),
				zap.String("user_id", event.UserID),
				zap.String("peer_instance_id", event.InstanceID))
		}
	}
}

// Close stops the subscriber loop and releases the redis client.
func (p *Publisher) Close() error {
	p.cancel()
	<-p.done
	return p.rdb.Close()
}
