package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// subscriberBuffer bounds how far a slow consumer may lag before events are
// dropped for it. A dropped event is recovered by the consumer's next full
// reload; the reconciler tolerates the gap.
const subscriberBuffer = 64

// Hub owns the per-task rooms. Rooms are reference-counted by their
// subscribers: the first Subscribe for a task opens the room (and its Redis
// subscription when a bridge client is configured), the last Close tears it
// down. One hub exists per process, owned by the service, not by any one
// request.
type Hub struct {
	rdb    *redis.Client // nil disables the cross-instance bridge
	prefix string

	mu    sync.Mutex
	rooms map[int64]*room
}

type room struct {
	subs   map[*Subscriber]struct{}
	pubsub *redis.PubSub
}

// Subscriber is one consumer of a task room. Close must run on every exit
// path of the consumer; leaking a subscriber keeps the room (and its Redis
// subscription) alive.
type Subscriber struct {
	hub    *Hub
	taskID int64
	ch     chan Event
	once   sync.Once
}

func (s *Subscriber) Events() <-chan Event { return s.ch }

func (s *Subscriber) Close() {
	s.once.Do(func() { s.hub.release(s) })
}

// NewHub creates a hub. rdb may be nil for single-instance deployments; the
// hub then fans out in-process only.
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		rdb:    rdb,
		prefix: "taskdeck:room:",
		rooms:  make(map[int64]*room),
	}
}

func (h *Hub) channel(taskID int64) string {
	return fmt.Sprintf("%s%d", h.prefix, taskID)
}

// Subscribe joins the room for taskID, opening it if this is the first
// subscriber.
func (h *Hub) Subscribe(ctx context.Context, taskID int64) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	rm, ok := h.rooms[taskID]
	if !ok {
		rm = &room{subs: make(map[*Subscriber]struct{})}
		if h.rdb != nil {
			rm.pubsub = h.rdb.Subscribe(ctx, h.channel(taskID))
			go h.bridgeLoop(taskID, rm.pubsub)
		}
		h.rooms[taskID] = rm
	}

	sub := &Subscriber{hub: h, taskID: taskID, ch: make(chan Event, subscriberBuffer)}
	rm.subs[sub] = struct{}{}
	return sub
}

func (h *Hub) release(sub *Subscriber) {
	h.mu.Lock()
	rm, ok := h.rooms[sub.taskID]
	if ok {
		delete(rm.subs, sub)
		if len(rm.subs) == 0 {
			delete(h.rooms, sub.taskID)
		} else {
			rm = nil
		}
	}
	h.mu.Unlock()

	close(sub.ch)
	if rm != nil && rm.pubsub != nil {
		_ = rm.pubsub.Close()
	}
}

// Publish sends an event to the task's room. With a bridge configured the
// event goes through Redis so every instance's room sees it; otherwise it
// fans out in-process. Publishing to a room with no subscribers is a no-op.
func (h *Hub) Publish(ctx context.Context, e Event) {
	if h.rdb != nil {
		payload, err := json.Marshal(e)
		if err != nil {
			log.Printf("realtime: marshal event %s: %v", e.Name, err)
			return
		}
		if err := h.rdb.Publish(ctx, h.channel(e.TaskID), payload).Err(); err != nil {
			log.Printf("realtime: publish %s to task %d: %v", e.Name, e.TaskID, err)
		}
		return
	}
	h.fanOut(e)
}

func (h *Hub) bridgeLoop(taskID int64, pubsub *redis.PubSub) {
	for msg := range pubsub.Channel() {
		var e Event
		if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
			log.Printf("realtime: drop malformed bridge message for task %d: %v", taskID, err)
			continue
		}
		h.fanOut(e)
	}
}

func (h *Hub) fanOut(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rm, ok := h.rooms[e.TaskID]
	if !ok {
		return
	}
	for sub := range rm.subs {
		select {
		case sub.ch <- e:
		default:
			log.Printf("realtime: subscriber lagging on task %d, dropping %s", e.TaskID, e.Name)
		}
	}
}

// RoomSize reports the subscriber count of a task's room.
func (h *Hub) RoomSize(taskID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	rm, ok := h.rooms[taskID]
	if !ok {
		return 0
	}
	return len(rm.subs)
}

// Close tears down every room.
func (h *Hub) Close() {
	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[int64]*room)
	h.mu.Unlock()

	for _, rm := range rooms {
		if rm.pubsub != nil {
			_ = rm.pubsub.Close()
		}
		for sub := range rm.subs {
			sub.Close()
		}
	}
}
