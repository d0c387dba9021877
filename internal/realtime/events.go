// Package realtime is the push side of the discussion service: a
// process-scoped hub of per-task rooms. Every successful comment or reaction
// mutation is published to the task's room and fans out to websocket
// subscribers, with an optional Redis pub/sub bridge so multiple API
// instances see each other's mutations. Delivery is at-least-once and
// carries no ordering guarantee relative to REST responses; consumers
// reconcile idempotently.
package realtime

import (
	"encoding/json"
	"fmt"

	"taskdeck/api/internal/discussion"
)

type EventName string

const (
	CommentCreated  EventName = "comment:created"
	CommentUpdated  EventName = "comment:updated"
	CommentDeleted  EventName = "comment:deleted"
	ReactionAdded   EventName = "reaction:added"
	ReactionRemoved EventName = "reaction:removed"
)

// Event is the wire envelope for one push message. The payload mirrors the
// matching REST response so both channels describe the same final state.
type Event struct {
	Name    EventName       `json:"event"`
	TaskID  int64           `json:"taskId"`
	Payload json.RawMessage `json:"payload"`
}

type DeletedPayload struct {
	CommentID int64 `json:"commentId"`
}

type ReactionAddedPayload struct {
	CommentID int64               `json:"commentId"`
	Reaction  discussion.Reaction `json:"reaction"`
}

type ReactionRemovedPayload struct {
	CommentID int64  `json:"commentId"`
	Emoji     string `json:"emoji"`
	UserID    string `json:"userId"`
}

func NewCommentEvent(name EventName, taskID int64, c discussion.Comment) Event {
	payload, _ := json.Marshal(c)
	return Event{Name: name, TaskID: taskID, Payload: payload}
}

func NewDeletedEvent(taskID, commentID int64) Event {
	payload, _ := json.Marshal(DeletedPayload{CommentID: commentID})
	return Event{Name: CommentDeleted, TaskID: taskID, Payload: payload}
}

func NewReactionAddedEvent(taskID, commentID int64, r discussion.Reaction) Event {
	payload, _ := json.Marshal(ReactionAddedPayload{CommentID: commentID, Reaction: r})
	return Event{Name: ReactionAdded, TaskID: taskID, Payload: payload}
}

func NewReactionRemovedEvent(taskID, commentID int64, emoji, userID string) Event {
	payload, _ := json.Marshal(ReactionRemovedPayload{CommentID: commentID, Emoji: emoji, UserID: userID})
	return Event{Name: ReactionRemoved, TaskID: taskID, Payload: payload}
}

// Comment decodes the payload of a comment:created or comment:updated event.
func (e Event) Comment() (discussion.Comment, error) {
	var c discussion.Comment
	if err := json.Unmarshal(e.Payload, &c); err != nil {
		return discussion.Comment{}, fmt.Errorf("decode %s payload: %w", e.Name, err)
	}
	return c, nil
}

// Deleted decodes the payload of a comment:deleted event.
func (e Event) Deleted() (DeletedPayload, error) {
	var p DeletedPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return DeletedPayload{}, fmt.Errorf("decode %s payload: %w", e.Name, err)
	}
	return p, nil
}

// ReactionAdd decodes the payload of a reaction:added event.
func (e Event) ReactionAdd() (ReactionAddedPayload, error) {
	var p ReactionAddedPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return ReactionAddedPayload{}, fmt.Errorf("decode %s payload: %w", e.Name, err)
	}
	return p, nil
}

// ReactionRemove decodes the payload of a reaction:removed event.
func (e Event) ReactionRemove() (ReactionRemovedPayload, error) {
	var p ReactionRemovedPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return ReactionRemovedPayload{}, fmt.Errorf("decode %s payload: %w", e.Name, err)
	}
	return p, nil
}
