package domain

import (
	"slices"
	"strings"
)

type ConversationType string

const (
	ConversationDirect     ConversationType = "DIRECT"
	ConversationTaskThread ConversationType = "TASK_THREAD"
)

type Conversation struct {
	ID             int64            `json:"id"`
	Type           ConversationType `json:"type"`
	TaskAssignment *TaskAssignment  `json:"taskAssignment,omitempty"`
	Participants   []User           `json:"participants"`
	CreatedAt      Timestamp        `json:"createdAt"`
}

type CreateConversationRequest struct {
	Type             ConversationType `json:"type"`
	TaskAssignmentID *int64           `json:"taskAssignmentId,omitempty"`
	ParticipantIDs   []int64          `json:"participantIds"`
}

// Normalize sorts participant ids ascending and drops duplicates.
func (r CreateConversationRequest) Normalize() CreateConversationRequest {
	ids := slices.Clone(r.ParticipantIDs)
	slices.Sort(ids)
	r.ParticipantIDs = slices.Compact(ids)
	return r
}

func (r CreateConversationRequest) Validate() error {
	fields := map[string]string{}
	n := r.Normalize()
	switch r.Type {
	case ConversationDirect:
		if len(n.ParticipantIDs) != 2 {
			fields["participantIds"] = "direct conversations need exactly two participants"
		}
	case ConversationTaskThread:
		if r.TaskAssignmentID == nil || *r.TaskAssignmentID <= 0 {
			fields["taskAssignmentId"] = "required for task threads"
		}
		if len(n.ParticipantIDs) == 0 {
			fields["participantIds"] = "required"
		}
	default:
		fields["type"] = "must be DIRECT or TASK_THREAD"
	}
	if len(fields) > 0 {
		return NewValidationError(fields)
	}
	return nil
}

type Message struct {
	ID           int64        `json:"id"`
	Conversation Conversation `json:"conversation"`
	Sender       User         `json:"sender"`
	Body         string       `json:"body"`
	CreatedAt    Timestamp    `json:"createdAt"`
}

type SendMessageRequest struct {
	ConversationID int64  `json:"conversationId"`
	Body           string `json:"body"`
}

func (r SendMessageRequest) Validate() error {
	fields := map[string]string{}
	if r.ConversationID <= 0 {
		fields["conversationId"] = "required"
	}
	if strings.TrimSpace(r.Body) == "" {
		fields["body"] = "required"
	}
	if len(fields) > 0 {
		return NewValidationError(fields)
	}
	return nil
}

// SortMessages orders messages by creation time, oldest first. Ties keep
// their backend order.
func SortMessages(msgs []Message) {
	slices.SortStableFunc(msgs, func(a, b Message) int {
		return a.CreatedAt.Compare(b.CreatedAt.Time)
	})
}
