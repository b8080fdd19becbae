package poll

import (
	"context"
	"strings"
	"time"

	"favorsweb/internal/domain"
)

// MessagingAPI is the part of the backend client a conversation thread needs.
type MessagingAPI interface {
	Messages(ctx context.Context, conversationID int64) ([]domain.Message, error)
	Send(ctx context.Context, req domain.SendMessageRequest) (domain.Message, error)
}

// Thread keeps one conversation's messages fresh.
type Thread struct {
	*Poller[[]domain.Message]

	api            MessagingAPI
	conversationID int64
}

// Messages polls a conversation and publishes its messages oldest first.
func Messages(api MessagingAPI, conversationID int64, interval time.Duration, onUpdate func([]domain.Message)) *Thread {
	t := &Thread{api: api, conversationID: conversationID}
	t.Poller = New(interval, t.fetch, onUpdate)
	return t
}

func (t *Thread) ConversationID() int64 { return t.conversationID }

func (t *Thread) fetch(ctx context.Context) ([]domain.Message, error) {
	msgs, err := t.api.Messages(ctx, t.conversationID)
	if err != nil {
		return nil, err
	}
	domain.SortMessages(msgs)
	return msgs, nil
}

// SendAndRefresh posts body to the conversation and then re-fetches the
// thread. The sent message shows up only through the re-fetch.
func (t *Thread) SendAndRefresh(ctx context.Context, body string) (domain.Message, error) {
	msg, err := t.api.Send(ctx, domain.SendMessageRequest{
		ConversationID: t.conversationID,
		Body:           strings.TrimSpace(body),
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, t.Refresh(ctx)
}

type NotificationsAPI interface {
	List(ctx context.Context) ([]domain.Notification, error)
}

// Notifications polls the current user's notifications, newest first as
// the backend returns them.
func Notifications(api NotificationsAPI, interval time.Duration, onUpdate func([]domain.Notification)) *Poller[[]domain.Notification] {
	return New(interval, api.List, onUpdate)
}
