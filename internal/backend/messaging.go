package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"favorsweb/internal/domain"
)

type MessagingAPI struct{ c *Client }

func (m *MessagingAPI) CreateConversation(ctx context.Context, req domain.CreateConversationRequest) (domain.Conversation, error) {
	if err := req.Validate(); err != nil {
		return domain.Conversation{}, err
	}
	return doJSON[domain.Conversation](ctx, m.c, call{
		op:     "conversations.create",
		method: http.MethodPost,
		path:   "/conversations",
		body:   req.Normalize(),
		auth:   true,
	})
}

// Messages returns the messages of a conversation ordered oldest first.
func (m *MessagingAPI) Messages(ctx context.Context, conversationID int64) ([]domain.Message, error) {
	raw, err := doJSON[json.RawMessage](ctx, m.c, call{
		op:     "conversations.messages",
		method: http.MethodGet,
		path:   fmt.Sprintf("/conversations/%d/messages", conversationID),
		auth:   true,
	})
	if err != nil {
		return nil, err
	}
	msgs, err := decodeMessages(raw)
	if err != nil {
		return nil, fmt.Errorf("conversations.messages: decode response: %w", err)
	}
	domain.SortMessages(msgs)
	return msgs, nil
}

// decodeMessages accepts a bare array or a page envelope {"content": [...]}.
func decodeMessages(raw []byte) ([]domain.Message, error) {
	list := raw
	if content := gjson.GetBytes(raw, "content"); content.IsArray() {
		list = []byte(content.Raw)
	}
	if len(list) == 0 || gjson.ParseBytes(list).Type == gjson.Null {
		return []domain.Message{}, nil
	}
	var msgs []domain.Message
	if err := json.Unmarshal(list, &msgs); err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return msgs, nil
}

func (m *MessagingAPI) Send(ctx context.Context, req domain.SendMessageRequest) (domain.Message, error) {
	if err := req.Validate(); err != nil {
		return domain.Message{}, err
	}
	return doJSON[domain.Message](ctx, m.c, call{
		op:     "conversations.send",
		method: http.MethodPost,
		path:   "/conversations/messages",
		body:   req,
		auth:   true,
	})
}

type NotificationsAPI struct{ c *Client }

func (n *NotificationsAPI) List(ctx context.Context) ([]domain.Notification, error) {
	return doJSON[[]domain.Notification](ctx, n.c, call{
		op:     "notifications.list",
		method: http.MethodGet,
		path:   "/notifications",
		auth:   true,
	})
}

func (n *NotificationsAPI) MarkRead(ctx context.Context, id int64) error {
	return n.c.do(ctx, call{
		op:     "notifications.read",
		method: http.MethodPut,
		path:   fmt.Sprintf("/notifications/%d/read", id),
		auth:   true,
	}, nil)
}
