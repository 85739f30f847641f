package dify

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/petal-labs/dify-go/internal/normalize"
	"github.com/petal-labs/dify-go/transport"
)

// ConversationsRequest pages through a user's conversations, newest first.
type ConversationsRequest struct {
	User string

	// LastID is the id of the last conversation on the current page.
	LastID string

	// Limit is the page size, 1 to 100. Zero uses the service default.
	Limit int

	// Pinned restricts the list to pinned (true) or unpinned (false)
	// conversations. Nil lists both.
	Pinned *bool
}

// Conversation summarises a conversation.
type Conversation struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Inputs       map[string]any `json:"inputs"`
	Status       string         `json:"status,omitempty"`
	Introduction string         `json:"introduction"`
	CreatedAt    int64          `json:"created_at"`
	UpdatedAt    int64          `json:"updated_at,omitempty"`
}

// ConversationsPage is one page of conversations.
type ConversationsPage struct {
	Limit   int            `json:"limit"`
	HasMore bool           `json:"has_more"`
	Data    []Conversation `json:"data"`
}

// Conversations lists the user's conversations.
func (c *Client) Conversations(ctx context.Context, req *ConversationsRequest) (*ConversationsPage, error) {
	if req == nil {
		return nil, required("request", "")
	}
	if err := firstError(required("user", req.User), pageLimit(req.Limit)); err != nil {
		return nil, err
	}

	q := url.Values{"user": {req.User}}
	if req.LastID != "" {
		q.Set("last_id", req.LastID)
	}
	if req.Limit != 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Pinned != nil {
		q.Set("pinned", strconv.FormatBool(*req.Pinned))
	}

	var out ConversationsPage
	err := c.tr.Do(ctx, &transport.Request{Method: http.MethodGet, Path: "/v1/conversations", Query: q}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RenameRequest renames a conversation. Name may be empty only when
// AutoGenerate is set.
type RenameRequest struct {
	ConversationID string `json:"-"`
	Name           string `json:"name,omitempty"`
	AutoGenerate   bool   `json:"auto_generate"`
	User           string `json:"user"`
}

// RenameConversation sets or generates a conversation's name and returns the
// updated conversation.
func (c *Client) RenameConversation(ctx context.Context, req *RenameRequest) (*Conversation, error) {
	if req == nil {
		return nil, required("request", "")
	}
	if err := firstError(required("conversation_id", req.ConversationID), required("user", req.User)); err != nil {
		return nil, err
	}
	if !req.AutoGenerate {
		if err := required("name", req.Name); err != nil {
			return nil, normalize.Invalid("name", "is required unless auto_generate is set")
		}
	}

	var out Conversation
	err := c.tr.Do(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   "/v1/conversations/" + segment(req.ConversationID) + "/name",
		Route:  "/v1/conversations/{id}/name",
		Body:   transport.JSONBody{Value: req},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConversation deletes a conversation. The service answers either
// 204 No Content or {"result":"success"}; both are success.
func (c *Client) DeleteConversation(ctx context.Context, conversationID, user string) error {
	if err := firstError(required("conversation_id", conversationID), required("user", user)); err != nil {
		return err
	}
	return c.tr.Do(ctx, &transport.Request{
		Method: http.MethodDelete,
		Path:   "/v1/conversations/" + segment(conversationID),
		Route:  "/v1/conversations/{id}",
		Body:   transport.JSONBody{Value: userPayload{User: user}},
	}, &resultResponse{})
}
