package dify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/petal-labs/dify-go/internal/normalize"
	"github.com/petal-labs/dify-go/transport"
)

// Rating is end-user feedback on a message. RatingNone revokes earlier feedback.
type Rating string

const (
	RatingLike    Rating = "like"
	RatingDislike Rating = "dislike"
	RatingNone    Rating = ""
)

// MarshalJSON encodes RatingNone as null.
func (r Rating) MarshalJSON() ([]byte, error) {
	if r == RatingNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(r))
}

// UnmarshalJSON accepts null as RatingNone.
func (r *Rating) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = RatingNone
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*r = Rating(s)
	return nil
}

func (r Rating) valid() bool {
	return r == RatingLike || r == RatingDislike || r == RatingNone
}

// FeedbackRequest rates a message.
type FeedbackRequest struct {
	MessageID string `json:"-"`
	Rating    Rating `json:"rating"`
	User      string `json:"user"`

	// Content is optional free-text feedback.
	Content string `json:"content,omitempty"`
}

// MessageFeedback records a like or dislike, or revokes one with RatingNone.
func (c *Client) MessageFeedback(ctx context.Context, req *FeedbackRequest) error {
	if req == nil {
		return required("request", "")
	}
	if err := firstError(required("message_id", req.MessageID), required("user", req.User)); err != nil {
		return err
	}
	if !req.Rating.valid() {
		return normalize.Invalid("rating", fmt.Sprintf("must be like, dislike or empty, got %q", string(req.Rating)))
	}
	return c.tr.Do(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   "/v1/messages/" + segment(req.MessageID) + "/feedbacks",
		Route:  "/v1/messages/{id}/feedbacks",
		Body:   transport.JSONBody{Value: req},
	}, &resultResponse{})
}

// SuggestedQuestions returns follow-up questions for a message.
func (c *Client) SuggestedQuestions(ctx context.Context, messageID, user string) ([]string, error) {
	if err := firstError(required("message_id", messageID), required("user", user)); err != nil {
		return nil, err
	}
	var out struct {
		Result string   `json:"result"`
		Data   []string `json:"data"`
	}
	err := c.tr.Do(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   "/v1/messages/" + segment(messageID) + "/suggested",
		Route:  "/v1/messages/{id}/suggested",
		Query:  url.Values{"user": {user}},
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

// MessagesRequest pages through a conversation's history, newest first.
type MessagesRequest struct {
	ConversationID string
	User           string

	// FirstID is the id of the first message on the current page; the next
	// page holds older messages. Empty fetches the newest page.
	FirstID string

	// Limit is the page size, 1 to 100. Zero uses the service default of 20.
	Limit int
}

// Message is one exchange in a conversation's history.
type Message struct {
	ID                 string              `json:"id"`
	ConversationID     string              `json:"conversation_id"`
	Inputs             map[string]any      `json:"inputs"`
	Query              string              `json:"query"`
	Answer             string              `json:"answer"`
	MessageFiles       []MessageFile       `json:"message_files"`
	Feedback           *MessageRating      `json:"feedback"`
	RetrieverResources []RetrieverResource `json:"retriever_resources"`
	CreatedAt          int64               `json:"created_at"`
}

// MessageFile is a file attached to a historical message.
type MessageFile struct {
	ID        string    `json:"id"`
	Type      FileType  `json:"type"`
	URL       string    `json:"url"`
	BelongsTo BelongsTo `json:"belongs_to"`
}

// MessageRating is the feedback recorded on a message.
type MessageRating struct {
	Rating Rating `json:"rating"`
}

// MessagesPage is one page of history.
type MessagesPage struct {
	Limit   int       `json:"limit"`
	HasMore bool      `json:"has_more"`
	Data    []Message `json:"data"`
}

// Messages returns one page of a conversation's history.
func (c *Client) Messages(ctx context.Context, req *MessagesRequest) (*MessagesPage, error) {
	if req == nil {
		return nil, required("request", "")
	}
	if err := firstError(
		required("conversation_id", req.ConversationID),
		required("user", req.User),
		pageLimit(req.Limit),
	); err != nil {
		return nil, err
	}

	q := url.Values{
		"conversation_id": {req.ConversationID},
		"user":            {req.User},
	}
	if req.FirstID != "" {
		q.Set("first_id", req.FirstID)
	}
	if req.Limit != 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}

	var out MessagesPage
	err := c.tr.Do(ctx, &transport.Request{Method: http.MethodGet, Path: "/v1/messages", Query: q}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
