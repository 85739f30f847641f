package dify

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageFeedback(t *testing.T) {
	var bodies []string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages/m%2F1/feedbacks", r.URL.EscapedPath())
		var raw json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		bodies = append(bodies, string(raw))
		writeJSON(w, http.StatusOK, `{"result":"success"}`)
	})
	ctx := context.Background()

	require.NoError(t, client.MessageFeedback(ctx, &FeedbackRequest{MessageID: "m/1", Rating: RatingLike, User: "u-1", Content: "great"}))
	require.NoError(t, client.MessageFeedback(ctx, &FeedbackRequest{MessageID: "m/1", Rating: RatingNone, User: "u-1"}))

	require.Len(t, bodies, 2)
	assert.JSONEq(t, `{"rating":"like","user":"u-1","content":"great"}`, bodies[0])
	assert.JSONEq(t, `{"rating":null,"user":"u-1"}`, bodies[1])
}

func TestMessageFeedbackValidation(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"result":"success"}`)
	})
	ctx := context.Background()

	assertInvalid(t, client.MessageFeedback(ctx, nil), "request")
	assertInvalid(t, client.MessageFeedback(ctx, &FeedbackRequest{User: "u-1"}), "message_id")
	assertInvalid(t, client.MessageFeedback(ctx, &FeedbackRequest{MessageID: "m-1", User: "u-1", Rating: "meh"}), "rating")
	assert.Zero(t, calls.Load())
}

func TestRatingJSON(t *testing.T) {
	var got MessageRating
	require.NoError(t, json.Unmarshal([]byte(`{"rating":null}`), &got))
	assert.Equal(t, RatingNone, got.Rating)

	require.NoError(t, json.Unmarshal([]byte(`{"rating":"dislike"}`), &got))
	assert.Equal(t, RatingDislike, got.Rating)
}

func TestSuggestedQuestions(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/messages/m-1/suggested", r.URL.Path)
		assert.Equal(t, "u-1", r.URL.Query().Get("user"))
		writeJSON(w, http.StatusOK, `{"result":"success","data":["Why?","How?"]}`)
	})

	questions, err := client.SuggestedQuestions(context.Background(), "m-1", "u-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Why?", "How?"}, questions)

	_, err = client.SuggestedQuestions(context.Background(), "m-1", "")
	assertInvalid(t, err, "user")
}

func TestMessages(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "c-1", q.Get("conversation_id"))
		assert.Equal(t, "u-1", q.Get("user"))
		assert.Equal(t, "m-9", q.Get("first_id"))
		assert.Equal(t, "5", q.Get("limit"))
		writeJSON(w, http.StatusOK, `{
			"limit": 5,
			"has_more": true,
			"data": [{
				"id": "m-8",
				"conversation_id": "c-1",
				"inputs": {},
				"query": "hi",
				"answer": "hello",
				"message_files": [{"id": "f-1", "type": "image", "url": "https://example.com/a.png", "belongs_to": "user"}],
				"feedback": {"rating": "like"},
				"retriever_resources": [],
				"created_at": 100
			}]
		}`)
	})

	page, err := client.Messages(context.Background(), &MessagesRequest{ConversationID: "c-1", User: "u-1", FirstID: "m-9", Limit: 5})
	require.NoError(t, err)
	assert.True(t, page.HasMore)
	require.Len(t, page.Data, 1)

	msg := page.Data[0]
	assert.Equal(t, "hello", msg.Answer)
	require.Len(t, msg.MessageFiles, 1)
	assert.Equal(t, BelongsToUser, msg.MessageFiles[0].BelongsTo)
	require.NotNil(t, msg.Feedback)
	assert.Equal(t, RatingLike, msg.Feedback.Rating)
}

func TestMessagesValidation(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{}`)
	})
	ctx := context.Background()

	for _, limit := range []int{-1, 101} {
		_, err := client.Messages(ctx, &MessagesRequest{ConversationID: "c-1", User: "u-1", Limit: limit})
		assertInvalid(t, err, "limit must be between 1 and 100")
	}
	_, err := client.Messages(ctx, &MessagesRequest{User: "u-1"})
	assertInvalid(t, err, "conversation_id")
	assert.Zero(t, calls.Load())
}
