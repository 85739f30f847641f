package dify

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversations(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/v1/conversations", r.URL.Path)
		assert.Equal(t, "u-1", q.Get("user"))
		assert.Equal(t, "c-0", q.Get("last_id"))
		assert.Equal(t, "20", q.Get("limit"))
		assert.Equal(t, "true", q.Get("pinned"))
		writeJSON(w, http.StatusOK, `{"limit":20,"has_more":false,"data":[{"id":"c-1","name":"Trip planning","inputs":{"city":"Oslo"},"status":"normal","introduction":"","created_at":5}]}`)
	})

	pinned := true
	page, err := client.Conversations(context.Background(), &ConversationsRequest{User: "u-1", LastID: "c-0", Limit: 20, Pinned: &pinned})
	require.NoError(t, err)
	assert.False(t, page.HasMore)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Trip planning", page.Data[0].Name)
	assert.Equal(t, "Oslo", page.Data[0].Inputs["city"])
}

func TestConversationsOmitsDefaults(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "u-1", q.Get("user"))
		assert.False(t, q.Has("last_id"))
		assert.False(t, q.Has("limit"))
		assert.False(t, q.Has("pinned"))
		writeJSON(w, http.StatusOK, `{"limit":20,"has_more":false,"data":[]}`)
	})

	page, err := client.Conversations(context.Background(), &ConversationsRequest{User: "u-1"})
	require.NoError(t, err)
	assert.Empty(t, page.Data)

	_, err = client.Conversations(context.Background(), &ConversationsRequest{User: "u-1", Limit: 500})
	assertInvalid(t, err, "limit")
}

func TestRenameConversation(t *testing.T) {
	var body map[string]any
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/conversations/c-1/name", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, `{"id":"c-1","name":"Generated title","created_at":5}`)
	})
	ctx := context.Background()

	_, err := client.RenameConversation(ctx, &RenameRequest{ConversationID: "c-1", User: "u-1"})
	assertInvalid(t, err, "name is required unless auto_generate is set")
	assert.Zero(t, calls.Load())

	conv, err := client.RenameConversation(ctx, &RenameRequest{ConversationID: "c-1", User: "u-1", AutoGenerate: true})
	require.NoError(t, err)
	assert.Equal(t, "Generated title", conv.Name)
	assert.Equal(t, map[string]any{"auto_generate": true, "user": "u-1"}, body)
}

func TestDeleteConversation(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"no content", http.StatusNoContent, ""},
		{"result success", http.StatusOK, `{"result":"success"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodDelete, r.Method)
				assert.Equal(t, "/v1/conversations/c-1", r.URL.Path)
				var body userPayload
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "u-1", body.User)
				if tt.body == "" {
					w.WriteHeader(tt.status)
					return
				}
				writeJSON(w, tt.status, tt.body)
			})

			require.NoError(t, client.DeleteConversation(context.Background(), "c-1", "u-1"))
		})
	}
}

func TestDeleteConversationNotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"code":"not_found","message":"Conversation Not Exists."}`)
	})

	err := client.DeleteConversation(context.Background(), "c-404", "u-1")
	require.Error(t, err)
	assertStatus(t, err, http.StatusNotFound, "not_found")
}
