package dify

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petal-labs/dify-go/core"
)

const parametersJSON = `{
	"opening_statement": "Hi, I plan trips.",
	"suggested_questions": ["Where to?"],
	"suggested_questions_after_answer": {"enabled": true},
	"speech_to_text": {"enabled": false},
	"text_to_speech": {"enabled": false},
	"retriever_resource": {"enabled": true},
	"annotation_reply": {"enabled": false},
	"user_input_form": [
		{"text-input": {"label": "City", "variable": "city", "required": true, "max_length": 48, "default": ""}},
		{"paragraph": {"label": "Notes", "variable": "notes", "required": false}},
		{"select": {"label": "Budget", "variable": "budget", "required": true, "options": ["low", "high"], "default": "low"}}
	],
	"file_upload": {"image": {"enabled": true, "number_limits": 3, "transfer_methods": ["remote_url", "local_file"]}},
	"system_parameters": {"image_file_size_limit": "10", "file_size_limit": 15}
}`

func TestParameters(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/parameters", r.URL.Path)
		assert.Equal(t, "u-1", r.URL.Query().Get("user"))
		writeJSON(w, http.StatusOK, parametersJSON)
	})

	params, err := client.Parameters(context.Background(), "u-1")
	require.NoError(t, err)

	assert.Equal(t, "Hi, I plan trips.", params.OpeningStatement)
	assert.True(t, params.SuggestedQuestionsAfterAnswer.Enabled)
	require.Len(t, params.UserInputForm, 3)

	city := params.UserInputForm[0]
	assert.Equal(t, FormTextInput, city.Type)
	assert.Equal(t, "city", city.Variable)
	assert.Equal(t, 48, city.MaxLength)
	assert.True(t, city.Required)

	assert.Equal(t, FormParagraph, params.UserInputForm[1].Type)

	budget := params.UserInputForm[2]
	assert.Equal(t, FormSelect, budget.Type)
	assert.Equal(t, []string{"low", "high"}, budget.Options)
	assert.Equal(t, "low", budget.Default)

	require.NotNil(t, params.FileUpload.Image)
	assert.Equal(t, 3, params.FileUpload.Image.NumberLimits)
	assert.Equal(t, []TransferMethod{TransferRemoteURL, TransferLocalFile}, params.FileUpload.Image.TransferMethods)

	assert.Equal(t, json.Number("10"), params.SystemParameters.ImageFileSizeLimit)
	assert.Equal(t, json.Number("15"), params.SystemParameters.FileSizeLimit)
}

func TestFormFieldJSON(t *testing.T) {
	field := FormField{Type: FormNumber, Label: "Days", Variable: "days", Required: true}
	b, err := json.Marshal(field)
	require.NoError(t, err)
	assert.JSONEq(t, `{"number":{"label":"Days","variable":"days","required":true}}`, string(b))

	var back FormField
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, field, back)

	_, err = json.Marshal(FormField{Label: "untyped"})
	assert.Error(t, err)

	err = json.Unmarshal([]byte(`{"select":{},"paragraph":{}}`), &back)
	assert.ErrorContains(t, err, "exactly one control type")
}

func TestMeta(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/meta", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"tool_icons":{
			"dalle2": "https://cloud.dify.ai/console/api/workspaces/current/tool-provider/builtin/dalle/icon",
			"api_tool": {"background": "#252525", "content": "😁"}
		}}`)
	})

	meta, err := client.Meta(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, meta.ToolIcons, 2)

	dalle := meta.ToolIcons["dalle2"]
	assert.Contains(t, dalle.URL, "/dalle/icon")
	assert.Nil(t, dalle.Emoji)

	api := meta.ToolIcons["api_tool"]
	assert.Empty(t, api.URL)
	require.NotNil(t, api.Emoji)
	assert.Equal(t, "#252525", api.Emoji.Background)
	assert.Equal(t, "😁", api.Emoji.Content)

	b, err := json.Marshal(api)
	require.NoError(t, err)
	assert.JSONEq(t, `{"background":"#252525","content":"😁"}`, string(b))
}

func TestTextToAudio(t *testing.T) {
	audio := []byte("ID3\x03\x00fake-mp3")
	var body map[string]any
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/text-to-audio", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(audio)
	})

	out, err := client.TextToAudio(context.Background(), &TextToAudioRequest{Text: "Hello", User: "u-1"})
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", out.ContentType)
	assert.Equal(t, audio, out.Data)
	assert.Equal(t, map[string]any{"text": "Hello", "user": "u-1"}, body)
}

func TestTextToAudioRejectsNonAudio(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"result":"queued"}`)
	})

	_, err := client.TextToAudio(context.Background(), &TextToAudioRequest{MessageID: "m-1", User: "u-1"})
	require.Error(t, err)
	assert.Equal(t, core.KindDecode, core.KindOf(err))
	assertStatus(t, err, http.StatusOK, "")

	_, err = client.TextToAudio(context.Background(), &TextToAudioRequest{User: "u-1"})
	assertInvalid(t, err, "text or message_id is required")
}
