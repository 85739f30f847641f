package dify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/petal-labs/dify-go/internal/normalize"
	"github.com/petal-labs/dify-go/transport"
)

// Parameters describes how an app is configured: its opening statement,
// enabled features and input form.
type Parameters struct {
	OpeningStatement              string           `json:"opening_statement"`
	SuggestedQuestions            []string         `json:"suggested_questions"`
	SuggestedQuestionsAfterAnswer Toggle           `json:"suggested_questions_after_answer"`
	SpeechToText                  Toggle           `json:"speech_to_text"`
	TextToSpeech                  Toggle           `json:"text_to_speech"`
	RetrieverResource             Toggle           `json:"retriever_resource"`
	AnnotationReply               Toggle           `json:"annotation_reply"`
	UserInputForm                 []FormField      `json:"user_input_form"`
	FileUpload                    FileUpload       `json:"file_upload"`
	SystemParameters              SystemParameters `json:"system_parameters"`
}

// Toggle is an on/off feature flag.
type Toggle struct {
	Enabled bool `json:"enabled"`
}

// Form control types.
const (
	FormTextInput = "text-input"
	FormParagraph = "paragraph"
	FormNumber    = "number"
	FormSelect    = "select"
)

// FormField is one control of an app's input form. On the wire each field is
// an object with a single key naming the control type:
//
//	{"select": {"label": "Tone", "variable": "tone", "required": true, "options": ["formal", "casual"]}}
type FormField struct {
	Type      string   `json:"-"`
	Label     string   `json:"label"`
	Variable  string   `json:"variable"`
	Required  bool     `json:"required"`
	Default   any      `json:"default,omitempty"`
	MaxLength int      `json:"max_length,omitempty"`
	Options   []string `json:"options,omitempty"`
}

// formFieldBody has FormField's fields without its methods.
type formFieldBody FormField

// UnmarshalJSON decodes the single-key wrapper.
func (f *FormField) UnmarshalJSON(b []byte) error {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(b, &wrapper); err != nil {
		return err
	}
	if len(wrapper) != 1 {
		return fmt.Errorf("form field: want exactly one control type, got %d", len(wrapper))
	}
	for kind, raw := range wrapper {
		var body formFieldBody
		if err := json.Unmarshal(raw, &body); err != nil {
			return fmt.Errorf("form field %s: %w", kind, err)
		}
		*f = FormField(body)
		f.Type = kind
	}
	return nil
}

// MarshalJSON encodes the single-key wrapper.
func (f FormField) MarshalJSON() ([]byte, error) {
	if f.Type == "" {
		return nil, errors.New("form field: missing control type")
	}
	return json.Marshal(map[string]formFieldBody{f.Type: formFieldBody(f)})
}

// FileUpload is the app's file upload configuration.
type FileUpload struct {
	Image            *ImageUpload     `json:"image,omitempty"`
	Enabled          bool             `json:"enabled,omitempty"`
	AllowedFileTypes []FileType       `json:"allowed_file_types,omitempty"`
	NumberLimits     int              `json:"number_limits,omitempty"`
	TransferMethods  []TransferMethod `json:"allowed_file_upload_methods,omitempty"`
}

// ImageUpload configures image attachments.
type ImageUpload struct {
	Enabled         bool             `json:"enabled"`
	NumberLimits    int              `json:"number_limits"`
	TransferMethods []TransferMethod `json:"transfer_methods"`
}

// SystemParameters are service-wide limits. Sizes are in MiB; the service
// sends them as numbers or numeric strings.
type SystemParameters struct {
	ImageFileSizeLimit json.Number `json:"image_file_size_limit,omitempty"`
	FileSizeLimit      json.Number `json:"file_size_limit,omitempty"`
	AudioFileSizeLimit json.Number `json:"audio_file_size_limit,omitempty"`
	VideoFileSizeLimit json.Number `json:"video_file_size_limit,omitempty"`
}

// Parameters returns the app's configuration.
func (c *Client) Parameters(ctx context.Context, user string) (*Parameters, error) {
	if err := required("user", user); err != nil {
		return nil, err
	}
	var out Parameters
	err := c.tr.Do(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   "/v1/parameters",
		Query:  url.Values{"user": {user}},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Meta holds app metadata.
type Meta struct {
	ToolIcons map[string]ToolIcon `json:"tool_icons"`
}

// ToolIcon is either an image URL or an emoji on a background colour.
type ToolIcon struct {
	URL   string
	Emoji *Emoji
}

// Emoji is an emoji icon.
type Emoji struct {
	Background string `json:"background"`
	Content    string `json:"content"`
}

// UnmarshalJSON accepts a URL string or an emoji object.
func (t *ToolIcon) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = ToolIcon{URL: s}
		return nil
	}
	var e Emoji
	if err := json.Unmarshal(b, &e); err != nil {
		return fmt.Errorf("tool icon: want string or emoji object: %w", err)
	}
	*t = ToolIcon{Emoji: &e}
	return nil
}

// MarshalJSON writes the same shape it reads.
func (t ToolIcon) MarshalJSON() ([]byte, error) {
	if t.Emoji != nil {
		return json.Marshal(t.Emoji)
	}
	return json.Marshal(t.URL)
}

// Meta returns app metadata such as tool icons.
func (c *Client) Meta(ctx context.Context, user string) (*Meta, error) {
	if err := required("user", user); err != nil {
		return nil, err
	}
	var out Meta
	err := c.tr.Do(ctx, &transport.Request{
		Method: http.MethodGet,
		Path:   "/v1/meta",
		Query:  url.Values{"user": {user}},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// TextToAudioRequest converts text, or the answer of a message, to speech.
// MessageID takes precedence over Text when both are set.
type TextToAudioRequest struct {
	MessageID string `json:"message_id,omitempty"`
	Text      string `json:"text,omitempty"`
	User      string `json:"user"`
	Streaming bool   `json:"streaming,omitempty"`
}

// Audio is synthesised speech.
type Audio struct {
	ContentType string
	Data        []byte
}

// TextToAudio synthesises speech. The response must be an audio type;
// anything else is reported as a Decode error.
func (c *Client) TextToAudio(ctx context.Context, req *TextToAudioRequest) (*Audio, error) {
	if req == nil {
		return nil, required("request", "")
	}
	if err := required("user", req.User); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Text) == "" && strings.TrimSpace(req.MessageID) == "" {
		return nil, normalize.Invalid("text", "or message_id is required")
	}

	resp, err := c.tr.DoRaw(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   "/v1/text-to-audio",
		Body:   transport.JSONBody{Value: req},
	})
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if !strings.HasPrefix(mediaType, "audio/") {
		mapped := normalize.Decode(fmt.Errorf("unexpected content type %q", contentType), resp.Body, resp.RequestID)
		mapped.HTTPStatus = resp.StatusCode
		return nil, mapped
	}
	return &Audio{ContentType: contentType, Data: resp.Body}, nil
}
