package dify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/petal-labs/dify-go/internal/normalize"
	"github.com/petal-labs/dify-go/transport"
)

const (
	// MaxUploadSize bounds files sent to UploadFile.
	MaxUploadSize = 10 << 20

	// MaxAudioSize bounds files sent to AudioToText.
	MaxAudioSize = 15 << 20
)

// uploadTypes are the image types accepted by UploadFile.
var uploadTypes = []string{"image/png", "image/jpeg", "image/webp", "image/gif"}

// UploadFileRequest uploads an image for use in later messages. The type is
// detected from the content; Filename is informational only.
type UploadFileRequest struct {
	User     string
	Filename string
	Content  io.Reader
}

// UploadedFile describes a stored upload.
type UploadedFile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Extension string `json:"extension"`
	MimeType  string `json:"mime_type"`
	CreatedBy string `json:"created_by"`
	CreatedAt int64  `json:"created_at"`
}

// UploadFile uploads an image (png, jpeg, webp or gif, at most 10 MiB). Use the
// returned ID with UploadedImage.
func (c *Client) UploadFile(ctx context.Context, req *UploadFileRequest) (*UploadedFile, error) {
	if req == nil {
		return nil, required("request", "")
	}
	if err := required("user", req.User); err != nil {
		return nil, err
	}
	part, err := filePart("file", req.Filename, req.Content, MaxUploadSize, isUploadImage, strings.Join(uploadTypes, ", "))
	if err != nil {
		return nil, err
	}

	var out UploadedFile
	err = c.tr.Do(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   "/v1/files/upload",
		Body: &transport.MultipartBody{Parts: []transport.Part{
			part,
			transport.FieldPart{Name: "user", Value: req.User},
		}},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AudioToTextRequest transcribes an audio file.
type AudioToTextRequest struct {
	User     string
	Filename string
	Content  io.Reader
}

// Transcription is the text recognised in an audio file.
type Transcription struct {
	Text string `json:"text"`
}

// AudioToText transcribes speech. Accepted content is any audio type plus
// mp4 and webm containers, at most 15 MiB.
func (c *Client) AudioToText(ctx context.Context, req *AudioToTextRequest) (*Transcription, error) {
	if req == nil {
		return nil, required("request", "")
	}
	if err := required("user", req.User); err != nil {
		return nil, err
	}
	part, err := filePart("file", req.Filename, req.Content, MaxAudioSize, isAudio, "audio, video/mp4, video/webm")
	if err != nil {
		return nil, err
	}

	var out Transcription
	err = c.tr.Do(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   "/v1/audio-to-text",
		Body: &transport.MultipartBody{Parts: []transport.Part{
			part,
			transport.FieldPart{Name: "user", Value: req.User},
		}},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func isUploadImage(m *mimetype.MIME) bool {
	for _, t := range uploadTypes {
		if m.Is(t) {
			return true
		}
	}
	return false
}

func isAudio(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "audio/") || m.Is("video/mp4") || m.Is("video/webm") {
			return true
		}
	}
	return false
}

// filePart sniffs content, checks its type and size, and returns a part that
// streams it. Sizes that cannot be known up front are enforced while sending.
func filePart(name, filename string, content io.Reader, maxSize int64, accept func(*mimetype.MIME) bool, want string) (transport.FilePart, error) {
	if content == nil {
		return transport.FilePart{}, normalize.Invalid(name, "is required")
	}
	if size, ok := knownSize(content); ok {
		if size == 0 {
			return transport.FilePart{}, normalize.Invalid(name, "is empty")
		}
		if size > maxSize {
			return transport.FilePart{}, tooLarge(name, maxSize)
		}
	}

	mime, r, err := transport.Sniff(content)
	if err != nil {
		return transport.FilePart{}, normalize.FromTransport(fmt.Errorf("read %s: %w", name, err), "")
	}
	if !accept(mime) {
		return transport.FilePart{}, normalize.Invalid(name, fmt.Sprintf("has content type %s, want %s", mime.String(), want))
	}

	if filename == "" {
		filename = name + mime.Extension()
	}
	return transport.FilePart{
		Name:        name,
		Filename:    filename,
		ContentType: mime.String(),
		Content:     &sizeLimit{r: r, max: maxSize, field: name},
	}, nil
}
