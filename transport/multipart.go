package transport

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen is how many leading bytes are inspected to detect a content type.
const sniffLen = 3072

// MultipartBody is a multipart/form-data payload. Parts are written in order
// through a pipe while the request is sent, so file content is never fully
// buffered.
type MultipartBody struct {
	Parts []Part
}

// Part is one form part. It is implemented by FieldPart and FilePart.
type Part interface {
	writeTo(mw *multipart.Writer) error
}

// FieldPart is a plain form field.
type FieldPart struct {
	Name  string
	Value string
}

func (p FieldPart) writeTo(mw *multipart.Writer) error {
	if err := mw.WriteField(p.Name, p.Value); err != nil {
		return fmt.Errorf("write field %s: %w", p.Name, err)
	}
	return nil
}

// FilePart is a file form part. When ContentType is empty it is detected from
// the first bytes of Content; the filename extension is never consulted.
type FilePart struct {
	Name        string
	Filename    string
	ContentType string
	Content     io.Reader
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (p FilePart) writeTo(mw *multipart.Writer) error {
	content, contentType := p.Content, p.ContentType
	if contentType == "" {
		mime, r, err := Sniff(content)
		if err != nil {
			return fmt.Errorf("sniff %s: %w", p.Filename, err)
		}
		content, contentType = r, mime.String()
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(p.Name), quoteEscaper.Replace(p.Filename)))
	h.Set("Content-Type", contentType)

	w, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create part %s: %w", p.Name, err)
	}
	if _, err := io.Copy(w, content); err != nil {
		return fmt.Errorf("copy %s: %w", p.Filename, err)
	}
	return nil
}

func (b *MultipartBody) encode() (*encodedBody, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	failed := &bodyError{}

	go func() {
		err := b.write(mw)
		if err != nil {
			failed.set(err)
		}
		pw.CloseWithError(err)
	}()

	return &encodedBody{
		reader:      pr,
		contentType: mw.FormDataContentType(),
		failure:     failed.get,
	}, nil
}

func (b *MultipartBody) write(mw *multipart.Writer) error {
	for _, part := range b.Parts {
		if err := part.writeTo(mw); err != nil {
			return err
		}
	}
	return mw.Close()
}

// Sniff detects the content type of r from its first bytes. The returned
// reader yields the full content, including the inspected prefix.
func Sniff(r io.Reader) (*mimetype.MIME, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, nil, err
	}
	head = head[:n]
	return mimetype.Detect(head), io.MultiReader(bytes.NewReader(head), r), nil
}
