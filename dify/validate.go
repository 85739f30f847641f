package dify

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/petal-labs/dify-go/internal/normalize"
)

const (
	minPageLimit = 1
	maxPageLimit = 100
)

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return normalize.Invalid(field, "is required")
	}
	return nil
}

// firstError returns the first non-nil error.
func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// pageLimit checks an optional page size; zero means the service default.
func pageLimit(limit int) error {
	if limit == 0 {
		return nil
	}
	if limit < minPageLimit || limit > maxPageLimit {
		return normalize.Invalid("limit", fmt.Sprintf("must be between %d and %d", minPageLimit, maxPageLimit))
	}
	return nil
}

func validateFiles(files []InputFile) error {
	for i, f := range files {
		field := fmt.Sprintf("files[%d]", i)
		if !f.Type.valid() {
			return normalize.Invalid(field+".type", fmt.Sprintf("has unsupported value %q", f.Type))
		}
		switch f.TransferMethod {
		case TransferRemoteURL:
			if err := required(field+".url", f.URL); err != nil {
				return err
			}
		case TransferLocalFile:
			if err := required(field+".upload_file_id", f.UploadFileID); err != nil {
				return err
			}
		default:
			return normalize.Invalid(field+".transfer_method", fmt.Sprintf("has unsupported value %q", f.TransferMethod))
		}
	}
	return nil
}

// segment escapes an identifier for use as one path segment.
func segment(id string) string {
	return url.PathEscape(id)
}

// knownSize returns the remaining size of r when it can be found cheaply.
func knownSize(r io.Reader) (int64, bool) {
	switch v := r.(type) {
	case interface{ Len() int }:
		return int64(v.Len()), true
	case *os.File:
		info, err := v.Stat()
		if err != nil || !info.Mode().IsRegular() {
			return 0, false
		}
		pos, err := v.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, false
		}
		return info.Size() - pos, true
	}
	return 0, false
}

// sizeLimit fails the read that takes the total past max.
type sizeLimit struct {
	r     io.Reader
	n     int64
	max   int64
	field string
}

func (l *sizeLimit) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.n += int64(n)
	if l.n > l.max {
		return 0, tooLarge(l.field, l.max)
	}
	return n, err
}

func tooLarge(field string, max int64) error {
	return normalize.Invalid(field, fmt.Sprintf("exceeds the %d MiB limit", max>>20))
}
