// Package sse decodes text/event-stream bodies into frames.
//
// The decoder is an explicit state machine over one internal buffer:
//
//   - accumulate: append the next chunk read from the body, normalising CR and
//     CRLF line endings to LF, including a CRLF pair split across two chunks;
//   - split: look for the blank line that terminates a block;
//   - parse: turn the block's tagged fields into an [Event].
//
// Only one partially received event is held in memory at a time, bounded by
// the configured maximum event size. The decoder performs no reordering, so
// events come out in the order their terminating blank line arrived.
package sse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
)

// DefaultMaxEventSize bounds a single buffered event.
const DefaultMaxEventSize = 1 << 20

// DefaultEventType is used for blocks without an "event:" field.
const DefaultEventType = "message"

const readChunkSize = 4096

// ErrEventTooLarge is returned when a block, terminated or not, exceeds the
// maximum event size.
var ErrEventTooLarge = errors.New("sse: event exceeds maximum size")

var (
	delimiter = []byte("\n\n")
	utf8BOM   = []byte("\xEF\xBB\xBF")
)

// Event is one decoded block.
type Event struct {
	// Type is the "event:" field, or DefaultEventType when absent.
	Type string

	// Data holds the "data:" lines joined with "\n".
	Data []byte

	// ID is the last "id:" field seen in the block.
	ID string

	// Retry is the reconnection time requested by the server, if any.
	Retry time.Duration
}

// Decoder reads events from an io.Reader. A Decoder is owned by a single
// consumer and is not safe for concurrent use.
type Decoder struct {
	r       io.Reader
	chunk   []byte
	buf     []byte
	maxSize int

	pendingCR  bool
	bomChecked bool
	eof        bool
	partial    bool
	lastID     string
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithMaxEventSize overrides DefaultMaxEventSize. Values <= 0 are ignored.
func WithMaxEventSize(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.maxSize = n
		}
	}
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	d := &Decoder{
		r:       r,
		chunk:   make([]byte, readChunkSize),
		maxSize: DefaultMaxEventSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Next returns the next complete event. It returns io.EOF once the body ends
// and no complete block remains. Read errors from the underlying reader are
// returned unchanged; ErrEventTooLarge is wrapped with the buffered size.
func (d *Decoder) Next() (Event, error) {
	for {
		d.stripBOM()

		if idx := bytes.Index(d.buf, delimiter); idx >= 0 {
			if idx > d.maxSize {
				return Event{}, fmt.Errorf("%w (%d bytes)", ErrEventTooLarge, idx)
			}
			ev, ok := d.parse(d.buf[:idx])
			d.consume(idx + len(delimiter))
			if ok {
				return ev, nil
			}
			continue
		}

		if d.eof {
			if len(bytes.TrimSpace(d.buf)) > 0 {
				d.partial = true
			}
			d.buf = d.buf[:0]
			return Event{}, io.EOF
		}

		if len(d.buf) > d.maxSize {
			return Event{}, fmt.Errorf("%w (%d bytes buffered)", ErrEventTooLarge, len(d.buf))
		}

		n, err := d.r.Read(d.chunk)
		if n > 0 {
			d.accumulate(d.chunk[:n])
		}
		if err == io.EOF {
			d.eof = true
			continue
		}
		if err != nil {
			return Event{}, err
		}
	}
}

// Partial reports whether the body ended with an unterminated block, which
// was discarded.
func (d *Decoder) Partial() bool {
	return d.partial
}

// LastEventID returns the most recent id field seen on the stream.
func (d *Decoder) LastEventID() string {
	return d.lastID
}

// Buffered returns the number of bytes received but not yet decoded.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// accumulate appends p to the buffer with line endings normalised to LF.
func (d *Decoder) accumulate(p []byte) {
	for _, c := range p {
		if d.pendingCR {
			d.pendingCR = false
			if c == '\n' {
				continue
			}
		}
		if c == '\r' {
			d.buf = append(d.buf, '\n')
			d.pendingCR = true
			continue
		}
		d.buf = append(d.buf, c)
	}
}

// consume drops the first n bytes of the buffer, reusing its storage.
func (d *Decoder) consume(n int) {
	rest := copy(d.buf, d.buf[n:])
	d.buf = d.buf[:rest]
}

// stripBOM removes a leading byte order mark once enough bytes are known.
func (d *Decoder) stripBOM() {
	if d.bomChecked {
		return
	}
	if len(d.buf) < len(utf8BOM) && !d.eof && bytes.HasPrefix(utf8BOM, d.buf) {
		return
	}
	d.bomChecked = true
	if bytes.HasPrefix(d.buf, utf8BOM) {
		d.consume(len(utf8BOM))
	}
}

// parse decodes one block. Blocks without event or data fields (comments,
// bare ids, keep-alive newlines) report false and are skipped.
func (d *Decoder) parse(block []byte) (Event, bool) {
	var (
		ev       Event
		data     [][]byte
		dispatch bool
	)

	for len(block) > 0 {
		line := block
		if i := bytes.IndexByte(block, '\n'); i >= 0 {
			line, block = block[:i], block[i+1:]
		} else {
			block = nil
		}
		if len(line) == 0 || line[0] == ':' {
			continue
		}

		field, value := line, []byte(nil)
		if i := bytes.IndexByte(line, ':'); i >= 0 {
			field, value = line[:i], line[i+1:]
			if len(value) > 0 && value[0] == ' ' {
				value = value[1:]
			}
		}

		switch string(field) {
		case "event":
			ev.Type = string(value)
			dispatch = true
		case "data":
			data = append(data, value)
			dispatch = true
		case "id":
			if bytes.IndexByte(value, 0) < 0 {
				ev.ID = string(value)
				d.lastID = ev.ID
			}
		case "retry":
			if ms, err := strconv.Atoi(string(value)); err == nil && ms >= 0 {
				ev.Retry = time.Duration(ms) * time.Millisecond
			}
		}
	}

	if !dispatch {
		return Event{}, false
	}
	if ev.Type == "" {
		ev.Type = DefaultEventType
	}
	ev.Data = bytes.Join(data, []byte("\n"))
	return ev, true
}
