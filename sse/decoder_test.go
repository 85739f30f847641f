package sse

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, d *Decoder) []Event {
	t.Helper()
	var events []Event
	for {
		ev, err := d.Next()
		if err == io.EOF {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func TestDecoderFields(t *testing.T) {
	input := ": keep-alive comment\n" +
		"\n" +
		"data: {\"a\":1}\n" +
		"\n" +
		"event: message_end\n" +
		"id: 42\n" +
		"retry: 1500\n" +
		"data: first\n" +
		"data:second\n" +
		"\n" +
		"id: only-id\n" +
		"\n" +
		"data\n" +
		"\n"

	events := collect(t, NewDecoder(strings.NewReader(input)))
	require.Len(t, events, 3)

	assert.Equal(t, DefaultEventType, events[0].Type)
	assert.Equal(t, `{"a":1}`, string(events[0].Data))

	assert.Equal(t, "message_end", events[1].Type)
	assert.Equal(t, "first\nsecond", string(events[1].Data))
	assert.Equal(t, "42", events[1].ID)
	assert.Equal(t, 1500*time.Millisecond, events[1].Retry)

	assert.Equal(t, DefaultEventType, events[2].Type)
	assert.Empty(t, events[2].Data)
}

func TestDecoderLineEndings(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"lf", "data: one\n\ndata: two\n\n"},
		{"crlf", "data: one\r\n\r\ndata: two\r\n\r\n"},
		{"cr", "data: one\r\rdata: two\r\r"},
		{"mixed", "data: one\r\n\ndata: two\r\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := collect(t, NewDecoder(strings.NewReader(tt.input)))
			require.Len(t, events, 2)
			assert.Equal(t, "one", string(events[0].Data))
			assert.Equal(t, "two", string(events[1].Data))
		})
	}
}

func TestDecoderChunkBoundaryIndependence(t *testing.T) {
	input := "\xEF\xBB\xBFevent: message\r\ndata: {\"answer\":\"Hel\"}\r\n\r\n" +
		": ping\r\n\r\n" +
		"data: {\"answer\":\"lo\"}\r\n" +
		"data: line two\r\n\r\n" +
		"data: [DONE]\r\n\r\n"

	whole := collect(t, NewDecoder(strings.NewReader(input)))
	oneByte := collect(t, NewDecoder(iotest.OneByteReader(strings.NewReader(input))))
	halves := collect(t, NewDecoder(iotest.HalfReader(strings.NewReader(input))))

	require.Len(t, whole, 3)
	assert.Equal(t, whole, oneByte)
	assert.Equal(t, whole, halves)
	assert.Equal(t, "message", whole[0].Type)
	assert.Equal(t, `{"answer":"Hel"}`, string(whole[0].Data))
	assert.Equal(t, "{\"answer\":\"lo\"}\nline two", string(whole[1].Data))
	assert.Equal(t, "[DONE]", string(whole[2].Data))
}

func TestDecoderSplitCRLF(t *testing.T) {
	// A CR at the end of one read and its LF at the start of the next must
	// produce a single line break.
	r := io.MultiReader(
		strings.NewReader("data: a\r"),
		strings.NewReader("\ndata: b\r"),
		strings.NewReader("\n\r"),
		strings.NewReader("\n"),
	)

	events := collect(t, NewDecoder(r))
	require.Len(t, events, 1)
	assert.Equal(t, "a\nb", string(events[0].Data))
}

func TestDecoderPartialBlockAtEOF(t *testing.T) {
	d := NewDecoder(strings.NewReader("data: complete\n\ndata: incompl"))

	events := collect(t, d)
	require.Len(t, events, 1)
	assert.Equal(t, "complete", string(events[0].Data))
	assert.True(t, d.Partial())

	_, err := d.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecoderCleanEOF(t *testing.T) {
	d := NewDecoder(strings.NewReader("data: x\n\n\n"))
	collect(t, d)
	assert.False(t, d.Partial())
	assert.Zero(t, d.Buffered())
}

func TestDecoderMaxEventSize(t *testing.T) {
	big := "data: " + strings.Repeat("x", 64) + "\n\n"

	d := NewDecoder(iotest.OneByteReader(strings.NewReader(big)), WithMaxEventSize(32))
	_, err := d.Next()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEventTooLarge))

	// A block that arrives whole in one read is bounded too.
	d = NewDecoder(strings.NewReader(big), WithMaxEventSize(32))
	_, err = d.Next()
	assert.ErrorIs(t, err, ErrEventTooLarge)

	d = NewDecoder(strings.NewReader(big), WithMaxEventSize(1024))
	ev, err := d.Next()
	require.NoError(t, err)
	assert.Len(t, ev.Data, 64)
}

func TestDecoderReadError(t *testing.T) {
	boom := errors.New("connection reset")
	d := NewDecoder(io.MultiReader(strings.NewReader("data: ok\n\n"), iotest.ErrReader(boom)))

	ev, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, "ok", string(ev.Data))

	_, err = d.Next()
	assert.ErrorIs(t, err, boom)
}

func TestDecoderLastEventID(t *testing.T) {
	d := NewDecoder(strings.NewReader("id: 1\ndata: a\n\ndata: b\n\nid: 3\ndata: c\n\n"))
	events := collect(t, d)
	require.Len(t, events, 3)
	assert.Equal(t, "1", events[0].ID)
	assert.Empty(t, events[1].ID)
	assert.Equal(t, "3", d.LastEventID())
}
