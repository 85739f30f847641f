package dify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/petal-labs/dify-go/internal/normalize"
	"github.com/petal-labs/dify-go/sse"
	"github.com/petal-labs/dify-go/transport"
)

// Stream is a lazy, single-pass sequence of events read from one streaming
// call. It holds one live connection, released when the stream ends, fails or
// is closed.
//
// A Stream is consumed by one goroutine. Close may be called from another
// goroutine to abandon it.
type Stream struct {
	body      io.ReadCloser
	dec       *sse.Decoder
	terminal  string
	requestID string
	logger    *slog.Logger

	taskID    string
	done      bool
	truncated bool
	err       error

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newStream(resp *transport.Response, terminal string, maxEventSize int, logger *slog.Logger) *Stream {
	return &Stream{
		body:      resp.Body,
		dec:       sse.NewDecoder(resp.Body, sse.WithMaxEventSize(maxEventSize)),
		terminal:  terminal,
		requestID: resp.RequestID,
		logger:    logger,
	}
}

// Next returns the next event. It returns ok=false once the stream has ended,
// and a non-nil error exactly once if it ended abnormally. Errors are
// *core.ServiceError values:
//
//   - an error event from the service maps by its status (ServiceUnavailable
//     when absent);
//   - a payload that is not valid JSON is a Decode error;
//   - read failures are Network or Timeout errors.
//
// The "[DONE]" sentinel and the terminal event (message_end, or
// workflow_finished for workflow runs) end the stream; the terminal event
// itself is returned.
func (s *Stream) Next() (Event, bool, error) {
	for !s.done {
		frame, err := s.dec.Next()
		if err == io.EOF {
			s.truncated = true
			s.logger.Debug("stream ended without a terminal event",
				slog.String("request_id", s.requestID),
				slog.Bool("partial_block", s.dec.Partial()),
			)
			s.finish(nil)
			break
		}
		if err != nil {
			if s.closed.Load() {
				s.finish(nil)
				break
			}
			return s.fail(s.mapReadError(err))
		}

		data := bytes.TrimSpace(frame.Data)
		if len(data) == 0 {
			if frame.Type == EventPing {
				return &PingEvent{}, true, nil
			}
			continue
		}
		if string(data) == doneSentinel {
			s.finish(nil)
			break
		}

		ev, head, err := decodeEvent(frame.Type, data)
		if err != nil {
			return s.fail(normalize.Decode(err, data, s.requestID))
		}
		if ev == nil {
			return s.fail(normalize.FromStreamError(head.Status, head.Code, head.Message, s.requestID))
		}

		if s.taskID == "" {
			s.taskID = ev.Base().TaskID
		}
		if ev.EventType() == s.terminal {
			s.finish(nil)
		}
		return ev, true, nil
	}
	return nil, false, nil
}

func (s *Stream) mapReadError(err error) error {
	if errors.Is(err, sse.ErrEventTooLarge) {
		return normalize.Decode(err, nil, s.requestID)
	}
	return normalize.FromTransport(err, s.requestID)
}

func (s *Stream) fail(err error) (Event, bool, error) {
	s.finish(err)
	return nil, false, err
}

func (s *Stream) finish(err error) {
	s.done = true
	s.err = err
	_ = s.Close()
}

// All returns the remaining events as an iterator. Leaving the loop early
// closes the stream. A terminal error is yielded once with a nil event.
//
//	for ev, err := range stream.All() {
//	    if err != nil {
//	        return err
//	    }
//	    ...
//	}
func (s *Stream) All() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		defer s.Close()
		for {
			ev, ok, err := s.Next()
			if err != nil {
				yield(nil, err)
				return
			}
			if !ok || !yield(ev, nil) {
				return
			}
		}
	}
}

// Close releases the connection. It is safe to call more than once.
func (s *Stream) Close() error {
	return s.abort(nil)
}

// abort closes the stream, passing cause to bodies that record an outcome.
func (s *Stream) abort(cause error) error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if cb, ok := s.body.(interface{ CloseWithError(error) error }); ok && cause != nil {
			s.closeErr = cb.CloseWithError(cause)
			return
		}
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// Err returns the error that ended the stream, if any.
func (s *Stream) Err() error {
	return s.err
}

// Truncated reports whether the body ended before a terminal event or the
// "[DONE]" sentinel. The events read so far are complete, but the answer may
// not be.
func (s *Stream) Truncated() bool {
	return s.truncated
}

// TaskID returns the task id of the call once the first event carrying one
// was read. Pass it to the matching Stop method to cancel generation.
func (s *Stream) TaskID() string {
	return s.taskID
}

// RequestID returns the X-Request-Id sent with the call.
func (s *Stream) RequestID() string {
	return s.requestID
}

// StreamResult aggregates a drained stream.
type StreamResult struct {
	Answer         string
	ConversationID string
	MessageID      string
	TaskID         string
	WorkflowRunID  string
	Metadata       Metadata
	Workflow       *WorkflowRun
	Events         int
	Truncated      bool
}

// Collect drains the stream into a StreamResult. Answer chunks from message
// and agent_message events are concatenated; message_replace replaces the
// text so far. The stream is closed when Collect returns.
func (s *Stream) Collect(ctx context.Context) (*StreamResult, error) {
	defer s.Close()
	stop := context.AfterFunc(ctx, func() { _ = s.abort(ctx.Err()) })
	defer stop()

	var (
		answer strings.Builder
		res    StreamResult
	)
	for {
		ev, ok, err := s.Next()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, normalize.FromTransport(ctxErr, s.requestID)
		}
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		res.Events++

		base := ev.Base()
		if base.ConversationID != "" {
			res.ConversationID = base.ConversationID
		}
		if base.MessageID != "" {
			res.MessageID = base.MessageID
		}

		switch e := ev.(type) {
		case *MessageEvent:
			answer.WriteString(e.Answer)
		case *AgentMessageEvent:
			answer.WriteString(e.Answer)
		case *MessageReplaceEvent:
			answer.Reset()
			answer.WriteString(e.Answer)
		case *MessageEndEvent:
			res.Metadata = e.Metadata
			if res.MessageID == "" {
				res.MessageID = e.ID
			}
		case *WorkflowStartedEvent:
			res.WorkflowRunID = e.WorkflowRunID
		case *WorkflowFinishedEvent:
			res.WorkflowRunID = e.WorkflowRunID
			run := e.Data
			res.Workflow = &run
		}
	}

	res.Answer = answer.String()
	res.TaskID = s.taskID
	res.Truncated = s.truncated
	return &res, nil
}
