package dify

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Stream event names as sent in the payload's "event" field.
const (
	EventMessage          = "message"
	EventAgentMessage     = "agent_message"
	EventAgentThought     = "agent_thought"
	EventMessageFile      = "message_file"
	EventMessageEnd       = "message_end"
	EventMessageReplace   = "message_replace"
	EventTTSMessage       = "tts_message"
	EventTTSMessageEnd    = "tts_message_end"
	EventWorkflowStarted  = "workflow_started"
	EventNodeStarted      = "node_started"
	EventNodeFinished     = "node_finished"
	EventWorkflowFinished = "workflow_finished"
	EventPing             = "ping"
	EventError            = "error"
)

// doneSentinel ends a stream without producing an event.
const doneSentinel = "[DONE]"

// Event is one decoded stream event. The concrete type is selected by the
// payload's event name; switch on it with a type switch:
//
//	switch ev := ev.(type) {
//	case *dify.MessageEvent:
//	    fmt.Print(ev.Answer)
//	case *dify.MessageEndEvent:
//	    fmt.Println(ev.Metadata.Usage.TotalTokens)
//	}
//
// Error events are never returned as values; they end the stream with a
// *core.ServiceError instead.
type Event interface {
	// EventType returns the wire name of the event.
	EventType() string

	// Base returns the fields shared by all events.
	Base() EventBase

	isEvent()
}

// EventBase holds the fields shared by most events.
type EventBase struct {
	TaskID         string `json:"task_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	CreatedAt      int64  `json:"created_at,omitempty"`
}

// Base returns b.
func (b EventBase) Base() EventBase { return b }

func (EventBase) isEvent() {}

// MessageEvent carries a chunk of the answer.
type MessageEvent struct {
	EventBase
	ID     string `json:"id"`
	Answer string `json:"answer"`
}

func (*MessageEvent) EventType() string { return EventMessage }

// AgentMessageEvent carries a chunk of an agent-mode answer.
type AgentMessageEvent struct {
	EventBase
	ID     string `json:"id"`
	Answer string `json:"answer"`
}

func (*AgentMessageEvent) EventType() string { return EventAgentMessage }

// AgentThoughtEvent describes one agent reasoning step, including tool calls.
type AgentThoughtEvent struct {
	EventBase
	ID           string          `json:"id"`
	Position     int             `json:"position"`
	Thought      string          `json:"thought"`
	Observation  string          `json:"observation"`
	Tool         string          `json:"tool"`
	ToolLabels   json.RawMessage `json:"tool_labels,omitempty"`
	ToolInput    string          `json:"tool_input"`
	MessageFiles []string        `json:"message_files,omitempty"`
}

func (*AgentThoughtEvent) EventType() string { return EventAgentThought }

// MessageFileEvent announces a file produced by the assistant.
type MessageFileEvent struct {
	EventBase
	ID        string    `json:"id"`
	Type      FileType  `json:"type"`
	BelongsTo BelongsTo `json:"belongs_to"`
	URL       string    `json:"url"`
}

func (*MessageFileEvent) EventType() string { return EventMessageFile }

// MessageEndEvent ends a chat or completion stream.
type MessageEndEvent struct {
	EventBase
	ID       string   `json:"id"`
	Metadata Metadata `json:"metadata"`
}

func (*MessageEndEvent) EventType() string { return EventMessageEnd }

// MessageReplaceEvent replaces the whole answer so far, typically after
// content moderation.
type MessageReplaceEvent struct {
	EventBase
	Answer string `json:"answer"`
}

func (*MessageReplaceEvent) EventType() string { return EventMessageReplace }

// TTSMessageEvent carries a base64 encoded audio chunk.
type TTSMessageEvent struct {
	EventBase
	Audio string `json:"audio"`
}

func (*TTSMessageEvent) EventType() string { return EventTTSMessage }

// Bytes decodes the audio chunk.
func (e *TTSMessageEvent) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(e.Audio)
}

// TTSMessageEndEvent ends the audio chunks of a message.
type TTSMessageEndEvent struct {
	EventBase
	Audio string `json:"audio"`
}

func (*TTSMessageEndEvent) EventType() string { return EventTTSMessageEnd }

// WorkflowStartedEvent reports the start of a workflow run.
type WorkflowStartedEvent struct {
	EventBase
	WorkflowRunID string              `json:"workflow_run_id"`
	Data          WorkflowStartedData `json:"data"`
}

func (*WorkflowStartedEvent) EventType() string { return EventWorkflowStarted }

// WorkflowStartedData describes a started run.
type WorkflowStartedData struct {
	ID             string         `json:"id"`
	WorkflowID     string         `json:"workflow_id"`
	SequenceNumber int            `json:"sequence_number"`
	Inputs         map[string]any `json:"inputs,omitempty"`
	CreatedAt      int64          `json:"created_at"`
}

// NodeStartedEvent reports the start of a workflow node.
type NodeStartedEvent struct {
	EventBase
	WorkflowRunID string          `json:"workflow_run_id"`
	Data          NodeStartedData `json:"data"`
}

func (*NodeStartedEvent) EventType() string { return EventNodeStarted }

// NodeStartedData describes a started node.
type NodeStartedData struct {
	ID                string         `json:"id"`
	NodeID            string         `json:"node_id"`
	NodeType          string         `json:"node_type"`
	Title             string         `json:"title"`
	Index             int            `json:"index"`
	PredecessorNodeID string         `json:"predecessor_node_id,omitempty"`
	Inputs            map[string]any `json:"inputs,omitempty"`
	CreatedAt         int64          `json:"created_at"`
}

// NodeFinishedEvent reports the end of a workflow node, successful or not.
type NodeFinishedEvent struct {
	EventBase
	WorkflowRunID string           `json:"workflow_run_id"`
	Data          NodeFinishedData `json:"data"`
}

func (*NodeFinishedEvent) EventType() string { return EventNodeFinished }

// NodeFinishedData describes a finished node.
type NodeFinishedData struct {
	ID                string             `json:"id"`
	NodeID            string             `json:"node_id"`
	NodeType          string             `json:"node_type,omitempty"`
	Title             string             `json:"title,omitempty"`
	Index             int                `json:"index"`
	PredecessorNodeID string             `json:"predecessor_node_id,omitempty"`
	Inputs            map[string]any     `json:"inputs,omitempty"`
	ProcessData       map[string]any     `json:"process_data,omitempty"`
	Outputs           map[string]any     `json:"outputs,omitempty"`
	Status            RunStatus          `json:"status"`
	Error             string             `json:"error,omitempty"`
	ElapsedTime       float64            `json:"elapsed_time,omitempty"`
	ExecutionMetadata *ExecutionMetadata `json:"execution_metadata,omitempty"`
	CreatedAt         int64              `json:"created_at"`
}

// ExecutionMetadata reports the cost of a node.
type ExecutionMetadata struct {
	TotalTokens int    `json:"total_tokens,omitempty"`
	TotalPrice  string `json:"total_price,omitempty"`
	Currency    string `json:"currency,omitempty"`
}

// WorkflowFinishedEvent ends a workflow stream.
type WorkflowFinishedEvent struct {
	EventBase
	WorkflowRunID string      `json:"workflow_run_id"`
	Data          WorkflowRun `json:"data"`
}

func (*WorkflowFinishedEvent) EventType() string { return EventWorkflowFinished }

// PingEvent is a keep-alive sent periodically by the service.
type PingEvent struct {
	EventBase
}

func (*PingEvent) EventType() string { return EventPing }

// UnknownEvent is an event this client does not recognise. Raw holds the
// undecoded payload.
type UnknownEvent struct {
	EventBase
	Type string
	Raw  json.RawMessage
}

func (e *UnknownEvent) EventType() string { return e.Type }

// eventHead is decoded first to select the concrete type. Error events carry
// their fields at the top level.
type eventHead struct {
	Event   string `json:"event"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// decodeEvent decodes one payload. name is the frame's event field and is
// used when the payload has no event tag. An error event is returned as
// head with a nil Event.
func decodeEvent(name string, data []byte) (Event, *eventHead, error) {
	var head eventHead
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, nil, err
	}
	tag := head.Event
	if tag == "" {
		tag = name
	}

	var ev Event
	switch tag {
	case EventMessage:
		ev = &MessageEvent{}
	case EventAgentMessage:
		ev = &AgentMessageEvent{}
	case EventAgentThought:
		ev = &AgentThoughtEvent{}
	case EventMessageFile:
		ev = &MessageFileEvent{}
	case EventMessageEnd:
		ev = &MessageEndEvent{}
	case EventMessageReplace:
		ev = &MessageReplaceEvent{}
	case EventTTSMessage:
		ev = &TTSMessageEvent{}
	case EventTTSMessageEnd:
		ev = &TTSMessageEndEvent{}
	case EventWorkflowStarted:
		ev = &WorkflowStartedEvent{}
	case EventNodeStarted:
		ev = &NodeStartedEvent{}
	case EventNodeFinished:
		ev = &NodeFinishedEvent{}
	case EventWorkflowFinished:
		ev = &WorkflowFinishedEvent{}
	case EventPing:
		ev = &PingEvent{}
	case EventError:
		head.Event = EventError
		return nil, &head, nil
	default:
		unknown := &UnknownEvent{Type: tag, Raw: json.RawMessage(bytes.Clone(data))}
		// The shared fields are optional; a mismatch is not an error.
		_ = json.Unmarshal(data, &unknown.EventBase)
		return unknown, &head, nil
	}

	if err := json.Unmarshal(data, ev); err != nil {
		return nil, nil, fmt.Errorf("decode %s event: %w", tag, err)
	}
	return ev, &head, nil
}
