package dify

import (
	"context"
	"net/http"

	"github.com/petal-labs/dify-go/transport"
)

const (
	pathChatMessages       = "/v1/chat-messages"
	pathCompletionMessages = "/v1/completion-messages"
	pathWorkflowsRun       = "/v1/workflows/run"
)

// ChatRequest sends a message in a conversation.
type ChatRequest struct {
	// Query is the user's message (required).
	Query string `json:"query"`

	// Inputs holds values for the variables defined by the app.
	Inputs map[string]any `json:"inputs"`

	// User identifies the end user (required). It must be stable per user
	// within the app.
	User string `json:"user"`

	// ConversationID continues an existing conversation. Empty starts a new one.
	ConversationID string `json:"conversation_id,omitempty"`

	Files []InputFile `json:"files,omitempty"`

	// AutoGenerateName controls title generation for new conversations. The
	// service default is true.
	AutoGenerateName *bool `json:"auto_generate_name,omitempty"`
}

func (r *ChatRequest) validate() error {
	if r == nil {
		return required("request", "")
	}
	return firstError(
		required("query", r.Query),
		required("user", r.User),
		validateFiles(r.Files),
	)
}

// chatPayload adds the response mode chosen by the calling method.
type chatPayload struct {
	ChatRequest
	ResponseMode ResponseMode `json:"response_mode"`
}

func (r *ChatRequest) payload(mode ResponseMode) chatPayload {
	p := chatPayload{ChatRequest: *r, ResponseMode: mode}
	if p.Inputs == nil {
		p.Inputs = map[string]any{}
	}
	return p
}

// ChatMessages sends a message and waits for the complete answer.
func (c *Client) ChatMessages(ctx context.Context, req *ChatRequest) (*MessageResponse, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	var out MessageResponse
	err := c.tr.Do(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   pathChatMessages,
		Body:   transport.JSONBody{Value: req.payload(ResponseModeBlocking)},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// StreamChatMessages sends a message and streams the answer. The stream ends
// after the message_end event.
func (c *Client) StreamChatMessages(ctx context.Context, req *ChatRequest) (*Stream, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	return c.stream(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   pathChatMessages,
		Body:   transport.JSONBody{Value: req.payload(ResponseModeStreaming)},
	}, EventMessageEnd)
}

// CompletionRequest asks a completion app to generate text.
type CompletionRequest struct {
	Inputs         map[string]any `json:"inputs"`
	User           string         `json:"user"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Files          []InputFile    `json:"files,omitempty"`
}

func (r *CompletionRequest) validate() error {
	if r == nil {
		return required("request", "")
	}
	return firstError(
		required("user", r.User),
		validateFiles(r.Files),
	)
}

type completionPayload struct {
	CompletionRequest
	ResponseMode ResponseMode `json:"response_mode"`
}

func (r *CompletionRequest) payload(mode ResponseMode) completionPayload {
	p := completionPayload{CompletionRequest: *r, ResponseMode: mode}
	if p.Inputs == nil {
		p.Inputs = map[string]any{}
	}
	return p
}

// CompletionMessages generates text and waits for the result.
func (c *Client) CompletionMessages(ctx context.Context, req *CompletionRequest) (*MessageResponse, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	var out MessageResponse
	err := c.tr.Do(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   pathCompletionMessages,
		Body:   transport.JSONBody{Value: req.payload(ResponseModeBlocking)},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// StreamCompletionMessages generates text as a stream ending after message_end.
func (c *Client) StreamCompletionMessages(ctx context.Context, req *CompletionRequest) (*Stream, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	return c.stream(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   pathCompletionMessages,
		Body:   transport.JSONBody{Value: req.payload(ResponseModeStreaming)},
	}, EventMessageEnd)
}

// WorkflowRequest runs a workflow app.
type WorkflowRequest struct {
	Inputs map[string]any `json:"inputs"`
	User   string         `json:"user"`
	Files  []InputFile    `json:"files,omitempty"`
}

func (r *WorkflowRequest) validate() error {
	if r == nil {
		return required("request", "")
	}
	return firstError(
		required("user", r.User),
		validateFiles(r.Files),
	)
}

type workflowPayload struct {
	WorkflowRequest
	ResponseMode ResponseMode `json:"response_mode"`
}

func (r *WorkflowRequest) payload(mode ResponseMode) workflowPayload {
	p := workflowPayload{WorkflowRequest: *r, ResponseMode: mode}
	if p.Inputs == nil {
		p.Inputs = map[string]any{}
	}
	return p
}

// WorkflowRunResponse is the blocking result of a workflow run.
type WorkflowRunResponse struct {
	WorkflowRunID string      `json:"workflow_run_id"`
	TaskID        string      `json:"task_id"`
	Data          WorkflowRun `json:"data"`
}

// RunWorkflow runs a workflow and waits for it to finish.
func (c *Client) RunWorkflow(ctx context.Context, req *WorkflowRequest) (*WorkflowRunResponse, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	var out WorkflowRunResponse
	err := c.tr.Do(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   pathWorkflowsRun,
		Body:   transport.JSONBody{Value: req.payload(ResponseModeBlocking)},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// StreamWorkflow runs a workflow and streams its progress. The stream ends
// after the workflow_finished event.
func (c *Client) StreamWorkflow(ctx context.Context, req *WorkflowRequest) (*Stream, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	return c.stream(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   pathWorkflowsRun,
		Body:   transport.JSONBody{Value: req.payload(ResponseModeStreaming)},
	}, EventWorkflowFinished)
}

func (c *Client) stream(ctx context.Context, req *transport.Request, terminal string) (*Stream, error) {
	resp, err := c.tr.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	return newStream(resp, terminal, c.tr.MaxEventSize(), c.tr.Logger()), nil
}

// StopChatMessage stops a streaming chat answer. Only streaming calls can be
// stopped; user must match the original request.
func (c *Client) StopChatMessage(ctx context.Context, taskID, user string) error {
	return c.stopTask(ctx, pathChatMessages, taskID, user)
}

// StopCompletionMessage stops a streaming completion.
func (c *Client) StopCompletionMessage(ctx context.Context, taskID, user string) error {
	return c.stopTask(ctx, pathCompletionMessages, taskID, user)
}

// StopWorkflow stops a streaming workflow run.
func (c *Client) StopWorkflow(ctx context.Context, taskID, user string) error {
	return c.stopTask(ctx, "/v1/workflows", taskID, user)
}

func (c *Client) stopTask(ctx context.Context, base, taskID, user string) error {
	if err := firstError(required("task_id", taskID), required("user", user)); err != nil {
		return err
	}
	return c.tr.Do(ctx, &transport.Request{
		Method: http.MethodPost,
		Path:   base + "/" + segment(taskID) + "/stop",
		Route:  base + "/{task_id}/stop",
		Body:   transport.JSONBody{Value: userPayload{User: user}},
	}, &resultResponse{})
}
