package dify

// ResponseMode selects blocking or streaming responses.
type ResponseMode string

const (
	ResponseModeBlocking  ResponseMode = "blocking"
	ResponseModeStreaming ResponseMode = "streaming"
)

// AppMode is the kind of application behind an API key.
type AppMode string

const (
	AppModeCompletion   AppMode = "completion"
	AppModeWorkflow     AppMode = "workflow"
	AppModeChat         AppMode = "chat"
	AppModeAdvancedChat AppMode = "advanced-chat"
	AppModeAgentChat    AppMode = "agent-chat"
	AppModeChannel      AppMode = "channel"
)

// FileType classifies an input or output file.
type FileType string

const (
	FileTypeImage    FileType = "image"
	FileTypeDocument FileType = "document"
	FileTypeAudio    FileType = "audio"
	FileTypeVideo    FileType = "video"
	FileTypeCustom   FileType = "custom"
)

func (t FileType) valid() bool {
	switch t {
	case FileTypeImage, FileTypeDocument, FileTypeAudio, FileTypeVideo, FileTypeCustom:
		return true
	}
	return false
}

// TransferMethod says how an input file reaches the service.
type TransferMethod string

const (
	TransferRemoteURL TransferMethod = "remote_url"
	TransferLocalFile TransferMethod = "local_file"
)

// BelongsTo says who produced a message file.
type BelongsTo string

const (
	BelongsToUser      BelongsTo = "user"
	BelongsToAssistant BelongsTo = "assistant"
)

// RunStatus is the state of a workflow run or node.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusStopped   RunStatus = "stopped"
)

// InputFile attaches a file to a chat, completion or workflow request. URL is
// used with TransferRemoteURL, UploadFileID with TransferLocalFile.
type InputFile struct {
	Type           FileType       `json:"type"`
	TransferMethod TransferMethod `json:"transfer_method"`
	URL            string         `json:"url,omitempty"`
	UploadFileID   string         `json:"upload_file_id,omitempty"`
}

// RemoteImage returns an InputFile referencing an image by URL.
func RemoteImage(url string) InputFile {
	return InputFile{Type: FileTypeImage, TransferMethod: TransferRemoteURL, URL: url}
}

// UploadedImage returns an InputFile referencing an image uploaded with
// Client.UploadFile.
func UploadedImage(uploadFileID string) InputFile {
	return InputFile{Type: FileTypeImage, TransferMethod: TransferLocalFile, UploadFileID: uploadFileID}
}

// MessageBase identifies a message.
type MessageBase struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	CreatedAt      int64  `json:"created_at"`
}

// MessageResponse is the blocking response of chat and completion calls.
type MessageResponse struct {
	MessageBase
	ID       string   `json:"id,omitempty"`
	Event    string   `json:"event"`
	TaskID   string   `json:"task_id"`
	Mode     AppMode  `json:"mode"`
	Answer   string   `json:"answer"`
	Metadata Metadata `json:"metadata"`
}

// Metadata accompanies a finished message.
type Metadata struct {
	Usage              *Usage              `json:"usage,omitempty"`
	RetrieverResources []RetrieverResource `json:"retriever_resources,omitempty"`
}

// Usage reports model usage for a message.
type Usage struct {
	PromptTokens        int     `json:"prompt_tokens"`
	PromptUnitPrice     string  `json:"prompt_unit_price,omitempty"`
	PromptPrice         string  `json:"prompt_price,omitempty"`
	CompletionTokens    int     `json:"completion_tokens"`
	CompletionUnitPrice string  `json:"completion_unit_price,omitempty"`
	CompletionPrice     string  `json:"completion_price,omitempty"`
	TotalTokens         int     `json:"total_tokens"`
	TotalPrice          string  `json:"total_price,omitempty"`
	Currency            string  `json:"currency,omitempty"`
	Latency             float64 `json:"latency,omitempty"`
}

// RetrieverResource is a knowledge-base segment cited by an answer.
type RetrieverResource struct {
	Position     int     `json:"position"`
	DatasetID    string  `json:"dataset_id"`
	DatasetName  string  `json:"dataset_name"`
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	SegmentID    string  `json:"segment_id"`
	Score        float64 `json:"score"`
	Content      string  `json:"content"`
}

// WorkflowRun is the outcome of a workflow run.
type WorkflowRun struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflow_id"`
	Status      RunStatus      `json:"status"`
	Outputs     map[string]any `json:"outputs,omitempty"`
	Error       string         `json:"error,omitempty"`
	ElapsedTime float64        `json:"elapsed_time,omitempty"`
	TotalTokens int            `json:"total_tokens,omitempty"`
	TotalSteps  int            `json:"total_steps"`
	CreatedAt   int64          `json:"created_at"`
	FinishedAt  int64          `json:"finished_at"`
}

// resultResponse is the {"result":"success"} acknowledgement.
type resultResponse struct {
	Result string `json:"result"`
}

// userPayload is the body of calls that only identify the end user.
type userPayload struct {
	User string `json:"user"`
}
