package mcp

import (
	"encoding/json"
	"fmt"
)

// MustString enforces a string representation for protocol fields that may arrive
// as either a string or an integer, such as request IDs and progress tokens. It
// converts transparently during JSON marshaling and unmarshaling.
type MustString string

// JSONRPCMessage is the wire envelope for every message exchanged in the MCP
// protocol. Which fields are populated determines the message kind:
//   - Request: JSONRPC, ID, Method, and optionally Params
//   - Notification: JSONRPC and Method (no ID)
//   - Response: JSONRPC, ID, and either Result or Error
type JSONRPCMessage struct {
	// JSONRPC must always be "2.0" per the JSON-RPC specification
	JSONRPC string `json:"jsonrpc"`
	// ID correlates request-response pairs and must be a string or number
	ID MustString `json:"id,omitempty"`
	// Method contains the RPC method name for requests and notifications
	Method string `json:"method,omitempty"`
	// Params contains the method parameters as a raw JSON message
	Params json.RawMessage `json:"params,omitempty"`
	// Result contains the successful response data as a raw JSON message
	Result json.RawMessage `json:"result,omitempty"`
	// Error contains error details if the request failed
	Error *JSONRPCError `json:"error,omitempty"`
}

// JSONRPCError is the standard error object defined by the JSON-RPC 2.0
// specification.
type JSONRPCError struct {
	// Code indicates the error type that occurred.
	// Must use standard JSON-RPC error codes or custom codes outside the reserved range.
	Code int `json:"code"`

	// Message provides a short description of the error.
	Message string `json:"message"`

	// Data contains additional unstructured information about the error.
	Data map[string]any `json:"data,omitempty"`
}

// Info identifies a server or client implementation by name and version. It is
// exchanged during the initialization handshake.
type Info struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerCapabilities declares the optional protocol features a server supports.
// The set is echoed verbatim in the initialization result.
type ServerCapabilities struct {
	Prompts   *PromptsCapability   `json:"prompts,omitempty"`
	Resources *ResourcesCapability `json:"resources,omitempty"`
	Tools     *ToolsCapability     `json:"tools,omitempty"`
	Logging   *LoggingCapability   `json:"logging,omitempty"`
}

// ClientCapabilities declares the optional protocol features a client supports.
type ClientCapabilities struct {
	Roots    *RootsCapability    `json:"roots,omitempty"`
	Sampling *SamplingCapability `json:"sampling,omitempty"`
}

// PromptsCapability represents prompts-specific capabilities.
type PromptsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ResourcesCapability represents resources-specific capabilities.
type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe,omitempty"`
	ListChanged bool `json:"listChanged,omitempty"`
}

// ToolsCapability represents tools-specific capabilities.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// LoggingCapability represents logging-specific capabilities.
type LoggingCapability struct{}

// RootsCapability represents roots-specific capabilities.
type RootsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// SamplingCapability represents sampling-specific capabilities.
type SamplingCapability struct{}

// Role identifies the author of a conversation message.
type Role string

// ContentType identifies the kind of data carried by a Content value.
type ContentType string

// Content is a single content block in a tool result or prompt message.
type Content struct {
	Type ContentType `json:"type"`

	// For ContentTypeText
	Text string `json:"text,omitempty"`

	// For ContentTypeImage or ContentTypeAudio
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// Tool describes a callable tool and the JSON schema of its arguments.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ListToolsParams contains parameters for listing available tools.
type ListToolsParams struct {
	// Cursor is a pagination cursor from a previous ListTools call.
	// Empty string requests the first page.
	Cursor string `json:"cursor,omitempty"`

	// Meta carries optional request metadata such as a progress token.
	Meta ParamsMeta `json:"_meta,omitempty"`
}

// ListToolsResult is a paginated list of tools. NextCursor, when set, can be
// used to retrieve the next page.
type ListToolsResult struct {
	Tools      []Tool `json:"tools"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// CallToolParams contains parameters for executing a specific tool.
type CallToolParams struct {
	// Name is the unique identifier of the tool to execute
	Name string `json:"name"`

	// Arguments is a JSON object of argument name-value pairs.
	// Must satisfy the tool's InputSchema.
	Arguments json.RawMessage `json:"arguments"`

	// Meta carries optional request metadata such as a progress token.
	Meta ParamsMeta `json:"_meta,omitempty"`
}

// CallToolResult is the outcome of a tool invocation. IsError indicates the
// operation failed, with details in Content.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`
}

// RootList is the collection of root entry points reported by a client in
// response to a roots/list request.
type RootList struct {
	Roots []Root `json:"roots"`
}

// Root is a top-level directory or file the client allows the server to
// operate on.
type Root struct {
	URI  string `json:"uri"`
	Name string `json:"name,omitempty"`
}

// LogLevel is the syslog-style severity of a log message notification.
type LogLevel string

// LogParams is the payload of a notifications/message log notification.
type LogParams struct {
	// Level indicates the severity level of the message.
	Level LogLevel `json:"level"`
	// Logger identifies the component that produced the message.
	Logger string `json:"logger,omitempty"`
	// Data carries the message content and any structured metadata.
	Data json.RawMessage `json:"data"`
}

// ProgressParams reports the progress of a long-running operation identified
// by its progress token.
type ProgressParams struct {
	// ProgressToken identifies the operation this update relates to
	ProgressToken MustString `json:"progressToken"`
	// Progress is the current progress value
	Progress float64 `json:"progress"`
	// Total is the expected final value when known. When non-zero, completion
	// percentage can be calculated as (Progress/Total)*100.
	Total float64 `json:"total,omitempty"`
}

// ParamsMeta contains optional metadata included with request parameters, used
// for features like progress tracking.
type ParamsMeta struct {
	// ProgressToken uniquely identifies an operation for progress tracking.
	ProgressToken MustString `json:"progressToken,omitempty"`
}

// SamplingParams is the payload of a sampling/createMessage request sent to
// the client. Beyond the conversation history it carries the optional sampling
// controls the protocol defines; none of the fields are validated here, their
// interpretation is the client's responsibility.
type SamplingParams struct {
	// Messages is the conversation history as a sequence of user and assistant messages
	Messages []SamplingMessage `json:"messages"`

	// ModelPreferences guides model selection through cost, speed, and intelligence priorities
	ModelPreferences *SamplingModelPreferences `json:"modelPreferences,omitempty"`

	// SystemPrompt provides system-level instructions to the model
	SystemPrompt string `json:"systemPrompt,omitempty"`

	// IncludeContext requests server context to be included in the prompt.
	// One of "none", "thisServer", or "allServers".
	IncludeContext string `json:"includeContext,omitempty"`

	// Temperature controls sampling randomness when set
	Temperature *float64 `json:"temperature,omitempty"`

	// MaxTokens is the maximum number of tokens allowed in the generated response
	MaxTokens int `json:"maxTokens"`

	// StopSequences lists sequences that should end generation
	StopSequences []string `json:"stopSequences,omitempty"`

	// Metadata carries opaque caller metadata passed through to the client
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SamplingMessage is a single message in the sampling conversation history.
type SamplingMessage struct {
	Role    Role            `json:"role"`
	Content SamplingContent `json:"content"`
}

// SamplingContent is the content of a sampling message. Either Text or Data
// should be populated based on the content Type.
type SamplingContent struct {
	Type ContentType `json:"type"`

	Text string `json:"text,omitempty"`

	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// SamplingModelPreferences expresses priorities for model selection. Hints are
// evaluated in order, and priority values range from 0 (least important) to 1
// (most important).
type SamplingModelPreferences struct {
	Hints                []SamplingModelHint `json:"hints,omitempty"`
	CostPriority         float64             `json:"costPriority,omitempty"`
	SpeedPriority        float64             `json:"speedPriority,omitempty"`
	IntelligencePriority float64             `json:"intelligencePriority,omitempty"`
}

// SamplingModelHint names a model or model family the server would prefer.
type SamplingModelHint struct {
	Name string `json:"name"`
}

// SamplingResult is the client's answer to a sampling/createMessage request:
// the generated message, the model that produced it, and why generation
// stopped.
type SamplingResult struct {
	Role       Role            `json:"role"`
	Content    SamplingContent `json:"content"`
	Model      string          `json:"model"`
	StopReason string          `json:"stopReason,omitempty"`
}

type initializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      Info               `json:"clientInfo"`
}

type initializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Info               `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

type resourceUpdatedParams struct {
	URI string `json:"uri"`
}

// SubscribeResourceParams identifies the resource a subscribe or unsubscribe
// request applies to.
type SubscribeResourceParams struct {
	URI string `json:"uri"`
}

// Role values for conversation messages.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentType values for content blocks.
const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
	ContentTypeAudio ContentType = "audio"
)

// LogLevel values ordered by increasing severity.
const (
	LogLevelDebug     LogLevel = "debug"
	LogLevelInfo      LogLevel = "info"
	LogLevelNotice    LogLevel = "notice"
	LogLevelWarning   LogLevel = "warning"
	LogLevelError     LogLevel = "error"
	LogLevelCritical  LogLevel = "critical"
	LogLevelAlert     LogLevel = "alert"
	LogLevelEmergency LogLevel = "emergency"
)

const (
	// JSONRPCVersion specifies the JSON-RPC protocol version used for communication.
	JSONRPCVersion = "2.0"

	// ProtocolVersion is the MCP revision this implementation speaks. It is
	// declared in every initialization result.
	ProtocolVersion = "2024-11-05"

	// MethodInitialize is the method name of the mandatory handshake request.
	MethodInitialize = "initialize"
	// MethodPing is the method name of the liveness-check request.
	MethodPing = "ping"

	// MethodRootsList is the method name for retrieving the client's root list.
	MethodRootsList = "roots/list"
	// MethodSamplingCreateMessage is the method name for requesting a sampled
	// message from the client.
	MethodSamplingCreateMessage = "sampling/createMessage"

	// MethodPromptsList is the method name for retrieving a list of available prompts.
	MethodPromptsList = "prompts/list"
	// MethodPromptsGet is the method name for retrieving a specific prompt.
	MethodPromptsGet = "prompts/get"
	// MethodResourcesList is the method name for listing available resources.
	MethodResourcesList = "resources/list"
	// MethodResourcesRead is the method name for reading a specific resource.
	MethodResourcesRead = "resources/read"
	// MethodResourcesSubscribe is the method name for subscribing to updates of
	// a specific resource.
	MethodResourcesSubscribe = "resources/subscribe"
	// MethodResourcesUnsubscribe is the method name for cancelling a resource
	// subscription.
	MethodResourcesUnsubscribe = "resources/unsubscribe"
	// MethodToolsList is the method name for retrieving a list of available tools.
	MethodToolsList = "tools/list"
	// MethodToolsCall is the method name for invoking a specific tool.
	MethodToolsCall = "tools/call"

	// MethodNotificationsInitialized is the acknowledgment notification that
	// completes the initialization handshake.
	MethodNotificationsInitialized = "notifications/initialized"
	// MethodNotificationsCancelled is sent by the client to cancel an in-flight request.
	MethodNotificationsCancelled = "notifications/cancelled"
	// MethodNotificationsMessage carries a log message to the client.
	MethodNotificationsMessage = "notifications/message"
	// MethodNotificationsProgress carries a progress update for a long-running operation.
	MethodNotificationsProgress = "notifications/progress"
	// MethodNotificationsResourcesUpdated announces a change to a subscribed resource.
	MethodNotificationsResourcesUpdated = "notifications/resources/updated"
	// MethodNotificationsPromptsListChanged announces a change to the prompt list.
	MethodNotificationsPromptsListChanged = "notifications/prompts/list_changed"
	// MethodNotificationsResourcesListChanged announces a change to the resource list.
	MethodNotificationsResourcesListChanged = "notifications/resources/list_changed"
	// MethodNotificationsToolsListChanged announces a change to the tool list.
	MethodNotificationsToolsListChanged = "notifications/tools/list_changed"
	// MethodNotificationsRootsListChanged is sent by the client when its root list changes.
	MethodNotificationsRootsListChanged = "notifications/roots/list_changed"

	// JSON-RPC error codes as defined by the specification.
	JSONRPCParseErrorCode     = -32700
	JSONRPCInvalidRequestCode = -32600
	JSONRPCMethodNotFoundCode = -32601
	JSONRPCInvalidParamsCode  = -32602
	JSONRPCInternalErrorCode  = -32603

	// JSONRPCNotInitializedCode reports that the peer sent domain traffic
	// before the handshake completed.
	JSONRPCNotInitializedCode = -32002
)

// UnmarshalJSON implements json.Unmarshaler to convert JSON data into MustString,
// handling both string and numeric input formats.
func (m *MustString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	switch v := v.(type) {
	case string:
		*m = MustString(v)
	case float64:
		*m = MustString(fmt.Sprintf("%d", int(v)))
	case int:
		*m = MustString(fmt.Sprintf("%d", v))
	case nil:
		*m = ""
	default:
		return fmt.Errorf("invalid type: %T", v)
	}

	return nil
}

// MarshalJSON implements json.Marshaler to convert MustString into its JSON
// representation, always encoding as a string value.
func (m MustString) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(m))
}

func (j JSONRPCError) Error() string {
	return fmt.Sprintf("request error, code: %d, message: %s, data %v", j.Code, j.Message, j.Data)
}
