package protocol

// Invocation is one decoded request to run a named tool.
type Invocation struct {
	Tool string                 `json:"tool"`
	Args map[string]interface{} `json:"args,omitempty"`
	ID   string                 `json:"id"`
}

// Outcome discriminants carried on the wire.
const (
	OutcomeSuccess       = "success"
	OutcomeProtocolError = "protocol_error"
	OutcomeToolNotFound  = "tool_not_found"
	OutcomeValidation    = "validation_error"
	OutcomeToolError     = "tool_error"
	OutcomeTimeout       = "timeout"
)

// Decode error codes.
const (
	CodeParseError  = "parse_error"
	CodeMissingID   = "missing_id"
	CodeMissingTool = "missing_tool"
	CodeTooLarge    = "message_too_large"
	CodeBusy        = "server_busy"
	CodeEncode      = "encode_failed"
)

// ErrorInfo carries a machine-readable code plus a human-readable message.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Response is the wire envelope returned for every invocation.
type Response struct {
	ID         string      `json:"id"`
	Outcome    string      `json:"outcome"`
	Value      interface{} `json:"value,omitempty"`
	Violations []string    `json:"violations,omitempty"`
	Error      *ErrorInfo  `json:"error,omitempty"`
}

// Outcome is the uniform tagged result of attempting an invocation.
// Exactly one of Value, Violations, or Err is meaningful for a given Kind.
type Outcome struct {
	Kind       string
	Value      interface{}
	Violations []string
	Err        *ErrorInfo
}

// Success wraps a handler result value.
func Success(value interface{}) Outcome {
	return Outcome{Kind: OutcomeSuccess, Value: value}
}

// ToolError wraps a handler-reported failure.
func ToolError(code, message string) Outcome {
	return Outcome{Kind: OutcomeToolError, Err: &ErrorInfo{Code: code, Message: message}}
}

// ProtocolError wraps a failure in the protocol pipeline itself.
func ProtocolError(code, message string) Outcome {
	return Outcome{Kind: OutcomeProtocolError, Err: &ErrorInfo{Code: code, Message: message}}
}

// ToolNotFound reports an unknown tool name.
func ToolNotFound(name string) Outcome {
	return Outcome{
		Kind: OutcomeToolNotFound,
		Err:  &ErrorInfo{Code: "tool_not_found", Message: "tool not found: " + name},
	}
}

// Invalid reports every argument-shape violation found in one pass.
func Invalid(violations []string) Outcome {
	return Outcome{Kind: OutcomeValidation, Violations: violations}
}

// Timeout reports a handler that exceeded its time budget.
func Timeout(message string) Outcome {
	return Outcome{Kind: OutcomeTimeout, Err: &ErrorInfo{Code: "timeout", Message: message}}
}
