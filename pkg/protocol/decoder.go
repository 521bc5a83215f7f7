package protocol

import (
	"encoding/json"
	"fmt"
)

// DecodeError describes a rejected inbound message. ID holds the
// correlation id when it could be recovered from the raw bytes, so the
// caller can still match the error to its request.
type DecodeError struct {
	Code    string
	Message string
	ID      string
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return e.Message
}

// Decoder turns raw inbound messages into typed Invocations.
type Decoder struct {
	maxBytes int
}

// NewDecoder creates a decoder with the given inbound size cap in bytes.
// A cap of zero disables the size check.
func NewDecoder(maxBytes int) *Decoder {
	return &Decoder{maxBytes: maxBytes}
}

// Decode parses and validates a raw request envelope.
func (d *Decoder) Decode(raw []byte) (*Invocation, *DecodeError) {
	if d.maxBytes > 0 && len(raw) > d.maxBytes {
		return nil, &DecodeError{
			Code:    CodeTooLarge,
			Message: fmt.Sprintf("message of %d bytes exceeds limit of %d", len(raw), d.maxBytes),
		}
	}

	var inv Invocation
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, &DecodeError{
			Code:    CodeParseError,
			Message: "malformed request: " + err.Error(),
			ID:      RecoverID(raw),
		}
	}

	if inv.ID == "" {
		return nil, &DecodeError{
			Code:    CodeMissingID,
			Message: "missing required field: id",
		}
	}
	if inv.Tool == "" {
		return nil, &DecodeError{
			Code:    CodeMissingTool,
			Message: "missing required field: tool",
			ID:      inv.ID,
		}
	}

	if inv.Args == nil {
		inv.Args = map[string]interface{}{}
	}

	return &inv, nil
}

// RecoverID attempts a best-effort extraction of the correlation id from
// a message that failed full decoding. Returns the empty string when the
// id itself was not decodable.
func RecoverID(raw []byte) string {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return probe.ID
}
