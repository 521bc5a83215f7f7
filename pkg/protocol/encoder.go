package protocol

import "encoding/json"

// Encode serializes an Outcome into the response envelope for the given
// correlation id. Encoding is total: if the outcome's value cannot be
// marshalled, a minimal guaranteed-encodable protocol_error response is
// returned instead, so no client is ever left without a response.
func Encode(outcome Outcome, id string) []byte {
	resp := Response{
		ID:         id,
		Outcome:    outcome.Kind,
		Value:      outcome.Value,
		Violations: outcome.Violations,
		Error:      outcome.Err,
	}

	data, err := json.Marshal(resp)
	if err == nil {
		return data
	}

	fallback := Response{
		ID:      id,
		Outcome: OutcomeProtocolError,
		Error: &ErrorInfo{
			Code:    CodeEncode,
			Message: "response could not be encoded",
		},
	}
	data, _ = json.Marshal(fallback)
	return data
}
