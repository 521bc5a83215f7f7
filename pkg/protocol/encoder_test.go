package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	t.Run("should round-trip success outcome with correlation id", func(t *testing.T) {
		value := map[string]interface{}{"tempC": 18.0}
		data := Encode(Success(value), "abc123")

		var resp Response
		require.NoError(t, json.Unmarshal(data, &resp))
		assert.Equal(t, "abc123", resp.ID)
		assert.Equal(t, OutcomeSuccess, resp.Outcome)

		decoded, ok := resp.Value.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, 18.0, decoded["tempC"])
	})

	t.Run("should encode validation outcome with violations", func(t *testing.T) {
		data := Encode(Invalid([]string{"missing required argument: location"}), "abc124")

		var resp Response
		require.NoError(t, json.Unmarshal(data, &resp))
		assert.Equal(t, "abc124", resp.ID)
		assert.Equal(t, OutcomeValidation, resp.Outcome)
		assert.Equal(t, []string{"missing required argument: location"}, resp.Violations)
		assert.Nil(t, resp.Value)
	})

	t.Run("should encode tool not found outcome", func(t *testing.T) {
		data := Encode(ToolNotFound("unknown_tool"), "abc125")

		var resp Response
		require.NoError(t, json.Unmarshal(data, &resp))
		assert.Equal(t, "abc125", resp.ID)
		assert.Equal(t, OutcomeToolNotFound, resp.Outcome)
		require.NotNil(t, resp.Error)
		assert.Contains(t, resp.Error.Message, "unknown_tool")
	})

	t.Run("should encode tool error outcome verbatim", func(t *testing.T) {
		data := Encode(ToolError("upstream_unreachable", "weather source unreachable"), "abc126")

		var resp Response
		require.NoError(t, json.Unmarshal(data, &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, "upstream_unreachable", resp.Error.Code)
		assert.Equal(t, "weather source unreachable", resp.Error.Message)
	})

	t.Run("should fall back to protocol error for unencodable value", func(t *testing.T) {
		data := Encode(Success(make(chan int)), "abc127")

		var resp Response
		require.NoError(t, json.Unmarshal(data, &resp))
		assert.Equal(t, "abc127", resp.ID)
		assert.Equal(t, OutcomeProtocolError, resp.Outcome)
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeEncode, resp.Error.Code)
	})
}
