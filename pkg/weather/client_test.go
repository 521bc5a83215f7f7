package weather

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const liveFixture = `{
	"status": "1",
	"count": "1",
	"info": "OK",
	"infocode": "10000",
	"lives": [{
		"province": "Île-de-France",
		"city": "Paris",
		"adcode": "750000",
		"weather": "Clear",
		"temperature": "18",
		"winddirection": "NW",
		"windpower": "3",
		"humidity": "52",
		"reporttime": "2026-08-30 10:00:00"
	}]
}`

const forecastFixture = `{
	"status": "1",
	"count": "1",
	"info": "OK",
	"infocode": "10000",
	"forecasts": [{
		"city": "Paris",
		"casts": [
			{"date": "2026-08-30", "dayweather": "Clear", "nightweather": "Cloudy",
			 "daytemp": "21", "nighttemp": "14", "daywind": "NW", "nightwind": "N",
			 "daypower": "3", "nightpower": "2"},
			{"date": "2026-08-31", "dayweather": "Rain", "nightweather": "Rain",
			 "daytemp": "17", "nighttemp": "12", "daywind": "W", "nightwind": "W",
			 "daypower": "4", "nightpower": "3"}
		]
	}]
}`

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		Key:     "test-key",
		BaseURL: server.URL,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	t.Run("should require API key", func(t *testing.T) {
		_, err := NewClient(Config{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "key is required")
	})

	t.Run("should apply default base URL", func(t *testing.T) {
		client, err := NewClient(Config{Key: "k", Logger: zerolog.Nop()})
		require.NoError(t, err)
		assert.Equal(t, defaultBaseURL, client.baseURL)
	})
}

func TestClient_Live(t *testing.T) {
	t.Run("should fetch and decode current conditions", func(t *testing.T) {
		var gotQuery map[string]string
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotQuery = map[string]string{
				"key":    r.URL.Query().Get("key"),
				"city":   r.URL.Query().Get("city"),
				"output": r.URL.Query().Get("output"),
			}
			assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
			w.Write([]byte(liveFixture))
		})

		lives, err := client.Live(context.Background(), "750000")
		require.NoError(t, err)
		require.Len(t, lives, 1)
		assert.Equal(t, "Paris", lives[0].City)
		assert.Equal(t, "18", lives[0].Temperature)
		assert.Equal(t, map[string]string{"key": "test-key", "city": "750000", "output": "json"}, gotQuery)
	})

	t.Run("should surface non-OK status", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := client.Live(context.Background(), "750000")
		require.Error(t, err)

		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	})

	t.Run("should surface upstream rejection", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"0","info":"INVALID_USER_KEY","infocode":"10001"}`))
		})

		_, err := client.Live(context.Background(), "750000")
		require.Error(t, err)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "INVALID_USER_KEY", apiErr.Info)
	})

	t.Run("should surface malformed payload", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{truncated`))
		})

		_, err := client.Live(context.Background(), "750000")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse")
	})

	t.Run("should honour context cancellation", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(liveFixture))
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := client.Live(ctx, "750000")
		require.Error(t, err)
	})
}

func TestClient_Forecast(t *testing.T) {
	t.Run("should fetch extended forecast", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "all", r.URL.Query().Get("extensions"))
			w.Write([]byte(forecastFixture))
		})

		forecasts, err := client.Forecast(context.Background(), "750000")
		require.NoError(t, err)
		require.Len(t, forecasts, 1)
		assert.Equal(t, "Paris", forecasts[0].City)
		assert.Len(t, forecasts[0].Casts, 2)
	})
}

func TestClient_LogRedaction(t *testing.T) {
	t.Run("should never log the API key", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(liveFixture))
		}))
		t.Cleanup(server.Close)

		var buf bytes.Buffer
		client, err := NewClient(Config{
			Key:     "SECRET-API-KEY-123",
			BaseURL: server.URL,
			Logger:  zerolog.New(&buf).Level(zerolog.DebugLevel),
		})
		require.NoError(t, err)

		_, err = client.Live(context.Background(), "750000")
		require.NoError(t, err)

		logged := buf.String()
		assert.NotContains(t, logged, "SECRET-API-KEY-123")
		assert.Contains(t, logged, "city=750000")
		assert.Contains(t, logged, "REDACTED")
	})
}

func TestRedactedURL(t *testing.T) {
	t.Run("should mask the key parameter", func(t *testing.T) {
		out := redactedURL("https://example.com/weather?city=750000&key=abc123&output=json")
		assert.NotContains(t, out, "abc123")
		assert.Contains(t, out, "city=750000")
	})

	t.Run("should leave key-less URLs intact", func(t *testing.T) {
		assert.Equal(t, "https://example.com/weather?city=750000",
			redactedURL("https://example.com/weather?city=750000"))
	})
}
