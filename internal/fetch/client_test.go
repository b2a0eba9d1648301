package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yomihub/yomihub-server/internal/errors"
	"github.com/yomihub/yomihub-server/internal/ratelimit"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(ratelimit.New(0), nil)
	client.http = server.Client()
	return client, server
}

func TestClient_Fetch_DefaultHeaders(t *testing.T) {
	var got http.Header
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte("ok"))
	})

	resp, err := client.Fetch(context.Background(), "test", server.URL, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, []byte("ok"), resp.Body)
	assert.Contains(t, got.Get("User-Agent"), "Mozilla/5.0")
	assert.NotEmpty(t, got.Get("Accept"))
	assert.NotEmpty(t, got.Get("Accept-Language"))
}

func TestClient_Fetch_HeaderOverride(t *testing.T) {
	var got http.Header
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte("{}"))
	})

	_, err := client.Fetch(context.Background(), "test", server.URL, &Options{
		Headers: map[string]string{
			"User-Agent": "custom-agent",
			"Referer":    "https://example.org/",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "custom-agent", got.Get("User-Agent"))
	assert.Equal(t, "https://example.org/", got.Get("Referer"))
}

func TestClient_Fetch_NonSuccessStatus(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.Fetch(context.Background(), "test", server.URL, nil)
	require.Error(t, err)

	var domainErr *errors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, errors.CodeFetch, domainErr.Code)
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
}

func TestClient_JSON(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`{"result":"ok","total":42}`))
	})

	var payload struct {
		Result string `json:"result"`
		Total  int    `json:"total"`
	}
	err := client.JSON(context.Background(), "test", server.URL, &payload, nil)
	require.NoError(t, err)

	assert.Equal(t, "ok", payload.Result)
	assert.Equal(t, 42, payload.Total)
}

func TestClient_JSON_ParseError(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	})

	var payload map[string]any
	err := client.JSON(context.Background(), "test", server.URL, &payload, nil)
	require.Error(t, err)

	var domainErr *errors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, errors.CodeParse, domainErr.Code)
}

func TestClient_Range(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bytes=100-199", r.Header.Get("Range"))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(make([]byte, 100))
	})

	data, err := client.Range(context.Background(), "test", server.URL, 100, 199, nil)
	require.NoError(t, err)
	assert.Len(t, data, 100)
}

func TestClient_Fetch_RespectsSourceInterval(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	client.limiter.SetInterval("slow", 50*time.Millisecond)

	start := time.Now()
	for range 3 {
		_, err := client.Fetch(context.Background(), "slow", server.URL, nil)
		require.NoError(t, err)
	}

	// Two waits after the initial burst.
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestStatusOf_NonFetchError(t *testing.T) {
	assert.Equal(t, 0, StatusOf(context.Canceled))
	assert.Equal(t, 0, StatusOf(errors.Parse("bad payload")))
}
