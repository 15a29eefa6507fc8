package publisher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ContentFactory/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPBackendPublishStatusMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		status    int
		body      string
		success   bool
		retryable bool
		externID  string
	}{
		{name: "ok", status: 200, body: `{"success":true,"video_id":"v1","url":"https://x/v1"}`, success: true, externID: "v1"},
		{name: "created", status: 201, body: `{"success":true,"video_id":"v2"}`, success: true, externID: "v2"},
		{name: "throttled", status: 429, body: `{"error":"slow down"}`, retryable: true},
		{name: "server error", status: 502, body: ``, retryable: true},
		{name: "bad request", status: 400, body: `{"error":"title too long"}`},
		{name: "forbidden", status: 403, body: `forbidden`},
		{name: "soft failure", status: 200, body: `{"success":false,"error":"busy"}`, retryable: true},
		{name: "soft permanent", status: 200, body: `{"success":false,"error":"banned","retryable":false}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			resp, err := NewHTTPBackend("tiktok", srv.URL, "").Publish(context.Background(), ports.PublishRequest{AccountID: "a"})
			require.NoError(t, err)
			assert.Equal(t, tc.success, resp.Success)
			assert.Equal(t, tc.externID, resp.ExternalID)
			if !tc.success {
				assert.Equal(t, tc.retryable, resp.Retryable)
				assert.NotEmpty(t, resp.Error)
			}
		})
	}
}

func TestHTTPBackendPublishPayload(t *testing.T) {
	t.Parallel()

	var got publishPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/youtube/publish", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"video_id":"abc"}`))
	}))
	defer srv.Close()

	b := NewHTTPBackend("youtube", srv.URL+"/", "k")
	assert.Equal(t, "youtube", b.Platform())

	_, err := b.Publish(context.Background(), ports.PublishRequest{
		AccountID:    "main",
		ArtifactPath: "/out/a.mp4",
		Title:        "Title",
		Tags:         []string{"a", "b"},
		Privacy:      "public",
	})
	require.NoError(t, err)
	assert.Equal(t, "/out/a.mp4", got.ArtifactPath)
	assert.Equal(t, "public", got.Privacy)
	assert.Equal(t, []string{"a", "b"}, got.Tags)
}

func TestHTTPBackendTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	_, err := NewHTTPBackend("tiktok", srv.URL, "").Publish(context.Background(), ports.PublishRequest{})
	require.Error(t, err)
}

func TestHTTPBackendFetchFeedback(t *testing.T) {
	t.Parallel()

	since := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instagram/analytics", r.URL.Path)
		assert.Equal(t, "2026-10-14T00:00:00Z", r.URL.Query().Get("since"))
		_, _ = w.Write([]byte(`[{"hour":18,"views":25000},{"hour":42,"views":1},{"hour":12,"views":9000}]`))
	}))
	defer srv.Close()

	feedback, err := NewHTTPBackend("instagram", srv.URL, "").FetchFeedback(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, feedback, 2)
	assert.Equal(t, "instagram", feedback[0].Platform)
	assert.Equal(t, 18, feedback[0].ScheduledHour)
	assert.Equal(t, 25000, feedback[0].ActualReach)
	assert.Equal(t, 12, feedback[1].ScheduledHour)
}
