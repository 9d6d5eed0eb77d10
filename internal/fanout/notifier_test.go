package fanout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/solite/pkg/httpclient"
)

func TestHTTPNotifierPostsNotification(t *testing.T) {
	var gotAuth string
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, NotificationsPath, r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	notifier, err := NewHTTPNotifier(httpclient.New(server.URL, time.Second), BreakerSettings{})
	require.NoError(t, err)

	err = notifier.Notify(context.Background(), Job{
		PostID:      "post-1",
		Message:     `A new post titled "Go" has been created.`,
		BearerToken: "abc",
	})
	require.NoError(t, err)
	require.Equal(t, "Bearer abc", gotAuth)
	require.Equal(t, "post-1", gotBody["post_id"])
	require.Equal(t, `A new post titled "Go" has been created.`, gotBody["message"])
}

func TestHTTPNotifierReportsUpstreamStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	notifier, err := NewHTTPNotifier(httpclient.New(server.URL, time.Second), BreakerSettings{})
	require.NoError(t, err)

	err = notifier.Notify(context.Background(), Job{PostID: "p"})
	var statusErr *httpclient.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
}

func TestHTTPNotifierBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	notifier, err := NewHTTPNotifier(httpclient.New(server.URL, time.Second), BreakerSettings{
		ConsecutiveFailures: 2,
		OpenTimeout:         time.Minute,
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.Error(t, notifier.Notify(context.Background(), Job{PostID: "p"}))
	}
	require.Equal(t, gobreaker.StateOpen, notifier.State())

	err = notifier.Notify(context.Background(), Job{PostID: "p"})
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	require.Equal(t, int32(2), calls.Load())
}

func TestNewHTTPNotifierRequiresClient(t *testing.T) {
	_, err := NewHTTPNotifier(nil, BreakerSettings{})
	require.Error(t, err)
}
