package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tickerfeed/internal/models"
)

func TestGetDocument_SendsBrowserUserAgent(t *testing.T) {
	var gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`<html><body><h1 class="title">Hello</h1></body></html>`))
	}))
	defer server.Close()

	client := New(WithUserAgent("TestAgent/1.0"), WithLogger(arbor.NewLogger()))
	doc, err := client.GetDocument(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "TestAgent/1.0", gotAgent)
	assert.Equal(t, "Hello", doc.Find("h1.title").Text())
}

func TestGetDocument_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(WithLogger(arbor.NewLogger()))
	_, err := client.GetDocument(context.Background(), server.URL)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)

	fe := AsFetchError("fetch_quote", "", server.URL, err)
	assert.Equal(t, models.FailureHTTPStatus, fe.Kind)
	assert.ErrorIs(t, fe, models.ErrNetwork)
	assert.ErrorIs(t, fe, models.ErrHTTPStatus)
}

func TestGetDocument_TimeoutIsNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := New(WithTimeout(50*time.Millisecond), WithLogger(arbor.NewLogger()))
	_, err := client.GetDocument(context.Background(), server.URL)
	require.Error(t, err)

	fe := AsFetchError("fetch_quote", "", server.URL, err)
	assert.Equal(t, models.FailureNetwork, fe.Kind)
	assert.ErrorIs(t, fe, models.ErrNetwork)
	assert.NotErrorIs(t, fe, models.ErrHTTPStatus)
}

func TestWithRateLimit_ZeroDisables(t *testing.T) {
	client := New(WithRateLimit(0))
	assert.Nil(t, client.limiter)

	client = New(WithRateLimit(0.5))
	require.NotNil(t, client.limiter)
	assert.Equal(t, 1, client.limiter.Burst())
}
