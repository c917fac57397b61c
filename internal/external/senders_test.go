package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barecourier/internal/types"
)

func newTestPushClient(t *testing.T, url string) *PushClient {
	t.Helper()
	return NewPushClient(newTestClient(t), PushClientConfig{
		EndpointURL: url,
		APIKey:      types.SecretString("push-key"),
		Retry:       testRetryConfig(2),
		Logger:      testLogger(),
	})
}

func newTestEmailClient(t *testing.T, url string) *EmailClient {
	t.Helper()
	return NewEmailClient(newTestClient(t), EmailClientConfig{
		EndpointURL: url,
		APIKey:      types.SecretString("email-key"),
		Retry:       testRetryConfig(2),
		Logger:      testLogger(),
	})
}

func TestPushClient_Send_Success(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer push-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"sent":2}`))
	}))
	defer server.Close()

	res, err := newTestPushClient(t, server.URL).Send(context.Background(), PushMessage{
		RecipientID: "user-1",
		Title:       "Past due",
		Message:     "Service overdue",
		URL:         "https://app.example.com/services/svc-1",
		ServiceRef:  "svc-1",
		Category:    string(types.CategoryPastDue),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)
	assert.False(t, res.Gone)

	assert.Equal(t, "user-1", got["user_id"])
	assert.Equal(t, "svc-1", got["service_id"])
	assert.Equal(t, "past_due", got["type"])
}

func TestPushClient_Send_GoneStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusGone)
		_, _ = w.Write([]byte(`{"error":"no subscriptions"}`))
	}))
	defer server.Close()

	res, err := newTestPushClient(t, server.URL).Send(context.Background(), PushMessage{RecipientID: "user-1"})
	require.Error(t, err)
	assert.True(t, res.Gone)
	assert.True(t, types.IsCode(err, types.ErrCodeUpstreamPush))
	assert.Contains(t, err.Error(), "no subscriptions")
	assert.Equal(t, int32(1), calls.Load())
}

func TestPushClient_Send_NoKeyNoAuthorization(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"success":true,"sent":1}`))
	}))
	defer server.Close()

	client := NewPushClient(newTestClient(t), PushClientConfig{
		EndpointURL: server.URL,
		Retry:       testRetryConfig(0),
		Logger:      testLogger(),
	})
	_, err := client.Send(context.Background(), PushMessage{RecipientID: "user-1"})
	require.NoError(t, err)
}

func TestPushClient_Send_NotFoundIsNotGone(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	res, err := newTestPushClient(t, server.URL+"/wrong-path").Send(context.Background(), PushMessage{RecipientID: "user-1"})
	require.Error(t, err)
	assert.False(t, res.Gone)
	assert.Empty(t, res.GoneEndpoints)
	assert.True(t, types.IsCode(err, types.ErrCodeUpstreamPush))
	assert.Equal(t, int32(1), calls.Load())
}

func TestPushClient_Send_GoneEndpointsOnSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"sent":1,"gone_endpoints":["https://push.example/abc"]}`))
	}))
	defer server.Close()

	res, err := newTestPushClient(t, server.URL).Send(context.Background(), PushMessage{RecipientID: "user-1"})
	require.NoError(t, err)
	assert.True(t, res.Gone)
	assert.Equal(t, []string{"https://push.example/abc"}, res.GoneEndpoints)
}

func TestPushClient_Send_ReportedFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"vapid rejected"}`))
	}))
	defer server.Close()

	_, err := newTestPushClient(t, server.URL).Send(context.Background(), PushMessage{RecipientID: "user-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vapid rejected")
}

func TestPushClient_Send_ServerErrorAfterRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestPushClient(t, server.URL).Send(context.Background(), PushMessage{RecipientID: "user-1"})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeUpstreamPush))
	assert.Equal(t, int32(3), calls.Load())
}

func TestEmailClient_Send_Success(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer email-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"email_id":"em_42"}`))
	}))
	defer server.Close()

	res, err := newTestEmailClient(t, server.URL).Send(context.Background(), EmailMessage{
		RecipientID:  "user-1",
		TemplateID:   "past_due",
		TemplateData: map[string]any{"clientName": "Ana"},
		Locale:       "pt-PT",
		Subject:      "Serviço em atraso",
		Body:         "corpo",
	})
	require.NoError(t, err)
	assert.Equal(t, "em_42", res.EmailID)
	assert.Equal(t, "past_due", got["template"])
	assert.Equal(t, "pt-PT", got["locale"])
}

func TestEmailClient_Send_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestEmailClient(t, server.URL).Send(context.Background(), EmailMessage{RecipientID: "user-1"})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeUpstreamRateLimited))
}

func TestEmailClient_Send_BadRequestNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"error":"unknown template"}`))
	}))
	defer server.Close()

	_, err := newTestEmailClient(t, server.URL).Send(context.Background(), EmailMessage{RecipientID: "user-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown template")
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmailClient_Send_UnreadableBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	_, err := newTestEmailClient(t, server.URL).Send(context.Background(), EmailMessage{RecipientID: "user-1"})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeUpstreamEmailProvider))
}
