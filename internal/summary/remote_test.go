package summary

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teampulse.app/agent/internal/models"
)

func testPrompt() Prompt {
	return NewCompiler("").Compile(nil, Period{Label: "Week 1"})
}

func TestRemoteCompleteSuccess(t *testing.T) {
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generateSummary", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"# Report"}}],"model":"gpt-4.1","usage":{"prompt_tokens":10,"completion_tokens":20,"total_tokens":30}}`))
	}))
	defer srv.Close()

	client := NewRemoteClient(srv.URL+"/api/", WithBearerToken("secret"))
	out, err := client.Complete(context.Background(), testPrompt(), DefaultOptions("gpt-4.1"))
	require.NoError(t, err)

	assert.Equal(t, "# Report", out.Text)
	assert.Equal(t, "gpt-4.1", out.Model)
	require.NotNil(t, out.Usage)
	assert.Equal(t, 30, out.Usage.TotalTokens)

	assert.Equal(t, "gpt-4.1", got.Model)
	assert.Equal(t, 0.3, got.Temperature)
	assert.Equal(t, 1500, got.MaxTokens)
	assert.Equal(t, 0.3, got.PresencePenalty)
	assert.Equal(t, 0.3, got.FrequencyPenalty)
	assert.Len(t, got.Messages, 2)
}

func TestRemoteCompleteFillsZeroOptions(t *testing.T) {
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}],"model":"m"}`))
	}))
	defer srv.Close()

	_, err := NewRemoteClient(srv.URL).Complete(context.Background(), testPrompt(), Options{Model: "m", MaxTokens: 200})
	require.NoError(t, err)

	assert.Equal(t, 0.3, got.Temperature)
	assert.Equal(t, 200, got.MaxTokens)
	assert.Equal(t, 0.3, got.PresencePenalty)
	assert.Equal(t, 0.3, got.FrequencyPenalty)
}

func TestRemoteCompleteWithoutUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}],"model":"m"}`))
	}))
	defer srv.Close()

	out, err := NewRemoteClient(srv.URL).Complete(context.Background(), testPrompt(), DefaultOptions("m"))
	require.NoError(t, err)
	assert.Nil(t, out.Usage)
}

func TestRemoteValidationBeforeNetwork(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	client := NewRemoteClient(srv.URL)

	_, err := client.Complete(context.Background(), Prompt{}, DefaultOptions("m"))
	assert.True(t, errors.Is(err, models.ErrValidation))

	_, err = client.Complete(context.Background(), testPrompt(), DefaultOptions(""))
	assert.True(t, errors.Is(err, models.ErrValidation))

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestRemoteErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
		kind   Kind
	}{
		{"rate limit", 429, `{"error":"Rate limit exceeded","code":"rate_limit_exceeded"}`, ErrQuotaExceeded, KindQuotaExceeded},
		{"quota", 429, `{"error":"Quota","code":"insufficient_quota"}`, ErrQuotaExceeded, KindQuotaExceeded},
		{"context length", 413, `{"error":"too long","code":"context_length_exceeded"}`, ErrPayloadTooLarge, KindPayloadTooLarge},
		{"auth", 500, `{"error":"Managed Identity authentication failed","code":"auth_error"}`, ErrAuth, KindAuth},
		{"unauthorized", 401, `{"error":"no token"}`, ErrAuth, KindAuth},
		{"bad request", 400, `{"error":"Invalid request: model is required"}`, ErrUpstream, KindUpstream},
		{"internal", 500, `{"error":"boom","code":"internal_error","details":"stack"}`, ErrUpstream, KindUpstream},
		{"empty error body", 502, ``, ErrUpstream, KindUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewRemoteClient(srv.URL).Complete(context.Background(), testPrompt(), DefaultOptions("m"))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.False(t, errors.Is(err, ErrNetwork))

			var ce *CompletionError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.kind, ce.Kind)
			assert.Equal(t, tt.status, ce.Status)
		})
	}
}

func TestRemoteQuotaIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"code":"rate_limit_exceeded"}`))
	}))
	defer srv.Close()

	_, err := NewRemoteClient(srv.URL).Complete(context.Background(), testPrompt(), DefaultOptions("m"))
	var ce *CompletionError
	require.True(t, errors.As(err, &ce))
	assert.True(t, ce.Retryable())
	assert.Equal(t, "rate_limit_exceeded", ce.Code)
}

func TestRemoteNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewRemoteClient(url).Complete(context.Background(), testPrompt(), DefaultOptions("m"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetwork))
	assert.False(t, errors.Is(err, ErrUpstream))
}

func TestRemoteSuccessWithoutBodyIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := NewRemoteClient(srv.URL).Complete(context.Background(), testPrompt(), DefaultOptions("m"))
	assert.True(t, errors.Is(err, ErrNetwork))
}

func TestRemoteNoChoicesIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[],"model":"m"}`))
	}))
	defer srv.Close()

	_, err := NewRemoteClient(srv.URL).Complete(context.Background(), testPrompt(), DefaultOptions("m"))
	assert.True(t, errors.Is(err, ErrUpstream))
}

func TestRemoteHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	assert.True(t, NewRemoteClient(srv.URL).HealthCheck(context.Background()))

	srv.Close()
	assert.False(t, NewRemoteClient(srv.URL).HealthCheck(context.Background()))
}
