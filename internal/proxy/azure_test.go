package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest() CompletionRequest {
	return CompletionRequest{
		Deployment:       "gpt-4.1",
		Messages:         []json.RawMessage{json.RawMessage(`{"role":"user","content":"hi"}`)},
		Temperature:      0.3,
		MaxTokens:        1500,
		PresencePenalty:  0.3,
		FrequencyPenalty: 0.3,
	}
}

func TestAzureClientWithAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/deployments/gpt-4.1/chat/completions", r.URL.Path)
		assert.Equal(t, "2024-10-21", r.URL.Query().Get("api-version"))
		assert.Equal(t, "k-123", r.Header.Get("api-key"))
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4.1", body["model"])
		assert.Equal(t, float64(1500), body["max_tokens"])

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}],"model":"gpt-4.1","usage":{"total_tokens":3}}`))
	}))
	defer srv.Close()

	c := NewAzureClient(Config{Endpoint: srv.URL + "/", APIVersion: "2024-10-21"}, Credentials{APIKey: "k-123"})
	resp, err := c.ChatCompletion(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1", resp.Model)
	assert.JSONEq(t, `[{"message":{"content":"ok"}}]`, string(resp.Choices))
}

func TestAzureClientWithClientCredentials(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		assert.Equal(t, cognitiveScope, r.Form.Get("scope"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"aad-token","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenSrv.Close()

	var calls int
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "Bearer aad-token", r.Header.Get("Authorization"))
		assert.Equal(t, DefaultAPIVersion, r.URL.Query().Get("api-version"))
		_, _ = w.Write([]byte(`{"choices":[],"model":"m"}`))
	}))
	defer apiSrv.Close()

	c := NewAzureClient(
		Config{Endpoint: apiSrv.URL},
		Credentials{TenantID: "tenant", ClientID: "client", ClientSecret: "secret"},
		WithTokenURL(tokenSrv.URL),
	)
	for i := 0; i < 2; i++ {
		_, err := c.ChatCompletion(context.Background(), sampleRequest())
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
}

func TestAzureClientTokenFailure(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer tokenSrv.Close()

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called without a token")
	}))
	defer apiSrv.Close()

	c := NewAzureClient(Config{Endpoint: apiSrv.URL}, Credentials{ClientID: "client"}, WithTokenURL(tokenSrv.URL))
	_, err := c.ChatCompletion(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTokenAcquisition))

	status, body := mapError(err)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "auth_error", body.Code)
}

func TestAzureClientUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"context_length_exceeded","message":"This model's maximum context length is 8192 tokens"}}`))
	}))
	defer srv.Close()

	c := NewAzureClient(Config{Endpoint: srv.URL}, Credentials{APIKey: "k"})
	_, err := c.ChatCompletion(context.Background(), sampleRequest())

	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusBadRequest, ue.Status)
	assert.Equal(t, "context_length_exceeded", ue.Code)

	status, body := mapError(err)
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
	assert.Equal(t, "context_length_exceeded", body.Code)
}

func TestAzureClientNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("bad gateway"))
	}))
	defer srv.Close()

	c := NewAzureClient(Config{Endpoint: srv.URL}, Credentials{APIKey: "k"})
	_, err := c.ChatCompletion(context.Background(), sampleRequest())

	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "bad gateway", ue.Message)

	status, _ := mapError(err)
	assert.Equal(t, http.StatusBadGateway, status)
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv("AZURE_OPENAI_API_KEY", "key")
	t.Setenv("AZURE_TENANT_ID", "tenant")
	t.Setenv("AZURE_CLIENT_ID", "client")
	t.Setenv("AZURE_CLIENT_SECRET", "secret")

	assert.Equal(t, Credentials{APIKey: "key", TenantID: "tenant", ClientID: "client", ClientSecret: "secret"}, CredentialsFromEnv())
}
