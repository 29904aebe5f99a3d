package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-insights/internal/common/auth"
	"fleet-insights/internal/common/errors"
	httpclient "fleet-insights/internal/common/http"
)

func newTestCaller(serverURL string) *HTTPCaller {
	return NewHTTPCaller(serverURL, "fleet-history", httpclient.NewClient(5*time.Second))
}

func TestHTTPCaller_EnvelopeAndScopeFlag(t *testing.T) {
	var captured requestEnvelope
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"result":{"apiResult":{"results":[{"chat_id":"c-1"}]}}}`))
	}))
	defer server.Close()

	caller := newTestCaller(server.URL)
	results, err := caller.Call(context.Background(), fnCreateChat, nil, auth.Credentials{Token: "tok"})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c-1", results[0]["chat_id"])

	assert.Equal(t, "fleet-history", captured.Service)
	assert.Equal(t, fnCreateChat, captured.FunctionName)
	// Omitting this flag turns real data into an empty success on the
	// remote side; it must be set on every single call.
	assert.True(t, captured.IsCustomerData)
	assert.NotNil(t, captured.Params)
	assert.Equal(t, "tok", captured.SessionToken)
}

func TestHTTPCaller_ErrorEnvelopeForwardedVerbatim(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"message":"quota exhausted for tenant 7"}}`))
	}))
	defer server.Close()

	caller := newTestCaller(server.URL)
	_, err := caller.Call(context.Background(), fnSubmit, map[string]interface{}{"chat_id": "c"}, auth.Credentials{})

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRemoteError, errors.CodeOf(err))
	assert.Contains(t, err.Error(), "quota exhausted for tenant 7")
}

func TestHTTPCaller_Non200IsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	caller := newTestCaller(server.URL)
	_, err := caller.Call(context.Background(), fnStatus, nil, auth.Credentials{})

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTransportFailed, errors.CodeOf(err))
}

func TestHTTPCaller_UnreachableServer(t *testing.T) {
	caller := newTestCaller("http://127.0.0.1:1")
	_, err := caller.Call(context.Background(), fnCreateChat, nil, auth.Credentials{})

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTransportFailed, errors.CodeOf(err))
}

func TestHTTPCaller_MissingResultYieldsNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	caller := newTestCaller(server.URL)
	results, err := caller.Call(context.Background(), fnStatus, nil, auth.Credentials{})

	require.NoError(t, err)
	assert.Empty(t, results)
}
