package meshcore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"meshgate/pkg/meshcore/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(types.ClientConfig{
		APIBaseURL: server.URL,
		TimeoutSec: 5,
	})
}

func TestSendToNode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/messages", r.URL.Path)

		var payload types.SendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "alice", payload.NodeID)
		assert.Empty(t, payload.PubKeyPrefix)
		assert.Equal(t, "hello", payload.Message)

		_ = json.NewEncoder(w).Encode(types.APIResponse{Success: true})
	})

	assert.NoError(t, client.SendToNode(context.Background(), "alice", "hello"))
}

func TestSendToNode_HTTPNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	err := client.SendToNode(context.Background(), "nobody", "hello")

	require.Error(t, err)
	assert.True(t, types.IsNotFound(err))
}

func TestSendToNode_EnvelopeNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(types.APIResponse{
			Success: false,
			Code:    types.APICodeNodeNotFound,
			Error:   "no node matches identifier",
		})
	})

	err := client.SendToNode(context.Background(), "nobody", "hello")

	require.Error(t, err)
	assert.True(t, types.IsNotFound(err))
}

func TestSendToNode_EnvelopeFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(types.APIResponse{
			Success: false,
			Code:    "radio_busy",
			Error:   "radio busy",
		})
	})

	err := client.SendToNode(context.Background(), "alice", "hello")

	require.Error(t, err)
	assert.False(t, types.IsNotFound(err))

	var merr *types.Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, types.ErrorKindAPI, merr.Kind)
}

func TestSendToPubKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var payload types.SendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Empty(t, payload.NodeID)
		assert.Equal(t, "a1b2c3", payload.PubKeyPrefix, "prefix must be truncated and lowercased")

		_ = json.NewEncoder(w).Encode(types.APIResponse{Success: true})
	})

	assert.NoError(t, client.SendToPubKey(context.Background(), "A1B2C3D4E5", "hello"))
}

func TestSendToChannel(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/channels/2/messages", r.URL.Path)

		var payload types.SendChannelRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, 2, payload.ChannelIndex)
		assert.Equal(t, "hello everyone", payload.Message)

		_ = json.NewEncoder(w).Encode(types.APIResponse{Success: true})
	})

	assert.NoError(t, client.SendToChannel(context.Background(), 2, "hello everyone"))
}

func TestSend_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})

	err := client.SendToNode(context.Background(), "alice", "hello")

	require.Error(t, err)
	var merr *types.Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, types.ErrorKindAPI, merr.Kind)
	assert.Equal(t, http.StatusInternalServerError, merr.StatusCode)
}

func TestSend_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(types.ClientConfig{APIBaseURL: server.URL})

	err := client.SendToNode(context.Background(), "alice", "hello")

	require.Error(t, err)
	var merr *types.Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, types.ErrorKindNetwork, merr.Kind)
}
