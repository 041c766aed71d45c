package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwapModel(t *testing.T) {
	ts, runtime := newTestServer(t, &stubService{}, &stubPinger{}, nil)

	resp := postJSON(t, ts.URL+"/model", `{"model": "mxbai-embed-large"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "mxbai-embed-large", body["current_model"])
	assert.Equal(t, "nomic-embed-text", body["previous_model"])
	assert.Equal(t, "mxbai-embed-large", runtime.Snapshot().EmbeddingModel)
}

func TestSwapModel_EmptyModel(t *testing.T) {
	ts, runtime := newTestServer(t, &stubService{}, &stubPinger{}, nil)

	resp := postJSON(t, ts.URL+"/model", `{"model": ""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "nomic-embed-text", runtime.Snapshot().EmbeddingModel)
}

func TestGetConfig_MasksPassword(t *testing.T) {
	ts, _ := newTestServer(t, &stubService{}, &stubPinger{}, nil)

	resp, err := http.Get(ts.URL + "/api/config/get")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "spark", body["db_user"])
	assert.Equal(t, "nomic-embed-text", body["embedding_model"])
	assert.NotEqual(t, "secret", body["db_password"])
	assert.NotEmpty(t, body["db_password"])
}

func TestSetConfig_PartialPatch(t *testing.T) {
	ts, runtime := newTestServer(t, &stubService{}, &stubPinger{}, nil)

	resp := postJSON(t, ts.URL+"/api/config/set", `{"ollama_model": "mistral"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "Configuration updated successfully", body["message"])
	// The response is a confirmation, not a settings echo.
	assert.NotContains(t, body, "db_password")

	got := runtime.Snapshot()
	assert.Equal(t, "mistral", got.OllamaModel)
	// Untouched fields keep their values.
	assert.Equal(t, "spark", got.DBUser)
	assert.Equal(t, "nomic-embed-text", got.EmbeddingModel)
}

func TestSetConfig_InvalidCandidateRejected(t *testing.T) {
	ts, runtime := newTestServer(t, &stubService{}, &stubPinger{}, nil)

	resp := postJSON(t, ts.URL+"/api/config/set", `{"db_port": 99999}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	// Nothing published.
	assert.Equal(t, 5432, runtime.Snapshot().DBPort)
}

func TestSetConfig_DatabaseChangeTriggersReconnect(t *testing.T) {
	var gotDSN string
	reconnect := func(_ context.Context, dsn string) error {
		gotDSN = dsn
		return nil
	}
	ts, _ := newTestServer(t, &stubService{}, &stubPinger{}, reconnect)

	resp := postJSON(t, ts.URL+"/api/config/set", `{"db_host": "db.internal"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, gotDSN, "host=db.internal")
}

func TestSetConfig_ModelChangeSkipsReconnect(t *testing.T) {
	called := false
	reconnect := func(context.Context, string) error {
		called = true
		return nil
	}
	ts, _ := newTestServer(t, &stubService{}, &stubPinger{}, reconnect)

	resp := postJSON(t, ts.URL+"/api/config/set", `{"embedding_model": "mxbai-embed-large"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, called, "model-only changes must not rebuild the pool")
}
