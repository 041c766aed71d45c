package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spark-health/sparkai/internal/rag"
)

func TestAddData_Success(t *testing.T) {
	svc := &stubService{ingestN: 7}
	ts, _ := newTestServer(t, svc, &stubPinger{}, nil)

	resp := postJSON(t, ts.URL+"/api/add_data", `{"data": "cholera spreads through contaminated water"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "Inserted 7 chunks", decodeBody(t, resp)["message"])
	assert.Equal(t, "cholera spreads through contaminated water", svc.lastDocument)
}

func TestAddData_EmptyContent(t *testing.T) {
	ts, _ := newTestServer(t, &stubService{}, &stubPinger{}, nil)

	for _, body := range []string{`{}`, `{"data": ""}`, `not json`} {
		resp := postJSON(t, ts.URL+"/api/add_data", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "body: %s", body)
	}
}

func TestAddData_EmbeddingFailureIsBadGateway(t *testing.T) {
	svc := &stubService{ingestErr: &rag.EmbeddingError{Chunk: 3, Inserted: 3, Err: errors.New("embedder down")}}
	ts, _ := newTestServer(t, svc, &stubPinger{}, nil)

	resp := postJSON(t, ts.URL+"/api/add_data", `{"data": "doc"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "embedding provider failed", decodeBody(t, resp)["error"])
}

func TestAddData_OtherFailureIsInternal(t *testing.T) {
	svc := &stubService{ingestErr: errors.New("disk full")}
	ts, _ := newTestServer(t, svc, &stubPinger{}, nil)

	resp := postJSON(t, ts.URL+"/api/add_data", `{"data": "doc"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "failed to insert data", decodeBody(t, resp)["error"])
}
