package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplychain-rag/internal/config"
	"supplychain-rag/internal/llmservice"
	"supplychain-rag/internal/rag"
	"supplychain-rag/internal/testutil"
)

type stubAnswerer struct {
	answer string
	err    error
	chunks []string
}

func (a *stubAnswerer) Respond(_ context.Context, _ string, chunks []string) (string, error) {
	a.chunks = chunks
	return a.answer, a.err
}

func newTestServer(t *testing.T, answerer rag.Answerer, maxUploadMB int) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	pipeline, err := rag.NewRAG(answerer, config.RAGConfig{ChunkSize: 16, ChunkOverlap: 4, TopK: 2})
	require.NoError(t, err)
	return New(pipeline, config.ServerConfig{MaxUploadMB: maxUploadMB}).Router()
}

func uploadRequest(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", "no file"))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func upload(t *testing.T, h http.Handler, filename string, data []byte) uploadResponse {
	t.Helper()
	w := do(h, uploadRequest(t, filename, data))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp uploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func queryRequestFor(id, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/documents/%s/query", id), bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t, &stubAnswerer{}, 1)
	w := do(h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestUploadAndQuery(t *testing.T) {
	answerer := &stubAnswerer{answer: "**Acme** faces a *25%* steel tariff."}
	h := newTestServer(t, answerer, 1)

	up := upload(t, h, "suppliers.pdf", testutil.BuildPDF("Acme steel tariff 25 percent. Globex textiles exempt.", ""))
	assert.NotEmpty(t, up.SessionID)
	assert.Equal(t, "suppliers.pdf", up.Filename)
	assert.Greater(t, up.Chunks, 1)

	w := do(h, queryRequestFor(up.SessionID, `{"query":"steel tariff"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp queryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "steel tariff", resp.Query)
	assert.Equal(t, "**Acme** faces a *25%* steel tariff.", resp.Answer)
	assert.Contains(t, resp.AnswerHTML, "<strong>Acme</strong>")
	assert.Contains(t, resp.AnswerHTML, "<em>25%</em>")
	require.Len(t, resp.Sources, 2)
	assert.GreaterOrEqual(t, resp.Sources[0].Score, resp.Sources[1].Score)
	assert.Equal(t, []string{resp.Sources[0].Content, resp.Sources[1].Content}, answerer.chunks)
}

func TestUpload_Errors(t *testing.T) {
	h := newTestServer(t, &stubAnswerer{}, 1)

	w := do(h, uploadRequest(t, "", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(h, uploadRequest(t, "photo.jpg", []byte{0xff, 0xd8}))
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	w = do(h, uploadRequest(t, "broken.pdf", bytes.Repeat([]byte("not a pdf "), 20)))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(h, uploadRequest(t, "huge.txt", bytes.Repeat([]byte("x"), 1<<20+1)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestQuery_Errors(t *testing.T) {
	answerer := &stubAnswerer{err: fmt.Errorf("%w: 429 quota exceeded", llmservice.ErrModelUnavailable)}
	h := newTestServer(t, answerer, 1)
	up := upload(t, h, "notes.txt", []byte("lead times"))

	w := do(h, queryRequestFor("missing", `{"query":"x"}`))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(h, queryRequestFor(up.SessionID, `{"query":`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(h, queryRequestFor(up.SessionID, `{"query":"  "}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(h, queryRequestFor(up.SessionID, `{"query":"lead"}`))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "quota exceeded")
}

func TestDeleteSession(t *testing.T) {
	h := newTestServer(t, &stubAnswerer{answer: "ok"}, 1)
	up := upload(t, h, "notes.txt", []byte("lead times"))

	w := do(h, httptest.NewRequest(http.MethodDelete, "/api/v1/documents/"+up.SessionID, nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(h, queryRequestFor(up.SessionID, `{"query":"lead"}`))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(h, httptest.NewRequest(http.MethodDelete, "/api/v1/documents/"+up.SessionID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
