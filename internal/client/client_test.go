package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"agt_platform/internal/domain/model"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientUploadAndGet(t *testing.T) {
	var gotAuth, gotFilename, gotContent string
	r := chi.NewRouter()
	r.Post("/api/assignments", func(w http.ResponseWriter, req *http.Request) {
		gotAuth = req.Header.Get("Authorization")
		f, h, err := req.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		b, _ := io.ReadAll(f)
		gotFilename, gotContent = h.Filename, string(b)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "a1"})
	})
	r.Get("/api/assignments/{id}", func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(model.Assignment{ID: chi.URLParam(req, "id"), Status: model.StatusGrading})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	c := New(srv.URL+"/", WithToken("tok"))
	id, err := c.Upload(context.Background(), "/tmp/essay.docx", strings.NewReader("my essay"))
	require.NoError(t, err)
	assert.Equal(t, "a1", id)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "essay.docx", gotFilename)
	assert.Equal(t, "my essay", gotContent)

	a, err := c.Get(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusGrading, a.Status)
}

func TestClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"assignment a1 is grading, cannot move to grading"}`))
	}))
	defer srv.Close()

	err := New(srv.URL).StartGrading(context.Background(), "a1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, http.MethodPost, apiErr.Method)
	assert.Equal(t, "/api/assignments/a1/grade", apiErr.Path)
	assert.Contains(t, apiErr.Error(), "cannot move to grading")
}
