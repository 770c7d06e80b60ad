package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damir-m/splitmate/internal/config"
	jwtutil "github.com/damir-m/splitmate/pkg/jwt"
	"github.com/damir-m/splitmate/pkg/logger"
	"github.com/damir-m/splitmate/pkg/middleware"
)

// pngHeader is the PNG magic number, enough for content-type sniffing.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func setupUploadServer(t *testing.T, maxBytes int64) *httptest.Server {
	t.Helper()
	logger.InitLogger()

	cfg := &config.Config{
		JWTSecret:      testSecret,
		UploadDir:      t.TempDir(),
		MaxUploadBytes: maxBytes,
	}
	handler := NewUploadHandler(cfg)

	router := mux.NewRouter()
	uploadRoutes := router.PathPrefix("/upload").Subrouter()
	uploadRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	uploadRoutes.HandleFunc("", handler.UploadQrHandler).Methods("POST")

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func multipartUpload(t *testing.T, url, token, filename string, content []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, url+"/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestUploadQrImage(t *testing.T) {
	server := setupUploadServer(t, 5<<20)
	token, err := jwtutil.GenerateToken("user-1", "alice", testSecret, time.Hour)
	require.NoError(t, err)

	resp := multipartUpload(t, server.URL, token, "qr.png", pngHeader)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		URL  string `json:"url"`
		Name string `json:"name"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, strings.HasPrefix(body.URL, "/uploads/"))
	assert.Equal(t, "qr.png", body.Name)
}

func TestUploadRejectsNonImage(t *testing.T) {
	server := setupUploadServer(t, 5<<20)
	token, err := jwtutil.GenerateToken("user-1", "alice", testSecret, time.Hour)
	require.NoError(t, err)

	resp := multipartUpload(t, server.URL, token, "notes.txt", []byte("just some text"))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	server := setupUploadServer(t, 64)
	token, err := jwtutil.GenerateToken("user-1", "alice", testSecret, time.Hour)
	require.NoError(t, err)

	big := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 4096)...)
	resp := multipartUpload(t, server.URL, token, "qr.png", big)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestUploadRequiresAuth(t *testing.T) {
	server := setupUploadServer(t, 5<<20)

	resp := multipartUpload(t, server.URL, "bad-token", "qr.png", pngHeader)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
