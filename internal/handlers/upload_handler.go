package handlers

import (
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/damir-m/splitmate/internal/config"
	"github.com/damir-m/splitmate/pkg/logger"
	"github.com/damir-m/splitmate/pkg/middleware"
)

// acceptedImageTypes is the MIME whitelist for payment QR uploads.
var acceptedImageTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
}

// UploadHandler accepts payment QR images and returns an opaque URL. The
// engine stores that URL verbatim on bills and never inspects it again.
type UploadHandler struct {
	Config *config.Config
}

// NewUploadHandler initializes a new UploadHandler.
func NewUploadHandler(cfg *config.Config) *UploadHandler {
	return &UploadHandler{Config: cfg}
}

// UploadQrHandler saves an uploaded image and responds with its URL.
func (h *UploadHandler) UploadQrHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.Config.MaxUploadBytes); err != nil {
		http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
		logger.Log.Warnf("QR upload exceeded size limit: %v", err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Failed to read file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > h.Config.MaxUploadBytes {
		http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}

	// Sniff the real content type rather than trusting the header
	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		http.Error(w, "Failed to read file", http.StatusBadRequest)
		return
	}
	contentType := http.DetectContentType(buf[:n])
	ext, ok := acceptedImageTypes[contentType]
	if !ok {
		http.Error(w, "Only PNG and JPEG images are accepted", http.StatusUnsupportedMediaType)
		logger.Log.Warnf("Rejected QR upload with content type %s", contentType)
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		http.Error(w, "Failed to read file", http.StatusInternalServerError)
		return
	}

	if err := os.MkdirAll(h.Config.UploadDir, os.ModePerm); err != nil {
		http.Error(w, "Failed to save file", http.StatusInternalServerError)
		return
	}

	fileName := uuid.NewString() + ext
	filePath := filepath.Join(h.Config.UploadDir, fileName)

	out, err := os.Create(filePath)
	if err != nil {
		http.Error(w, "Failed to save file", http.StatusInternalServerError)
		return
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		http.Error(w, "Failed to save file", http.StatusInternalServerError)
		return
	}

	fileURL := "/uploads/" + fileName
	logger.Log.Infof("User %s uploaded QR image %s", claims.UserID, fileName)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"url":  fileURL,
		"name": header.Filename,
	})
}
