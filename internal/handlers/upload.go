package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"complaintdesk/internal/ctxkeys"
	"complaintdesk/internal/storage"
)

// Allowed file types and the default size limit for attachments.
const defaultMaxUpload = 10 << 20 // 10 MB

var allowedTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
}

// uploadError is an attachment the client must fix.
type uploadError struct{ msg string }

func (e *uploadError) Error() string { return e.msg }

// UploadHandler stores complaint attachments and serves them back.
type UploadHandler struct {
	store    storage.Store
	maxBytes int64
	log      *logrus.Entry
	now      func() time.Time
}

// NewUploadHandler creates an UploadHandler. maxBytes <= 0 means 10 MB.
func NewUploadHandler(store storage.Store, maxBytes int64, logger *logrus.Logger) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUpload
	}
	return &UploadHandler{
		store:    store,
		maxBytes: maxBytes,
		log:      logger.WithField("component", "upload"),
		now:      time.Now,
	}
}

// Upload handles multipart file uploads.
// Accepts: POST with multipart/form-data containing a "file" field.
// Returns: file metadata (url, name, size, type) as JSON.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if !parseMultipart(w, r, h.maxBytes) {
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		JSONError(w, http.StatusBadRequest, "Missing 'file' field in form data.")
		return
	}
	defer file.Close()

	owner := ""
	if p := ctxkeys.GetPrincipal(r.Context()); p != nil {
		owner = p.UserID
	}

	info, err := saveAttachment(r.Context(), h.store, file, header, owner, h.now())
	if err != nil {
		var ue *uploadError
		if errors.As(err, &ue) {
			JSONError(w, http.StatusBadRequest, ue.msg)
			return
		}
		h.log.WithError(err).Error("upload failed")
		JSONError(w, http.StatusInternalServerError, "Failed to save file.")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"data": info})
}

// fileOpener is implemented by stores that keep files on local disk.
type fileOpener interface {
	Open(key string) (*os.File, error)
}

// ServeFile serves uploaded files.
// For R2 storage, redirects to the public CDN URL.
// For local storage, serves from disk.
func (h *UploadHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	filePath := strings.TrimPrefix(r.URL.Path, "/api/files/")
	if filePath == "" {
		JSONError(w, http.StatusBadRequest, "File path required.")
		return
	}

	opener, local := h.store.(fileOpener)
	if !local {
		http.Redirect(w, r, h.store.URL(filePath), http.StatusTemporaryRedirect)
		return
	}

	f, err := opener.Open(filePath)
	if err != nil {
		JSONError(w, http.StatusNotFound, "File not found.")
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil || stat.IsDir() {
		JSONError(w, http.StatusNotFound, "File not found.")
		return
	}
	http.ServeContent(w, r, stat.Name(), stat.ModTime(), f)
}

// parseMultipart enforces the size limit and parses the form. It writes the
// error response itself.
func parseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		JSONError(w, http.StatusBadRequest, fmt.Sprintf("File too large. Maximum size is %dMB.", maxBytes>>20))
		return false
	}
	return true
}

// saveAttachment sniffs the first 512 bytes of file, rejects types outside
// allowedTypes and stores it under the owner's attachment prefix.
func saveAttachment(ctx context.Context, store storage.Store, file multipart.File, header *multipart.FileHeader, ownerID string, now time.Time) (*storage.FileInfo, error) {
	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return nil, &uploadError{"Could not read file."}
	}
	contentType := http.DetectContentType(buffer[:n])
	if !allowedTypes[contentType] {
		return nil, &uploadError{fmt.Sprintf("File type '%s' not allowed. Accepted: PDF, JPG, PNG.", contentType)}
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind upload: %w", err)
	}

	key := storage.AttachmentKey(ownerID, header.Filename, now)
	return store.Save(ctx, key, file, contentType)
}
