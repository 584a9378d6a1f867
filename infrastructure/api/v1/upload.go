package v1

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/smartsense/smartsense/infrastructure/api/middleware"
)

// UploadField is the multipart field carrying the uploaded file.
const UploadField = "file"

// DefaultMaxUploadBytes caps multipart request bodies.
const DefaultMaxUploadBytes = 64 << 20

// openUpload returns the uploaded file and its original name.
func openUpload(w http.ResponseWriter, req *http.Request, maxBytes int64) (multipart.File, string, error) {
	req.Body = http.MaxBytesReader(w, req.Body, maxBytes)
	file, header, err := req.FormFile(UploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", middleware.NewAPIError(http.StatusRequestEntityTooLarge, "upload is too large", err)
		}
		return nil, "", middleware.BadRequest(fmt.Sprintf("multipart field %q is required", UploadField), err)
	}
	return file, filepath.Base(header.Filename), nil
}

// writeAtomic copies src into a temporary file next to dst and renames it
// over dst, so readers never observe a partial file.
func writeAtomic(dst string, src io.Reader) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("replace %s: %w", dst, err)
	}
	return nil
}
