package http

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// UploadsPrefix is the public path of stored files.
const UploadsPrefix = "/uploads/"

// maxUploadMemory is the part of a multipart body kept in memory.
const maxUploadMemory = 32 << 20

// Uploads stores files submitted with multipart writes.
type Uploads struct {
	Dir string
}

// Save copies fh into Dir under a fresh name and returns its public URL.
func (u *Uploads) Save(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(u.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	name := uuid.NewString() + strings.ToLower(filepath.Ext(fh.Filename))
	dst, err := os.Create(filepath.Join(u.Dir, name))
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close upload: %w", err)
	}
	return path.Join(UploadsPrefix, name), nil
}

// Form reads a multipart body into a field map. Plain fields keep their
// first value; file fields become the URL of the stored file.
func (u *Uploads) Form(r *http.Request) (map[string]any, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return nil, fmt.Errorf("parse multipart: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	fields := make(map[string]any, len(r.MultipartForm.Value)+len(r.MultipartForm.File))
	for k, vs := range r.MultipartForm.Value {
		if len(vs) > 0 {
			fields[k] = vs[0]
		}
	}
	for k, fhs := range r.MultipartForm.File {
		if len(fhs) == 0 {
			continue
		}
		url, err := u.Save(fhs[0])
		if err != nil {
			return nil, err
		}
		fields[k] = url
	}
	return fields, nil
}

// FileServer serves stored files below UploadsPrefix.
func (u *Uploads) FileServer() http.Handler {
	return http.FileServer(http.Dir(u.Dir))
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}
