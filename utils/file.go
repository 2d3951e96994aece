// utils/file.go
package utils

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

const uploadDir = "./uploads"

// EnsureUploadDir creates the local upload root used when R2 is not
// configured. Served via the app's /uploads static route.
func EnsureUploadDir() error {
	return os.MkdirAll(uploadDir, os.ModePerm)
}

// SaveEvidenceLocally writes a multipart evidence file under ./uploads and
// returns the URL path it is served from.
func SaveEvidenceLocally(fileHeader *multipart.FileHeader, key string) (string, error) {
	dest := filepath.Join(uploadDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create evidence dir: %w", err)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create evidence file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return "", fmt.Errorf("failed to write evidence file: %w", err)
	}

	return "/uploads/" + key, nil
}
