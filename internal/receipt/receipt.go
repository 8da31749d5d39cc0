// Package receipt validates receipt files and stores them somewhere an
// expense can point at.
package receipt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// MaxSize is the largest accepted receipt, in bytes.
const MaxSize = 10 << 20

var allowedTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"application/pdf": ".pdf",
}

var ErrTooLarge = errors.New("receipt exceeds 10MB")

// Validate checks the declared type and size of a receipt before upload.
func Validate(fileName, contentType string, size int64) error {
	if strings.TrimSpace(fileName) == "" {
		return core.NewValidationError("receipt", "file name is required")
	}
	if _, ok := allowedTypes[contentType]; !ok {
		return core.NewValidationError("receipt", "only JPEG, PNG, GIF and PDF files are allowed")
	}
	if size < 0 || size > MaxSize {
		return core.NewValidationError("receipt", "file size must be less than 10MB")
	}
	return nil
}

// Uploader stores a receipt and returns a URL that resolves to it.
type Uploader interface {
	Upload(ctx context.Context, fileName, contentType string, r io.Reader) (string, error)
}

// LocalUploader copies receipts into a directory and hands out file:// URLs.
type LocalUploader struct {
	dir    string
	logger *log.Logger
}

func NewLocalUploader(dir string, logger *log.Logger) (*LocalUploader, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create receipts directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve receipts directory: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &LocalUploader{dir: abs, logger: logger.WithComponent(log.ComponentReceipt)}, nil
}

// Upload writes at most MaxSize bytes from r; longer input fails with ErrTooLarge.
func (u *LocalUploader) Upload(ctx context.Context, fileName, contentType string, r io.Reader) (string, error) {
	ext, ok := allowedTypes[contentType]
	if !ok {
		return "", core.NewValidationError("receipt", "unsupported content type "+contentType)
	}

	path := filepath.Join(u.dir, uuid.NewString()+ext)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create receipt file: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(r, MaxSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > MaxSize {
		err = ErrTooLarge
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("store receipt: %w", err)
	}

	u.logger.InfoContext(ctx, "Receipt stored", "file_name", fileName, "path", path, "bytes", n)
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String(), nil
}

// Attach uploads the file and returns the receipt to stamp on an expense.
func Attach(ctx context.Context, u Uploader, fileName, contentType string, size int64, r io.Reader) (core.Receipt, error) {
	if err := Validate(fileName, contentType, size); err != nil {
		return core.Receipt{}, err
	}
	fileURL, err := u.Upload(ctx, fileName, contentType, r)
	if err != nil {
		return core.Receipt{}, err
	}
	return core.Receipt{
		FileName:   filepath.Base(fileName),
		FileURL:    fileURL,
		UploadDate: time.Now().UTC(),
	}, nil
}
