package storage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"

	"github.com/econsulaire/portal/internal/utils"
)

var (
	ErrFileTooLarge       = errors.New("file exceeds the size limit")
	ErrFileTypeNotAllowed = errors.New("file type not allowed")
)

// Store writes uploaded supporting documents to local disk under a
// per-application naming scheme.
type Store struct {
	dir      string
	maxBytes int64
}

func New(dir string, maxBytes int64) *Store {
	return &Store{dir: dir, maxBytes: maxBytes}
}

// SavedFile describes a stored upload.
type SavedFile struct {
	Filename         string
	OriginalFilename string
	Path             string
	Size             int64
	MimeType         string
}

// SaveUpload stores one multipart file for the application. The stored name
// is {appID}_{docType}_{timestamp}_{sanitized original}.
func (s *Store) SaveUpload(appID uint, docType string, header *multipart.FileHeader) (*SavedFile, error) {
	if header.Size > s.maxBytes {
		return nil, ErrFileTooLarge
	}
	if !utils.AllowedFile(header.Filename) {
		return nil, ErrFileTypeNotAllowed
	}

	src, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, err
	}

	clean := utils.SanitizeFilename(header.Filename)
	stored := fmt.Sprintf("%d_%s_%d_%s", appID, docType, time.Now().Unix(), clean)
	path := filepath.Join(s.dir, stored)

	dst, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer dst.Close()

	written, err := io.Copy(dst, io.LimitReader(src, s.maxBytes+1))
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	if written > s.maxBytes {
		os.Remove(path)
		return nil, ErrFileTooLarge
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	return &SavedFile{
		Filename:         stored,
		OriginalFilename: header.Filename,
		Path:             path,
		Size:             written,
		MimeType:         mimeType,
	}, nil
}

// Open returns a reader for a stored file. The path must live under the
// store directory.
func (s *Store) Open(path string) (*os.File, error) {
	absDir, err := filepath.Abs(s.dir)
	if err != nil {
		return nil, err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if absPath != absDir && !isWithin(absDir, absPath) {
		return nil, errors.New("path outside the storage directory")
	}
	return os.Open(absPath)
}

// Remove deletes a stored file, ignoring files that are already gone.
func (s *Store) Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !filepath.IsAbs(rel) && !hasDotDotPrefix(rel)
}

func hasDotDotPrefix(rel string) bool {
	return rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator)
}
