package storage

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func multipartFile(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("document", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write(content)
	mw.Close()

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		t.Fatalf("parse multipart: %v", err)
	}
	return req.MultipartForm.File["document"][0]
}

func TestSaveUpload(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, 1024)

	saved, err := store.SaveUpload(42, "justificatif", multipartFile(t, "mon dossier.pdf", []byte("%PDF-1.4 test")))
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if saved.OriginalFilename != "mon dossier.pdf" {
		t.Errorf("original = %q", saved.OriginalFilename)
	}
	if !strings.HasPrefix(saved.Filename, "42_justificatif_") {
		t.Errorf("stored name = %q, want appID and docType prefix", saved.Filename)
	}
	if !strings.HasSuffix(saved.Filename, "_mon_dossier.pdf") {
		t.Errorf("stored name = %q, want sanitized original suffix", saved.Filename)
	}
	if saved.Size != int64(len("%PDF-1.4 test")) {
		t.Errorf("size = %d", saved.Size)
	}

	content, err := os.ReadFile(saved.Path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(content) != "%PDF-1.4 test" {
		t.Error("stored content differs")
	}
}

func TestSaveUploadRejectsOversize(t *testing.T) {
	store := New(t.TempDir(), 8)
	_, err := store.SaveUpload(1, "justificatif", multipartFile(t, "big.pdf", bytes.Repeat([]byte("a"), 100)))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("got %v, want ErrFileTooLarge", err)
	}
}

func TestSaveUploadRejectsDisallowedType(t *testing.T) {
	store := New(t.TempDir(), 1024)
	_, err := store.SaveUpload(1, "justificatif", multipartFile(t, "script.exe", []byte("MZ")))
	if !errors.Is(err, ErrFileTypeNotAllowed) {
		t.Errorf("got %v, want ErrFileTypeNotAllowed", err)
	}
}

func TestOpenRefusesEscapes(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, 1024)

	outside := filepath.Join(dir, "..", "secret.txt")
	if _, err := store.Open(outside); err == nil {
		t.Error("path escaping the store directory should be refused")
	}
}
