package pdf

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/econsulaire/portal/internal/models"
)

func TestGenerateOfficialWritesPDF(t *testing.T) {
	dir := t.TempDir()
	gen := NewGenerator(dir)

	app := &models.Application{
		ReferenceNumber: "CAR2026123456",
		ServiceType:     models.ServiceConsularCard,
		Status:          models.StatusApproved,
	}
	applicant := &models.User{
		FirstName:      "Marie",
		LastName:       "Kabila",
		Email:          "marie@example.com",
		PassportNumber: "OP1234567",
	}

	path, size, err := gen.GenerateOfficial(app, applicant)
	if err != nil {
		t.Fatalf("GenerateOfficial: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(dir, "documents") {
		t.Errorf("file written to %s, want it under %s", path, filepath.Join(dir, "documents"))
	}
	if filepath.Base(path) != "document_officiel_CAR2026123456.pdf" {
		t.Errorf("unexpected filename %s", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if int64(len(data)) != size {
		t.Errorf("reported size %d, file has %d bytes", size, len(data))
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Error("output does not start with a PDF header")
	}
}
