package pdf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"

	"github.com/econsulaire/portal/internal/models"
)

// Generator renders official approval documents as A4 PDFs with a
// verification QR code. Files land under outputDir/documents.
type Generator struct {
	outputDir string
}

func NewGenerator(outputDir string) *Generator {
	return &Generator{outputDir: outputDir}
}

// GenerateOfficial renders the approval document for the application and
// writes it to disk. Returns the stored path and file size.
func (g *Generator) GenerateOfficial(app *models.Application, applicant *models.User) (string, int64, error) {
	content, err := g.render(app, applicant)
	if err != nil {
		return "", 0, err
	}

	dir := filepath.Join(g.outputDir, "documents")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, err
	}

	path := filepath.Join(dir, fmt.Sprintf("document_officiel_%s.pdf", app.ReferenceNumber))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", 0, err
	}
	return path, int64(len(content)), nil
}

func (g *Generator) render(app *models.Application, applicant *models.User) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	// Letterhead
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 7, "REPUBLIQUE DEMOCRATIQUE DU CONGO", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 6, "Ministere des Affaires Etrangeres", "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, "Services Consulaires", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 8, "DOCUMENT OFFICIEL", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Reference: %s", app.ReferenceNumber), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 11)
	line := func(label, value string) {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(55, 7, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(0, 7, value, "", 1, "L", false, 0, "")
	}
	line("Titulaire:", applicant.FullName())
	line("Service:", app.ServiceDisplay())
	line("Statut:", app.Status.Display())
	line("Date de delivrance:", time.Now().Format("02/01/2006"))
	if applicant.PassportNumber != "" {
		line("Passeport:", applicant.PassportNumber)
	}
	pdf.Ln(8)

	pdf.SetFont("Arial", "I", 10)
	pdf.MultiCell(0, 5, "Ce document atteste que la demande referencee ci-dessus a ete validee par les services consulaires de la Republique Democratique du Congo. Le code QR ci-dessous permet d'en verifier l'authenticite.", "", "L", false)
	pdf.Ln(6)

	qrContent := fmt.Sprintf("REF:%s|USER:%s|DATE:%s",
		app.ReferenceNumber, applicant.Email, time.Now().Format("20060102"))
	qrPng, err := qrcode.Encode(qrContent, qrcode.Medium, 256)
	if err != nil {
		return nil, err
	}

	imgOptions := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	reader := bytes.NewReader(qrPng)
	pdf.RegisterImageOptionsReader("qr_verify", imgOptions, reader)

	// Centered 40mm QR block
	pageWidth, _ := pdf.GetPageSize()
	qrSize := 40.0
	pdf.ImageOptions("qr_verify", (pageWidth-qrSize)/2, pdf.GetY(), qrSize, qrSize, false, imgOptions, 0, "")
	pdf.SetY(pdf.GetY() + qrSize + 4)

	pdf.SetFont("Arial", "", 8)
	pdf.CellFormat(0, 5, qrContent, "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
