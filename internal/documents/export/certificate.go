// Package export renders audit data into downloadable artifacts.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// CertificateData carries the audit fields rendered onto a certificate.
// SignedHash and Placement stay empty for pending documents.
type CertificateData struct {
	DocumentID   string
	Status       string
	OriginalHash string
	SignedHash   string
	Placement    string
	RecordedAt   time.Time
}

// BuildCertificate renders a single-page A4 summary of a document's audit
// record.
func BuildCertificate(data CertificateData) ([]byte, error) {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetMargins(18, 22, 18)
	doc.SetAutoPageBreak(true, 22)
	doc.AddPage()

	doc.SetFont("Arial", "B", 18)
	doc.SetTextColor(31, 56, 100)
	doc.CellFormat(0, 12, "Signing Audit Certificate", "", 1, "C", false, 0, "")

	doc.SetFont("Arial", "", 10)
	doc.SetTextColor(100, 100, 100)
	doc.CellFormat(0, 7, fmt.Sprintf("Document %s", data.DocumentID), "", 1, "C", false, 0, "")
	doc.Ln(8)

	writeField := func(label, value string) {
		if value == "" {
			value = "-"
		}
		doc.SetFont("Arial", "B", 10)
		doc.SetTextColor(0, 0, 0)
		doc.CellFormat(45, 7, label, "", 0, "L", false, 0, "")
		doc.SetFont("Courier", "", 9)
		doc.MultiCell(0, 7, value, "", "L", false)
	}

	writeField("Status", data.Status)
	writeField("Recorded At", data.RecordedAt.UTC().Format(time.RFC3339))
	writeField("Original SHA-256", data.OriginalHash)
	writeField("Signed SHA-256", data.SignedHash)
	writeField("Placement", data.Placement)

	doc.Ln(10)
	doc.SetFont("Arial", "I", 8)
	doc.SetTextColor(128, 128, 128)
	doc.CellFormat(0, 6, fmt.Sprintf("Generated %s", time.Now().UTC().Format(time.RFC3339)), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}
