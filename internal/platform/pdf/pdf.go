// Package pdf renders prescriptions and wraps uploaded images as PDF.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-pdf/fpdf"
)

var ErrUnsupportedImage = errors.New("unsupported image type")

// Item is one medication line of a prescription.
type Item struct {
	MedicationName string
	Dosage         string
	Frequency      string
	Quantity       string
	Duration       string
	Instructions   string
}

// Prescription is the template context of a rendered prescription.
type Prescription struct {
	ID                   string
	PrescribedDate       time.Time
	PatientName          string
	PatientDateOfBirth   string
	PatientGender        string
	DoctorName           string
	DoctorSpecialization string
	LicenseNumber        string
	Hospital             string
	Diagnosis            string
	Notes                string
	Items                []Item
}

const (
	pageMarginMM = 15.0
	lineHeight   = 6.0
)

// RenderPrescription lays out a single-document prescription.
func RenderPrescription(rx Prescription) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(pageMarginMM, pageMarginMM, pageMarginMM)
	doc.SetAutoPageBreak(true, pageMarginMM)
	doc.SetTitle("Prescription "+rx.ID, true)
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 18)
	doc.CellFormat(0, 10, tr("Medical Prescription"), "", 1, "C", false, 0, "")
	doc.SetFont("Helvetica", "", 9)
	doc.CellFormat(0, 5, tr("Prescription ID: "+rx.ID), "", 1, "C", false, 0, "")
	doc.Ln(4)

	section := func(title string) {
		doc.SetFont("Helvetica", "B", 12)
		doc.CellFormat(0, 8, tr(title), "B", 1, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 10)
	}
	field := func(label, value string) {
		if value == "" {
			return
		}
		doc.SetFont("Helvetica", "B", 10)
		doc.CellFormat(45, lineHeight, tr(label), "", 0, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 10)
		doc.MultiCell(0, lineHeight, tr(value), "", "L", false)
	}

	section("Doctor")
	field("Name:", "Dr. "+rx.DoctorName)
	field("Specialization:", rx.DoctorSpecialization)
	field("License No.:", rx.LicenseNumber)
	field("Hospital:", rx.Hospital)
	doc.Ln(2)

	section("Patient")
	field("Name:", rx.PatientName)
	field("Date of birth:", rx.PatientDateOfBirth)
	field("Gender:", rx.PatientGender)
	field("Date:", rx.PrescribedDate.Format("2006-01-02 15:04"))
	doc.Ln(2)

	if rx.Diagnosis != "" {
		section("Diagnosis")
		doc.MultiCell(0, lineHeight, tr(rx.Diagnosis), "", "L", false)
		doc.Ln(2)
	}

	section("Medications")
	widths := []float64{50, 28, 32, 18, 52}
	headers := []string{"Medication", "Dosage", "Frequency", "Qty", "Duration"}
	doc.SetFont("Helvetica", "B", 9)
	doc.SetFillColor(235, 235, 235)
	for i, h := range headers {
		doc.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	doc.Ln(-1)
	doc.SetFont("Helvetica", "", 9)
	for _, it := range rx.Items {
		cells := []string{it.MedicationName, it.Dosage, it.Frequency, it.Quantity, it.Duration}
		for i, v := range cells {
			doc.CellFormat(widths[i], 7, tr(v), "1", 0, "L", false, 0, "")
		}
		doc.Ln(-1)
		if it.Instructions != "" {
			doc.SetFont("Helvetica", "I", 8)
			doc.MultiCell(0, 5, tr("Instructions: "+it.Instructions), "LRB", "L", false)
			doc.SetFont("Helvetica", "", 9)
		}
	}
	doc.Ln(4)

	if rx.Notes != "" {
		section("Notes")
		doc.MultiCell(0, lineHeight, tr(rx.Notes), "", "L", false)
		doc.Ln(4)
	}

	doc.SetY(-40)
	doc.SetFont("Helvetica", "", 10)
	doc.CellFormat(0, lineHeight, "______________________________", "", 1, "R", false, 0, "")
	doc.CellFormat(0, lineHeight, tr("Dr. "+rx.DoctorName), "", 1, "R", false, 0, "")

	return output(doc)
}

// ImageToPDF places a JPEG, PNG or GIF image on a single A4 page, scaled to
// fit inside the margins with its aspect ratio kept.
func ImageToPDF(data []byte) ([]byte, error) {
	imgType, err := imageType(data)
	if err != nil {
		return nil, err
	}

	doc := fpdf.New("P", "mm", "A4", "")
	doc.AddPage()
	opts := fpdf.ImageOptions{ImageType: imgType, ReadDpi: true}
	info := doc.RegisterImageOptionsReader("upload", opts, bytes.NewReader(data))
	if doc.Err() {
		return nil, fmt.Errorf("decode image: %w", doc.Error())
	}

	pageW, pageH := doc.GetPageSize()
	maxW := pageW - 2*pageMarginMM
	maxH := pageH - 2*pageMarginMM
	w, h := info.Width(), info.Height()
	if w <= 0 || h <= 0 {
		return nil, ErrUnsupportedImage
	}
	scale := maxW / w
	if h*scale > maxH {
		scale = maxH / h
	}
	w, h = w*scale, h*scale
	x := (pageW - w) / 2
	y := (pageH - h) / 2

	doc.ImageOptions("upload", x, y, w, h, false, opts, 0, "")
	return output(doc)
}

// IsImage reports whether data is an image ImageToPDF accepts.
func IsImage(data []byte) bool {
	_, err := imageType(data)
	return err == nil
}

// IsPDF reports whether data starts with the PDF magic.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

func imageType(data []byte) (string, error) {
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return "JPG", nil
	case "image/png":
		return "PNG", nil
	case "image/gif":
		return "GIF", nil
	}
	return "", ErrUnsupportedImage
}

func output(doc *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
