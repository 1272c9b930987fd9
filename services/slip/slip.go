// Package slip renders roll number slips as PDF.
package slip

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/trezcool/admissions/core/admission"
)

var (
	colorText   = [3]int{0, 0, 0}
	colorMuted  = [3]int{90, 90, 90}
	colorBorder = [3]int{128, 128, 128}
	colorLabel  = [3]int{241, 245, 249}
)

var instructions = map[admission.Class][]string{
	admission.ClassXI: {
		"1. Report at the respective center by 0800 hrs.",
		"2. The written test will start at 0900 hrs and last 4 hours (till 1300 hrs).",
		"3. Subjects: English, Mathematics, Physics, Chemistry.",
		"4. Bring this printed Roll Number Slip and writing material. Calculator is also allowed.",
		"5. Bring writing material; exam booklet will be provided.",
		"6. Mobile phones are strictly prohibited.",
		"7. Parents/Guardians must bring CNIC.",
	},
	admission.ClassVIII: {
		"1. Report at the respective center by 0800 hrs.",
		"2. The written test will start at 0900 hrs and last 3 hours (till 1200 hrs).",
		"3. Subjects: English, Mathematics, Urdu, Islamiat.",
		"4. Bring this printed Roll Number Slip and your CNIC/Form-B.",
		"5. Bring writing material; exam booklet will be provided.",
		"6. Mobile phones are strictly prohibited.",
		"7. Parents/Guardians must bring CNIC.",
	},
}

// Generator renders the one-page roll number slip of a verified application.
type Generator struct {
	college string
	office  string
}

var _ admission.SlipGenerator = (*Generator)(nil)

func NewGenerator() *Generator {
	return &Generator{
		college: "MILITARY COLLEGE MURREE",
		office:  "Admission Office – Military College Murree",
	}
}

func (g *Generator) Generate(app admission.Application) ([]byte, error) {
	if app.RollNumber == "" {
		return nil, fmt.Errorf("application %d has no roll number", app.ID)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(28, 20, 28)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle("Roll Number Slip "+app.RollNumber, true)
	pdf.SetAuthor(g.college, true)
	// same application, same bytes
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(app.UpdatedAt)
	pdf.SetModificationDate(app.UpdatedAt)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	g.writeHeader(pdf, tr, app)
	g.writeDetails(pdf, tr, app)
	g.writeInstructions(pdf, tr, app.Class)
	g.writeFooter(pdf, tr)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("PDF output error: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeHeader(pdf *fpdf.Fpdf, tr func(string) string, app admission.Application) {
	year := admission.AdmissionYear(app.SubmissionDate)
	if app.SubmissionDate.IsZero() {
		year = admission.AdmissionYear(time.Now())
	}

	pdf.SetTextColor(colorText[0], colorText[1], colorText[2])
	pdf.SetY(25)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 9, tr(g.college), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, tr(fmt.Sprintf("ROLL NUMBER SLIP – ENTRANCE TEST %d", year)), "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(colorMuted[0], colorMuted[1], colorMuted[2])
	pdf.CellFormat(0, 6, tr(app.Entry), "", 1, "C", false, 0, "")
}

func (g *Generator) writeDetails(pdf *fpdf.Fpdf, tr func(string) string, app admission.Application) {
	dob := "-"
	if app.DateOfBirth != nil {
		dob = app.DateOfBirth.Format("02-Jan-2006")
	}
	rows := [][2]string{
		{"Roll Number", app.RollNumber},
		{"Candidate Name", orDash(app.Name)},
		{"Father's Name", orDash(app.FatherName)},
		{"Category", orDash(admission.CategoryName(app.Category))},
		{"Test Center", orDash(app.TestCenter)},
		{"Date of Birth", dob},
	}

	pdf.SetY(60)
	pdf.SetDrawColor(colorBorder[0], colorBorder[1], colorBorder[2])
	pdf.SetLineWidth(0.2)
	pdf.SetTextColor(colorText[0], colorText[1], colorText[2])
	for _, row := range rows {
		pdf.SetFillColor(colorLabel[0], colorLabel[1], colorLabel[2])
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(50, 9, tr(row[0]), "1", 0, "L", true, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 9, tr(row[1]), "1", 1, "L", false, 0, "")
	}
}

func (g *Generator) writeInstructions(pdf *fpdf.Fpdf, tr func(string) string, class admission.Class) {
	lines, ok := instructions[class]
	if !ok {
		lines = instructions[admission.ClassVIII]
	}

	pdf.Ln(10)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 7, "INSTRUCTIONS:", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range lines {
		pdf.SetX(35)
		pdf.MultiCell(0, 6, tr(line), "", "L", false)
	}
}

func (g *Generator) writeFooter(pdf *fpdf.Fpdf, tr func(string) string) {
	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()

	pdf.Ln(10)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.SetTextColor(colorMuted[0], colorMuted[1], colorMuted[2])
	pdf.CellFormat(0, 6, tr(g.office), "", 1, "L", false, 0, "")
	y := pdf.GetY() + 6
	pdf.Line(left, y, pageWidth-right, y)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
