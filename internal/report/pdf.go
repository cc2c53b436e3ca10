// Package report renders prediction results as PDF and keeps each
// session's latest result for download.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/Skufu/medipredict/internal/predict"
)

// FileName is the attachment name offered to browsers.
const FileName = "medical_report.pdf"

const (
	Title      = "MediPredict AI - Patient Report"
	Disclaimer = "This tool is for educational purposes only. Always consult a certified medical professional. " +
		"The predictions provided by this AI should not be taken as a final medical diagnosis."
)

const (
	lineHeight = 6.0
	gap        = 4.0
)

// Write renders res as a PDF to w. generated is printed as the report date.
func Write(w io.Writer, res *predict.Result, generated time.Time) error {
	if res == nil {
		return fmt.Errorf("render report: no result")
	}
	pdf := build(res, generated)
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

func build(res *predict.Result, generated time.Time) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetTitle(Title, true)
	pdf.SetCreator("MediPredict", true)
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	heading := func(text string) {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 8, tr(text), "", 1, "L", false, 0, "")
	}
	body := func(text string) {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, lineHeight, tr(text), "", "L", false)
	}

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, Title, "", 1, "C", false, 0, "")
	body("Date: " + generated.Format("2006-01-02 15:04:05"))
	pdf.Ln(gap)

	heading("Symptoms Entered:")
	body(strings.Join(res.SymptomsEntered, ", "))
	pdf.Ln(gap)

	heading("Primary Predicted Disease: " + res.PrimaryPrediction)
	body(fmt.Sprintf("Confidence Score: %.2f%%", res.Confidence))
	body(fmt.Sprintf("Risk Level: %s (severity score %g)", res.RiskLevel, res.SeverityScore))
	body(fmt.Sprintf("Model Agreement: %d/3", res.ModelAgreement))
	pdf.Ln(gap)

	heading("Top Predictions:")
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(230, 236, 245)
	pdf.CellFormat(120, 7, "Disease", "1", 0, "L", true, 0, "")
	pdf.CellFormat(40, 7, "Confidence", "1", 1, "R", true, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	for _, c := range res.Top3Predictions {
		pdf.CellFormat(120, 7, tr(c.Disease), "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 7, fmt.Sprintf("%.2f%%", c.Confidence), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(gap)

	heading("Disease Description:")
	body(res.Description)
	pdf.Ln(gap)

	heading("Recommended Precautions:")
	if len(res.Precautions) == 0 {
		body("None listed.")
	}
	for _, p := range res.Precautions {
		body("- " + p)
	}

	pdf.Ln(3 * gap)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "--- MEDICAL DISCLAIMER ---", "", 1, "L", false, 0, "")
	pdf.SetTextColor(200, 0, 0)
	body(Disclaimer)
	pdf.SetTextColor(0, 0, 0)

	return pdf
}
