package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"

	"github.com/gmsas95/medtrack/internal/tracker"
)

// pdfRecentLogs caps the dose log section of the PDF.
const pdfRecentLogs = 20

// WriteCSV writes Rows as CSV.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(r.Rows()); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// WriteXLSX writes a workbook with a Logs sheet holding Rows and a
// Medications sheet.
func (r *Report) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "Logs"); err != nil {
		return err
	}
	for i, row := range r.Rows() {
		if err := setRow(f, "Logs", i+1, row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet("Medications"); err != nil {
		return err
	}
	medHeader := []string{"Name", "Dosage", "Frequency", "Times", "Category", "Start Date", "End Date", "Instructions"}
	if err := setRow(f, "Medications", 1, medHeader); err != nil {
		return err
	}
	for i, m := range r.Medications {
		cells := []interface{}{m.Name, m.Dosage, m.Frequency, joinTimes(m.Times), string(m.Category), m.StartDate, m.EndDate, m.Instructions}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow("Medications", cell, &cells); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

func joinTimes(times []tracker.TimeOfDay) string {
	parts := make([]string, len(times))
	for i, t := range times {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}

// WritePDF renders the printable report: header, summary, medication list
// and the most recent filtered logs.
func (r *Report) WritePDF(w io.Writer) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.Text(20, 20, "MedTrack - Medication Report")

	pdf.SetFont("Helvetica", "", 12)
	pdf.Text(20, 35, tr("Profile: "+r.Profile))
	pdf.Text(20, 45, "Generated: "+r.Generated.Format(dateLayout))
	pdf.Text(20, 55, "Period: "+r.Range.Label())

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Text(20, 75, "Summary")
	pdf.SetFont("Helvetica", "", 12)
	pdf.Text(20, 90, fmt.Sprintf("Total Medications: %d", r.Summary.Medications))
	pdf.Text(20, 100, fmt.Sprintf("Total Dose Logs: %d", r.Summary.Logs))
	pdf.Text(20, 110, fmt.Sprintf("Doses Taken: %d", r.Summary.Taken))
	pdf.Text(20, 120, fmt.Sprintf("Doses Missed: %d", r.Summary.Missed))
	pdf.Text(20, 130, fmt.Sprintf("Adherence Rate: %d%%", r.Summary.Adherence))

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Text(20, 150, "Active Medications")
	pdf.SetFont("Helvetica", "", 10)
	y := 165.0
	for i, m := range r.Medications {
		if y > 270 {
			pdf.AddPage()
			y = 20
		}
		pdf.Text(20, y, tr(fmt.Sprintf("%d. %s - %s (%dx daily)", i+1, m.Name, m.Dosage, m.Frequency)))
		pdf.Text(25, y+8, tr("Category: "+string(m.Category)))
		pdf.Text(25, y+16, "Times: "+joinTimes(m.Times))
		y += 25
	}

	if len(r.Logs) > 0 {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 16)
		pdf.Text(20, 20, "Recent Dose Logs")
		pdf.SetFont("Helvetica", "", 10)

		logs := r.Logs
		if len(logs) > pdfRecentLogs {
			logs = logs[len(logs)-pdfRecentLogs:]
		}
		y = 35
		for _, l := range logs {
			if y > 270 {
				pdf.AddPage()
				y = 20
			}
			row := r.logRow(l)
			pdf.Text(20, y, row[0]+" "+row[1])
			pdf.Text(20, y+8, tr(row[2]+" - "+strings.ToUpper(row[5])))
			if l.Notes != "" {
				pdf.Text(25, y+16, tr("Notes: "+l.Notes))
				y += 24
			} else {
				y += 16
			}
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}
