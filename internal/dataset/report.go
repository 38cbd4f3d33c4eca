package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
)

// ReportTitle heads the PDF report.
const ReportTitle = "Adaptive Intrusion Detection Report"

// WriteCSV writes the records with an extra Traffic_Type column. The header
// row numbers the original columns.
func (d *Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, d.Columns+1)
	for i := 0; i < d.Columns; i++ {
		header = append(header, strconv.Itoa(i))
	}
	header = append(header, "Traffic_Type")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("dataset: write csv: %w", err)
	}

	row := make([]string, d.Columns+1)
	for _, r := range d.Records {
		for i := 0; i < d.Columns; i++ {
			row[i] = ""
			if i < len(r.Fields) {
				row[i] = r.Fields[i]
			}
		}
		row[d.Columns] = r.Traffic.String()
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("dataset: write csv: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("dataset: write csv: %w", err)
	}
	return nil
}

// WritePDF renders the summary of d as a one-page PDF.
func (d *Dataset) WritePDF(w io.Writer, generated time.Time) error {
	s := d.Summary()

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(ReportTitle, false)
	pdf.SetCreationDate(generated)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, ReportTitle, "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 6, "Generated "+generated.UTC().Format(time.RFC3339), "", 1, "L", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "", 12)
	for _, line := range []string{
		fmt.Sprintf("Total Records: %d", s.Total),
		fmt.Sprintf("Normal Traffic: %d", s.Normal),
		fmt.Sprintf("Attack Traffic: %d", s.Attack),
		fmt.Sprintf("Attack Share: %.1f%%", s.AttackPercent()),
	} {
		pdf.CellFormat(0, 10, line, "", 1, "L", false, 0, "")
	}
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(40, 8, "Protocol", "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 8, "Normal", "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, "Attack", "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 12)
	for _, proto := range Protocols {
		pc, ok := s.ByProtocol[proto]
		if !ok {
			continue
		}
		pdf.CellFormat(40, 8, proto, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 8, strconv.Itoa(pc.Normal), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 8, strconv.Itoa(pc.Attack), "1", 1, "R", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("dataset: write pdf: %w", err)
	}
	return nil
}
