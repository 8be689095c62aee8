package report

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-pdf/fpdf"

	"buyside-ai/analysis"
	"buyside-ai/models"
	"buyside-ai/observability"
)

// Title is the heading on the first page of every report
const Title = "BuySideAI Financial Report"

// Filename is the download name of the report
const Filename = "financial_report.pdf"

const (
	maxCellChars = 15

	tickerColWidth = 22.0
	metricColWidth = 24.0
	headerHeight   = 12.0
	rowHeight      = 8.0

	chartX     = 10.0
	chartY     = 30.0
	chartWidth = 180.0
)

// ErrEmptyMetrics is returned when there is nothing to put in the table
var ErrEmptyMetrics = errors.New("metrics table is empty")

// Composer assembles the PDF report
type Composer struct {
	tempDir  string
	fontPath string
}

// NewComposer creates a composer. tempDir is where chart images are staged
// (empty means the system default). fontPath optionally names a UTF-8 TrueType
// font; without it the core Helvetica font is used and characters outside
// cp1252 are replaced.
func NewComposer(tempDir, fontPath string) *Composer {
	return &Composer{tempDir: tempDir, fontPath: fontPath}
}

// Compose renders the metrics grid, the narrative (if any) and the chart image
// (if any) into a PDF document.
func (c *Composer) Compose(metrics *models.MetricsTable, narrative *models.Narrative, chartPNG []byte) ([]byte, error) {
	if metrics.Len() == 0 {
		return nil, ErrEmptyMetrics
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.SetTitle(Title, true)
	pdf.SetCreator("buyside-ai", true)

	font, tr := c.setupFont(pdf)

	pdf.AddPage()

	pdf.SetFont(font, "B", 16)
	pdf.CellFormat(0, 10, Title, "", 1, "C", false, 0, "")
	pdf.Ln(10)

	writeTable(pdf, font, tr, metrics)

	if narrative != nil {
		writeNarrative(pdf, font, tr, *narrative)
	}

	if len(chartPNG) > 0 {
		if err := c.addChart(pdf, chartPNG); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}

	observability.GetMetrics().RecordReport(len(chartPNG) > 0, buf.Len())
	observability.Debug("report generated", "size", buf.Len(), "rows", metrics.Len())
	return buf.Bytes(), nil
}

func (c *Composer) setupFont(pdf *fpdf.Fpdf) (string, func(string) string) {
	if c.fontPath == "" {
		return "Helvetica", pdf.UnicodeTranslatorFromDescriptor("")
	}
	pdf.AddUTF8Font("report", "", c.fontPath)
	pdf.AddUTF8Font("report", "B", c.fontPath)
	return "report", func(s string) string { return s }
}

func writeTable(pdf *fpdf.Fpdf, font string, tr func(string) string, metrics *models.MetricsTable) {
	headers := append([]string{models.ColumnTicker}, models.MetricColumns...)
	widths := make([]float64, len(headers))
	widths[0] = tickerColWidth
	for i := 1; i < len(widths); i++ {
		widths[i] = metricColWidth
	}

	left, _, _, _ := pdf.GetMargins()

	// Header cells wrap, so draw the shaded boxes first and the labels inside them.
	pdf.SetFont(font, "B", 8)
	pdf.SetFillColor(230, 230, 250)
	y := pdf.GetY()
	x := left
	for i, label := range headers {
		pdf.Rect(x, y, widths[i], headerHeight, "FD")
		pdf.SetXY(x, y+1)
		pdf.MultiCell(widths[i], 5, tr(label), "", "C", false)
		x += widths[i]
	}
	pdf.SetXY(left, y+headerHeight)

	pdf.SetFont(font, "", 9)
	for _, row := range metrics.Rows {
		cells := make([]string, 0, len(headers))
		cells = append(cells, row.Ticker)
		for _, v := range row.Values() {
			cells = append(cells, cellText(v))
		}
		for i, text := range cells {
			ln := 0
			if i == len(cells)-1 {
				ln = 1
			}
			pdf.CellFormat(widths[i], rowHeight, tr(truncate(text)), "1", ln, "C", false, 0, "")
		}
	}
}

func writeNarrative(pdf *fpdf.Fpdf, font string, tr func(string) string, n models.Narrative) {
	pdf.Ln(10)

	label := "AI Analysis:"
	if !n.OK() {
		label = "AI Analysis unavailable:"
	}
	pdf.SetFont(font, "B", 12)
	pdf.CellFormat(0, 10, label, "", 1, "L", false, 0, "")

	pdf.SetFont(font, "", 11)
	for _, line := range strings.Split(n.Message(), "\n") {
		pdf.MultiCell(0, 7, tr(strings.TrimRight(line, "\r")), "", "L", false)
	}
}

// addChart stages the image in a temp file for the duration of the call.
func (c *Composer) addChart(pdf *fpdf.Fpdf, png []byte) error {
	f, err := os.CreateTemp(c.tempDir, "buyside-chart-*.png")
	if err != nil {
		return fmt.Errorf("failed to create chart temp file: %w", err)
	}
	name := f.Name()
	defer os.Remove(name)

	if _, err := f.Write(png); err != nil {
		f.Close()
		return fmt.Errorf("failed to write chart temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close chart temp file: %w", err)
	}

	pdf.AddPage()
	pdf.ImageOptions(name, chartX, chartY, chartWidth, 0, false, fpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}, 0, "")
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to embed chart: %w", err)
	}
	return nil
}

func cellText(v *float64) string {
	if v == nil {
		return "-"
	}
	return analysis.FormatValue(v)
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxCellChars {
		return s
	}
	return string(r[:maxCellChars])
}
