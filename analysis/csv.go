package analysis

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"buyside-ai/models"
)

// MetricsToCSV renders the metrics table as CSV with a header row.
// Null cells are written as empty fields.
func MetricsToCSV(table *models.MetricsTable) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := append([]string{models.ColumnTicker}, models.MetricColumns...)
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, row := range table.Rows {
		record := make([]string, 0, len(header))
		record = append(record, row.Ticker)
		for _, v := range row.Values() {
			record = append(record, FormatValue(v))
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("failed to write csv row for %s: %w", row.Ticker, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.String(), nil
}

// ParseMetricsCSV parses the output of MetricsToCSV. Columns are matched by header name.
func ParseMetricsCSV(data string) (*models.MetricsTable, error) {
	records, err := csv.NewReader(strings.NewReader(data)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv has no header row")
	}

	index := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		index[name] = i
	}
	tickerCol, ok := index[models.ColumnTicker]
	if !ok {
		return nil, fmt.Errorf("csv is missing the %q column", models.ColumnTicker)
	}
	cols := make([]int, len(models.MetricColumns))
	for k, name := range models.MetricColumns {
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("csv is missing the %q column", name)
		}
		cols[k] = i
	}

	table := &models.MetricsTable{Rows: make([]models.TickerMetrics, 0, len(records)-1)}
	for line, rec := range records[1:] {
		row := models.TickerMetrics{Ticker: rec[tickerCol]}
		values := make([]*float64, len(cols))
		for k, i := range cols {
			field := strings.TrimSpace(rec[i])
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("csv line %d column %q: %w", line+2, models.MetricColumns[k], err)
			}
			values[k] = &v
		}
		row.SetValues(values)
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// FormatValue formats a metric cell the way the narrative and the report show it:
// whole numbers keep one decimal ("20.0") and nil is empty.
func FormatValue(v *float64) string {
	if v == nil {
		return ""
	}
	s := strconv.FormatFloat(*v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") && !strings.Contains(s, "Inf") && !strings.Contains(s, "NaN") {
		s += ".0"
	}
	return s
}
