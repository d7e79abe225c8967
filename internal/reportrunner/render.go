package reportrunner

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const (
	formatText  = "text"
	formatCSV   = "csv"
	formatJSON  = "json"
	formatTable = "table"

	csvFlushEvery = 200
)

// RowWriter receives one report at a time: its caption, then its rows.
type RowWriter interface {
	BeginReport(rep Report) error
	WriteRow(fields []Field) error
	EndReport() error
	Flush() error
}

func newRowWriter(format string, w io.Writer) (RowWriter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case formatText:
		return &textWriter{w: w}, nil
	case formatCSV:
		return newCSVWriter(w), nil
	case formatJSON:
		return &jsonWriter{enc: json.NewEncoder(w)}, nil
	case formatTable:
		return &tableWriter{w: w}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q (expected text|csv|json|table)", format)
	}
}

// textWriter prints fields joined by ", " without any escaping.
type textWriter struct {
	w       io.Writer
	reports int
}

func (t *textWriter) BeginReport(rep Report) error {
	if t.reports > 0 {
		if _, err := fmt.Fprintln(t.w); err != nil {
			return err
		}
	}
	t.reports++
	_, err := fmt.Fprintln(t.w, rep.Caption)
	return err
}

func (t *textWriter) WriteRow(fields []Field) error {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Text
	}
	_, err := fmt.Fprintln(t.w, strings.Join(parts, ", "))
	return err
}

func (t *textWriter) EndReport() error { return nil }

func (t *textWriter) Flush() error { return nil }

type csvWriter struct {
	buf     *bufio.Writer
	csv     *csv.Writer
	pending int
}

func newCSVWriter(w io.Writer) *csvWriter {
	buf := bufio.NewWriter(w)
	return &csvWriter{buf: buf, csv: csv.NewWriter(buf)}
}

func (c *csvWriter) BeginReport(rep Report) error {
	if err := c.Flush(); err != nil {
		return err
	}
	if _, err := c.buf.WriteString("# " + rep.Caption + "\n"); err != nil {
		return err
	}
	if err := c.csv.Write(rep.ColumnNames()); err != nil {
		return err
	}
	return c.Flush()
}

func (c *csvWriter) WriteRow(fields []Field) error {
	record := make([]string, len(fields))
	for i, f := range fields {
		record[i] = f.Text
	}
	if err := c.csv.Write(record); err != nil {
		return err
	}
	c.pending++
	if c.pending >= csvFlushEvery {
		return c.Flush()
	}
	return nil
}

func (c *csvWriter) EndReport() error {
	return c.Flush()
}

func (c *csvWriter) Flush() error {
	c.csv.Flush()
	if err := c.csv.Error(); err != nil {
		return err
	}
	if err := c.buf.Flush(); err != nil {
		return err
	}
	c.pending = 0
	return nil
}

type jsonRow struct {
	Report string         `json:"report"`
	Row    map[string]any `json:"row"`
}

// jsonWriter emits one JSON object per row and no captions.
type jsonWriter struct {
	enc    *json.Encoder
	report string
}

func (j *jsonWriter) BeginReport(rep Report) error {
	j.report = rep.Key
	return nil
}

func (j *jsonWriter) WriteRow(fields []Field) error {
	row := make(map[string]any, len(fields))
	for _, f := range fields {
		row[f.Name] = f.Value
	}
	return j.enc.Encode(jsonRow{Report: j.report, Row: row})
}

func (j *jsonWriter) EndReport() error { return nil }

func (j *jsonWriter) Flush() error { return nil }

// tableWriter buffers a report and prints it as an aligned table once complete.
type tableWriter struct {
	w       io.Writer
	reports int
	caption string
	columns []string
	rows    [][]string
}

func (t *tableWriter) BeginReport(rep Report) error {
	t.caption = rep.Caption
	t.columns = rep.ColumnNames()
	t.rows = t.rows[:0]
	return nil
}

func (t *tableWriter) WriteRow(fields []Field) error {
	line := make([]string, len(fields))
	for i, f := range fields {
		line[i] = f.Text
	}
	t.rows = append(t.rows, line)
	return nil
}

func (t *tableWriter) EndReport() error {
	var b strings.Builder
	if t.reports > 0 {
		b.WriteByte('\n')
	}
	t.reports++
	b.WriteString(t.caption)
	b.WriteByte('\n')
	b.WriteString(renderTable(t.columns, t.rows))
	b.WriteByte('\n')
	_, err := io.WriteString(t.w, b.String())
	return err
}

func (t *tableWriter) Flush() error { return nil }

func renderTable(columns []string, rows [][]string) string {
	if len(columns) == 0 {
		return "No rows returned."
	}

	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = len(col)
	}

	cleaned := make([][]string, 0, len(rows))
	for _, row := range rows {
		line := make([]string, len(columns))
		for i := range columns {
			if i < len(row) {
				line[i] = flattenCell(row[i])
			}
			if len(line[i]) > widths[i] {
				widths[i] = len(line[i])
			}
		}
		cleaned = append(cleaned, line)
	}

	hline := buildHorizontalLine(widths)
	var b strings.Builder
	b.WriteString(hline)
	b.WriteByte('\n')
	b.WriteString(buildTableRow(columns, widths))
	b.WriteByte('\n')
	b.WriteString(hline)
	b.WriteByte('\n')

	for _, line := range cleaned {
		b.WriteString(buildTableRow(line, widths))
		b.WriteByte('\n')
	}

	b.WriteString(hline)
	if len(rows) == 0 {
		b.WriteString("\n(0 rows)")
	}

	return b.String()
}

func buildHorizontalLine(widths []int) string {
	var b strings.Builder
	b.WriteByte('+')
	for _, w := range widths {
		b.WriteString(strings.Repeat("-", w+2))
		b.WriteByte('+')
	}
	return b.String()
}

func buildTableRow(values []string, widths []int) string {
	var b strings.Builder
	b.WriteByte('|')
	for i, v := range values {
		b.WriteByte(' ')
		b.WriteString(v)
		padding := widths[i] - len(v)
		if padding > 0 {
			b.WriteString(strings.Repeat(" ", padding))
		}
		b.WriteByte(' ')
		b.WriteByte('|')
	}
	return b.String()
}

func flattenCell(v string) string {
	v = strings.ReplaceAll(v, "\n", " ")
	return strings.ReplaceAll(v, "\r", " ")
}
