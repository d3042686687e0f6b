package duck

import (
	"bytes"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Result is a fully materialized statement result. Columns and rows keep the
// engine's ordering.
type Result struct {
	Columns []Column `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

func (r *Result) Count() int {
	return len(r.Rows)
}

func (r *Result) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, col := range r.Columns {
		names[i] = col.Name
	}
	return names
}

// Render writes the result as a bordered table, one line per row, with each
// header cell showing the column name above its DuckDB type.
func (r *Result) Render(w io.Writer) error {
	if len(r.Columns) == 0 {
		_, err := io.WriteString(w, "Statement executed successfully.\n")
		return err
	}

	header := make([]string, len(r.Columns))
	for i, col := range r.Columns {
		header[i] = cellEscaper.Replace(col.Name)
		if col.Type != "" {
			header[i] += "\n" + cellEscaper.Replace(col.Type)
		}
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(true)
	table.SetHeader(header)
	for _, row := range r.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = FormatValue(v)
		}
		table.Append(cells)
	}
	table.Render()

	rowsLabel := "rows"
	if r.Count() == 1 {
		rowsLabel = "row"
	}
	fmt.Fprintf(&buf, "(%d %s)\n", r.Count(), rowsLabel)

	_, err := w.Write(buf.Bytes())
	return err
}

func (r *Result) String() string {
	var sb strings.Builder
	_ = r.Render(&sb)
	return sb.String()
}

// NullCell marks SQL NULL. Backslashes in text are doubled, so no string
// value renders to it.
const NullCell = `\N`

var cellEscaper = strings.NewReplacer("\\", `\\`, "\n", `\n`, "\r", `\r`, "\t", `\t`, "|", `\|`)

// FormatValue renders a scanned DuckDB value as a single-line table cell.
func FormatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return NullCell
	case string:
		return cellEscaper.Replace(v)
	case []byte:
		return `\x` + hex.EncodeToString(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return cellEscaper.Replace(v.String())
	default:
		return cellEscaper.Replace(fmt.Sprint(v))
	}
}

func scanResult(rows *sql.Rows) (*Result, error) {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}
	columns := make([]Column, len(colTypes))
	for i, ct := range colTypes {
		columns[i] = Column{Name: ct.Name(), Type: ct.DatabaseTypeName()}
	}

	result := &Result{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
