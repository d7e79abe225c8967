package reportrunner

import (
	"context"
	"fmt"
	"strings"
)

// runReport writes the caption, calls the report's procedure and streams every
// row to w in cursor order. It returns the number of rows written.
func runReport(ctx context.Context, caller Caller, rep Report, w RowWriter) (int, error) {
	if err := validateCall(rep.Procedure, rep.Params); err != nil {
		return 0, fmt.Errorf("report %s: %w", rep.Key, err)
	}

	if err := w.BeginReport(rep); err != nil {
		return 0, fmt.Errorf("write %s caption: %w", rep.Key, err)
	}

	rows, err := caller.CallProcedure(ctx, rep.Procedure, rep.Params)
	if err != nil {
		return 0, dbError(rep.Key, "call "+rep.Procedure, err)
	}

	n, err := streamRows(rep, rows, w)
	closeErr := rows.Close()
	if err != nil {
		return n, err
	}
	if closeErr != nil {
		return n, dbError(rep.Key, "close rows", closeErr)
	}

	if err := w.EndReport(); err != nil {
		return n, fmt.Errorf("write %s output: %w", rep.Key, err)
	}
	return n, nil
}

func streamRows(rep Report, rows Rows, w RowWriter) (int, error) {
	columns, err := rows.Columns()
	if err != nil {
		return 0, dbError(rep.Key, "read columns", err)
	}

	index, err := projectColumns(rep.Columns, columns)
	if err != nil {
		return 0, dbError(rep.Key, "project columns", err)
	}

	values := make([]any, len(columns))
	scanArgs := make([]any, len(columns))
	for i := range values {
		scanArgs[i] = &values[i]
	}

	n := 0
	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return n, dbError(rep.Key, "scan row", err)
		}

		fields := make([]Field, len(rep.Columns))
		for i, col := range rep.Columns {
			fields[i] = newField(col, values[index[i]])
		}

		if err := w.WriteRow(fields); err != nil {
			return n, fmt.Errorf("write %s row: %w", rep.Key, err)
		}
		n++
	}

	if err := rows.Err(); err != nil {
		return n, dbError(rep.Key, "fetch rows", err)
	}

	return n, nil
}

// projectColumns maps each wanted column to its position in the result set.
// Names match case-insensitively; result columns nobody asked for are skipped.
func projectColumns(wanted []Column, columns []string) ([]int, error) {
	positions := make(map[string]int, len(columns))
	for i, c := range columns {
		key := strings.ToLower(strings.TrimSpace(c))
		if _, dup := positions[key]; !dup {
			positions[key] = i
		}
	}

	index := make([]int, len(wanted))
	missing := make([]string, 0)
	for i, col := range wanted {
		pos, ok := positions[strings.ToLower(col.Name)]
		if !ok {
			missing = append(missing, col.Name)
			continue
		}
		index[i] = pos
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("result set is missing column(s) %s (got %s)", strings.Join(missing, ", "), strings.Join(columns, ", "))
	}
	return index, nil
}
