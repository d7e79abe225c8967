package reportrunner

import (
	"context"
	"fmt"
	"io"
	"strconv"
)

type procedureStatus struct {
	Report    string
	Procedure string
	Params    int
	Exists    bool
}

// checkProcedures looks up each report's procedure in the database catalog.
func checkProcedures(ctx context.Context, db DBTX, driver string, reports []Report) ([]procedureStatus, error) {
	out := make([]procedureStatus, 0, len(reports))
	for _, r := range reports {
		exists, err := procedureExists(ctx, db, driver, r.Procedure)
		if err != nil {
			return nil, dbError(r.Key, "look up "+r.Procedure, err)
		}
		out = append(out, procedureStatus{
			Report:    r.Key,
			Procedure: r.Procedure,
			Params:    len(r.Params),
			Exists:    exists,
		})
	}
	return out, nil
}

func procedureExists(ctx context.Context, db DBTX, driver, name string) (bool, error) {
	schema, object := splitQualifiedName(name)

	var (
		query string
		args  []any
	)

	switch driver {
	case "mysql":
		if schema == "" {
			query = `
				SELECT COUNT(*)
				FROM information_schema.routines
				WHERE routine_schema = DATABASE()
				  AND routine_type = 'PROCEDURE'
				  AND routine_name = ?`
			args = []any{object}
		} else {
			query = `
				SELECT COUNT(*)
				FROM information_schema.routines
				WHERE routine_schema = ?
				  AND routine_type = 'PROCEDURE'
				  AND routine_name = ?`
			args = []any{schema, object}
		}
	case "postgres":
		query = `
			SELECT COUNT(*)
			FROM pg_catalog.pg_proc p
			JOIN pg_catalog.pg_namespace n ON n.oid = p.pronamespace
			WHERE p.proname = $1
			  AND ($2 = '' OR n.nspname = $2)`
		args = []any{object, schema}
	case "sqlite":
		query = `
			SELECT COUNT(*)
			FROM sqlite_master
			WHERE type = 'view' AND name = ?`
		args = []any{object}
	default:
		return false, fmt.Errorf("unsupported database driver %q", driver)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return false, err
		}
	}
	if err := rows.Err(); err != nil {
		return false, err
	}
	return count > 0, nil
}

func writeProcedureStatus(w io.Writer, statuses []procedureStatus) (missing int, err error) {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		state := "ok"
		if !s.Exists {
			state = "missing"
			missing++
		}
		rows = append(rows, []string{s.Report, s.Procedure, strconv.Itoa(s.Params), state})
	}
	_, err = fmt.Fprintln(w, renderTable([]string{"report", "procedure", "params", "status"}, rows))
	return missing, err
}
