package reportrunner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func reportByKey(t *testing.T, key string) Report {
	t.Helper()
	for _, r := range builtinReports(defaultSalesMonth, defaultSalesYear) {
		if r.Key == key {
			return r
		}
	}
	t.Fatalf("no built-in report %q", key)
	return Report{}
}

func TestRunReportPrintsEachBuiltinReport(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{
			key:  "inventory",
			want: "Inventory Report:\n1, Widget, A widget, 9.99, 100\n2, Gadget, Big, shiny, 12.5, 3\n",
		},
		{
			key:  "monthly-sales",
			want: "Monthly Sales Report:\n10, 2024-06-03, 5, 1, 2, 19.98\n",
		},
		{
			key:  "active-customers",
			want: "Active Customers Report:\n5, Ana, ana@example.com, 555-0100\n6, Luis, luis@example.com, NULL\n",
		},
		{
			key:  "pending-orders",
			want: "Pending Orders Report:\n7, 2024-06-10, 3, 1, 50, pendiente\n",
		},
		{
			key:  "suppliers-orders",
			want: "Suppliers & Orders Report:\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			caller := &stubCaller{results: fixtureResults()}
			var out bytes.Buffer
			w, err := newRowWriter(formatText, &out)
			require.NoError(t, err)

			rep := reportByKey(t, tt.key)
			_, err = runReport(context.Background(), caller, rep, w)
			require.NoError(t, err)
			require.Equal(t, tt.want, out.String())
			require.True(t, caller.results[rep.Procedure].closed)
		})
	}
}

func TestRunReportInventoryScenario(t *testing.T) {
	caller := &stubCaller{results: map[string]*stubRows{
		"sp_reporte_inventario": newStubRows(
			[]string{"producto_id", "nombre", "descripcion", "precio", "cantidad"},
			[]any{int64(1), "Widget", "A widget", 9.99, int64(100)},
		),
	}}
	var out bytes.Buffer

	n, err := runReport(context.Background(), caller, reportByKey(t, "inventory"), &textWriter{w: &out})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "Inventory Report:\n1, Widget, A widget, 9.99, 100\n", out.String())
}

func TestRunReportWholeDecimalsKeepOneDigit(t *testing.T) {
	caller := &stubCaller{results: map[string]*stubRows{
		"sp_reporte_inventario": newStubRows(
			[]string{"producto_id", "nombre", "descripcion", "precio", "cantidad"},
			[]any{int64(1), "Widget", "A widget", []byte("100.00"), int64(100)},
			[]any{int64(2), "Gadget", "g", 50.0, int64(3)},
		),
	}}
	var out bytes.Buffer

	_, err := runReport(context.Background(), caller, reportByKey(t, "inventory"), &textWriter{w: &out})
	require.NoError(t, err)
	require.Equal(t, "Inventory Report:\n1, Widget, A widget, 100.0, 100\n2, Gadget, g, 50.0, 3\n", out.String())
}

func TestRunReportRejectsBadIdentifierBeforeCalling(t *testing.T) {
	caller := &stubCaller{results: fixtureResults()}
	rep := Report{
		Key:       "broken",
		Caption:   "Broken Report:",
		Procedure: "sp_x; DROP TABLE productos",
		Columns:   []Column{{Name: "producto_id", Kind: KindInt}},
	}
	var out bytes.Buffer

	_, err := runReport(context.Background(), caller, rep, &textWriter{w: &out})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrDatabaseAccess)
	require.Contains(t, err.Error(), "report broken")
	require.Empty(t, caller.calls)
	require.Empty(t, out.String())

	rep.Procedure = "sp_x"
	rep.Params = []Param{{Name: "bad name", Value: 1}}
	_, err = runReport(context.Background(), caller, rep, &textWriter{w: &out})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrDatabaseAccess)
	require.Empty(t, caller.calls)
}

func TestMonthlySalesBindsMonthThenYear(t *testing.T) {
	expect := func(procedure string, params []Param) error {
		if procedure != "sp_reporte_ventas_mensuales" {
			return nil
		}
		if len(params) != 2 {
			return fmt.Errorf("expected 2 params, got %d", len(params))
		}
		if params[0].Value != 6 || params[1].Value != 2024 {
			return fmt.Errorf("expected (6, 2024), got (%d, %d)", params[0].Value, params[1].Value)
		}
		return nil
	}

	caller := &stubCaller{results: fixtureResults(), expect: expect}
	var out bytes.Buffer
	_, err := runReport(context.Background(), caller, reportByKey(t, "monthly-sales"), &textWriter{w: &out})
	require.NoError(t, err)
	require.Len(t, caller.calls, 1)
	require.Equal(t, []Param{{Name: "mes", Value: 6}, {Name: "anio", Value: 2024}}, caller.calls[0].Params)

	mismatch := builtinReports(7, 2024)[1]
	caller = &stubCaller{results: fixtureResults(), expect: expect}
	_, err = runReport(context.Background(), caller, mismatch, &textWriter{w: &out})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrDatabaseAccess)
	require.Contains(t, err.Error(), "expected (6, 2024), got (7, 2024)")
}

func TestRunReportKeepsCursorOrder(t *testing.T) {
	caller := &stubCaller{results: map[string]*stubRows{
		"sp_reporte_clientes_activos": newStubRows(
			[]string{"cliente_id", "nombre", "email", "telefono"},
			[]any{int64(9), "Zoe", "z@example.com", "3"},
			[]any{int64(1), "Ana", "a@example.com", "1"},
			[]any{int64(5), "Max", "m@example.com", "2"},
		),
	}}
	var out bytes.Buffer

	_, err := runReport(context.Background(), caller, reportByKey(t, "active-customers"), &textWriter{w: &out})
	require.NoError(t, err)
	require.Equal(t, "Active Customers Report:\n9, Zoe, z@example.com, 3\n1, Ana, a@example.com, 1\n5, Max, m@example.com, 2\n", out.String())
}

func TestRunReportStopsAtFetchFailure(t *testing.T) {
	rows := fixtureResults()["sp_reporte_inventario"].failingAfter(1, errBrokenCursor)
	caller := &stubCaller{results: map[string]*stubRows{"sp_reporte_inventario": rows}}
	var out bytes.Buffer

	n, err := runReport(context.Background(), caller, reportByKey(t, "inventory"), &textWriter{w: &out})
	require.Error(t, err)
	require.Equal(t, 1, n)
	require.ErrorIs(t, err, ErrDatabaseAccess)
	require.ErrorIs(t, err, errBrokenCursor)
	require.True(t, rows.closed)

	var dbErr *DatabaseError
	require.True(t, errors.As(err, &dbErr))
	require.Equal(t, "inventory", dbErr.Report)
	require.Equal(t, "fetch rows", dbErr.Op)
	require.Equal(t, "Inventory Report:\n1, Widget, A widget, 9.99, 100\n", out.String())
}

func TestRunReportCallFailure(t *testing.T) {
	caller := &stubCaller{callErr: map[string]error{"sp_reporte_inventario": errors.New("PROCEDURE parcial3.sp_reporte_inventario does not exist")}}
	var out bytes.Buffer

	_, err := runReport(context.Background(), caller, reportByKey(t, "inventory"), &textWriter{w: &out})
	require.ErrorIs(t, err, ErrDatabaseAccess)
	require.Contains(t, err.Error(), "report inventory: call sp_reporte_inventario")
	require.Equal(t, "Inventory Report:\n", out.String())
}

func TestRunReportMissingColumn(t *testing.T) {
	caller := &stubCaller{results: map[string]*stubRows{
		"sp_reporte_inventario": newStubRows(
			[]string{"producto_id", "nombre", "precio", "cantidad"},
			[]any{int64(1), "Widget", 9.99, int64(100)},
		),
	}}
	var out bytes.Buffer

	_, err := runReport(context.Background(), caller, reportByKey(t, "inventory"), &textWriter{w: &out})
	require.ErrorIs(t, err, ErrDatabaseAccess)
	require.Contains(t, err.Error(), "descripcion")
	require.Equal(t, "Inventory Report:\n", out.String())
}

func TestProjectColumns(t *testing.T) {
	wanted := []Column{{Name: "b"}, {Name: "a"}}

	index, err := projectColumns(wanted, []string{"A", "extra", "B"})
	require.NoError(t, err)
	require.Equal(t, []int{2, 0}, index)

	_, err = projectColumns(wanted, []string{"a"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing column(s) b")
}
