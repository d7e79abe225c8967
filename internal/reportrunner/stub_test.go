package reportrunner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubRows struct {
	columns   []string
	data      [][]any
	pos       int
	failAfter int
	fetchErr  error
	closed    bool
}

func newStubRows(columns []string, data ...[]any) *stubRows {
	return &stubRows{columns: columns, data: data, failAfter: -1}
}

// failingAfter makes the cursor fail once n rows have been yielded.
func (r *stubRows) failingAfter(n int, err error) *stubRows {
	r.failAfter = n
	r.fetchErr = err
	return r
}

func (r *stubRows) Columns() ([]string, error) { return r.columns, nil }

func (r *stubRows) Next() bool {
	if r.failAfter >= 0 && r.pos >= r.failAfter {
		return false
	}
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: expected %d destinations, got %d", len(row), len(dest))
	}
	for i := range dest {
		p, ok := dest[i].(*any)
		if !ok {
			return fmt.Errorf("scan: destination %d is %T", i, dest[i])
		}
		*p = row[i]
	}
	return nil
}

func (r *stubRows) Err() error {
	if r.failAfter >= 0 && r.pos >= r.failAfter {
		return r.fetchErr
	}
	return nil
}

func (r *stubRows) Close() error {
	r.closed = true
	return nil
}

type stubCall struct {
	Procedure string
	Params    []Param
}

type stubCaller struct {
	results map[string]*stubRows
	callErr map[string]error
	expect  func(procedure string, params []Param) error
	calls   []stubCall
}

func (c *stubCaller) CallProcedure(ctx context.Context, procedure string, params []Param) (Rows, error) {
	c.calls = append(c.calls, stubCall{Procedure: procedure, Params: params})
	if c.expect != nil {
		if err := c.expect(procedure, params); err != nil {
			return nil, err
		}
	}
	if err, ok := c.callErr[procedure]; ok {
		return nil, err
	}
	rows, ok := c.results[procedure]
	if !ok {
		return nil, fmt.Errorf("no stub result for %s", procedure)
	}
	return rows, nil
}

func (c *stubCaller) procedures() []string {
	out := make([]string, len(c.calls))
	for i, call := range c.calls {
		out[i] = call.Procedure
	}
	return out
}

// fixtureResults returns one stub result set per built-in report.
func fixtureResults() map[string]*stubRows {
	return map[string]*stubRows{
		"sp_reporte_inventario": newStubRows(
			[]string{"producto_id", "nombre", "descripcion", "precio", "cantidad"},
			[]any{int64(1), "Widget", "A widget", 9.99, int64(100)},
			[]any{int64(2), "Gadget", "Big, shiny", []byte("12.50"), int64(3)},
		),
		"sp_reporte_ventas_mensuales": newStubRows(
			[]string{"venta_id", "fecha_venta", "cliente_id", "producto_id", "cantidad_vendida", "precio_total"},
			[]any{int64(10), []byte("2024-06-03"), int64(5), int64(1), int64(2), 19.98},
		),
		"sp_reporte_clientes_activos": newStubRows(
			[]string{"cliente_id", "nombre", "email", "telefono"},
			[]any{int64(5), "Ana", "ana@example.com", "555-0100"},
			[]any{int64(6), "Luis", "luis@example.com", nil},
		),
		"sp_reporte_pedidos_pendientes": newStubRows(
			[]string{"pedido_id", "fecha_pedido", "proveedor_id", "producto_id", "cantidad", "estado"},
			[]any{int64(7), "2024-06-10", int64(3), int64(1), int64(50), "pendiente"},
		),
		"sp_reporte_proveedores_pedidos": newStubRows(
			[]string{"proveedor_id", "proveedor_nombre", "pedido_id", "fecha_pedido", "producto_id", "cantidad", "estado"},
		),
	}
}

const fixtureText = `Inventory Report:
1, Widget, A widget, 9.99, 100
2, Gadget, Big, shiny, 12.5, 3

Monthly Sales Report:
10, 2024-06-03, 5, 1, 2, 19.98

Active Customers Report:
5, Ana, ana@example.com, 555-0100
6, Luis, luis@example.com, NULL

Pending Orders Report:
7, 2024-06-10, 3, 1, 50, pendiente

Suppliers & Orders Report:
`

// newFixtureDB writes the sqlite fixture database to a temp file and returns its path.
func newFixtureDB(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "reports.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	raw, err := os.ReadFile(filepath.Join("testdata", "sqlite_fixture.sql"))
	require.NoError(t, err)

	for _, stmt := range strings.Split(string(raw), ";") {
		lines := make([]string, 0)
		for _, line := range strings.Split(stmt, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			lines = append(lines, line)
		}
		stmt = strings.TrimSpace(strings.Join(lines, "\n"))
		if stmt == "" {
			continue
		}
		_, err := db.ExecContext(context.Background(), stmt)
		require.NoError(t, err, stmt)
	}

	return path
}

var errBrokenCursor = errors.New("connection reset by peer")
