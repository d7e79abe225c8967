package reportrunner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"
)

const (
	defaultSalesMonth = 6
	defaultSalesYear  = 2024
)

type ColumnKind int

const (
	KindText ColumnKind = iota
	KindInt
	KindDecimal
	KindDate
)

func (k ColumnKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindDecimal:
		return "decimal"
	case KindDate:
		return "date"
	default:
		return "text"
	}
}

func parseColumnKind(v string) (ColumnKind, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "text", "string":
		return KindText, nil
	case "int", "integer":
		return KindInt, nil
	case "decimal", "numeric":
		return KindDecimal, nil
	case "date", "datetime":
		return KindDate, nil
	default:
		return KindText, fmt.Errorf("unsupported column kind %q (expected text|int|decimal|date)", v)
	}
}

// Column is one projected result column, looked up by name in the result set.
type Column struct {
	Name string
	Kind ColumnKind
}

// Param is a positional integer argument bound to the procedure call.
type Param struct {
	Name  string
	Value int64
}

// Report is one (procedure, parameters, output columns) triple.
type Report struct {
	Key       string
	Caption   string
	Procedure string
	Params    []Param
	Columns   []Column
}

func (r Report) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

func builtinReports(month, year int) []Report {
	return []Report{
		{
			Key:       "inventory",
			Caption:   "Inventory Report:",
			Procedure: "sp_reporte_inventario",
			Columns: []Column{
				{Name: "producto_id", Kind: KindInt},
				{Name: "nombre", Kind: KindText},
				{Name: "descripcion", Kind: KindText},
				{Name: "precio", Kind: KindDecimal},
				{Name: "cantidad", Kind: KindInt},
			},
		},
		{
			Key:       "monthly-sales",
			Caption:   "Monthly Sales Report:",
			Procedure: "sp_reporte_ventas_mensuales",
			Params: []Param{
				{Name: "mes", Value: int64(month)},
				{Name: "anio", Value: int64(year)},
			},
			Columns: []Column{
				{Name: "venta_id", Kind: KindInt},
				{Name: "fecha_venta", Kind: KindDate},
				{Name: "cliente_id", Kind: KindInt},
				{Name: "producto_id", Kind: KindInt},
				{Name: "cantidad_vendida", Kind: KindInt},
				{Name: "precio_total", Kind: KindDecimal},
			},
		},
		{
			Key:       "active-customers",
			Caption:   "Active Customers Report:",
			Procedure: "sp_reporte_clientes_activos",
			Columns: []Column{
				{Name: "cliente_id", Kind: KindInt},
				{Name: "nombre", Kind: KindText},
				{Name: "email", Kind: KindText},
				{Name: "telefono", Kind: KindText},
			},
		},
		{
			Key:       "pending-orders",
			Caption:   "Pending Orders Report:",
			Procedure: "sp_reporte_pedidos_pendientes",
			Columns: []Column{
				{Name: "pedido_id", Kind: KindInt},
				{Name: "fecha_pedido", Kind: KindDate},
				{Name: "proveedor_id", Kind: KindInt},
				{Name: "producto_id", Kind: KindInt},
				{Name: "cantidad", Kind: KindInt},
				{Name: "estado", Kind: KindText},
			},
		},
		{
			Key:       "suppliers-orders",
			Caption:   "Suppliers & Orders Report:",
			Procedure: "sp_reporte_proveedores_pedidos",
			Columns: []Column{
				{Name: "proveedor_id", Kind: KindInt},
				{Name: "proveedor_nombre", Kind: KindText},
				{Name: "pedido_id", Kind: KindInt},
				{Name: "fecha_pedido", Kind: KindDate},
				{Name: "producto_id", Kind: KindInt},
				{Name: "cantidad", Kind: KindInt},
				{Name: "estado", Kind: KindText},
			},
		},
	}
}

// reportDef is a report declared in the config file.
type reportDef struct {
	Name      string      `yaml:"name"`
	Caption   string      `yaml:"caption,omitempty"`
	Procedure string      `yaml:"procedure"`
	Params    []paramDef  `yaml:"params,omitempty"`
	Columns   []columnDef `yaml:"columns"`
}

type paramDef struct {
	Name  string `yaml:"name"`
	Value int64  `yaml:"value"`
}

type columnDef struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind,omitempty"`
}

func (s reportDef) toReport() (Report, error) {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return Report{}, errors.New("report name cannot be empty")
	}

	rep := Report{
		Key:       strcase.ToKebab(name),
		Caption:   strings.TrimSpace(s.Caption),
		Procedure: strings.TrimSpace(s.Procedure),
	}
	if rep.Caption == "" {
		rep.Caption = name + " Report:"
	}
	if err := validateIdentifier("procedure", rep.Procedure); err != nil {
		return Report{}, fmt.Errorf("report %s: %w", rep.Key, err)
	}

	for _, p := range s.Params {
		if err := validateIdentifier("parameter", p.Name); err != nil {
			return Report{}, fmt.Errorf("report %s: %w", rep.Key, err)
		}
		rep.Params = append(rep.Params, Param{Name: p.Name, Value: p.Value})
	}

	if len(s.Columns) == 0 {
		return Report{}, fmt.Errorf("report %s: at least one column is required", rep.Key)
	}
	for _, c := range s.Columns {
		colName := strings.TrimSpace(c.Name)
		if colName == "" {
			return Report{}, fmt.Errorf("report %s: column name cannot be empty", rep.Key)
		}
		kind, err := parseColumnKind(c.Kind)
		if err != nil {
			return Report{}, fmt.Errorf("report %s: column %s: %w", rep.Key, colName, err)
		}
		rep.Columns = append(rep.Columns, Column{Name: colName, Kind: kind})
	}

	return rep, nil
}

// allReports returns the built-in reports followed by the configured ones.
func allReports(month, year int, defs []reportDef) ([]Report, error) {
	reports := builtinReports(month, year)
	seen := make(map[string]struct{}, len(reports)+len(defs))
	for _, r := range reports {
		seen[r.Key] = struct{}{}
	}

	for _, s := range defs {
		rep, err := s.toReport()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[rep.Key]; dup {
			return nil, fmt.Errorf("duplicate report %q", rep.Key)
		}
		seen[rep.Key] = struct{}{}
		reports = append(reports, rep)
	}

	return reports, nil
}

// selectReports keeps the requested keys in table order. No keys selects everything.
func selectReports(all []Report, keys []string) ([]Report, error) {
	if len(keys) == 0 {
		return all, nil
	}

	wanted := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		key := strcase.ToKebab(strings.TrimSpace(k))
		if key == "" {
			continue
		}
		wanted[key] = struct{}{}
	}

	out := make([]Report, 0, len(wanted))
	for _, r := range all {
		if _, ok := wanted[r.Key]; ok {
			out = append(out, r)
			delete(wanted, r.Key)
		}
	}

	if len(wanted) > 0 {
		unknown := make([]string, 0, len(wanted))
		for k := range wanted {
			unknown = append(unknown, k)
		}
		return nil, fmt.Errorf("unknown report(s): %s", strings.Join(sortedStrings(unknown), ", "))
	}

	return out, nil
}
