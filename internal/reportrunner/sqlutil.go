package reportrunner

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

func validateIdentifier(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s name cannot be empty", kind)
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%s name %q is not a plain SQL identifier", kind, name)
	}
	return nil
}

// validateCall checks the procedure and parameter names before they are spliced
// into a statement.
func validateCall(procedure string, params []Param) error {
	if err := validateIdentifier("procedure", procedure); err != nil {
		return err
	}
	for _, p := range params {
		if err := validateIdentifier("parameter", p.Name); err != nil {
			return err
		}
	}
	return nil
}

// callStatement renders the statement that invokes procedure on driver, with one
// placeholder per parameter in declared order.
func callStatement(driver, procedure string, params []Param) (string, error) {
	if err := validateCall(procedure, params); err != nil {
		return "", err
	}

	switch driver {
	case "mysql":
		placeholders := make([]string, len(params))
		for i := range params {
			placeholders[i] = "?"
		}
		return fmt.Sprintf("CALL %s(%s)", procedure, strings.Join(placeholders, ", ")), nil
	case "postgres":
		placeholders := make([]string, len(params))
		for i := range params {
			placeholders[i] = "$" + strconv.Itoa(i+1)
		}
		return fmt.Sprintf("SELECT * FROM %s(%s)", procedure, strings.Join(placeholders, ", ")), nil
	case "sqlite":
		// Procedures are views exposing their parameters as columns.
		if len(params) == 0 {
			return fmt.Sprintf("SELECT * FROM %s", procedure), nil
		}
		conds := make([]string, len(params))
		for i, p := range params {
			conds[i] = p.Name + " = ?"
		}
		return fmt.Sprintf("SELECT * FROM %s WHERE %s", procedure, strings.Join(conds, " AND ")), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

func splitQualifiedName(name string) (schema, object string) {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

func sortedStrings(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
