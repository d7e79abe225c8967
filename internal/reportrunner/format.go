package reportrunner

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Field is one projected value of a row: its typed value (int64, decimal.Decimal,
// string or nil) and the natural text form printed by the text writers.
type Field struct {
	Name  string
	Value any
	Text  string
}

func newField(col Column, raw any) Field {
	v := normalizeValue(col.Kind, raw)
	return Field{Name: col.Name, Value: v, Text: formatValue(v)}
}

func normalizeValue(kind ColumnKind, raw any) any {
	v := normalizeDBValue(raw)
	if v == nil {
		return nil
	}

	switch kind {
	case KindInt:
		return toInt(v)
	case KindDecimal:
		return toDecimal(v)
	case KindDate:
		return toDate(v)
	default:
		return toText(v)
	}
}

// normalizeDBValue turns driver byte slices into text and leaves every other
// driver type alone.
func normalizeDBValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(t)
	default:
		return t
	}
}

func toInt(v any) any {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case int16:
		return int64(t)
	case int8:
		return int64(t)
	case uint64:
		if t <= math.MaxInt64 {
			return int64(t)
		}
		return strconv.FormatUint(t, 10)
	case uint32:
		return int64(t)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return int64(t)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return i
		}
		return t
	default:
		return toText(t)
	}
}

func toDecimal(v any) any {
	switch t := v.(type) {
	case decimal.Decimal:
		return t
	case float64:
		return decimal.NewFromFloat(t)
	case float32:
		return decimal.NewFromFloat32(t)
	case int64:
		return decimal.NewFromInt(t)
	case int:
		return decimal.NewFromInt(int64(t))
	case int32:
		return decimal.NewFromInt32(t)
	case string:
		if d, err := decimal.NewFromString(strings.TrimSpace(t)); err == nil {
			return d
		}
		return t
	default:
		return toText(t)
	}
}

func toDate(v any) any {
	if t, ok := v.(time.Time); ok {
		return formatTime(t)
	}
	return toText(v)
}

func toText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return formatTime(t)
	default:
		return formatValue(t)
	}
}

func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.DateTime)
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case decimal.Decimal:
		return formatDecimal(t)
	case time.Time:
		return formatTime(t)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// formatDecimal prints the shortest form, keeping one fractional digit on
// whole numbers: 12.50 is 12.5, 100.00 is 100.0.
func formatDecimal(d decimal.Decimal) string {
	if d.Equal(d.Truncate(0)) {
		return d.StringFixed(1)
	}
	return d.String()
}
