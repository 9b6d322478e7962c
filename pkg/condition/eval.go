package condition

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

type node interface {
	eval(Lookup) (bool, error)
}

type literalKind int

const (
	litString literalKind = iota
	litNumber
	litBool
	litNull
)

type literal struct {
	kind literalKind
	raw  string
}

type exprOr struct{ left, right node }

func (e exprOr) eval(lookup Lookup) (bool, error) {
	left, err := e.left.eval(lookup)
	if err != nil || left {
		return left, err
	}
	return e.right.eval(lookup)
}

type exprAnd struct{ left, right node }

func (e exprAnd) eval(lookup Lookup) (bool, error) {
	left, err := e.left.eval(lookup)
	if err != nil || !left {
		return false, err
	}
	return e.right.eval(lookup)
}

type exprNot struct{ inner node }

func (e exprNot) eval(lookup Lookup) (bool, error) {
	value, err := e.inner.eval(lookup)
	if err != nil {
		return false, err
	}
	return !value, nil
}

type exprTruthy struct{ identifier string }

func (e exprTruthy) eval(lookup Lookup) (bool, error) {
	value, _ := lookup(e.identifier)
	return Truthy(value), nil
}

type exprCompare struct {
	identifier string
	op         tokenKind
	literal    literal
}

func (e exprCompare) eval(lookup Lookup) (bool, error) {
	value, _ := lookup(e.identifier)

	var equal bool
	switch e.literal.kind {
	case litNull:
		equal = isNil(value)
	case litBool:
		want := e.literal.raw == "true"
		got, ok := CoerceBool(value)
		equal = ok && got == want
	case litNumber:
		want, err := strconv.ParseFloat(e.literal.raw, 64)
		if err != nil {
			return false, fmt.Errorf("condition: invalid number literal %q", e.literal.raw)
		}
		got, ok := CoerceNumber(value)
		equal = ok && math.Abs(got-want) < 1e-9
	case litString:
		equal = CoerceString(value) == e.literal.raw
	default:
		return false, unsupported(e.op.String(), "unknown")
	}

	switch e.op {
	case tokenEq:
		return equal, nil
	case tokenNeq:
		return !equal, nil
	default:
		return false, unsupported(e.op.String(), "comparison")
	}
}

type exprHas struct {
	identifier string
	literal    literal
}

func (e exprHas) eval(lookup Lookup) (bool, error) {
	value, _ := lookup(e.identifier)
	if e.literal.kind == litNull {
		return false, unsupported("has", "null")
	}
	want := e.literal.raw

	switch typed := value.(type) {
	case nil:
		return false, nil
	case []string:
		for _, item := range typed {
			if item == want {
				return true, nil
			}
		}
		return false, nil
	case []any:
		for _, item := range typed {
			if CoerceString(item) == want {
				return true, nil
			}
		}
		return false, nil
	case string:
		return typed == want, nil
	default:
		return CoerceString(typed) == want, nil
	}
}

func (k tokenKind) String() string {
	switch k {
	case tokenEq:
		return "=="
	case tokenNeq:
		return "!="
	case tokenHas:
		return "has"
	case tokenAnd:
		return "&&"
	case tokenOr:
		return "||"
	case tokenNot:
		return "!"
	default:
		return "?"
	}
}

// Truthy reports whether a field value counts as "set": true, a non-blank
// string, a non-zero number or a non-empty collection.
func Truthy(value any) bool {
	switch typed := value.(type) {
	case nil:
		return false
	case bool:
		return typed
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return false
		}
		if b, err := strconv.ParseBool(trimmed); err == nil {
			return b
		}
		return true
	case []string:
		return len(typed) > 0
	case []any:
		return len(typed) > 0
	case map[string]any:
		return len(typed) > 0
	}
	if number, ok := CoerceNumber(value); ok {
		return number != 0
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// CoerceBool interprets bools and boolean-looking strings.
func CoerceBool(value any) (bool, bool) {
	switch typed := value.(type) {
	case bool:
		return typed, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(typed))
		if err != nil {
			return false, false
		}
		return b, true
	}
	return false, false
}

// CoerceNumber interprets numeric kinds and numeric strings as float64.
func CoerceNumber(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int8:
		return float64(typed), true
	case int16:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case uint:
		return float64(typed), true
	case uint8:
		return float64(typed), true
	case uint16:
		return float64(typed), true
	case uint32:
		return float64(typed), true
	case uint64:
		return float64(typed), true
	case fmt.Stringer:
		return parseFloat(typed.String())
	case string:
		return parseFloat(typed)
	}
	return 0, false
}

func parseFloat(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// CoerceString renders a scalar for string comparison. nil renders empty.
func CoerceString(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case fmt.Stringer:
		return typed.String()
	case bool:
		return strconv.FormatBool(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	}
	return fmt.Sprint(value)
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}
