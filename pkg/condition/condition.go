// Package condition parses and evaluates the small boolean rule language used
// by field declarations (requiredWhen, visibleWhen).
//
// Supported forms:
//   - truthiness: `hasChildrenUnder2`
//   - comparisons: `kitchenAccess == "none"`, `householdSize != 1`
//   - membership on multi-value fields: `allergies has "other"`
//   - composition: `a && !b`, `(a || b) && c == true`
//
// Identifiers are dotted field paths resolved through a Lookup.
package condition

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Lookup resolves a dotted field path to its current value.
type Lookup func(path string) (any, bool)

// Expr is a parsed rule. The zero value is not usable; call Parse.
type Expr struct {
	source string
	root   node
	idents []string
}

// Parse compiles a rule. An empty rule is an error because callers only parse
// rules that were declared.
func Parse(rule string) (*Expr, error) {
	trimmed := strings.TrimSpace(rule)
	if trimmed == "" {
		return nil, errors.New("condition: empty rule")
	}

	tokens, err := tokenize(trimmed)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, errors.New("condition: empty rule")
	}

	root, err := parseExpression(tokens)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	collectIdentifiers(root, seen)
	idents := make([]string, 0, len(seen))
	for ident := range seen {
		idents = append(idents, ident)
	}
	sort.Strings(idents)

	return &Expr{source: trimmed, root: root, idents: idents}, nil
}

// MustParse is Parse for package-level rules known to be valid.
func MustParse(rule string) *Expr {
	expr, err := Parse(rule)
	if err != nil {
		panic(err)
	}
	return expr
}

// String returns the rule source.
func (e *Expr) String() string {
	if e == nil {
		return ""
	}
	return e.source
}

// Identifiers lists the field paths referenced by the rule, sorted.
func (e *Expr) Identifiers() []string {
	if e == nil {
		return nil
	}
	return append([]string(nil), e.idents...)
}

// Eval evaluates the rule. Missing identifiers evaluate as nil.
func (e *Expr) Eval(lookup Lookup) (bool, error) {
	if e == nil || e.root == nil {
		return true, nil
	}
	if lookup == nil {
		lookup = func(string) (any, bool) { return nil, false }
	}
	return e.root.eval(lookup)
}

// MapLookup resolves dotted paths against a nested value tree. An exact
// match on a dotted key wins over traversal.
func MapLookup(values map[string]any) Lookup {
	return func(path string) (any, bool) {
		return lookupMap(values, path)
	}
}

func lookupMap(values map[string]any, path string) (any, bool) {
	path = strings.TrimSpace(path)
	if len(values) == 0 || path == "" {
		return nil, false
	}
	if v, ok := values[path]; ok {
		return v, true
	}

	var current any = values
	for _, part := range strings.Split(path, ".") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, false
		}
		typed, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		next, ok := typed[part]
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

func collectIdentifiers(n node, dest map[string]struct{}) {
	switch typed := n.(type) {
	case exprOr:
		collectIdentifiers(typed.left, dest)
		collectIdentifiers(typed.right, dest)
	case exprAnd:
		collectIdentifiers(typed.left, dest)
		collectIdentifiers(typed.right, dest)
	case exprNot:
		collectIdentifiers(typed.inner, dest)
	case exprCompare:
		dest[typed.identifier] = struct{}{}
	case exprHas:
		dest[typed.identifier] = struct{}{}
	case exprTruthy:
		dest[typed.identifier] = struct{}{}
	}
}

func unsupported(op string, kind string) error {
	return fmt.Errorf("condition: unsupported operator %q for %s literal", op, kind)
}
