// Package normalize converts a validated form fill into the payload handed
// to a store: numbers become float64, checkboxes stay booleans, groups stay
// string lists, empty optional text is dropped, hidden fields are omitted and
// the form's static values are merged in.
package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formwizard/pkg/condition"
	"github.com/goliatone/go-formwizard/pkg/model"
)

// ErrUnexpectedValue reports a stored value whose shape does not match its
// field kind.
var ErrUnexpectedValue = errors.New("normalize: unexpected value")

// Normalize builds the nested payload for state. It never mutates state.
func Normalize(state model.State) (map[string]any, error) {
	form := state.Form()
	out := model.CloneTree(form.Static)
	if out == nil {
		out = make(map[string]any)
	}

	lookup := condition.Lookup(state.Lookup)
	for _, field := range form.Fields() {
		if !field.VisibleFor(lookup) {
			continue
		}
		value, keep, err := normalizeField(field, state.GetValue(field.Name), lookup)
		if err != nil {
			return nil, err
		}
		if !keep {
			continue
		}
		if err := setPath(out, field.Name, value); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func normalizeField(field model.Field, value any, lookup condition.Lookup) (any, bool, error) {
	switch field.Kind {
	case model.KindNumber:
		switch typed := value.(type) {
		case nil:
			return nil, false, nil
		case string:
			trimmed := strings.TrimSpace(typed)
			if trimmed == "" {
				return nil, false, nil
			}
			n, err := strconv.ParseFloat(trimmed, 64)
			if err != nil {
				return nil, false, unexpected(field, value)
			}
			return n, true, nil
		default:
			n, ok := condition.CoerceNumber(typed)
			if !ok {
				return nil, false, unexpected(field, value)
			}
			return n, true, nil
		}

	case model.KindCheckbox:
		b, ok := value.(bool)
		if !ok {
			return nil, false, unexpected(field, value)
		}
		return b, true, nil

	case model.KindCheckboxGroup:
		list, ok := model.StringSlice(value)
		if !ok {
			return nil, false, unexpected(field, value)
		}
		return list, true, nil

	default:
		s, ok := value.(string)
		if !ok {
			if value == nil {
				return nil, false, nil
			}
			return nil, false, unexpected(field, value)
		}
		if strings.TrimSpace(s) == "" && !field.RequiredFor(lookup) {
			return nil, false, nil
		}
		return s, true, nil
	}
}

func unexpected(field model.Field, value any) error {
	return fmt.Errorf("%w: %s field %q holds %T", ErrUnexpectedValue, field.Kind, field.Name, value)
}

// setPath writes value at a dotted path. Static values that occupy an
// intermediate segment are an error rather than being overwritten.
func setPath(root map[string]any, path string, value any) error {
	segments := strings.Split(path, ".")
	current := root
	for _, segment := range segments[:len(segments)-1] {
		existing, ok := current[segment]
		if !ok {
			next := make(map[string]any)
			current[segment] = next
			current = next
			continue
		}
		next, ok := existing.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %q collides with static value at %q", ErrUnexpectedValue, path, segment)
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
	return nil
}
