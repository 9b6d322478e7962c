// Package session holds the mutable state of one in-progress form fill: the
// value tree, the current step, the highest step passed, and the per-field
// error map. A Session is safe for concurrent use.
package session

import (
	"sync"

	"github.com/goliatone/go-formwizard/pkg/condition"
	"github.com/goliatone/go-formwizard/pkg/model"
)

// Session is one user's pass through a form.
type Session struct {
	mu sync.RWMutex

	form          *model.Form
	values        map[string]any
	errors        map[string]string
	current       int
	highestPassed int
	justPassed    bool
	discarded     bool
}

var _ model.State = (*Session)(nil)

// New starts a session on step 1 with declared defaults seeded.
func New(form *model.Form) *Session {
	s := &Session{
		form:    form,
		values:  make(map[string]any),
		errors:  make(map[string]string),
		current: 1,
	}
	for _, field := range form.Fields() {
		if field.Default == nil {
			continue
		}
		setPath(s.values, field.Name, coerce(field, field.Default))
	}
	return s
}

// FromPayload builds a session from a complete submission. Values are read by
// declared name, either as a flat dotted key or a nested position. Undeclared
// keys are ignored.
func FromPayload(form *model.Form, payload map[string]any) *Session {
	s := New(form)
	for _, field := range form.Fields() {
		value, ok := payload[field.Name]
		if !ok {
			value, ok = getPath(payload, field.Name)
		}
		if !ok {
			continue
		}
		setPath(s.values, field.Name, coerce(field, value))
	}
	return s
}

// Form returns the form this session fills.
func (s *Session) Form() *model.Form {
	return s.form
}

// SetValue records a raw input value. For checkbox-group fields a scalar
// toggles membership and a list replaces the selection. The field's error is
// cleared. Unknown names are ignored.
func (s *Session) SetValue(name string, raw any) {
	field, ok := s.form.Field(name)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return
	}

	if field.Kind == model.KindCheckboxGroup {
		if _, isList := model.StringSlice(raw); !isList {
			current, _ := getPath(s.values, name)
			selected, _ := model.StringSlice(current)
			setPath(s.values, name, toggle(selected, condition.CoerceString(raw)))
			s.afterEdit(name)
			return
		}
	}

	setPath(s.values, name, coerce(field, raw))
	s.afterEdit(name)
}

func (s *Session) afterEdit(name string) {
	delete(s.errors, name)
	s.justPassed = false
}

// GetValue returns the stored value for a declared field, or the kind's empty
// value when nothing has been stored.
func (s *Session) GetValue(name string) any {
	field, ok := s.form.Field(name)
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, found := getPath(s.values, name)
	if !ok {
		if found {
			return value
		}
		return nil
	}
	if !found || value == nil {
		return field.Kind.EmptyValue()
	}
	if list, isList := value.([]string); isList {
		return append([]string{}, list...)
	}
	return value
}

// Lookup resolves rule identifiers. Declared fields report their value or
// their kind's empty value.
func (s *Session) Lookup(path string) (any, bool) {
	if _, ok := s.form.Field(path); ok {
		return s.GetValue(path), true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPath(s.values, path)
}

// Values returns a deep copy of the value tree.
func (s *Session) Values() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.CloneTree(s.values)
}

// CurrentStep returns the 1-based id of the active step.
func (s *Session) CurrentStep() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// HighestPassed returns the highest step id that has passed validation.
func (s *Session) HighestPassed() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.highestPassed
}

// GoToStep moves to id when allowed: any earlier step, any step up to the
// highest passed, or the next step right after the current one passed.
// Denied or out-of-range moves leave the session unchanged.
func (s *Session) GoToStep(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded || id < 1 || id > s.form.StepCount() {
		return false
	}
	switch {
	case id == s.current:
	case id < s.current:
	case id <= s.highestPassed:
	case id == s.current+1 && s.justPassed:
	default:
		return false
	}
	if id != s.current {
		s.current = id
		s.justPassed = false
	}
	return true
}

// ReturnTo moves to id unconditionally. Submission uses it to surface the
// first failing step.
func (s *Session) ReturnTo(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 1 || id > s.form.StepCount() {
		return
	}
	s.current = id
	s.justPassed = false
}

// MarkPassed records that step id validated cleanly.
func (s *Session) MarkPassed(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id > s.highestPassed {
		s.highestPassed = id
	}
	if id == s.current {
		s.justPassed = true
	}
}

// MarkFailed clears the pass recorded for the current step.
func (s *Session) MarkFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.justPassed = false
}

// ReplaceErrors drops the errors of every name in scope and stores errs.
func (s *Session) ReplaceErrors(scope []string, errs map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range scope {
		delete(s.errors, name)
	}
	for name, msg := range errs {
		s.errors[name] = msg
	}
}

// Errors returns a copy of the per-field error map.
func (s *Session) Errors() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.errors))
	for k, v := range s.errors {
		out[k] = v
	}
	return out
}

// Clone returns an independent copy sharing only the immutable form.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := &Session{
		form:          s.form,
		values:        model.CloneTree(s.values),
		errors:        make(map[string]string, len(s.errors)),
		current:       s.current,
		highestPassed: s.highestPassed,
		justPassed:    s.justPassed,
		discarded:     s.discarded,
	}
	for k, v := range s.errors {
		out.errors[k] = v
	}
	return out
}

// Discard ends the session. Later edits and moves are ignored.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discarded = true
	s.values = make(map[string]any)
	s.errors = make(map[string]string)
}

// Discarded reports whether Discard was called.
func (s *Session) Discarded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.discarded
}

func toggle(selected []string, value string) []string {
	out := make([]string, 0, len(selected)+1)
	removed := false
	for _, item := range selected {
		if item == value {
			removed = true
			continue
		}
		out = append(out, item)
	}
	if !removed {
		out = append(out, value)
	}
	return out
}

// dedupe keeps the first occurrence of each value.
func dedupe(list []string) []string {
	out := make([]string, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, item := range list {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// coerce shapes a raw input for storage: booleans for checkboxes, string
// lists for checkbox groups, strings for text-like kinds. Number inputs are
// kept as given. Values that cannot be shaped are stored as-is.
func coerce(field model.Field, raw any) any {
	switch field.Kind {
	case model.KindCheckbox:
		if raw == nil {
			return false
		}
		if b, ok := condition.CoerceBool(raw); ok {
			return b
		}
		if s, ok := raw.(string); ok && s == "on" {
			return true
		}
		return raw
	case model.KindCheckboxGroup:
		if raw == nil {
			return []string{}
		}
		if list, ok := model.StringSlice(raw); ok {
			return dedupe(list)
		}
		if s, ok := raw.(string); ok {
			if s == "" {
				return []string{}
			}
			return []string{s}
		}
		return raw
	case model.KindNumber:
		if raw == nil {
			return ""
		}
		return raw
	default:
		switch typed := raw.(type) {
		case nil:
			return ""
		case string:
			return typed
		case map[string]any, []any:
			return raw
		default:
			return condition.CoerceString(typed)
		}
	}
}
