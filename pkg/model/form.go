package model

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-formwizard/pkg/condition"
)

// NewForm validates a declared form and returns a compiled copy. Step IDs are
// assigned from declaration order. Every configuration problem is collected
// into a single *ConfigError.
func NewForm(decl Form) (*Form, error) {
	form := cloneForm(decl)
	problems := &problemSet{}

	if strings.TrimSpace(form.ID) == "" {
		problems.add("form", "id is required")
	}
	if strings.TrimSpace(form.Collection) == "" {
		problems.add("form", "collection is required")
	}
	if len(form.Steps) == 0 {
		problems.add("form", "at least one step is required")
	}

	form.index = make(map[string]fieldRef)
	for si := range form.Steps {
		step := &form.Steps[si]
		step.ID = si + 1
		if len(step.Fields) == 0 {
			problems.add(stepLocation(step.ID), "step has no fields")
		}
		for fi := range step.Fields {
			field := &step.Fields[fi]
			loc := fieldLocation(step.ID, field.Name)
			if strings.TrimSpace(field.Name) == "" {
				problems.add(stepLocation(step.ID), fmt.Sprintf("field %d has no name", fi+1))
				continue
			}
			if !validPath(field.Name) {
				problems.add(loc, "name must be a dotted path without empty segments")
			}
			if prev, ok := form.index[field.Name]; ok {
				problems.add(loc, fmt.Sprintf("duplicate name; already declared in step %d", prev.step+1))
				continue
			}
			form.index[field.Name] = fieldRef{step: si, field: fi}
			compileField(field, loc, problems)
		}
	}

	checkPathCollisions(form, problems)
	checkRuleReferences(form, problems)
	checkConsent(form, problems)

	if !problems.empty() {
		return nil, &ConfigError{Form: form.ID, Problems: problems.list}
	}
	return form, nil
}

// MustForm is NewForm for declarations known to be valid.
func MustForm(decl Form) *Form {
	form, err := NewForm(decl)
	if err != nil {
		panic(err)
	}
	return form
}

// StepCount returns the number of steps.
func (f *Form) StepCount() int {
	if f == nil {
		return 0
	}
	return len(f.Steps)
}

// Step returns the step with the given 1-based id.
func (f *Form) Step(id int) (Step, bool) {
	if f == nil || id < 1 || id > len(f.Steps) {
		return Step{}, false
	}
	return f.Steps[id-1], true
}

// Field returns the declaration for name.
func (f *Form) Field(name string) (Field, bool) {
	if f == nil {
		return Field{}, false
	}
	ref, ok := f.index[name]
	if !ok {
		return Field{}, false
	}
	return f.Steps[ref.step].Fields[ref.field], true
}

// StepOf returns the id of the step that declares name, or 0.
func (f *Form) StepOf(name string) int {
	if f == nil {
		return 0
	}
	ref, ok := f.index[name]
	if !ok {
		return 0
	}
	return ref.step + 1
}

// Fields returns every field in declaration order.
func (f *Form) Fields() []Field {
	if f == nil {
		return nil
	}
	var out []Field
	for _, step := range f.Steps {
		out = append(out, step.Fields...)
	}
	return out
}

// FieldNames returns the names declared on step id, in order.
func (f *Form) FieldNames(id int) []string {
	step, ok := f.Step(id)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(step.Fields))
	for _, field := range step.Fields {
		names = append(names, field.Name)
	}
	return names
}

// RequiredFor reports whether the field is required given the current values.
func (f Field) RequiredFor(lookup condition.Lookup) bool {
	if f.Required {
		return true
	}
	expr := f.requiredWhen
	if expr == nil && f.RequiredWhen != "" {
		expr, _ = condition.Parse(f.RequiredWhen)
	}
	if expr == nil {
		return false
	}
	ok, err := expr.Eval(lookup)
	return err == nil && ok
}

// VisibleFor reports whether the field is shown given the current values.
func (f Field) VisibleFor(lookup condition.Lookup) bool {
	expr := f.visibleWhen
	if expr == nil && f.VisibleWhen != "" {
		expr, _ = condition.Parse(f.VisibleWhen)
	}
	if expr == nil {
		return true
	}
	ok, err := expr.Eval(lookup)
	return err == nil && ok
}

// PatternRegexp returns the compiled Pattern, or nil when none is declared.
func (f Field) PatternRegexp() *regexp.Regexp {
	if f.pattern != nil || f.Pattern == "" {
		return f.pattern
	}
	re, err := compilePattern(f.Pattern)
	if err != nil {
		return nil
	}
	return re
}

// Message returns the override for rule, falling back to def.
func (f Field) Message(rule, def string) string {
	if msg, ok := f.Messages[rule]; ok && strings.TrimSpace(msg) != "" {
		return msg
	}
	return def
}

// HasOption reports whether value is one of the declared options.
func (f Field) HasOption(value string) bool {
	for _, opt := range f.Options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

// DisplayLabel returns Label, or the last path segment of Name.
func (f Field) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	if idx := strings.LastIndex(f.Name, "."); idx >= 0 {
		return f.Name[idx+1:]
	}
	return f.Name
}

func compileField(field *Field, loc string, problems *problemSet) {
	if !field.Kind.Valid() {
		problems.add(loc, fmt.Sprintf("unknown kind %q", field.Kind))
	}
	if field.Kind.HasOptions() && len(field.Options) == 0 {
		problems.add(loc, fmt.Sprintf("%s field declares no options", field.Kind))
	}
	if !field.Kind.HasOptions() && len(field.Options) > 0 {
		problems.add(loc, fmt.Sprintf("%s field cannot declare options", field.Kind))
	}

	if field.RequiredWhen != "" {
		expr, err := condition.Parse(field.RequiredWhen)
		if err != nil {
			problems.add(loc, fmt.Sprintf("requiredWhen: %v", err))
		}
		field.requiredWhen = expr
	}
	if field.VisibleWhen != "" {
		expr, err := condition.Parse(field.VisibleWhen)
		if err != nil {
			problems.add(loc, fmt.Sprintf("visibleWhen: %v", err))
		}
		field.visibleWhen = expr
	}
	if field.Pattern != "" {
		re, err := compilePattern(field.Pattern)
		if err != nil {
			problems.add(loc, fmt.Sprintf("pattern: %v", err))
		}
		field.pattern = re
	}

	for _, rule := range field.Validations {
		checkRule(field, rule, loc, problems)
	}
	checkDefault(field, loc, problems)
}

func checkRule(field *Field, rule ValidationRule, loc string, problems *problemSet) {
	switch rule.Kind {
	case ValidationRuleMin, ValidationRuleMax:
		if _, err := strconv.ParseFloat(rule.Params["value"], 64); err != nil {
			problems.add(loc, fmt.Sprintf("%s rule needs a numeric value", rule.Kind))
		}
	case ValidationRuleMinLength, ValidationRuleMaxLength:
		n, err := strconv.Atoi(rule.Params["value"])
		if err != nil || n < 0 {
			problems.add(loc, fmt.Sprintf("%s rule needs a non-negative integer value", rule.Kind))
		}
	case ValidationRulePattern:
		if _, err := compilePattern(rule.Params["pattern"]); err != nil {
			problems.add(loc, fmt.Sprintf("pattern rule: %v", err))
		}
	default:
		problems.add(loc, fmt.Sprintf("unknown validation rule %q", rule.Kind))
	}
}

func checkDefault(field *Field, loc string, problems *problemSet) {
	if field.Default == nil {
		return
	}
	switch field.Kind {
	case KindCheckbox:
		if _, ok := field.Default.(bool); !ok {
			problems.add(loc, "checkbox default must be a boolean")
		}
	case KindCheckboxGroup:
		values, ok := StringSlice(field.Default)
		if !ok {
			problems.add(loc, "checkbox-group default must be a list")
			return
		}
		for _, v := range values {
			if !field.HasOption(v) {
				problems.add(loc, fmt.Sprintf("default %q is not a declared option", v))
			}
		}
	case KindSelect, KindRadio:
		value := condition.CoerceString(field.Default)
		if value != "" && !field.HasOption(value) {
			problems.add(loc, fmt.Sprintf("default %q is not a declared option", value))
		}
	}
}

// checkPathCollisions rejects a name that is a strict prefix of another, e.g.
// "applicant" next to "applicant.phone".
func checkPathCollisions(form *Form, problems *problemSet) {
	names := make([]string, 0, len(form.index))
	for name := range form.index {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		parts := strings.Split(name, ".")
		for i := 1; i < len(parts); i++ {
			prefix := strings.Join(parts[:i], ".")
			if _, ok := form.index[prefix]; ok {
				problems.add(fieldLocation(form.StepOf(name), name), fmt.Sprintf("path collides with field %q", prefix))
			}
		}
	}
}

func checkRuleReferences(form *Form, problems *problemSet) {
	for _, step := range form.Steps {
		for _, field := range step.Fields {
			for _, expr := range []*condition.Expr{field.requiredWhen, field.visibleWhen} {
				for _, ident := range expr.Identifiers() {
					if _, ok := form.index[ident]; !ok {
						problems.add(fieldLocation(step.ID, field.Name), fmt.Sprintf("rule %q references undeclared field %q", expr.String(), ident))
					}
				}
			}
		}
	}
}

// checkConsent requires the final step to carry an always-required checkbox.
func checkConsent(form *Form, problems *problemSet) {
	if len(form.Steps) == 0 {
		return
	}
	last := form.Steps[len(form.Steps)-1]
	for _, field := range last.Fields {
		if field.Kind == KindCheckbox && field.Required {
			return
		}
	}
	problems.add(stepLocation(last.ID), "final step must contain a required checkbox")
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, errors.New("empty expression")
	}
	return regexp.Compile(pattern)
}

func validPath(name string) bool {
	for _, part := range strings.Split(name, ".") {
		if strings.TrimSpace(part) == "" || part != strings.TrimSpace(part) {
			return false
		}
	}
	return true
}

// StringSlice converts list-shaped values to []string.
func StringSlice(value any) ([]string, bool) {
	switch typed := value.(type) {
	case []string:
		return append([]string{}, typed...), true
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			out = append(out, condition.CoerceString(item))
		}
		return out, true
	}
	return nil, false
}

func cloneForm(decl Form) *Form {
	out := decl
	out.Steps = make([]Step, len(decl.Steps))
	for i, step := range decl.Steps {
		out.Steps[i] = step
		out.Steps[i].Fields = make([]Field, len(step.Fields))
		for j, field := range step.Fields {
			field.Options = append([]Option(nil), field.Options...)
			field.Validations = append([]ValidationRule(nil), field.Validations...)
			field.Messages = cloneStrings(field.Messages)
			field.Metadata = cloneStrings(field.Metadata)
			out.Steps[i].Fields[j] = field
		}
	}
	out.Static = CloneTree(decl.Static)
	out.Metadata = cloneStrings(decl.Metadata)
	return &out
}

func cloneStrings(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// CloneTree deep-copies a value tree of maps and slices.
func CloneTree(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return CloneTree(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string{}, typed...)
	default:
		return v
	}
}
