package model

import (
	"regexp"

	"github.com/goliatone/go-formwizard/pkg/condition"
)

// Kind enumerates the input kinds a field can declare.
type Kind string

const (
	KindText          Kind = "text"
	KindEmail         Kind = "email"
	KindTel           Kind = "tel"
	KindNumber        Kind = "number"
	KindURL           Kind = "url"
	KindDate          Kind = "date"
	KindDateTime      Kind = "datetime"
	KindTextarea      Kind = "textarea"
	KindFile          Kind = "file"
	KindSelect        Kind = "select"
	KindRadio         Kind = "radio"
	KindCheckbox      Kind = "checkbox"
	KindCheckboxGroup Kind = "checkbox-group"
)

var knownKinds = map[Kind]struct{}{
	KindText: {}, KindEmail: {}, KindTel: {}, KindNumber: {}, KindURL: {},
	KindDate: {}, KindDateTime: {}, KindTextarea: {}, KindFile: {},
	KindSelect: {}, KindRadio: {}, KindCheckbox: {}, KindCheckboxGroup: {},
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := knownKinds[k]
	return ok
}

// HasOptions reports whether the kind draws its values from declared options.
func (k Kind) HasOptions() bool {
	return k == KindSelect || k == KindRadio || k == KindCheckboxGroup
}

// EmptyValue returns the value a field of this kind holds before any input.
func (k Kind) EmptyValue() any {
	switch k {
	case KindCheckbox:
		return false
	case KindCheckboxGroup:
		return []string{}
	default:
		return ""
	}
}

const (
	ValidationRuleMin       = "min"
	ValidationRuleMax       = "max"
	ValidationRuleMinLength = "minLength"
	ValidationRuleMaxLength = "maxLength"
	ValidationRulePattern   = "pattern"
)

// ValidationRule is a single declared constraint. Bounds and lengths keep
// their threshold in Params["value"]; pattern rules keep the expression in
// Params["pattern"].
type ValidationRule struct {
	Kind   string            `json:"kind"`
	Params map[string]string `json:"params,omitempty"`
}

// Option is one selectable value of a select, radio or checkbox-group field.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
}

// Field declares a single input. Dotted names ("applicant.phone") address a
// nested position in the value tree and the submitted payload.
type Field struct {
	Name         string            `json:"name"`
	Kind         Kind              `json:"kind"`
	Label        string            `json:"label,omitempty"`
	Placeholder  string            `json:"placeholder,omitempty"`
	Help         string            `json:"help,omitempty"`
	Required     bool              `json:"required"`
	RequiredWhen string            `json:"requiredWhen,omitempty"`
	VisibleWhen  string            `json:"visibleWhen,omitempty"`
	Pattern      string            `json:"pattern,omitempty"`
	Options      []Option          `json:"options,omitempty"`
	Default      any               `json:"default,omitempty"`
	Validations  []ValidationRule  `json:"validations,omitempty"`
	Messages     map[string]string `json:"messages,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`

	requiredWhen *condition.Expr
	visibleWhen  *condition.Expr
	pattern      *regexp.Regexp
}

// Step is an ordered group of fields shown together. IDs are 1-based and
// contiguous within a form.
type Step struct {
	ID          int     `json:"id"`
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Fields      []Field `json:"fields"`
}

// Form is an ordered list of steps plus submission settings. Build one with
// NewForm; the zero value has no compiled rules.
type Form struct {
	ID             string            `json:"id"`
	Title          string            `json:"title,omitempty"`
	Description    string            `json:"description,omitempty"`
	Collection     string            `json:"collection"`
	Steps          []Step            `json:"steps"`
	Static         map[string]any    `json:"static,omitempty"`
	SuccessMessage string            `json:"successMessage,omitempty"`
	FailureMessage string            `json:"failureMessage,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`

	index map[string]fieldRef
}

type fieldRef struct {
	step  int
	field int
}

// State is the read side of a filled form, as validators and normalizers
// consume it.
type State interface {
	Form() *Form
	GetValue(name string) any
	Lookup(path string) (any, bool)
}
