// Package validation checks the visible fields of a form against their
// declared constraints. Each failing field gets exactly one message, taken
// from the first failing check: required, kind format, declared pattern,
// option membership, then validation rules.
package validation

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goliatone/go-formwizard/pkg/condition"
	"github.com/goliatone/go-formwizard/pkg/model"
)

// Rule names double as keys for per-field message overrides.
const (
	RuleRequired  = "required"
	RuleFormat    = "format"
	RulePattern   = "pattern"
	RuleOption    = "option"
	RuleMin       = model.ValidationRuleMin
	RuleMax       = model.ValidationRuleMax
	RuleMinLength = model.ValidationRuleMinLength
	RuleMaxLength = model.ValidationRuleMaxLength
)

// ErrorMap holds one message per failing field name.
type ErrorMap map[string]string

// Issue is a flattened ErrorMap entry with location data.
type Issue struct {
	Field   string `json:"field"`
	Step    int    `json:"step"`
	Message string `json:"message"`
}

// Result is the outcome of validating every step.
type Result struct {
	Steps map[int]ErrorMap
	// FirstFailing is the lowest step id with errors, or 0.
	FirstFailing int
}

// Valid reports whether no step failed.
func (r Result) Valid() bool {
	return r.FirstFailing == 0
}

// Errors returns the errors of the first failing step.
func (r Result) Errors() ErrorMap {
	if r.FirstFailing == 0 {
		return ErrorMap{}
	}
	return r.Steps[r.FirstFailing]
}

// Issues lists every error, ordered by step then field name.
func (r Result) Issues() []Issue {
	var out []Issue
	for step, errs := range r.Steps {
		for field, msg := range errs {
			out = append(out, Issue{Field: field, Step: step, Message: msg})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Step != out[j].Step {
			return out[i].Step < out[j].Step
		}
		return out[i].Field < out[j].Field
	})
	return out
}

// Messages are the default texts used when a field declares no override.
type Messages struct {
	Required  string
	Email     string
	Tel       string
	URL       string
	Number    string
	Date      string
	DateTime  string
	Pattern   string
	Option    string
	Min       string
	Max       string
	MinLength string
	MaxLength string
	MinItems  string
	MaxItems  string
}

// DefaultMessages returns the built-in message set.
func DefaultMessages() Messages {
	return Messages{
		Required:  "This field is required",
		Email:     "Invalid email address",
		Tel:       "Invalid phone number",
		URL:       "Invalid URL",
		Number:    "Must be a number",
		Date:      "Invalid date",
		DateTime:  "Invalid date and time",
		Pattern:   "Invalid format",
		Option:    "Select a valid option",
		Min:       "Must be at least %s",
		Max:       "Must be at most %s",
		MinLength: "Must be at least %s characters",
		MaxLength: "Must be at most %s characters",
		MinItems:  "Select at least %s",
		MaxItems:  "Select at most %s",
	}
}

// Option configures a Validator.
type Option func(*Validator)

// WithMessages replaces the default message set.
func WithMessages(messages Messages) Option {
	return func(v *Validator) {
		v.messages = messages
	}
}

// Validator checks steps of a filled form. The zero value is not usable; call
// New.
type Validator struct {
	messages Messages
}

// New returns a Validator with the default messages.
func New(opts ...Option) *Validator {
	v := &Validator{messages: DefaultMessages()}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

var (
	telPattern  = regexp.MustCompile(`^[\d\s\-\(\)\+]+$`)
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// ValidateStep checks the visible fields of step id. Hidden fields never
// produce errors. An unknown step yields an empty map.
func (v *Validator) ValidateStep(state model.State, id int) ErrorMap {
	errs := ErrorMap{}
	step, ok := state.Form().Step(id)
	if !ok {
		return errs
	}
	lookup := condition.Lookup(state.Lookup)
	for _, field := range step.Fields {
		if !field.VisibleFor(lookup) {
			continue
		}
		if msg, failed := v.checkField(field, state.GetValue(field.Name), lookup); failed {
			errs[field.Name] = msg
		}
	}
	return errs
}

// ValidateAll checks every step in order.
func (v *Validator) ValidateAll(state model.State) Result {
	result := Result{Steps: make(map[int]ErrorMap)}
	for id := 1; id <= state.Form().StepCount(); id++ {
		errs := v.ValidateStep(state, id)
		if len(errs) == 0 {
			continue
		}
		result.Steps[id] = errs
		if result.FirstFailing == 0 {
			result.FirstFailing = id
		}
	}
	return result
}

func (v *Validator) checkField(field model.Field, value any, lookup condition.Lookup) (string, bool) {
	if isEmpty(field, value) {
		if field.RequiredFor(lookup) {
			return field.Message(RuleRequired, v.messages.Required), true
		}
		return "", false
	}

	if msg, failed := v.checkFormat(field, value); failed {
		return msg, true
	}
	if re := field.PatternRegexp(); re != nil {
		if s, ok := value.(string); ok && !re.MatchString(s) {
			return field.Message(RulePattern, v.messages.Pattern), true
		}
	}
	if msg, failed := v.checkOptions(field, value); failed {
		return msg, true
	}
	for _, rule := range field.Validations {
		if msg, failed := v.checkRule(field, rule, value); failed {
			return msg, true
		}
	}
	return "", false
}

func isEmpty(field model.Field, value any) bool {
	switch field.Kind {
	case model.KindCheckbox:
		b, ok := value.(bool)
		return ok && !b
	case model.KindCheckboxGroup:
		list, ok := model.StringSlice(value)
		return ok && len(list) == 0
	}
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(typed) == ""
	}
	return false
}

func (v *Validator) checkFormat(field model.Field, value any) (string, bool) {
	fail := func(def string) (string, bool) {
		return field.Message(RuleFormat, def), true
	}

	switch field.Kind {
	case model.KindCheckbox:
		if _, ok := value.(bool); !ok {
			return fail(v.messages.Option)
		}
		return "", false
	case model.KindCheckboxGroup:
		if _, ok := model.StringSlice(value); !ok {
			return fail(v.messages.Option)
		}
		return "", false
	case model.KindNumber:
		if _, ok := condition.CoerceNumber(value); !ok {
			return fail(v.messages.Number)
		}
		return "", false
	}

	s, ok := value.(string)
	if !ok {
		return fail(v.messages.Pattern)
	}
	s = strings.TrimSpace(s)

	switch field.Kind {
	case model.KindEmail:
		addr, err := mail.ParseAddress(s)
		if err != nil || addr.Address != s || !strings.Contains(s[strings.LastIndex(s, "@")+1:], ".") {
			return fail(v.messages.Email)
		}
	case model.KindTel:
		if !telPattern.MatchString(s) {
			return fail(v.messages.Tel)
		}
	case model.KindURL:
		u, err := url.ParseRequestURI(s)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return fail(v.messages.URL)
		}
	case model.KindDate:
		if !datePattern.MatchString(s) {
			return fail(v.messages.Date)
		}
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return fail(v.messages.Date)
		}
	case model.KindDateTime:
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			if _, err := time.Parse("2006-01-02T15:04", s); err != nil {
				return fail(v.messages.DateTime)
			}
		}
	}
	return "", false
}

func (v *Validator) checkOptions(field model.Field, value any) (string, bool) {
	if !field.Kind.HasOptions() {
		return "", false
	}
	if field.Kind == model.KindCheckboxGroup {
		list, _ := model.StringSlice(value)
		for _, item := range list {
			if !field.HasOption(item) {
				return field.Message(RuleOption, v.messages.Option), true
			}
		}
		return "", false
	}
	if !field.HasOption(condition.CoerceString(value)) {
		return field.Message(RuleOption, v.messages.Option), true
	}
	return "", false
}

func (v *Validator) checkRule(field model.Field, rule model.ValidationRule, value any) (string, bool) {
	threshold := rule.Params["value"]

	switch rule.Kind {
	case model.ValidationRuleMin, model.ValidationRuleMax:
		limit, err := strconv.ParseFloat(threshold, 64)
		if err != nil {
			return "", false
		}
		got, ok := condition.CoerceNumber(value)
		if !ok {
			return "", false
		}
		if rule.Kind == model.ValidationRuleMin && got < limit {
			return field.Message(RuleMin, fmt.Sprintf(v.messages.Min, threshold)), true
		}
		if rule.Kind == model.ValidationRuleMax && got > limit {
			return field.Message(RuleMax, fmt.Sprintf(v.messages.Max, threshold)), true
		}

	case model.ValidationRuleMinLength, model.ValidationRuleMaxLength:
		limit, err := strconv.Atoi(threshold)
		if err != nil {
			return "", false
		}
		size, isList := length(value)
		isMin := rule.Kind == model.ValidationRuleMinLength
		switch {
		case isMin && size < limit:
			def := v.messages.MinLength
			if isList {
				def = v.messages.MinItems
			}
			return field.Message(RuleMinLength, fmt.Sprintf(def, threshold)), true
		case !isMin && size > limit:
			def := v.messages.MaxLength
			if isList {
				def = v.messages.MaxItems
			}
			return field.Message(RuleMaxLength, fmt.Sprintf(def, threshold)), true
		}

	case model.ValidationRulePattern:
		re, err := regexp.Compile(rule.Params["pattern"])
		if err != nil {
			return "", false
		}
		if s, ok := value.(string); ok && !re.MatchString(s) {
			return field.Message(RulePattern, v.messages.Pattern), true
		}
	}
	return "", false
}

func length(value any) (int, bool) {
	if list, ok := model.StringSlice(value); ok {
		return len(list), true
	}
	return utf8.RuneCountInString(strings.TrimSpace(condition.CoerceString(value))), false
}
