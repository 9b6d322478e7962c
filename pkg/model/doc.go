// Package model declares the field, step and form types that every other
// package consumes. A Form is built with NewForm, which checks the
// declaration as a whole: unique dotted names, no name that is a prefix of
// another, well-formed requiredWhen/visibleWhen rules that only reference
// declared fields, and a statically required checkbox on the final step.
// Validation rules use the canonical identifiers (min/max, minLength/maxLength,
// pattern) with string parameters so declarations stay stable when
// serialised.
package model
