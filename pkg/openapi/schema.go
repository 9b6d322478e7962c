package openapi

import (
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// SchemaFor describes the value tree a form submits. Dotted field names
// become nested objects. Only fields that are always required and always
// visible are listed as required; conditional rules are kept as
// x-formwizard-requiredWhen / x-formwizard-visibleWhen extensions.
func SchemaFor(form *model.Form) *openapi3.Schema {
	root := openapi3.NewObjectSchema()
	if form == nil {
		return root
	}
	root.Title = form.Title
	root.Description = form.Description

	for _, field := range form.Fields() {
		parts := strings.Split(field.Name, ".")
		parent := root
		for _, segment := range parts[:len(parts)-1] {
			parent = childObject(parent, segment)
		}

		leaf := parts[len(parts)-1]
		parent.WithProperty(leaf, fieldSchema(field))
		if field.Required && field.VisibleWhen == "" {
			parent.Required = appendUnique(parent.Required, leaf)
			markRequired(root, parts[:len(parts)-1])
		}
	}
	return root
}

func childObject(parent *openapi3.Schema, name string) *openapi3.Schema {
	if ref, ok := parent.Properties[name]; ok && ref.Value != nil {
		return ref.Value
	}
	child := openapi3.NewObjectSchema()
	parent.WithProperty(name, child)
	return child
}

// markRequired lists every object on the path as required in its parent.
func markRequired(root *openapi3.Schema, path []string) {
	node := root
	for _, segment := range path {
		node.Required = appendUnique(node.Required, segment)
		node = node.Properties[segment].Value
	}
}

func fieldSchema(field model.Field) *openapi3.Schema {
	var schema *openapi3.Schema

	switch field.Kind {
	case model.KindNumber:
		schema = openapi3.NewFloat64Schema()
	case model.KindCheckbox:
		schema = openapi3.NewBoolSchema()
	case model.KindCheckboxGroup:
		items := openapi3.NewStringSchema()
		if len(field.Options) > 0 {
			items.WithEnum(optionValues(field)...)
		}
		schema = openapi3.NewArraySchema().WithItems(items).WithUniqueItems(true)
	default:
		schema = openapi3.NewStringSchema()
		if format := stringFormat(field.Kind); format != "" {
			schema.WithFormat(format)
		}
		if field.Kind.HasOptions() {
			schema.WithEnum(optionValues(field)...)
		}
		if field.Pattern != "" {
			schema.WithPattern(field.Pattern)
		}
	}

	schema.Title = field.DisplayLabel()
	schema.Description = field.Help
	applyRules(schema, field)

	if field.Default != nil {
		schema.WithDefault(defaultValue(field))
	}

	ext := map[string]any{"x-formwizard-kind": string(field.Kind)}
	if field.RequiredWhen != "" {
		ext["x-formwizard-requiredWhen"] = field.RequiredWhen
	}
	if field.VisibleWhen != "" {
		ext["x-formwizard-visibleWhen"] = field.VisibleWhen
	}
	schema.Extensions = ext
	return schema
}

func applyRules(schema *openapi3.Schema, field model.Field) {
	for _, rule := range field.Validations {
		value := rule.Params["value"]
		switch rule.Kind {
		case model.ValidationRuleMin:
			if f, err := strconv.ParseFloat(value, 64); err == nil && field.Kind == model.KindNumber {
				schema.WithMin(f)
			}
		case model.ValidationRuleMax:
			if f, err := strconv.ParseFloat(value, 64); err == nil && field.Kind == model.KindNumber {
				schema.WithMax(f)
			}
		case model.ValidationRuleMinLength:
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				if field.Kind == model.KindCheckboxGroup {
					schema.WithMinItems(n)
				} else {
					schema.WithMinLength(n)
				}
			}
		case model.ValidationRuleMaxLength:
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				if field.Kind == model.KindCheckboxGroup {
					schema.WithMaxItems(n)
				} else {
					schema.WithMaxLength(n)
				}
			}
		case model.ValidationRulePattern:
			if schema.Pattern == "" && field.Kind != model.KindCheckboxGroup {
				schema.WithPattern(rule.Params["pattern"])
			}
		}
	}
}

func stringFormat(kind model.Kind) string {
	switch kind {
	case model.KindEmail:
		return "email"
	case model.KindURL:
		return "uri"
	case model.KindDate:
		return "date"
	case model.KindDateTime:
		return "date-time"
	case model.KindFile:
		return "binary"
	}
	return ""
}

func optionValues(field model.Field) []any {
	out := make([]any, 0, len(field.Options))
	for _, opt := range field.Options {
		out = append(out, opt.Value)
	}
	return out
}

func defaultValue(field model.Field) any {
	if field.Kind == model.KindCheckboxGroup {
		values, _ := model.StringSlice(field.Default)
		out := make([]any, 0, len(values))
		for _, v := range values {
			out = append(out, v)
		}
		return out
	}
	return field.Default
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	list = append(list, value)
	sort.Strings(list)
	return list
}
