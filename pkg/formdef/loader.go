package formdef

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// LoadFS walks fsys and compiles every form declared in its JSON/YAML files.
// Option sets declared in any file are visible to forms in every file. All
// configuration problems across files are joined into the returned error.
// When fsys is nil or holds no definition files, the registry is empty.
func LoadFS(fsys fs.FS) (*Registry, error) {
	reg := newRegistry()
	if fsys == nil {
		return reg, nil
	}

	type parsed struct {
		path string
		doc  documentFile
	}
	var docs []parsed
	optionSets := make(map[string][]model.Option)

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isDefinitionFile(path) {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("formdef: read %s: %w", path, err)
		}
		doc, err := parseDocument(data, path)
		if err != nil {
			return err
		}

		for name, options := range doc.OptionSets {
			key := strings.TrimSpace(name)
			if key == "" {
				return fmt.Errorf("formdef: file %s defines an empty option set name", path)
			}
			if _, exists := optionSets[key]; exists {
				return fmt.Errorf("formdef: duplicate option set %q (file %s)", key, path)
			}
			optionSets[key] = toOptions(options)
		}
		docs = append(docs, parsed{path: path, doc: doc})
		return nil
	})
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, p := range docs {
		for _, id := range sortedKeys(p.doc.Forms) {
			formID := strings.TrimSpace(id)
			if formID == "" {
				errs = append(errs, fmt.Errorf("formdef: file %s defines an empty form id", p.path))
				continue
			}
			if prev, exists := reg.sources[formID]; exists {
				errs = append(errs, fmt.Errorf("formdef: duplicate form %q (files %s and %s)", formID, prev, p.path))
				continue
			}

			decl, err := declare(formID, p.doc.Forms[id], optionSets)
			if err != nil {
				errs = append(errs, fmt.Errorf("formdef: form %q (file %s): %w", formID, p.path, err))
				continue
			}
			form, err := model.NewForm(decl)
			if err != nil {
				errs = append(errs, fmt.Errorf("formdef: file %s: %w", p.path, err))
				continue
			}
			reg.add(form, p.path)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return reg, nil
}

type documentFile struct {
	OptionSets map[string][]optionFile `json:"optionSets" yaml:"optionSets"`
	Forms      map[string]formFile     `json:"forms" yaml:"forms"`
}

type formFile struct {
	Title          string            `json:"title" yaml:"title"`
	Description    string            `json:"description" yaml:"description"`
	Collection     string            `json:"collection" yaml:"collection"`
	Static         map[string]any    `json:"static" yaml:"static"`
	SuccessMessage string            `json:"successMessage" yaml:"successMessage"`
	FailureMessage string            `json:"failureMessage" yaml:"failureMessage"`
	Metadata       map[string]string `json:"metadata" yaml:"metadata"`
	Steps          []stepFile        `json:"steps" yaml:"steps"`
}

type stepFile struct {
	Title       string      `json:"title" yaml:"title"`
	Description string      `json:"description" yaml:"description"`
	Fields      []fieldFile `json:"fields" yaml:"fields"`
}

type fieldFile struct {
	Name         string                 `json:"name" yaml:"name"`
	Kind         string                 `json:"kind" yaml:"kind"`
	Label        string                 `json:"label" yaml:"label"`
	Placeholder  string                 `json:"placeholder" yaml:"placeholder"`
	Help         string                 `json:"help" yaml:"help"`
	Required     bool                   `json:"required" yaml:"required"`
	RequiredWhen string                 `json:"requiredWhen" yaml:"requiredWhen"`
	VisibleWhen  string                 `json:"visibleWhen" yaml:"visibleWhen"`
	Pattern      string                 `json:"pattern" yaml:"pattern"`
	Options      []optionFile           `json:"options" yaml:"options"`
	OptionSet    string                 `json:"optionSet" yaml:"optionSet"`
	Default      any                    `json:"default" yaml:"default"`
	Min          *float64               `json:"min" yaml:"min"`
	Max          *float64               `json:"max" yaml:"max"`
	MinLength    *int                   `json:"minLength" yaml:"minLength"`
	MaxLength    *int                   `json:"maxLength" yaml:"maxLength"`
	Validations  []model.ValidationRule `json:"validations" yaml:"validations"`
	Messages     map[string]string      `json:"messages" yaml:"messages"`
	Metadata     map[string]string      `json:"metadata" yaml:"metadata"`
}

// optionFile accepts either a bare string or a {value, label} mapping.
type optionFile struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

func (o *optionFile) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err == nil {
		*o = optionFile{Value: value}
		return nil
	}
	type plain optionFile
	var out plain
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*o = optionFile(out)
	return nil
}

func (o *optionFile) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*o = optionFile{Value: node.Value}
		return nil
	}
	type plain optionFile
	var out plain
	if err := node.Decode(&out); err != nil {
		return err
	}
	*o = optionFile(out)
	return nil
}

func parseDocument(data []byte, source string) (documentFile, error) {
	var doc documentFile
	if len(strings.TrimSpace(string(data))) == 0 {
		return documentFile{}, fmt.Errorf("formdef: file %s is empty", source)
	}

	if err := json.Unmarshal(data, &doc); err == nil {
		return doc, nil
	}

	doc = documentFile{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return documentFile{}, fmt.Errorf("formdef: parse %s: %w", source, err)
	}
	return doc, nil
}

func declare(id string, raw formFile, optionSets map[string][]model.Option) (model.Form, error) {
	form := model.Form{
		ID:             id,
		Title:          raw.Title,
		Description:    raw.Description,
		Collection:     raw.Collection,
		Static:         normaliseTree(raw.Static),
		SuccessMessage: strings.TrimSpace(raw.SuccessMessage),
		FailureMessage: strings.TrimSpace(raw.FailureMessage),
		Metadata:       raw.Metadata,
		Steps:          make([]model.Step, 0, len(raw.Steps)),
	}

	for si, rawStep := range raw.Steps {
		step := model.Step{
			Title:       rawStep.Title,
			Description: rawStep.Description,
			Fields:      make([]model.Field, 0, len(rawStep.Fields)),
		}
		for _, rawField := range rawStep.Fields {
			field, err := declareField(rawField, optionSets)
			if err != nil {
				return model.Form{}, fmt.Errorf("step %d field %q: %w", si+1, rawField.Name, err)
			}
			step.Fields = append(step.Fields, field)
		}
		form.Steps = append(form.Steps, step)
	}
	return form, nil
}

func declareField(raw fieldFile, optionSets map[string][]model.Option) (model.Field, error) {
	field := model.Field{
		Name:         strings.TrimSpace(raw.Name),
		Kind:         model.Kind(strings.TrimSpace(raw.Kind)),
		Label:        raw.Label,
		Placeholder:  raw.Placeholder,
		Help:         raw.Help,
		Required:     raw.Required,
		RequiredWhen: strings.TrimSpace(raw.RequiredWhen),
		VisibleWhen:  strings.TrimSpace(raw.VisibleWhen),
		Pattern:      raw.Pattern,
		Options:      toOptions(raw.Options),
		Default:      normaliseValue(raw.Default),
		Messages:     raw.Messages,
		Metadata:     raw.Metadata,
	}
	if field.Kind == "" {
		field.Kind = model.KindText
	}

	if set := strings.TrimSpace(raw.OptionSet); set != "" {
		options, ok := optionSets[set]
		if !ok {
			return model.Field{}, fmt.Errorf("unknown option set %q", set)
		}
		field.Options = append(append([]model.Option(nil), options...), field.Options...)
	}

	if raw.Min != nil {
		field.Validations = append(field.Validations, boundRule(model.ValidationRuleMin, formatFloat(*raw.Min)))
	}
	if raw.Max != nil {
		field.Validations = append(field.Validations, boundRule(model.ValidationRuleMax, formatFloat(*raw.Max)))
	}
	if raw.MinLength != nil {
		field.Validations = append(field.Validations, boundRule(model.ValidationRuleMinLength, strconv.Itoa(*raw.MinLength)))
	}
	if raw.MaxLength != nil {
		field.Validations = append(field.Validations, boundRule(model.ValidationRuleMaxLength, strconv.Itoa(*raw.MaxLength)))
	}
	field.Validations = append(field.Validations, raw.Validations...)
	return field, nil
}

func boundRule(kind, value string) model.ValidationRule {
	return model.ValidationRule{Kind: kind, Params: map[string]string{"value": value}}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func toOptions(raw []optionFile) []model.Option {
	if len(raw) == 0 {
		return nil
	}
	out := make([]model.Option, 0, len(raw))
	for _, opt := range raw {
		value := strings.TrimSpace(opt.Value)
		label := strings.TrimSpace(opt.Label)
		if label == "" {
			label = value
		}
		out = append(out, model.Option{Value: value, Label: label})
	}
	return out
}

// normaliseTree converts decoded YAML/JSON trees into map[string]any and
// []any so statics and defaults compare the same regardless of source format.
func normaliseTree(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = normaliseValue(v)
	}
	return out
}

func normaliseValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return normaliseTree(typed)
	case map[any]any:
		out := make(map[string]any, len(typed))
		for k, val := range typed {
			out[fmt.Sprint(k)] = normaliseValue(val)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, val := range typed {
			out[i] = normaliseValue(val)
		}
		return out
	default:
		return v
	}
}

func sortedKeys(m map[string]formFile) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isDefinitionFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
