// Package tui walks a wizard through terminal prompts: one step at a time,
// re-prompting failing fields until the step passes, then submitting.
package tui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-formwizard/pkg/condition"
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/submit"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

const noneOption = "(none)"

// Runner drives a wizard with a PromptDriver.
type Runner struct {
	driver      PromptDriver
	theme       Theme
	pageSize    int
	maxAttempts int
}

// New returns a runner using the survey driver unless overridden.
func New(options ...Option) *Runner {
	r := &Runner{
		driver:   NewSurveyDriver(),
		theme:    DefaultTheme,
		pageSize: 10,
	}
	for _, opt := range options {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Fill prompts from the wizard's current step until every step has passed.
// Only failing fields are prompted again after a rejected step.
func (r *Runner) Fill(ctx context.Context, w *wizard.Wizard) error {
	if ctx == nil {
		return errors.New("tui: context is required")
	}
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		errs := w.CurrentErrors()
		if len(errs) == 0 {
			if err := r.stepHeader(ctx, w); err != nil {
				return err
			}
		}
		if err := r.promptStep(ctx, w, errs); err != nil {
			return err
		}

		last := w.IsLastStep()
		if w.OnStepNext() {
			attempts = 0
			if last {
				return nil
			}
			continue
		}

		attempts++
		if err := r.showErrors(ctx, w); err != nil {
			return err
		}
		if r.maxAttempts > 0 && attempts >= r.maxAttempts {
			return fmt.Errorf("tui: step %d still invalid after %d attempts", w.CurrentStep(), attempts)
		}
	}
}

// Run fills the form, asks for confirmation and submits. Rejections send the
// user back to the failing step; failures offer a retry. Declining either
// prompt returns ErrCancelled.
func (r *Runner) Run(ctx context.Context, w *wizard.Wizard) (submit.Outcome, error) {
	if err := r.Fill(ctx, w); err != nil {
		return submit.Outcome{}, err
	}

	message := "Submit now?"
	for {
		ok, err := r.driver.Confirm(ctx, ConfirmConfig{Message: message, Default: true})
		if err != nil {
			return submit.Outcome{}, err
		}
		if !ok {
			w.Cancel()
			return submit.Outcome{}, ErrCancelled
		}

		outcome, err := w.OnSubmit(ctx)
		if err != nil {
			return outcome, err
		}

		switch outcome.State {
		case submit.StateSucceeded:
			return outcome, r.info(ctx, r.theme.InfoPrefix, outcome.Message)
		case submit.StateRejected:
			if err := r.info(ctx, r.theme.ErrorPrefix, fmt.Sprintf("Please review step %d.", outcome.Step)); err != nil {
				return outcome, err
			}
			if err := r.showErrors(ctx, w); err != nil {
				return outcome, err
			}
			if err := r.Fill(ctx, w); err != nil {
				return outcome, err
			}
			message = "Submit now?"
		default:
			if err := r.info(ctx, r.theme.ErrorPrefix, outcome.Message); err != nil {
				return outcome, err
			}
			message = "Try again?"
		}
	}
}

func (r *Runner) stepHeader(ctx context.Context, w *wizard.Wizard) error {
	step := w.Step()
	title := step.Title
	if title == "" {
		title = fmt.Sprintf("Step %d", step.ID)
	}
	header := fmt.Sprintf("%s (%d/%d)", title, step.ID, w.Form().StepCount())
	if step.Description != "" {
		header += "\n" + step.Description
	}
	return r.info(ctx, r.theme.StepPrefix, header)
}

func (r *Runner) showErrors(ctx context.Context, w *wizard.Wizard) error {
	errs := w.CurrentErrors()
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		label := name
		if field, ok := w.Form().Field(name); ok {
			label = field.DisplayLabel()
		}
		if err := r.info(ctx, r.theme.ErrorPrefix, fmt.Sprintf("%s: %s", label, errs[name])); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) info(ctx context.Context, prefix, msg string) error {
	if msg == "" {
		return nil
	}
	if prefix != "" {
		msg = prefix + " " + msg
	}
	return r.driver.Info(ctx, msg)
}

// promptStep asks for every visible field of the current step, or only for
// the fields in only when it is non-empty. Visibility is re-evaluated before
// each prompt so earlier answers can reveal later fields.
func (r *Runner) promptStep(ctx context.Context, w *wizard.Wizard, only map[string]string) error {
	lookup := condition.Lookup(w.Session().Lookup)
	for _, field := range w.Step().Fields {
		if len(only) > 0 {
			if _, ok := only[field.Name]; !ok {
				continue
			}
		}
		if !field.VisibleFor(lookup) {
			continue
		}
		value, err := r.promptField(ctx, w, field, field.RequiredFor(lookup))
		if err != nil {
			return err
		}
		w.OnFieldChange(field.Name, value)
	}
	return nil
}

func (r *Runner) promptField(ctx context.Context, w *wizard.Wizard, field model.Field, required bool) (any, error) {
	message := field.DisplayLabel()
	if required {
		message += " *"
	}
	help := field.Help
	if help == "" {
		help = field.Placeholder
	}
	current := w.Session().GetValue(field.Name)

	switch field.Kind {
	case model.KindCheckbox:
		def, _ := current.(bool)
		return r.driver.Confirm(ctx, ConfirmConfig{Message: message, Default: def, Help: help})

	case model.KindCheckboxGroup:
		labels := optionLabels(field.Options)
		selected, _ := model.StringSlice(current)
		indices, err := r.driver.MultiSelect(ctx, SelectConfig{
			Message:  message,
			Options:  labels,
			Defaults: optionIndices(field.Options, selected),
			Help:     help,
			PageSize: r.pageSize,
		})
		if err != nil {
			return nil, err
		}
		values := make([]string, 0, len(indices))
		for _, idx := range indices {
			if idx >= 0 && idx < len(field.Options) {
				values = append(values, field.Options[idx].Value)
			}
		}
		return values, nil

	case model.KindSelect, model.KindRadio:
		labels := optionLabels(field.Options)
		offset := 0
		if !required {
			labels = append([]string{noneOption}, labels...)
			offset = 1
		}
		def := 0
		if idx := optionIndices(field.Options, []string{condition.CoerceString(current)}); len(idx) == 1 {
			def = idx[0] + offset
		}
		idx, err := r.driver.Select(ctx, SelectConfig{
			Message:      message,
			Options:      labels,
			DefaultIndex: def,
			Help:         help,
			PageSize:     r.pageSize,
		})
		if err != nil {
			return nil, err
		}
		idx -= offset
		if idx < 0 || idx >= len(field.Options) {
			return "", nil
		}
		return field.Options[idx].Value, nil

	case model.KindTextarea:
		out, err := r.driver.TextArea(ctx, TextAreaConfig{Message: message, Default: condition.CoerceString(current), Help: help})
		return strings.TrimRight(out, "\n"), err

	default:
		out, err := r.driver.Input(ctx, InputConfig{Message: message, Default: condition.CoerceString(current), Help: help})
		return strings.TrimSpace(out), err
	}
}

func optionLabels(options []model.Option) []string {
	out := make([]string, 0, len(options))
	for _, opt := range options {
		label := opt.Label
		if label == "" {
			label = opt.Value
		}
		out = append(out, label)
	}
	return out
}

func optionIndices(options []model.Option, values []string) []int {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	var out []int
	for i, opt := range options {
		if _, ok := seen[opt.Value]; ok {
			out = append(out, i)
		}
	}
	return out
}
