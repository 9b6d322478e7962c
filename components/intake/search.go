package intake

import (
	"sort"
	"strings"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// SearchOptions filters a field's options by case-insensitive substring on
// value or label. Prefix matches sort first, then declaration order is kept.
// An empty query returns the first limit options.
func SearchOptions(options []model.Option, query string, limit int, opts Options) []model.Option {
	limit = clampLimit(limit, opts)
	if limit == 0 {
		return nil
	}

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		if len(options) > limit {
			options = options[:limit]
		}
		return withLabels(options)
	}

	matches := make([]matchedOption, 0, len(options))
	for _, opt := range options {
		value := strings.ToLower(opt.Value)
		label := strings.ToLower(opt.Label)
		if !strings.Contains(value, query) && !strings.Contains(label, query) {
			continue
		}
		matches = append(matches, matchedOption{
			option:   opt,
			isPrefix: strings.HasPrefix(value, query) || strings.HasPrefix(label, query),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].isPrefix && !matches[j].isPrefix
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]model.Option, 0, len(matches))
	for _, match := range matches {
		out = append(out, match.option)
	}
	return withLabels(out)
}

func withLabels(options []model.Option) []model.Option {
	out := make([]model.Option, 0, len(options))
	for _, opt := range options {
		if opt.Label == "" {
			opt.Label = opt.Value
		}
		out = append(out, opt)
	}
	return out
}

type matchedOption struct {
	option   model.Option
	isPrefix bool
}
