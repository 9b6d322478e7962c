// Package render produces the user-facing text around a submission: outcome
// messages templated against the submitted payload, and remote error
// payloads mapped back onto form fields.
package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
)

// Default outcome messages used when a form declares none.
const (
	DefaultSuccessMessage = "Thank you! Your submission has been received."
	DefaultFailureMessage = "Failed to submit. Please try again."
)

// Messages renders outcome templates such as
// "We will contact you at {{ applicant.phone }}". Parsed templates are cached
// by source. Output is plain text; values are not HTML-escaped.
type Messages struct {
	mu        sync.RWMutex
	set       *pongo2.TemplateSet
	templates map[string]*pongo2.Template
}

// NewMessages returns an empty renderer.
func NewMessages() *Messages {
	return &Messages{
		set:       pongo2.NewSet("formwizard-messages", pongo2.NewFSLoader(noIncludes)),
		templates: make(map[string]*pongo2.Template),
	}
}

// Render executes source against data. Sources without template tags are
// returned unchanged.
func (m *Messages) Render(source string, data map[string]any) (string, error) {
	if m == nil {
		return "", errors.New("render: messages renderer is nil")
	}
	if !strings.Contains(source, "{{") && !strings.Contains(source, "{%") {
		return source, nil
	}

	tpl, err := m.template(source)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tpl.ExecuteWriter(contextFrom(data), &buf); err != nil {
		return "", fmt.Errorf("render: execute message: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Check parses source without executing it.
func (m *Messages) Check(source string) error {
	if !strings.Contains(source, "{{") && !strings.Contains(source, "{%") {
		return nil
	}
	_, err := m.template(source)
	return err
}

func (m *Messages) template(source string) (*pongo2.Template, error) {
	m.mu.RLock()
	tpl, ok := m.templates[source]
	m.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	tpl, err := m.set.FromString("{% autoescape off %}" + source + "{% endautoescape %}")
	if err != nil {
		return nil, fmt.Errorf("render: parse message: %w", err)
	}

	m.mu.Lock()
	m.templates[source] = tpl
	m.mu.Unlock()
	return tpl, nil
}

// noIncludes backs the template set so messages cannot include files.
var noIncludes embed.FS

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// contextFrom drops top-level keys pongo2 cannot address as identifiers.
func contextFrom(data map[string]any) pongo2.Context {
	ctx := make(pongo2.Context, len(data))
	for key, value := range data {
		if identifierPattern.MatchString(key) {
			ctx[key] = value
		}
	}
	return ctx
}
