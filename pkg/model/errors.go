package model

import (
	"fmt"
	"strings"
)

// Problem is one configuration defect found while building a form.
type Problem struct {
	Location string `json:"location"`
	Message  string `json:"message"`
}

func (p Problem) String() string {
	return p.Location + ": " + p.Message
}

// ConfigError reports every problem found in a form declaration. Forms that
// fail construction are never usable.
type ConfigError struct {
	Form     string
	Problems []Problem
}

func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.String())
	}
	name := e.Form
	if name == "" {
		name = "<unnamed>"
	}
	return fmt.Sprintf("model: form %q is misconfigured: %s", name, strings.Join(parts, "; "))
}

type problemSet struct {
	list []Problem
}

func (s *problemSet) add(location, message string) {
	s.list = append(s.list, Problem{Location: location, Message: message})
}

func (s *problemSet) empty() bool {
	return len(s.list) == 0
}

func stepLocation(id int) string {
	return fmt.Sprintf("step %d", id)
}

func fieldLocation(step int, name string) string {
	return fmt.Sprintf("step %d field %q", step, name)
}
