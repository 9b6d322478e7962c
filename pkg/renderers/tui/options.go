package tui

// OutputFormat controls how FormatPayload serializes values.
type OutputFormat string

const (
	// OutputFormatJSON emits indented JSON.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatFormURLEncoded emits application/x-www-form-urlencoded pairs.
	OutputFormatFormURLEncoded OutputFormat = "form"
	// OutputFormatPrettyText emits one path=value line per leaf.
	OutputFormatPrettyText OutputFormat = "pretty"
)

// Theme captures optional message prefixes.
type Theme struct {
	StepPrefix  string
	InfoPrefix  string
	ErrorPrefix string
}

// DefaultTheme is used when no theme is configured.
var DefaultTheme = Theme{StepPrefix: "==", InfoPrefix: "", ErrorPrefix: "!"}

// Option configures a Runner.
type Option func(*Runner)

// WithPromptDriver overrides the prompt driver.
func WithPromptDriver(driver PromptDriver) Option {
	return func(r *Runner) {
		if driver != nil {
			r.driver = driver
		}
	}
}

// WithTheme applies message prefixes.
func WithTheme(theme Theme) Option {
	return func(r *Runner) {
		r.theme = theme
	}
}

// WithPageSize limits visible options in select prompts.
func WithPageSize(size int) Option {
	return func(r *Runner) {
		if size > 0 {
			r.pageSize = size
		}
	}
}

// WithMaxAttempts bounds how many times a failing step is re-prompted before
// the runner gives up. Zero means unbounded.
func WithMaxAttempts(n int) Option {
	return func(r *Runner) {
		if n >= 0 {
			r.maxAttempts = n
		}
	}
}
