package steps

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Step is one phrase of a scenario with its optional table and doc string.
type Step struct {
	Text  string
	Table [][]string
	Doc   string
}

// Handler performs a step. args holds the capture groups of the pattern.
type Handler func(ctx context.Context, sc *ScenarioContext, step Step, args []string) error

type definition struct {
	pattern *regexp.Regexp
	handler Handler
}

// Registry is the table of known phrases.
type Registry struct {
	definitions []definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds pattern. It is anchored at both ends and must compile.
func (r *Registry) Register(pattern string, h Handler) {
	expr := pattern
	if !strings.HasPrefix(expr, "^") {
		expr = "^" + expr
	}
	if !strings.HasSuffix(expr, "$") {
		expr += "$"
	}
	r.definitions = append(r.definitions, definition{
		pattern: regexp.MustCompile(expr),
		handler: h,
	})
}

// Patterns lists the registered patterns in registration order.
func (r *Registry) Patterns() []string {
	patterns := make([]string, len(r.definitions))
	for i, d := range r.definitions {
		patterns[i] = d.pattern.String()
	}
	return patterns
}

var keywords = []string{"Given ", "When ", "Then ", "And ", "But ", "* "}

// StripKeyword removes a leading Gherkin keyword and surrounding space.
func StripKeyword(text string) string {
	text = strings.TrimSpace(text)
	for _, kw := range keywords {
		if strings.HasPrefix(text, kw) {
			return strings.TrimSpace(text[len(kw):])
		}
	}
	return text
}

// Match finds the single definition for text and returns its handler and
// capture groups.
func (r *Registry) Match(text string) (Handler, []string, error) {
	phrase := StripKeyword(text)

	var (
		found   *definition
		args    []string
		matched []string
	)
	for i := range r.definitions {
		d := &r.definitions[i]
		groups := d.pattern.FindStringSubmatch(phrase)
		if groups == nil {
			continue
		}
		matched = append(matched, d.pattern.String())
		if found == nil {
			found = d
			args = groups[1:]
		}
	}

	switch len(matched) {
	case 0:
		return nil, nil, &UndefinedStepError{Text: phrase}
	case 1:
		return found.handler, args, nil
	default:
		return nil, nil, &UndefinedStepError{Text: phrase, Candidates: matched}
	}
}

// Run matches step and calls its handler with placeholders in the
// arguments replaced.
func (r *Registry) Run(ctx context.Context, sc *ScenarioContext, step Step) error {
	handler, args, err := r.Match(step.Text)
	if err != nil {
		return err
	}
	for i := range args {
		args[i] = sc.Substitute(args[i])
	}
	if err := handler(ctx, sc, step, args); err != nil {
		return fmt.Errorf("step %q: %w", StripKeyword(step.Text), err)
	}
	return nil
}
