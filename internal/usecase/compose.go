package usecase

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"text/template"

	"nutriguide/internal/domain"
	"nutriguide/internal/port"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// promptData is the value both templates are executed against.
type promptData struct {
	Context  string
	Question string
}

// Strategy renders the prompt for one branch of the router.
type Strategy interface {
	Name() string
	Prompt(question string, d domain.Decision) (string, error)
	SourceUsed() bool
}

type templateStrategy struct {
	name       string
	tmpl       *template.Template
	sourceUsed bool
}

func (s *templateStrategy) Name() string     { return s.name }
func (s *templateStrategy) SourceUsed() bool { return s.sourceUsed }

func (s *templateStrategy) Prompt(question string, d domain.Decision) (string, error) {
	data := promptData{Question: question}
	if s.sourceUsed {
		data.Context = d.Best.Document.Answer
	}
	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", s.name, err)
	}
	return buf.String(), nil
}

func loadStrategy(name string, sourceUsed bool) (*templateStrategy, error) {
	tmpl, err := template.New(name+".tmpl").Option("missingkey=error").ParseFS(templateFS, "templates/"+name+".tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse %s template: %w", name, err)
	}
	return &templateStrategy{name: name, tmpl: tmpl, sourceUsed: sourceUsed}, nil
}

// Composer turns a routing decision into a Response by rendering the
// matching strategy's prompt and calling the generator.
type Composer struct {
	generator port.Generator
	grounded  Strategy
	fallback  Strategy
}

// NewComposer parses the embedded templates. generator may be nil when the
// composer is only used to render prompts.
func NewComposer(generator port.Generator) (*Composer, error) {
	grounded, err := loadStrategy("grounded", true)
	if err != nil {
		return nil, err
	}
	fallback, err := loadStrategy("fallback", false)
	if err != nil {
		return nil, err
	}
	return &Composer{generator: generator, grounded: grounded, fallback: fallback}, nil
}

func (c *Composer) strategy(d domain.Decision) Strategy {
	if d.Sufficient {
		return c.grounded
	}
	return c.fallback
}

// RenderPrompt returns the exact prompt Compose would send for the decision.
func (c *Composer) RenderPrompt(question string, d domain.Decision) (string, Strategy, error) {
	s := c.strategy(d)
	prompt, err := s.Prompt(question, d)
	if err != nil {
		return "", nil, err
	}
	return prompt, s, nil
}

// Compose renders the prompt and generates the answer. Generator failures
// are returned wrapped in domain.ErrGeneration.
func (c *Composer) Compose(ctx context.Context, question string, d domain.Decision) (domain.Response, error) {
	if c.generator == nil {
		return domain.Response{}, fmt.Errorf("%w: no generator configured", domain.ErrConfig)
	}
	prompt, s, err := c.RenderPrompt(question, d)
	if err != nil {
		return domain.Response{}, err
	}
	text, err := c.generator.Generate(ctx, prompt)
	if err != nil {
		return domain.Response{}, fmt.Errorf("%w: %s branch: %w", domain.ErrGeneration, s.Name(), err)
	}
	return domain.Response{Text: text, SourceUsed: s.SourceUsed()}, nil
}
