package waypoint

import (
	"context"
	"io"
	"log/slog"
	"regexp"

	"github.com/aretw0/waypoint/pkg/backend"
	"github.com/aretw0/waypoint/pkg/citation"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/markdown"
)

// Pipeline is the high-level entry point for the waypoint library.
// It wires the backend client, the citation extractor and the renderer.
// A Pipeline is safe for concurrent use.
type Pipeline struct {
	client      *backend.Client
	renderer    *markdown.Renderer
	citeOpts    []citation.Option
	backendOpts []backend.Option
	logger      *slog.Logger
}

// Option defines a functional option for configuring the Pipeline.
type Option func(*Pipeline)

// WithBackendOptions forwards options to the backend client.
func WithBackendOptions(opts ...backend.Option) Option {
	return func(p *Pipeline) {
		p.backendOpts = append(p.backendOpts, opts...)
	}
}

// WithRenderer replaces the default markdown renderer.
func WithRenderer(r *markdown.Renderer) Option {
	return func(p *Pipeline) {
		p.renderer = r
	}
}

// WithCitationPattern overrides the citation marker syntax.
func WithCitationPattern(re *regexp.Regexp) Option {
	return func(p *Pipeline) {
		p.citeOpts = append(p.citeOpts, citation.WithPattern(re))
	}
}

// WithLogger sets the structured logger. It is also handed to the backend client.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// Document is a plan ready for display.
type Document struct {
	Title     string            `json:"title"`
	Summary   string            `json:"summary"`
	HTML      string            `json:"html"`
	Citations []domain.Citation `json:"citations"`
}

// New creates a Pipeline that requests plans from the backend at baseURL.
func New(baseURL string, opts ...Option) *Pipeline {
	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if p.renderer == nil {
		p.renderer = markdown.New()
	}

	backendOpts := append([]backend.Option{backend.WithLogger(p.logger)}, p.backendOpts...)
	p.client = backend.New(baseURL, backendOpts...)
	return p
}

// Backend returns the underlying backend client.
func (p *Pipeline) Backend() *backend.Client {
	return p.client
}

// Generate requests a plan for resources. ok is false when no complete plan
// could be obtained, whatever the reason.
func (p *Pipeline) Generate(ctx context.Context, resources []domain.Resource) (domain.ActionPlan, bool) {
	return p.client.Generate(ctx, resources)
}

// GenerateRequest is Generate with the full request body, e.g. to pass a user email.
func (p *Pipeline) GenerateRequest(ctx context.Context, req domain.ActionPlanRequest) (domain.ActionPlan, bool) {
	return p.client.GenerateRequest(ctx, req)
}

// Extract lifts citation markers out of text.
func (p *Pipeline) Extract(text string) citation.Result {
	return citation.Extract(text, p.citeOpts...)
}

// Render converts text to sanitized HTML, with citations as footnotes.
func (p *Pipeline) Render(text string) string {
	res := p.Extract(text)
	return p.renderer.RenderWithCitations(res.Content, res.Citations)
}

// RenderPlan renders a whole plan (heading, summary and content).
// Citations are taken from the plan content only.
func (p *Pipeline) RenderPlan(plan domain.ActionPlan) Document {
	res := p.Extract(plan.Content)
	plan.Content = res.Content
	return Document{
		Title:     plan.Title,
		Summary:   plan.Summary,
		HTML:      p.renderer.RenderPlan(plan, res.Citations),
		Citations: res.Citations,
	}
}
