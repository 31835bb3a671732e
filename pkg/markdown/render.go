// Package markdown converts action plan prose into HTML that can be injected
// into a page as-is.
//
// Conversion uses goldmark without raw HTML support, and every result is then
// passed through a bluemonday policy. Sanitization happens here and nowhere
// else, so callers must not escape the output again.
package markdown

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/aretw0/waypoint/pkg/citation"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Render modes reported to the Recorder.
const (
	ModeMarkdown = "markdown"
	ModeFallback = "fallback"
)

// Recorder observes finished renders. internal/metrics.Metrics implements it.
type Recorder interface {
	ObserveRender(mode string)
}

// Renderer converts markup to sanitized HTML. It is safe for concurrent use.
type Renderer struct {
	md        goldmark.Markdown
	policy    *bluemonday.Policy
	hardWraps bool
	citations []domain.Citation
	recorder  Recorder

	convert func(src []byte, w io.Writer) error
}

// Option defines a functional option for configuring the Renderer.
type Option func(*Renderer)

// WithPolicy replaces the default UGC sanitization policy.
func WithPolicy(p *bluemonday.Policy) Option {
	return func(r *Renderer) {
		if p != nil {
			r.policy = p
		}
	}
}

// WithHardWraps renders single line breaks as <br>.
func WithHardWraps(enabled bool) Option {
	return func(r *Renderer) {
		r.hardWraps = enabled
	}
}

// WithCitations appends footnote definitions for citations, so the "[^n]"
// placeholders left by citation.Extract render as linked footnotes.
func WithCitations(citations []domain.Citation) Option {
	return func(r *Renderer) {
		r.citations = citations
	}
}

// WithRecorder sets the render recorder (metrics).
func WithRecorder(rec Recorder) Option {
	return func(r *Renderer) {
		r.recorder = rec
	}
}

// New builds a reusable Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		policy: bluemonday.UGCPolicy(),
	}
	for _, opt := range opts {
		opt(r)
	}

	var rendererOpts []goldmark.Option
	if r.hardWraps {
		rendererOpts = append(rendererOpts, goldmark.WithRendererOptions(gmhtml.WithHardWraps()))
	}

	r.md = goldmark.New(
		append([]goldmark.Option{
			goldmark.WithExtensions(
				extension.Linkify,
				extension.Strikethrough,
				extension.Table,
				extension.Footnote,
			),
		}, rendererOpts...)...,
	)
	r.convert = func(src []byte, w io.Writer) error {
		return r.md.Convert(src, w)
	}
	return r
}

// Render converts text using the citations configured with WithCitations.
func (r *Renderer) Render(text string) string {
	return r.RenderWithCitations(text, r.citations)
}

// RenderWithCitations converts text and appends footnotes for citations.
// It never fails: if conversion breaks, the text is returned as escaped paragraphs.
func (r *Renderer) RenderWithCitations(text string, citations []domain.Citation) string {
	src := text + footnotes(citations)

	var buf bytes.Buffer
	if err := r.convertSafely([]byte(src), &buf); err != nil {
		r.observe(ModeFallback)
		return r.policy.Sanitize(Plain(text))
	}

	r.observe(ModeMarkdown)
	return r.policy.Sanitize(buf.String())
}

// RenderPlan renders the document form of plan (title, summary, content).
func (r *Renderer) RenderPlan(plan domain.ActionPlan, citations []domain.Citation) string {
	return r.RenderWithCitations(plan.Markdown(), citations)
}

func (r *Renderer) convertSafely(src []byte, w io.Writer) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("markdown conversion panicked: %v", rec)
		}
	}()
	return r.convert(src, w)
}

func (r *Renderer) observe(mode string) {
	if r.recorder != nil {
		r.recorder.ObserveRender(mode)
	}
}

// Render converts text to sanitized HTML with a one-off Renderer.
func Render(text string, opts ...Option) string {
	return New(opts...).Render(text)
}

// RenderPlan renders the document form of plan with a default Renderer.
func RenderPlan(plan domain.ActionPlan, citations []domain.Citation) string {
	return New().RenderPlan(plan, citations)
}

// Plain renders text as escaped paragraphs, one per blank-line separated block.
func Plain(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var b strings.Builder
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(block))
		b.WriteString("</p>")
	}
	return b.String()
}

// footnotes builds markdown footnote definitions. Citations without a label
// are skipped and their placeholder stays literal.
func footnotes(citations []domain.Citation) string {
	var b strings.Builder
	for _, c := range citations {
		label := strings.TrimSpace(strings.ReplaceAll(c.Label, "\n", " "))
		if c.Marker == "" || label == "" {
			continue
		}
		b.WriteString("\n\n")
		b.WriteString(citation.Placeholder(c.Marker))
		b.WriteString(": ")
		b.WriteString(label)
	}
	return b.String()
}
