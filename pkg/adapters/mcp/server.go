// Package mcp exposes the action plan pipeline as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/pkg/catalog"
	"github.com/aretw0/waypoint/pkg/citation"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/markdown"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/aretw0/waypoint/pkg/sanitize"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"
)

// ErrUnavailable is returned by generate_action_plan when no plan could be obtained.
var ErrUnavailable = errors.New("action plan unavailable")

const plansURI = "waypoint://plans"

// Generator produces action plans. *backend.Client implements it.
type Generator interface {
	GenerateRequest(ctx context.Context, req domain.ActionPlanRequest) (domain.ActionPlan, bool)
}

// PlanResult is the structured output of generate_action_plan.
type PlanResult struct {
	ID   string            `json:"id,omitempty" jsonschema_description:"Stored plan ID, empty when no store is configured"`
	Plan domain.ActionPlan `json:"plan" jsonschema_description:"The generated action plan"`
}

// RenderResult is the structured output of render_markdown.
type RenderResult struct {
	HTML      string            `json:"html" jsonschema_description:"Sanitized HTML"`
	Content   string            `json:"content" jsonschema_description:"Prose with citation markers replaced by footnote placeholders"`
	Citations []domain.Citation `json:"citations" jsonschema_description:"Citations in first-occurrence order"`
}

type generateArgs struct {
	Resources any    `mapstructure:"resources"`
	UserEmail string `mapstructure:"user_email"`
}

type contentArgs struct {
	Content string `mapstructure:"content"`
}

// Server exposes waypoint as an MCP Server.
type Server struct {
	generator Generator
	store     ports.PlanStore
	renderer  *markdown.Renderer
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option defines a functional option for configuring the Server.
type Option func(*Server)

// WithStore persists generated plans and exposes them as a resource.
func WithStore(store ports.PlanStore) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithRenderer replaces the default markdown renderer.
func WithRenderer(r *markdown.Renderer) Option {
	return func(s *Server) {
		s.renderer = r
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(gen Generator, opts ...Option) *Server {
	s := &Server{
		generator: gen,
		mcpServer: server.NewMCPServer("waypoint-mcp", strings.TrimSpace(waypoint.Version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.renderer == nil {
		s.renderer = markdown.New()
	}

	s.registerTools()
	if s.store != nil {
		s.registerResources()
	}
	return s
}

// MCPServer returns the underlying server, e.g. for in-process clients.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	generateTool := mcp.NewTool("generate_action_plan",
		mcp.WithDescription("Generate an action plan for a list of candidate resources."),
		mcp.WithString("resources", mcp.Required(), mcp.Description("JSON array of resources, each with at least name and description")),
		mcp.WithString("user_email", mcp.Description("Email of the case manager requesting the plan (optional)")),
		mcp.WithOutputSchema[PlanResult](),
	)
	s.mcpServer.AddTool(generateTool, mcp.NewStructuredToolHandler(s.handleGenerate))

	renderTool := mcp.NewTool("render_markdown",
		mcp.WithDescription("Render action plan prose to sanitized HTML, lifting citations out as footnotes."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown prose")),
		mcp.WithOutputSchema[RenderResult](),
	)
	s.mcpServer.AddTool(renderTool, mcp.NewStructuredToolHandler(s.handleRender))

	citationsTool := mcp.NewTool("extract_citations",
		mcp.WithDescription("Extract citation markers from prose without rendering it."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown prose")),
		mcp.WithOutputSchema[citation.Result](),
	)
	s.mcpServer.AddTool(citationsTool, mcp.NewStructuredToolHandler(s.handleExtract))
}

func (s *Server) handleGenerate(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (PlanResult, error) {
	var in generateArgs
	if err := mapstructure.Decode(args, &in); err != nil {
		return PlanResult{}, fmt.Errorf("invalid arguments: %w", err)
	}

	resources, err := decodeResources(in.Resources)
	if err != nil {
		return PlanResult{}, err
	}

	plan, ok := s.generator.GenerateRequest(ctx, domain.ActionPlanRequest{
		Resources: resources,
		UserEmail: strings.TrimSpace(in.UserEmail),
	})
	if !ok {
		return PlanResult{}, ErrUnavailable
	}

	if s.store == nil {
		return PlanResult{Plan: plan}, nil
	}
	stored, err := s.store.Save(ctx, plan)
	if err != nil {
		s.logger.Error("MCP generate: store failed", "error", err)
		return PlanResult{}, fmt.Errorf("failed to store action plan: %w", err)
	}
	return PlanResult{ID: stored.ID, Plan: stored.Plan}, nil
}

func (s *Server) handleRender(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (RenderResult, error) {
	content, err := decodeContent(args)
	if err != nil {
		s.logger.Warn("MCP render: input rejected", "error", err)
		return RenderResult{}, err
	}

	extracted := citation.Extract(content)
	return RenderResult{
		HTML:      s.renderer.RenderWithCitations(extracted.Content, extracted.Citations),
		Content:   extracted.Content,
		Citations: extracted.Citations,
	}, nil
}

func (s *Server) handleExtract(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (citation.Result, error) {
	content, err := decodeContent(args)
	if err != nil {
		return citation.Result{}, err
	}
	return citation.Extract(content), nil
}

func decodeContent(args map[string]interface{}) (string, error) {
	var in contentArgs
	if err := mapstructure.Decode(args, &in); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	clean, err := sanitize.Input(in.Content, 0)
	if err != nil {
		return "", fmt.Errorf("input rejected: %w", err)
	}
	return clean, nil
}

// decodeResources accepts either a JSON array string or an already decoded array.
func decodeResources(v any) ([]domain.Resource, error) {
	if str, ok := v.(string); ok {
		var raw []map[string]any
		if err := json.Unmarshal([]byte(str), &raw); err != nil {
			return nil, fmt.Errorf("%w: resources must be a JSON array: %v", catalog.ErrInvalidResource, err)
		}
		v = raw
	}
	if v == nil {
		return nil, fmt.Errorf("%w: resources are required", catalog.ErrInvalidResource)
	}

	var metas []catalog.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      &metas,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(v); err != nil {
		return nil, fmt.Errorf("%w: %v", catalog.ErrInvalidResource, err)
	}

	resources := make([]domain.Resource, 0, len(metas))
	for _, m := range metas {
		res := m.Resource("")
		if err := catalog.Validate(res); err != nil {
			return nil, err
		}
		resources = append(resources, res)
	}
	return resources, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(plansURI, "Stored Action Plans",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.store.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list plans: %w", err)
		}

		plans := make([]domain.StoredPlan, 0, len(ids))
		for _, id := range ids {
			p, err := s.store.Load(ctx, id)
			if errors.Is(err, domain.ErrPlanNotFound) {
				continue // expired between List and Load
			}
			if err != nil {
				return nil, err
			}
			plans = append(plans, p)
		}
		jsonBytes, _ := json.Marshal(plans)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      plansURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
