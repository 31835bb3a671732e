/*
Package waypoint turns a list of candidate support resources into a rendered
Action Plan.

The pipeline has three stages. A backend request (pkg/backend) posts the
resources to the generation service and recovers a structured ActionPlan from
its reply, repairing the common line-break damage in the model output. The
citation extractor (pkg/citation) lifts "[1]" style markers out of the plan
prose. The markdown renderer (pkg/markdown) turns the prose into sanitized HTML
with the citations attached as footnotes.

Backend failures never surface as errors: Generate reports an absent plan and
the reason is logged.

# Usage

	p := waypoint.New("http://localhost:1416")

	plan, ok := p.Generate(ctx, []domain.Resource{
		{Name: "Food Bank", Description: "Free groceries on weekdays"},
	})
	if !ok {
		// show "no plan available"
	}

	doc := p.RenderPlan(plan)
	fmt.Println(doc.HTML)

The same pipeline is served over HTTP (pkg/adapters/http) and as MCP tools
(pkg/adapters/mcp), and driven from the waypoint CLI in cmd/waypoint.
*/
package waypoint
