package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/internal/presentation/tui"
	"github.com/aretw0/waypoint/pkg/catalog"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Request an action plan for a set of resources",
	Long: `Loads candidate resources from a catalog directory (markdown documents with
YAML frontmatter) or from a YAML/JSON list, requests an action plan from the
backend and prints it.

Output is terminal markdown when stdout is a terminal, raw markdown otherwise.
Use --html for the sanitized HTML document or --json for the structured record.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		resources, err := loadResources(cmd, cfg.CatalogDir)
		if err != nil {
			return err
		}
		email, _ := cmd.Flags().GetString("email")

		pipeline := newPipeline(cfg, logger, nil)
		plan, ok := pipeline.GenerateRequest(cmd.Context(), domain.ActionPlanRequest{
			Resources: resources,
			UserEmail: email,
		})
		if !ok {
			tui.Status(os.Stderr, false, "No action plan available from %s", pipeline.Backend().Endpoint())
			return errors.New("action plan unavailable")
		}

		if save, _ := cmd.Flags().GetBool("save"); save {
			store, err := newPlanStore(cfg, logger)
			if err != nil {
				return err
			}
			defer store.close()
			stored, err := store.Save(cmd.Context(), plan)
			if err != nil {
				return fmt.Errorf("failed to store action plan: %w", err)
			}
			tui.Status(os.Stderr, true, "Stored action plan %s", stored.ID)
		}

		return printPlan(cmd, pipeline, plan)
	},
}

func loadResources(cmd *cobra.Command, catalogDir string) ([]domain.Resource, error) {
	file, _ := cmd.Flags().GetString("resources")
	if file != "" {
		return catalog.LoadFile(file)
	}

	if cmd.Flags().Changed("catalog") || catalogDir == "" {
		catalogDir, _ = cmd.Flags().GetString("catalog")
	}
	c, err := catalog.Open(catalogDir)
	if err != nil {
		return nil, err
	}
	ids, _ := cmd.Flags().GetStringSlice("id")
	if len(ids) > 0 {
		return c.Select(cmd.Context(), ids)
	}
	return c.Resources(cmd.Context())
}

func printPlan(cmd *cobra.Command, pipeline *waypoint.Pipeline, plan domain.ActionPlan) error {
	out := cmd.OutOrStdout()

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	}
	if asHTML, _ := cmd.Flags().GetBool("html"); asHTML {
		fmt.Fprintln(out, pipeline.RenderPlan(plan).HTML)
		return nil
	}

	md := plan.Markdown()
	if !tui.IsTerminal(os.Stdout) {
		fmt.Fprintln(out, md)
		return nil
	}
	render, err := tui.NewRenderer(tui.TerminalWidth(os.Stdout))
	if err != nil {
		return err
	}
	rendered, err := render(md)
	if err != nil {
		// Fallback to raw markdown
		fmt.Fprintln(out, md)
		return nil
	}
	fmt.Fprint(out, rendered)
	return nil
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().String("catalog", ".", "Directory containing resource documents")
	planCmd.Flags().StringP("resources", "r", "", "YAML or JSON file with a list of resources (overrides --catalog)")
	planCmd.Flags().StringSlice("id", nil, "Catalog resource IDs to include, in order (default: all)")
	planCmd.Flags().String("email", "", "Email of the case manager requesting the plan")
	planCmd.Flags().Bool("save", false, "Store the plan in the configured plan store")
	planCmd.Flags().Bool("html", false, "Print sanitized HTML")
	planCmd.Flags().Bool("json", false, "Print the structured plan as JSON")
}
