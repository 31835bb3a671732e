package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/waypoint/pkg/sanitize"
	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render [file]",
	Short: "Render markdown prose to sanitized HTML",
	Long:  `Reads markdown from a file (or stdin), lifts citation markers out as footnotes and prints sanitized HTML.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		var in io.Reader = cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		limit := sanitize.MaxSize()
		data, err := io.ReadAll(io.LimitReader(in, int64(limit)+1))
		if err != nil {
			return err
		}
		text, err := sanitize.Input(string(data), limit)
		if err != nil {
			return err
		}

		pipeline := newPipeline(cfg, logger, nil)
		out := cmd.OutOrStdout()
		if citations, _ := cmd.Flags().GetBool("citations"); citations {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(pipeline.Extract(text))
		}
		fmt.Fprintln(out, pipeline.Render(text))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().Bool("citations", false, "Print the extracted citations and residual content as JSON instead of HTML")
}
