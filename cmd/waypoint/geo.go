package main

import (
	"fmt"

	"github.com/aretw0/waypoint/pkg/geo"
	"github.com/spf13/cobra"
)

var geoCmd = &cobra.Command{
	Use:   "geo <latitude> <longitude>",
	Short: "Resolve coordinates to a US county and state",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		lat, lon, err := geo.ParseCoordinates(args[0], args[1])
		if err != nil {
			return err
		}

		client := geo.New(geo.WithBaseURL(cfg.GeocoderURL), geo.WithLogger(logger))
		loc, err := client.Lookup(cmd.Context(), lat, lon)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s, %s\n", loc.County, loc.State)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(geoCmd)
}
