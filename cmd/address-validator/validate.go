package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dea-madrid/address-validation/internal/engine"
)

var (
	validateNumber   string
	validatePostal   string
	validateDistrict string
	validateLat      float64
	validateLon      float64
	validateCoords   bool
	validateJSON     bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <street-type> <street-name>",
	Short: "Validate a single address from the command line",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildServices(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		q := engine.Query{
			StreetType:   args[0],
			StreetName:   args[1],
			StreetNumber: validateNumber,
			PostalCode:   validatePostal,
			District:     validateDistrict,
		}
		if validateCoords {
			q.Latitude = &validateLat
			q.Longitude = &validateLon
		}

		result, err := svc.engine.Validate(q)
		if err != nil {
			return err
		}

		if validateJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		fmt.Printf("Status:     %s\n", result.OverallStatus)
		fmt.Printf("Confidence: %.2f (%s)\n", result.Confidence, result.MatchType)
		for i, s := range result.Suggestions {
			line := fmt.Sprintf("%2d. %s %s", i+1, s.StreetClass, s.StreetName)
			if s.Number != nil {
				line += " " + strconv.Itoa(*s.Number)
			}
			if s.PostalCode != "" {
				line += ", " + s.PostalCode
			}
			fmt.Printf("%s  (%.2f %s)\n", line, s.Confidence, s.MatchType)
		}
		for _, a := range result.RecommendedActions {
			fmt.Printf("  - %s\n", a)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateNumber, "number", "", "house number")
	validateCmd.Flags().StringVar(&validatePostal, "postal-code", "", "postal code")
	validateCmd.Flags().StringVar(&validateDistrict, "district", "", "district code or name")
	validateCmd.Flags().Float64Var(&validateLat, "lat", 0, "latitude")
	validateCmd.Flags().Float64Var(&validateLon, "lon", 0, "longitude")
	validateCmd.Flags().BoolVar(&validateCoords, "coords", false, "use --lat/--lon")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "print the full result as JSON")
	rootCmd.AddCommand(validateCmd)
}
