package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the in-memory street registry from the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildServices(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		// buildServices already performed the initial load; report it.
		streets, addresses := svc.registry.Size()
		fmt.Printf("registry loaded: %d streets, %d addresses\n", streets, addresses)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}
