package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Onboard drives the business onboarding wizard engine",
	Long:  `Onboard serves and validates multi-step business-onboarding flows: step navigation, field validation and two-tier session persistence.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
