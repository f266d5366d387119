package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/finlayer/onboard/pkg/flow"
)

var validateCmd = &cobra.Command{
	Use:   "validate <flow.yaml>...",
	Short: "Check flow definition files for consistency",
	Long:  `Compiles each flow file and reports duplicate step ids, out-of-sequence step numbers, unknown format patterns and unparseable requiredWhen expressions.`,
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		failed := false
		for _, path := range args {
			f, err := flow.LoadFile(path)
			if err != nil {
				fmt.Printf("%s: %v\n", path, err)
				failed = true
				continue
			}
			fmt.Printf("%s: flow %q with %d steps is valid\n", path, f.Variant(), f.Len())
		}
		if failed {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
