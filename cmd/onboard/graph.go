package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/finlayer/onboard/internal/presentation/graph"
	"github.com/finlayer/onboard/pkg/flow"
)

var graphFlowFile string

var graphCmd = &cobra.Command{
	Use:   "graph [variant]",
	Short: "Render a flow as a Mermaid diagram",
	Long:  `Prints the steps of a flow variant as Mermaid flowchart syntax, suitable for pasting into documentation or a live editor. Defaults to the new-business variant; use --flow to render a flow definition file instead.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			f   *flow.Flow
			err error
		)
		switch {
		case graphFlowFile != "":
			f, err = flow.LoadFile(graphFlowFile)
		case len(args) == 1:
			f, err = flow.Builtin(args[0])
		default:
			f = flow.NewBusiness()
		}
		if err != nil {
			return err
		}

		fmt.Print(graph.Mermaid(f, nil))
		return nil
	},
}

func init() {
	graphCmd.Flags().StringVar(&graphFlowFile, "flow", "", "render a flow definition file instead of a builtin variant")
	rootCmd.AddCommand(graphCmd)
}
