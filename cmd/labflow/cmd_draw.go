package main

import (
	"github.com/spf13/cobra"

	"github.com/askiada/go-labflow/pkg/pipeline"
	"github.com/askiada/go-labflow/pkg/pipeline/drawer"
)

var drawFlags struct {
	output string
}

var drawCmd = &cobra.Command{
	Use:   "draw <pipeline>",
	Short: "Render the pipeline graph in the DOT language",
	Args:  cobra.ExactArgs(1),
	RunE:  runDraw,
}

func init() {
	drawCmd.Flags().StringVarP(&drawFlags.output, "output", "o", "", "DOT file to write (default stdout)")
}

func runDraw(cmd *cobra.Command, args []string) error {
	p, err := pipeline.Load(args[0])
	if err != nil {
		return err
	}

	d, err := drawer.FromPipeline(p)
	if err != nil {
		return err
	}

	if drawFlags.output == "" {
		return d.Draw(cmd.OutOrStdout())
	}

	return d.DrawFile(drawFlags.output)
}
