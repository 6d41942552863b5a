package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/askiada/go-labflow/pkg/pipeline"
)

var validateCmd = &cobra.Command{
	Use:   "validate <pipeline>",
	Short: "List the problems preventing a pipeline from running",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	p, err := pipeline.Load(args[0])
	if err != nil {
		return err
	}

	problems := p.Validate()
	out := cmd.OutOrStdout()

	if len(problems) == 0 {
		fmt.Fprintf(out, "%s: ok (%d nodes, %d connections)\n", p.Name, len(p.NodeIDs()), len(p.Connections()))

		return nil
	}

	for _, problem := range problems {
		fmt.Fprintf(out, "- %s\n", problem)
	}

	return errors.Errorf("%d problems found", len(problems))
}
