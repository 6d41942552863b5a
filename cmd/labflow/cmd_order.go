package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/askiada/go-labflow/pkg/pipeline"
	"github.com/askiada/go-labflow/pkg/pipeline/model"
)

var orderCmd = &cobra.Command{
	Use:   "order <pipeline>",
	Short: "Print the execution order, scoped nodes indented under their owner",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrder,
}

func runOrder(cmd *cobra.Command, args []string) error {
	p, err := pipeline.Load(args[0])
	if err != nil {
		return err
	}

	resolver, err := pipeline.NewScopeResolver(p)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	var walk func(ids []string, depth int) error
	walk = func(ids []string, depth int) error {
		for i, id := range ids {
			node, _ := p.Node(id)
			fmt.Fprintf(out, "%*s%d. %s [%s] %s\n", depth*4, "", i+1, node.Label(), node.Type, node.ID)

			switch node.Type {
			case model.NodeTypeForEach:
				body, err := resolver.BodySorted(id)
				if err != nil {
					return err
				}
				if err := walk(body, depth+1); err != nil {
					return err
				}
			case model.NodeTypeConditional:
				for _, branch := range []pipeline.Branch{pipeline.BranchTrue, pipeline.BranchFalse} {
					nodes, err := resolver.BranchSorted(id, branch)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%*s%s:\n", (depth+1)*4, "", branch)
					if err := walk(nodes, depth+2); err != nil {
						return err
					}
				}
			}
		}

		return nil
	}

	return walk(resolver.TopLevelNodeIDs(), 0)
}
