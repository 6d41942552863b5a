// labflow validates, orders, draws and runs lab automation pipelines.
//
// Usage:
//
//	labflow validate <pipeline.json|yaml>
//	labflow order <pipeline>
//	labflow draw <pipeline> [-o graph.dot]
//	labflow run <pipeline> [--config labflow.yaml] [--volume 0=channel0.json] [--simulate-workflow] [--dot run.dot]
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
